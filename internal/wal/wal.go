// Package wal implements Write-Ahead Logging for durability
package wal

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MikhailWahib/gravelkv/internal/diskmanager"
	"github.com/MikhailWahib/gravelkv/internal/metrics"
	"github.com/MikhailWahib/gravelkv/internal/record"
)

// DefaultBufferSize is the size of the application-level write buffer.
const DefaultBufferSize = 64 * 1024

var (
	// ErrClosed is returned by operations on a closed WAL.
	ErrClosed = errors.New("wal: closed")
	// ErrBroken is returned once a failed append could not be rolled back.
	// The file may hold a partial record and further appends are refused.
	ErrBroken = errors.New("wal: log unusable after failed rollback")
)

// Options configures a WAL.
type Options struct {
	DiskManager diskmanager.DiskManager
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	BufferSize  int
}

// WAL manages the write-ahead log file
type WAL struct {
	path    string
	file    diskmanager.FileHandle
	writer  *bufio.Writer
	size    int64
	logger  *slog.Logger
	metrics *metrics.Metrics

	broken error
	closed bool
}

// Open opens path for appending, creating it if needed. Existing contents
// are kept and new records go after them.
func Open(path string, opts Options) (*WAL, error) {
	if opts.DiskManager == nil {
		opts.DiskManager = diskmanager.NewDiskManager()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	file, err := opts.DiskManager.Open(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	// Get current file size to track the last durable offset
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("wal: stat %s: %w", path, err)
	}

	return &WAL{
		path:    path,
		file:    file,
		writer:  bufio.NewWriterSize(file, opts.BufferSize),
		size:    info.Size(),
		logger:  opts.Logger.With("component", "wal", "path", path),
		metrics: opts.Metrics,
	}, nil
}

// AppendPut appends a put operation to the WAL
func (w *WAL) AppendPut(key, value []byte) error {
	return w.Append(record.NewPut(key, value))
}

// AppendDelete appends a delete operation to the WAL
func (w *WAL) AppendDelete(key []byte) error {
	return w.Append(record.NewDelete(key))
}

// Append encodes r, writes it through the buffer, flushes and issues a
// durable sync. It returns only once the record is on stable storage.
//
// On failure the buffer is discarded and the file is cut back to its size
// before the call, so a failed record never reappears in a later replay.
func (w *WAL) Append(r record.LogRecord) error {
	if w.closed {
		return ErrClosed
	}
	if w.broken != nil {
		return w.broken
	}

	buf := record.Encode(r)
	if _, err := w.writer.Write(buf); err != nil {
		return w.rollback(fmt.Errorf("wal: write: %w", err))
	}
	if err := w.writer.Flush(); err != nil {
		return w.rollback(fmt.Errorf("wal: flush: %w", err))
	}

	start := time.Now()
	if err := w.file.Sync(); err != nil {
		return w.rollback(fmt.Errorf("wal: sync: %w", err))
	}
	w.metrics.RecordWALSync(time.Since(start))

	w.size += int64(len(buf))
	w.metrics.RecordWALAppend(len(buf))
	return nil
}

func (w *WAL) rollback(cause error) error {
	w.writer.Reset(w.file)
	if err := w.file.Truncate(w.size); err != nil {
		w.broken = fmt.Errorf("%w: %w", ErrBroken, errors.Join(cause, err))
		w.logger.Error("failed to roll back partial append", "size", w.size, "error", w.broken)
		return w.broken
	}
	w.logger.Warn("append failed, log rolled back", "size", w.size, "error", cause)
	return cause
}

// Size returns the number of durable bytes in the log.
func (w *WAL) Size() int64 {
	return w.size
}

// Path returns the log file path.
func (w *WAL) Path() string {
	return w.path
}

// Close flushes, syncs and closes the WAL file. Calling Close again is a no-op.
func (w *WAL) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.broken == nil {
		if err := w.writer.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("wal: flush: %w", err))
		} else if err := w.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("wal: sync: %w", err))
		}
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("wal: close: %w", err))
	}
	return errors.Join(errs...)
}
