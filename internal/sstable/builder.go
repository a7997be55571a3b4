package sstable

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/MikhailWahib/gravelkv/internal/diskmanager"
	"github.com/MikhailWahib/gravelkv/internal/metrics"
	"github.com/MikhailWahib/gravelkv/internal/record"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	// ErrAlreadyFinished is returned by a second call to Finish.
	ErrAlreadyFinished = errors.New("already finished")
	// ErrFinished is returned by Add once the table has been finished.
	ErrFinished = errors.New("sstable: add after finish")
	// ErrOutOfOrder is returned by Add when CheckOrder is set and keys are not strictly ascending.
	ErrOutOfOrder = errors.New("sstable: keys out of order")
	// ErrClosed is returned when the builder's file was released without finishing.
	ErrClosed = errors.New("sstable: builder closed")
)

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	DiskManager diskmanager.DiskManager
	// BlockSize is the buffered size at which a data block is flushed.
	BlockSize int
	// CheckOrder makes Add verify that keys arrive in strictly ascending order.
	CheckOrder bool
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Tracer     trace.Tracer
	// OnCloseError receives failures of the implicit finish run by Close.
	OnCloseError func(path string, err error)
}

// Builder writes an immutable sorted table file.
//
// Keys must be added in ascending order; the builder only verifies this when
// CheckOrder is set. The file is released by Finish or Close, whichever
// comes first, and Close finishes the table if Finish was never called.
type Builder struct {
	path         string
	file         diskmanager.FileHandle
	blockSize    int
	checkOrder   bool
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	onCloseError func(string, error)

	offset     uint64
	dataBlock  []byte
	indexBlock []byte
	lastKey    []byte
	hasKey     bool
	numBlocks  int

	finished bool
	closed   bool
	failed   error
	reported bool
}

// NewBuilder creates (or truncates) the table file at path.
func NewBuilder(path string, opts BuilderOptions) (*Builder, error) {
	if opts.DiskManager == nil {
		opts.DiskManager = diskmanager.NewDiskManager()
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("gravelkv/sstable")
	}

	file, err := opts.DiskManager.Open(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("sstable: create %s: %w", path, err)
	}

	return &Builder{
		path:         path,
		file:         file,
		blockSize:    opts.BlockSize,
		checkOrder:   opts.CheckOrder,
		logger:       opts.Logger.With("component", "sstable", "path", path),
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		onCloseError: opts.OnCloseError,
		dataBlock:    make([]byte, 0, opts.BlockSize+blockTrailerSize),
	}, nil
}

// Add appends an entry to the current data block, flushing the block once
// it reaches the block size.
func (b *Builder) Add(key, value []byte) error {
	switch {
	case b.finished:
		return ErrFinished
	case b.closed:
		return ErrClosed
	}
	if b.checkOrder && b.hasKey && bytes.Compare(key, b.lastKey) <= 0 {
		return fmt.Errorf("%w: %q after %q", ErrOutOfOrder, key, b.lastKey)
	}

	b.dataBlock = appendEntry(b.dataBlock, key, value)
	b.lastKey = append(b.lastKey[:0], key...)
	b.hasKey = true

	if len(b.dataBlock) >= b.blockSize {
		return b.flushBlock()
	}
	return nil
}

// flushBlock seals the buffered entries with a checksum, writes them and
// records the block in the index.
func (b *Builder) flushBlock() error {
	if len(b.dataBlock) == 0 {
		return nil
	}

	_, span := b.tracer.Start(context.Background(), "sstable.Builder.flushBlock")
	defer span.End()

	b.dataBlock = binary.LittleEndian.AppendUint32(b.dataBlock, record.Checksum(b.dataBlock))
	handle := BlockHandle{Offset: b.offset, Size: uint64(len(b.dataBlock))}
	span.SetAttributes(
		attribute.Int64("block.offset", int64(handle.Offset)),
		attribute.Int64("block.size", int64(handle.Size)),
	)

	if err := b.write(b.dataBlock); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "block write failed")
		return b.fail(fmt.Errorf("sstable: write block %d: %w", b.numBlocks, err))
	}

	b.indexBlock = appendIndexEntry(b.indexBlock, b.lastKey, handle)
	b.numBlocks++
	b.metrics.RecordBlockWritten(len(b.dataBlock))
	b.dataBlock = b.dataBlock[:0]
	return nil
}

func (b *Builder) write(p []byte) error {
	n, err := b.file.Write(p)
	b.offset += uint64(n)
	if err == nil && n < len(p) {
		err = fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	return err
}

// fail releases the file after an I/O error. The table is left incomplete.
func (b *Builder) fail(err error) error {
	b.failed = err
	if !b.closed {
		b.closed = true
		if cerr := b.file.Close(); cerr != nil {
			b.logger.Warn("failed to close table after error", "error", cerr)
		}
	}
	return err
}

// Finish flushes the trailing block, writes the index block and footer,
// syncs and closes the file. A second call returns ErrAlreadyFinished.
func (b *Builder) Finish() error {
	switch {
	case b.finished:
		return ErrAlreadyFinished
	case b.failed != nil:
		return b.failed
	case b.closed:
		return ErrClosed
	}

	_, span := b.tracer.Start(context.Background(), "sstable.Builder.Finish")
	defer span.End()

	if err := b.finish(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finish failed")
		return err
	}
	span.SetAttributes(
		attribute.Int("table.blocks", b.numBlocks),
		attribute.Int64("table.size", int64(b.offset)),
	)
	return nil
}

func (b *Builder) finish() error {
	if err := b.flushBlock(); err != nil {
		return err
	}

	var footer Footer
	if len(b.indexBlock) > 0 {
		b.indexBlock = binary.LittleEndian.AppendUint32(b.indexBlock, record.Checksum(b.indexBlock))
		footer.Index = BlockHandle{Offset: b.offset, Size: uint64(len(b.indexBlock))}
		if err := b.write(b.indexBlock); err != nil {
			return b.fail(fmt.Errorf("sstable: write index block: %w", err))
		}
		b.metrics.RecordTableBytes(len(b.indexBlock))
	}

	if err := b.write(footer.Encode()); err != nil {
		return b.fail(fmt.Errorf("sstable: write footer: %w", err))
	}
	b.metrics.RecordTableBytes(FooterSize)

	if err := b.file.Sync(); err != nil {
		return b.fail(fmt.Errorf("sstable: sync: %w", err))
	}

	b.closed = true
	if err := b.file.Close(); err != nil {
		b.failed = fmt.Errorf("sstable: close: %w", err)
		return b.failed
	}
	b.finished = true
	b.logger.Debug("table finished", "blocks", b.numBlocks, "size", b.offset)
	return nil
}

// Close releases the builder. If the table was never finished, Close runs
// the finish sequence so the file is still well formed; a failure there is
// logged, passed to OnCloseError and returned. An earlier Add or Finish
// failure that left the table incomplete is reported the same way, once.
// Close after a successful Finish is a no-op.
func (b *Builder) Close() error {
	if b.closed {
		if b.failed == nil || b.reported {
			return nil
		}
		return b.report(b.failed)
	}

	if err := b.Finish(); err != nil {
		return b.report(err)
	}
	return nil
}

func (b *Builder) report(err error) error {
	b.reported = true
	b.logger.Error("table left incomplete", "error", err)
	if b.onCloseError != nil {
		b.onCloseError(b.path, err)
	}
	return err
}

// FileSize returns the number of bytes written to the file so far.
func (b *Builder) FileSize() uint64 {
	return b.offset
}

// Finished reports whether the table was finished successfully.
func (b *Builder) Finished() bool {
	return b.finished
}

// Path returns the table file path.
func (b *Builder) Path() string {
	return b.path
}

// NumBlocks returns the number of data blocks written so far.
func (b *Builder) NumBlocks() int {
	return b.numBlocks
}
