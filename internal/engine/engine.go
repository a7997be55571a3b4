// Package engine ties the memtable and the write-ahead log into a durable
// single-writer key-value store.
package engine

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/MikhailWahib/gravelkv/internal/config"
	"github.com/MikhailWahib/gravelkv/internal/diskmanager"
	"github.com/MikhailWahib/gravelkv/internal/logging"
	"github.com/MikhailWahib/gravelkv/internal/memtable"
	"github.com/MikhailWahib/gravelkv/internal/metrics"
	"github.com/MikhailWahib/gravelkv/internal/record"
	"github.com/MikhailWahib/gravelkv/internal/sstable"
	"github.com/MikhailWahib/gravelkv/internal/wal"
	"go.opentelemetry.io/otel/trace"
)

// ErrClosed is returned by mutations on a closed Engine.
var ErrClosed = errors.New("engine: closed")

// Engine is a store keyed by K with string values.
//
// Every mutation is appended to the WAL and synced before it touches the
// memtable. Opening an existing directory replays the WAL. Engine is not
// safe for concurrent use.
type Engine[K cmp.Ordered] struct {
	dataDir  string
	cfg      *config.Config
	codec    KeyCodec[K]
	memtable memtable.Memtable[K, string]
	wal      *wal.WAL
	dm       diskmanager.DiskManager
	base     *slog.Logger
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	recovery wal.ReplayResult
	closed   bool
}

// New opens the store in dataDir, creating the directory if needed.
// A nil cfg uses config.DefaultConfig().
func New[K cmp.Ordered](dataDir string, codec KeyCodec[K], cfg *config.Config, opts ...Option) (*Engine[K], error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	} else {
		copied := *cfg
		cfg = &copied
		cfg.FillDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.New(cfg.Logging, o.logOutput)
	}
	if o.dm == nil {
		o.dm = diskmanager.NewDiskManager()
	}
	if o.rng == nil && cfg.Seed != 0 {
		o.rng = rand.New(rand.NewSource(cfg.Seed))
	}

	if err := o.dm.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("engine: create data dir %s: %w", dataDir, err)
	}

	e := &Engine[K]{
		dataDir: dataDir,
		cfg:     cfg,
		codec:   codec,
		memtable: memtable.NewMemtable[K, string](memtable.SkipListOptions{
			MaxLevel:    cfg.MaxLevel,
			Probability: cfg.Probability,
			Rand:        o.rng,
		}),
		dm:      o.dm,
		base:    o.logger,
		logger:  o.logger.With("component", "engine"),
		metrics: o.metrics,
		tracer:  o.tracer,
	}

	walPath := e.WALPath()
	if err := e.recover(walPath); err != nil {
		return nil, err
	}

	w, err := wal.Open(walPath, wal.Options{
		DiskManager: o.dm,
		Logger:      o.logger,
		Metrics:     o.metrics,
		BufferSize:  cfg.WALBufferSize,
	})
	if err != nil {
		return nil, err
	}
	e.wal = w

	if e.recovery.Stop != wal.StopEOF {
		e.logger.Warn("wal ends in an unreplayable tail; new writes are appended after it and will not be recovered by a later replay",
			"stop", e.recovery.Stop.String(),
			"offset", e.recovery.Offset,
		)
	}

	e.metrics.SetMemtableEntries(e.memtable.Len())
	e.logger.Info("store opened",
		"dir", dataDir,
		"recovered", e.recovery.Records,
		"entries", e.memtable.Len(),
		"stop", e.recovery.Stop.String(),
	)
	return e, nil
}

// recover rebuilds the memtable from an existing non-empty log.
func (e *Engine[K]) recover(walPath string) error {
	info, err := e.dm.Stat(walPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("engine: stat %s: %w", walPath, err)
	}
	if info.Size() == 0 {
		return nil
	}

	records, result, err := wal.Replay(e.dm, walPath, e.base)
	if err != nil {
		return fmt.Errorf("engine: replay: %w", err)
	}
	e.recovery = result
	e.metrics.RecordReplayStop(result.Stop.String())

	for _, rec := range records {
		key, err := e.codec.Decode(rec.Key)
		if err != nil {
			e.logger.Warn("skipping wal record with unparseable key", "key", string(rec.Key), "type", rec.Type.String(), "error", err)
			e.metrics.RecordReplayRecord(metrics.OutcomeSkipped)
			continue
		}

		switch rec.Type {
		case record.PutEntry:
			e.memtable.Put(key, string(rec.Value))
		case record.DeleteEntry:
			e.memtable.Delete(key)
		}
		e.metrics.RecordReplayRecord(metrics.OutcomeApplied)
	}
	return nil
}

// Put stores value under key.
func (e *Engine[K]) Put(key K, value string) (err error) {
	if e.closed {
		return ErrClosed
	}
	start := time.Now()
	defer func() { e.metrics.RecordOperation("put", err, time.Since(start)) }()

	if err := e.wal.AppendPut(e.codec.Encode(key), []byte(value)); err != nil {
		return fmt.Errorf("engine: put: %w", err)
	}
	e.memtable.Put(key, value)
	e.metrics.SetMemtableEntries(e.memtable.Len())
	return nil
}

// Get returns the value stored under key.
func (e *Engine[K]) Get(key K) (string, bool) {
	start := time.Now()
	val, found := e.memtable.Get(key)
	e.metrics.RecordOperation("get", nil, time.Since(start))
	return val, found
}

// Delete removes key and reports whether it existed. The delete is logged
// even when the key is absent.
func (e *Engine[K]) Delete(key K) (existed bool, err error) {
	if e.closed {
		return false, ErrClosed
	}
	start := time.Now()
	defer func() { e.metrics.RecordOperation("delete", err, time.Since(start)) }()

	if err := e.wal.AppendDelete(e.codec.Encode(key)); err != nil {
		return false, fmt.Errorf("engine: delete: %w", err)
	}
	existed = e.memtable.Delete(key)
	e.metrics.SetMemtableEntries(e.memtable.Len())
	return existed, nil
}

// WriteTable writes the current contents to a new table file at path, in
// key order. The memtable and the WAL are left untouched.
func (e *Engine[K]) WriteTable(path string) (err error) {
	start := time.Now()
	defer func() { e.metrics.RecordOperation("write_table", err, time.Since(start)) }()

	b, err := sstable.NewBuilder(path, sstable.BuilderOptions{
		DiskManager: e.dm,
		BlockSize:   e.cfg.BlockSize,
		CheckOrder:  e.cfg.CheckKeyOrder,
		Logger:      e.base,
		Metrics:     e.metrics,
		Tracer:      e.tracer,
	})
	if err != nil {
		return fmt.Errorf("engine: write table: %w", err)
	}

	var addErr error
	e.memtable.Ascend(func(key K, value string) bool {
		addErr = b.Add(e.codec.SortKey(key), []byte(value))
		return addErr == nil
	})
	if addErr != nil {
		if cerr := b.Close(); cerr != nil && !errors.Is(addErr, cerr) {
			addErr = errors.Join(addErr, cerr)
		}
		return fmt.Errorf("engine: write table: %w", addErr)
	}

	if err := b.Finish(); err != nil {
		return fmt.Errorf("engine: write table: %w", err)
	}
	e.logger.Info("table written", "path", path, "entries", e.memtable.Len(), "blocks", b.NumBlocks(), "size", b.FileSize())
	return nil
}

// Len returns the number of live keys.
func (e *Engine[K]) Len() int {
	return e.memtable.Len()
}

// Recovery describes the replay performed when the store was opened.
func (e *Engine[K]) Recovery() wal.ReplayResult {
	return e.recovery
}

// DataDir returns the store directory.
func (e *Engine[K]) DataDir() string {
	return e.dataDir
}

// WALPath returns the path of the write-ahead log.
func (e *Engine[K]) WALPath() string {
	return filepath.Join(e.dataDir, e.cfg.WALFileName)
}

// Close closes the WAL. The engine cannot be used afterwards.
func (e *Engine[K]) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.wal.Close(); err != nil {
		return fmt.Errorf("engine: close: %w", err)
	}
	return nil
}
