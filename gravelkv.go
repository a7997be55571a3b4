// Package gravelkv is a small durable key-value store.
//
// Every write is appended to a checksummed write-ahead log and synced to
// stable storage before it is applied to an in-memory skip list. Reopening
// a directory replays the log, stopping at the first torn or corrupt record.
// The current contents can be exported to an immutable sorted table file.
//
// Example usage:
//
//	db, err := gravelkv.Open("/path/to/database", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Put(1, "value"); err != nil {
//		log.Printf("Put failed: %v", err)
//	}
//
//	value, exists := db.Get(1)
//	if exists {
//		fmt.Printf("Value: %s\n", value)
//	}
//
//	if _, err := db.Delete(1); err != nil {
//		log.Printf("Delete failed: %v", err)
//	}
package gravelkv

import (
	"github.com/MikhailWahib/gravelkv/internal/config"
	"github.com/MikhailWahib/gravelkv/internal/engine"
	"github.com/MikhailWahib/gravelkv/internal/sstable"
)

// Config is an alias for config.Config, re-exported for user convenience.
type Config = config.Config

// DefaultConfig returns a Config struct populated with default values. Re-exported for user convenience.
var DefaultConfig = config.DefaultConfig

// LoadConfig reads a YAML config file; a missing file yields the defaults.
var LoadConfig = config.LoadFile

// Option customizes a DB.
type Option = engine.Option

// Options re-exported from the engine.
var (
	WithLogger      = engine.WithLogger
	WithMetrics     = engine.WithMetrics
	WithDiskManager = engine.WithDiskManager
	WithRand        = engine.WithRand
	WithTracer      = engine.WithTracer
	WithLogOutput   = engine.WithLogOutput
)

// ErrClosed is returned by mutations on a closed DB.
var ErrClosed = engine.ErrClosed

// DB is a store with integer keys and string values.
// It is not safe for concurrent use; callers must serialize access.
type DB struct {
	engine *engine.Engine[int]
}

// Open opens or creates a database in the directory at path.
//
// The directory will be created if it doesn't exist. If it holds a log,
// the log is replayed before Open returns. A nil cfg uses DefaultConfig().
func Open(path string, cfg *Config, opts ...Option) (*DB, error) {
	e, err := engine.New[int](path, engine.IntCodec{}, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &DB{engine: e}, nil
}

// Put writes a key-value pair, overwriting any previous value.
// The write is durable when Put returns nil.
func (db *DB) Put(key int, value string) error {
	return db.engine.Put(key, value)
}

// Get retrieves the value for a given key.
func (db *DB) Get(key int) (string, bool) {
	return db.engine.Get(key)
}

// Delete removes key and reports whether it existed.
func (db *DB) Delete(key int) (bool, error) {
	return db.engine.Delete(key)
}

// Len returns the number of live keys.
func (db *DB) Len() int {
	return db.engine.Len()
}

// WriteTable exports the current contents, in key order, to a table file at path.
func (db *DB) WriteTable(path string) error {
	return db.engine.WriteTable(path)
}

// Close closes the log. After calling Close, the database should not be used.
func (db *DB) Close() error {
	return db.engine.Close()
}

// TableBuilder writes a sorted table file. Re-exported for user convenience.
type TableBuilder = sstable.Builder

// TableBuilderOptions configures a TableBuilder.
type TableBuilderOptions = sstable.BuilderOptions

// ErrAlreadyFinished is returned by a second TableBuilder.Finish.
var ErrAlreadyFinished = sstable.ErrAlreadyFinished

// NewTableBuilder creates the table file at path.
func NewTableBuilder(path string, opts TableBuilderOptions) (*TableBuilder, error) {
	return sstable.NewBuilder(path, opts)
}
