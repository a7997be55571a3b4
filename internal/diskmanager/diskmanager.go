// Package diskmanager provides interfaces and implementations for managing disk-based file operations.
// It handles file reading, writing, and the durability barrier required by the WAL and table writers.
package diskmanager

import (
	"io"
	"os"
)

// FileHandle abstracts sequential file I/O with a durable sync.
type FileHandle interface {
	io.Reader
	io.Writer
	io.Closer
	// Sync forces written data to stable storage, not just the OS page cache.
	Sync() error
	// Truncate changes the size of the file.
	Truncate(size int64) error
	// Stat returns the file stat
	Stat() (os.FileInfo, error)
	// Name returns the path the handle was opened with.
	Name() string
}

type fileHandle struct {
	file *os.File
}

// NewFileHandle wraps an *os.File into a FileHandle implementation.
func NewFileHandle(file *os.File) FileHandle { return &fileHandle{file: file} }

func (fh *fileHandle) Read(b []byte) (int, error) { return fh.file.Read(b) }

func (fh *fileHandle) Write(b []byte) (int, error) { return fh.file.Write(b) }

func (fh *fileHandle) Close() error { return fh.file.Close() }

func (fh *fileHandle) Sync() error { return durableSync(fh.file) }

func (fh *fileHandle) Truncate(size int64) error { return fh.file.Truncate(size) }

func (fh *fileHandle) Stat() (os.FileInfo, error) { return fh.file.Stat() }

func (fh *fileHandle) Name() string { return fh.file.Name() }

// DiskManager defines methods for file operations.
type DiskManager interface {
	// Open opens a file with specified path, flags and permissions.
	// Every call returns a fresh handle owned by the caller.
	Open(path string, flags int, perm os.FileMode) (FileHandle, error)
	// Stat returns file info for path.
	Stat(path string) (os.FileInfo, error)
	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string, perm os.FileMode) error
	// Remove deletes the named file.
	Remove(path string) error
}

type diskManager struct{}

// NewDiskManager creates a new DiskManager instance backed by the local filesystem.
func NewDiskManager() DiskManager {
	return diskManager{}
}

func (diskManager) Open(path string, flags int, perm os.FileMode) (FileHandle, error) {
	file, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return nil, err
	}
	return NewFileHandle(file), nil
}

func (diskManager) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }

func (diskManager) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (diskManager) Remove(path string) error { return os.Remove(path) }
