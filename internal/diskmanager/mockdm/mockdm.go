// Package mockdm provides an in-memory implementation of the disk manager for testing
package mockdm

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/MikhailWahib/gravelkv/internal/diskmanager"
)

var errClosed = errors.New("mockdm: file already closed")

type mockData struct {
	data    []byte
	modTime time.Time
}

// MockFile implements diskmanager.FileHandle for testing purposes
type MockFile struct {
	dm       *MockDiskManager
	file     *mockData
	name     string
	pos      int
	readable bool
	writable bool
	append   bool
	closed   bool
}

// Read reads from the current position
func (m *MockFile) Read(b []byte) (int, error) {
	if m.closed {
		return 0, errClosed
	}
	if !m.readable {
		return 0, &os.PathError{Op: "read", Path: m.name, Err: fs.ErrPermission}
	}
	if m.pos >= len(m.file.data) {
		return 0, io.EOF
	}
	n := copy(b, m.file.data[m.pos:])
	m.pos += n
	return n, nil
}

// Write writes at the current position, or at the end for append handles.
// When the manager has FailWrite set, only the first half of b is stored
// and FailWrite is returned.
func (m *MockFile) Write(b []byte) (int, error) {
	if m.closed {
		return 0, errClosed
	}
	if !m.writable {
		return 0, &os.PathError{Op: "write", Path: m.name, Err: fs.ErrPermission}
	}
	if m.append {
		m.pos = len(m.file.data)
	}

	var failure error
	if m.dm.FailWrite != nil {
		b = b[:len(b)/2]
		failure = m.dm.FailWrite
	}

	if end := m.pos + len(b); end > len(m.file.data) {
		grown := make([]byte, end)
		copy(grown, m.file.data)
		m.file.data = grown
	}
	n := copy(m.file.data[m.pos:], b)
	m.pos += n
	m.file.modTime = time.Now()
	return n, failure
}

// Close closes the mock file
func (m *MockFile) Close() error {
	if m.closed {
		return errClosed
	}
	m.closed = true
	return nil
}

// Sync simulates syncing file contents to disk
func (m *MockFile) Sync() error {
	if m.closed {
		return errClosed
	}
	if m.dm.FailSync != nil {
		return m.dm.FailSync
	}
	m.dm.SyncCount++
	return nil
}

// Truncate resizes the file contents
func (m *MockFile) Truncate(size int64) error {
	if m.closed {
		return errClosed
	}
	if m.dm.FailTruncate != nil {
		return m.dm.FailTruncate
	}
	if int(size) <= len(m.file.data) {
		m.file.data = m.file.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, m.file.data)
	m.file.data = grown
	return nil
}

// Stat returns file information
func (m *MockFile) Stat() (os.FileInfo, error) {
	return &testFileInfo{size: int64(len(m.file.data)), name: m.name, modTime: m.file.modTime}, nil
}

// Name returns the path of the file
func (m *MockFile) Name() string { return m.name }

type testFileInfo struct {
	size    int64
	name    string
	modTime time.Time
	dir     bool
}

func (m *testFileInfo) Name() string       { return m.name }
func (m *testFileInfo) Size() int64        { return m.size }
func (m *testFileInfo) Mode() os.FileMode  { return 0644 }
func (m *testFileInfo) ModTime() time.Time { return m.modTime }
func (m *testFileInfo) IsDir() bool        { return m.dir }
func (m *testFileInfo) Sys() any           { return nil }

// MockDiskManager implements diskmanager.DiskManager interface for testing.
// The Fail* fields inject errors into every handle it has opened.
type MockDiskManager struct {
	files map[string]*mockData
	dirs  map[string]bool

	FailOpen     error
	FailWrite    error
	FailSync     error
	FailTruncate error

	// SyncCount counts successful Sync calls.
	SyncCount int
}

var _ diskmanager.DiskManager = (*MockDiskManager)(nil)

// NewMockDiskManager creates a new MockDiskManager instance
func NewMockDiskManager() *MockDiskManager {
	return &MockDiskManager{
		files: make(map[string]*mockData),
		dirs:  make(map[string]bool),
	}
}

// Open creates or opens a mock file honoring O_CREATE, O_EXCL, O_TRUNC, O_APPEND and the access mode
func (dm *MockDiskManager) Open(path string, flags int, _ os.FileMode) (diskmanager.FileHandle, error) {
	if dm.FailOpen != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: dm.FailOpen}
	}

	file, exists := dm.files[path]
	switch {
	case exists && flags&os.O_CREATE != 0 && flags&os.O_EXCL != 0:
		return nil, &os.PathError{Op: "open", Path: path, Err: fs.ErrExist}
	case !exists && flags&os.O_CREATE == 0:
		return nil, &os.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	case !exists:
		file = &mockData{modTime: time.Now()}
		dm.files[path] = file
	}

	access := flags & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR)
	h := &MockFile{
		dm:       dm,
		file:     file,
		name:     path,
		readable: access == os.O_RDONLY || access == os.O_RDWR,
		writable: access == os.O_WRONLY || access == os.O_RDWR,
		append:   flags&os.O_APPEND != 0,
	}
	if flags&os.O_TRUNC != 0 && h.writable {
		file.data = nil
	}
	return h, nil
}

// Stat reports the size of a mock file
func (dm *MockDiskManager) Stat(path string) (os.FileInfo, error) {
	if file, ok := dm.files[path]; ok {
		return &testFileInfo{size: int64(len(file.data)), name: path, modTime: file.modTime}, nil
	}
	if dm.dirs[path] {
		return &testFileInfo{name: path, dir: true}, nil
	}
	return nil, &os.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
}

// MkdirAll records the directory
func (dm *MockDiskManager) MkdirAll(path string, _ os.FileMode) error {
	dm.dirs[path] = true
	return nil
}

// Remove deletes a mock file
func (dm *MockDiskManager) Remove(path string) error {
	if _, ok := dm.files[path]; !ok {
		return &os.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
	}
	delete(dm.files, path)
	return nil
}

// Bytes returns a copy of the contents of path, or nil if it does not exist
func (dm *MockDiskManager) Bytes(path string) []byte {
	file, ok := dm.files[path]
	if !ok {
		return nil
	}
	return append([]byte(nil), file.data...)
}

// SetBytes replaces the contents of path, creating it if needed
func (dm *MockDiskManager) SetBytes(path string, data []byte) {
	file, ok := dm.files[path]
	if !ok {
		file = &mockData{}
		dm.files[path] = file
	}
	file.data = append([]byte(nil), data...)
	file.modTime = time.Now()
}
