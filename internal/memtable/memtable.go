// Package memtable implements the in-memory ordered index that holds the
// store's live data between restarts.
package memtable

import "cmp"

// Memtable defines the interface for an in-memory table that supports basic operations
type Memtable[K cmp.Ordered, V any] interface {
	Put(key K, value V)
	Get(key K) (V, bool)
	Delete(key K) bool
	Ascend(fn func(key K, value V) bool)
	Len() int
	Clear()
}

// SkiplistMemtable implements the Memtable interface using a skiplist
// data structure for efficient operations
type SkiplistMemtable[K cmp.Ordered, V any] struct {
	sl *SkipList[K, V]
}

// NewMemtable creates a new Memtable instance.
func NewMemtable[K cmp.Ordered, V any](opts SkipListOptions) *SkiplistMemtable[K, V] {
	return &SkiplistMemtable[K, V]{
		sl: NewSkipList[K, V](opts),
	}
}

// Put inserts or updates an entry in the memtable
func (m *SkiplistMemtable[K, V]) Put(key K, value V) {
	m.sl.Insert(key, value)
}

// Get retrieves an entry from the memtable by key
func (m *SkiplistMemtable[K, V]) Get(key K) (V, bool) {
	return m.sl.Search(key)
}

// Delete removes key and reports whether it was present
func (m *SkiplistMemtable[K, V]) Delete(key K) bool {
	return m.sl.Remove(key)
}

// Ascend visits entries in key order
func (m *SkiplistMemtable[K, V]) Ascend(fn func(key K, value V) bool) {
	m.sl.Ascend(fn)
}

// Len returns the number of entries in the memtable
func (m *SkiplistMemtable[K, V]) Len() int {
	return m.sl.Len()
}

// Clear clears the memtable
func (m *SkiplistMemtable[K, V]) Clear() {
	m.sl.Clear()
}

// SkipList exposes the underlying index.
func (m *SkiplistMemtable[K, V]) SkipList() *SkipList[K, V] {
	return m.sl
}
