package memtable

import (
	"cmp"
	"fmt"
	"math/rand"
	"time"
)

const (
	// DefaultMaxLevel is the maximum node height used when none is configured.
	DefaultMaxLevel = 16
	// DefaultProbability is the chance a node is promoted to the next level.
	DefaultProbability = 0.5

	headIndex int32 = 0
	nilIndex  int32 = -1
)

// SkipListOptions configures a SkipList.
//
// Probability is used as given: 0 keeps every node at height 1 and 1 sends
// every node to MaxLevel. A MaxLevel below 1 falls back to DefaultMaxLevel.
type SkipListOptions struct {
	MaxLevel    int
	Probability float64
	// Rand is the source for height draws. Nil seeds one from the clock.
	Rand *rand.Rand
}

// DefaultSkipListOptions returns options with the default height and promotion probability.
func DefaultSkipListOptions() SkipListOptions {
	return SkipListOptions{
		MaxLevel:    DefaultMaxLevel,
		Probability: DefaultProbability,
	}
}

// skipListNode is a slot in the node arena. Links are arena indices,
// nilIndex marks the end of a level.
type skipListNode[K cmp.Ordered, V any] struct {
	key   K
	value V
	next  []int32
}

// SkipList is a probabilistic ordered map with expected O(log n)
// search, insertion and removal.
//
// Nodes are kept in an arena addressed by index. Slot 0 is the sentinel
// head sized to MaxLevel; removed slots are recycled through a free list.
type SkipList[K cmp.Ordered, V any] struct {
	nodes       []skipListNode[K, V]
	free        []int32
	level       int
	maxLevel    int
	probability float64
	size        int
	rng         *rand.Rand
}

// NewSkipList initializes and returns a new empty SkipList.
func NewSkipList[K cmp.Ordered, V any](opts SkipListOptions) *SkipList[K, V] {
	if opts.MaxLevel < 1 {
		opts.MaxLevel = DefaultMaxLevel
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	sl := &SkipList[K, V]{
		maxLevel:    opts.MaxLevel,
		probability: opts.Probability,
		rng:         opts.Rand,
	}
	sl.reset()
	return sl
}

func (sl *SkipList[K, V]) reset() {
	head := skipListNode[K, V]{next: make([]int32, sl.maxLevel)}
	for i := range head.next {
		head.next[i] = nilIndex
	}
	sl.nodes = []skipListNode[K, V]{head}
	sl.free = nil
	sl.level = 1
	sl.size = 0
}

// randomLevel draws a node height from a geometric distribution capped at maxLevel.
func (sl *SkipList[K, V]) randomLevel() int {
	level := 1
	for level < sl.maxLevel && sl.rng.Float64() < sl.probability {
		level++
	}
	return level
}

// findPredecessors walks down from the top level and records, per level,
// the last node whose key is strictly less than key. It returns the
// level-0 successor of that path, which is the only possible match.
func (sl *SkipList[K, V]) findPredecessors(key K, update []int32) int32 {
	x := headIndex
	for i := sl.level - 1; i >= 0; i-- {
		for {
			next := sl.nodes[x].next[i]
			if next == nilIndex || sl.nodes[next].key >= key {
				break
			}
			x = next
		}
		if update != nil {
			update[i] = x
		}
	}
	return sl.nodes[x].next[0]
}

func (sl *SkipList[K, V]) allocNode(key K, value V, height int) int32 {
	next := make([]int32, height)
	for i := range next {
		next[i] = nilIndex
	}
	n := skipListNode[K, V]{key: key, value: value, next: next}

	if last := len(sl.free) - 1; last >= 0 {
		idx := sl.free[last]
		sl.free = sl.free[:last]
		sl.nodes[idx] = n
		return idx
	}
	sl.nodes = append(sl.nodes, n)
	return int32(len(sl.nodes) - 1)
}

func (sl *SkipList[K, V]) releaseNode(idx int32) {
	sl.nodes[idx] = skipListNode[K, V]{}
	sl.free = append(sl.free, idx)
}

// Insert adds key with value, or overwrites the value if key is already present.
func (sl *SkipList[K, V]) Insert(key K, value V) {
	update := make([]int32, sl.maxLevel)
	candidate := sl.findPredecessors(key, update)

	if candidate != nilIndex && sl.nodes[candidate].key == key {
		sl.nodes[candidate].value = value
		return
	}

	height := sl.randomLevel()
	if height > sl.level {
		for i := sl.level; i < height; i++ {
			update[i] = headIndex
		}
		sl.level = height
	}

	idx := sl.allocNode(key, value, height)
	for i := range height {
		pred := update[i]
		sl.nodes[idx].next[i] = sl.nodes[pred].next[i]
		sl.nodes[pred].next[i] = idx
	}
	sl.size++
}

// Search returns the value stored for key and whether it was found.
func (sl *SkipList[K, V]) Search(key K) (V, bool) {
	candidate := sl.findPredecessors(key, nil)
	if candidate != nilIndex && sl.nodes[candidate].key == key {
		return sl.nodes[candidate].value, true
	}
	var zero V
	return zero, false
}

// Remove unlinks key from every level it occupies.
// Returns false, leaving the list untouched, if key is absent.
func (sl *SkipList[K, V]) Remove(key K) bool {
	update := make([]int32, sl.maxLevel)
	target := sl.findPredecessors(key, update)
	if target == nilIndex || sl.nodes[target].key != key {
		return false
	}

	for i, next := range sl.nodes[target].next {
		pred := update[i]
		if sl.nodes[pred].next[i] != target {
			break
		}
		sl.nodes[pred].next[i] = next
	}
	sl.releaseNode(target)

	for sl.level > 1 && sl.nodes[headIndex].next[sl.level-1] == nilIndex {
		sl.level--
	}

	sl.size--
	return true
}

// Contains reports whether key is present.
func (sl *SkipList[K, V]) Contains(key K) bool {
	_, found := sl.Search(key)
	return found
}

// Ascend calls fn for every entry in ascending key order until fn returns false.
func (sl *SkipList[K, V]) Ascend(fn func(key K, value V) bool) {
	for x := sl.nodes[headIndex].next[0]; x != nilIndex; x = sl.nodes[x].next[0] {
		if !fn(sl.nodes[x].key, sl.nodes[x].value) {
			return
		}
	}
}

// NodeHeight returns the number of levels key is linked into, or 0 if absent.
func (sl *SkipList[K, V]) NodeHeight(key K) int {
	candidate := sl.findPredecessors(key, nil)
	if candidate != nilIndex && sl.nodes[candidate].key == key {
		return len(sl.nodes[candidate].next)
	}
	return 0
}

// Len returns the number of entries in the list.
func (sl *SkipList[K, V]) Len() int {
	return sl.size
}

// Level returns the current top level, the height of the tallest live node (minimum 1).
func (sl *SkipList[K, V]) Level() int {
	return sl.level
}

// MaxLevel returns the configured maximum node height.
func (sl *SkipList[K, V]) MaxLevel() int {
	return sl.maxLevel
}

// IsEmpty returns true if the SkipList contains no elements.
func (sl *SkipList[K, V]) IsEmpty() bool {
	return sl.size == 0
}

// Clear drops every entry, keeping only the sentinel head.
func (sl *SkipList[K, V]) Clear() {
	sl.reset()
}

// CheckInvariants walks every level and verifies ordering, the subsequence
// relation between levels, node heights and the current level.
func (sl *SkipList[K, V]) CheckInvariants() error {
	onLevel0 := make(map[int32]bool, sl.size)
	count := 0
	tallest := 1
	var prev *K
	for x := sl.nodes[headIndex].next[0]; x != nilIndex; x = sl.nodes[x].next[0] {
		n := &sl.nodes[x]
		if prev != nil && *prev >= n.key {
			return fmt.Errorf("level 0 out of order at %v", n.key)
		}
		if len(n.next) < 1 || len(n.next) > sl.maxLevel {
			return fmt.Errorf("node %v has height %d, max %d", n.key, len(n.next), sl.maxLevel)
		}
		tallest = max(tallest, len(n.next))
		onLevel0[x] = true
		prev = &n.key
		count++
	}
	if count != sl.size {
		return fmt.Errorf("level 0 holds %d nodes, size is %d", count, sl.size)
	}
	if tallest != sl.level {
		return fmt.Errorf("current level %d, tallest node %d", sl.level, tallest)
	}

	for i := 1; i < sl.maxLevel; i++ {
		var prevKey *K
		for x := sl.nodes[headIndex].next[i]; x != nilIndex; x = sl.nodes[x].next[i] {
			n := &sl.nodes[x]
			if !onLevel0[x] {
				return fmt.Errorf("level %d links node %v missing from level 0", i, n.key)
			}
			if len(n.next) <= i {
				return fmt.Errorf("level %d links node %v of height %d", i, n.key, len(n.next))
			}
			if prevKey != nil && *prevKey >= n.key {
				return fmt.Errorf("level %d out of order at %v", i, n.key)
			}
			prevKey = &n.key
		}
	}
	return nil
}
