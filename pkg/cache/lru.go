package cache

// The in-process tier is a bounded least-recently-used map from cache key to
// *Value. It is maintained as a doubly linked list with the most recently
// used entry at the head and the least recently used at the tail, plus a map
// for O(1) key lookup. Access refreshes recency; capacity pressure evicts
// from the tail. Entries carry no TTL: the only eviction trigger is capacity.

import (
	"sync"

	"github.com/hyp3rd/hyperfetch/internal/sentinel"
)

// lruEntry is a node of the recency list.
type lruEntry struct {
	key   string
	value *Value
	prev  *lruEntry
	next  *lruEntry
}

// LRU is the bounded in-process cache tier.
type LRU struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*lruEntry
	head     *lruEntry
	tail     *lruEntry
	onEvict  func(key string) // invoked after a capacity eviction, without the lock held
}

// NewLRU creates a new LRU with the given entry capacity. A capacity of zero
// disables storage entirely: Set becomes a no-op and Get always misses.
func NewLRU(capacity int) (*LRU, error) {
	if capacity < 0 {
		return nil, sentinel.ErrInvalidCapacity
	}

	return &LRU{
		capacity: capacity,
		entries:  make(map[string]*lruEntry, capacity),
	}, nil
}

// OnEvict registers a callback invoked with the key of every entry removed by
// capacity pressure. Pass nil to clear.
func (lru *LRU) OnEvict(callback func(key string)) {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	lru.onEvict = callback
}

// Get retrieves the value for the given key and refreshes its recency.
func (lru *LRU) Get(key string) (*Value, bool) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	entry, ok := lru.entries[key]
	if !ok {
		return nil, false
	}

	lru.moveToFront(entry)

	return entry.value, true
}

// Set stores the value for the given key. An existing entry is updated in
// place and refreshed. When the cache is at capacity, the least recently
// used entry is evicted first.
func (lru *LRU) Set(key string, value *Value) {
	if lru.capacity == 0 {
		return
	}

	var (
		evicted      string
		evictionMade bool
	)

	lru.mu.Lock()

	entry, ok := lru.entries[key]
	if ok {
		entry.value = value
		lru.moveToFront(entry)
		lru.mu.Unlock()

		return
	}

	if len(lru.entries) == lru.capacity {
		evicted = lru.tail.key
		evictionMade = true

		lru.removeFromList(lru.tail)
		delete(lru.entries, evicted)
	}

	entry = &lruEntry{key: key, value: value}
	lru.entries[key] = entry
	lru.addToFront(entry)

	callback := lru.onEvict
	lru.mu.Unlock()

	if evictionMade && callback != nil {
		callback(evicted)
	}
}

// Delete removes the given key from the cache.
func (lru *LRU) Delete(key string) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	entry, ok := lru.entries[key]
	if !ok {
		return
	}

	lru.removeFromList(entry)
	delete(lru.entries, key)
}

// Purge removes every entry.
func (lru *LRU) Purge() {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	lru.entries = make(map[string]*lruEntry, lru.capacity)
	lru.head = nil
	lru.tail = nil
}

// Len returns the number of stored entries.
func (lru *LRU) Len() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	return len(lru.entries)
}

// Capacity returns the entry bound.
func (lru *LRU) Capacity() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	return lru.capacity
}

// moveToFront moves the given entry to the front of the list.
func (lru *LRU) moveToFront(entry *lruEntry) {
	if entry == lru.head {
		return
	}

	lru.removeFromList(entry)
	lru.addToFront(entry)
}

// removeFromList unlinks the given entry.
func (lru *LRU) removeFromList(entry *lruEntry) {
	if entry == lru.head {
		lru.head = entry.next
	} else {
		entry.prev.next = entry.next
	}

	if entry == lru.tail {
		lru.tail = entry.prev
	} else {
		entry.next.prev = entry.prev
	}

	entry.prev = nil
	entry.next = nil
}

// addToFront links the given entry at the head of the list.
func (lru *LRU) addToFront(entry *lruEntry) {
	if lru.head == nil {
		lru.head = entry
		lru.tail = entry

		return
	}

	entry.next = lru.head
	lru.head.prev = entry
	lru.head = entry
}
