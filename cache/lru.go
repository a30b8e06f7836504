// Package cache implements the generic, concurrency-safe caching
// primitives used by the Name Node: a least-recently-used cache for
// filename -> FileRecord lookups (spec.md §4.10) and a plain hash
// index for structures (the user registry) that only need O(1)
// lookup under a shared mutex, not eviction.
package cache

import (
	"container/list"
	"sync"
)

// LRU is a generic least-recently-used cache, safe for concurrent
// access. It is a read-through courtesy cache: correctness of callers
// must never depend on an entry surviving in the LRU, only on the
// authoritative store it accelerates (spec.md §4.10).
type LRU[K comparable, V any] struct {
	maxEntries int

	mu    sync.Mutex
	ll    *list.List
	index map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// NewLRU returns a new cache with the given capacity. A non-positive
// capacity is treated as 1.
func NewLRU[K comparable, V any](maxEntries int) *LRU[K, V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &LRU[K, V]{
		maxEntries: maxEntries,
		ll:         list.New(),
		index:      make(map[K]*list.Element),
	}
}

// Put inserts or updates key's value, evicting the least-recently
// used entry if the cache is over capacity. Put counts as a use: key
// becomes the most-recently-used entry.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.index[key]; ok {
		c.ll.MoveToFront(ele)
		ele.Value.(*entry[K, V]).value = value
		return
	}
	ele := c.ll.PushFront(&entry[K, V]{key, value})
	c.index[key] = ele
	if c.ll.Len() > c.maxEntries {
		c.removeOldest()
	}
}

// Get fetches key's value. Every hit promotes the entry to
// most-recently-used, per spec.md §4.10.
func (c *LRU[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.index[key]; ok {
		c.ll.MoveToFront(ele)
		return ele.Value.(*entry[K, V]).value, true
	}
	return value, false
}

// Remove evicts key, if present. The Name Node's Delete calls this to
// keep the cache from serving a name that no longer exists in the
// authoritative registry.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.index[key]; ok {
		c.ll.Remove(ele)
		delete(c.index, key)
	}
}

// Len returns the number of entries currently cached.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRU[K, V]) removeOldest() {
	ele := c.ll.Back()
	if ele == nil {
		return
	}
	c.ll.Remove(ele)
	delete(c.index, ele.Value.(*entry[K, V]).key)
}
