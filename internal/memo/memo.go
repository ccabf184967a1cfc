// Package memo provides the bounded last-N memoizer used by the engine caches.
package memo

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the number of argument tuples remembered when no size is given.
const DefaultSize = 3

// Cache remembers the results of the last N distinct keys. Keys are compared
// with ==, so callers must pass the same values (ids, generations, pointers)
// to get hits.
type Cache[K comparable, V any] struct {
	lru    *lru.Cache[K, V]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache holding at most size entries. size <= 0 selects DefaultSize.
func New[K comparable, V any](size int) *Cache[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[K, V](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &Cache[K, V]{lru: c}
}

// Do returns the cached value for key, computing and storing it with fn on a miss.
func (c *Cache[K, V]) Do(key K, fn func() V) V {
	if v, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return v
	}
	c.misses.Add(1)
	v := fn()
	c.lru.Add(key, v)
	return v
}

// Get returns a cached value without computing.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

// Purge drops every entry.
func (c *Cache[K, V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Stats returns the hit and miss counters.
func (c *Cache[K, V]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
