package cache

import (
	"container/list"
	"sync"
)

// lruEntry is the value stored in the eviction list.
type lruEntry[V any] struct {
	key   string
	value V
}

// LRU is a fixed-capacity cache with least-recently-used eviction.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	stats    *Statistics
}

// NewLRU creates an LRU cache holding at most capacity entries.
// A capacity <= 0 defaults to 1024.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		stats:    &Statistics{},
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Miss()
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.stats.Hit()
	return elem.Value.(*lruEntry[V]).value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRU[V]) Set(key string, value V) bool {
	if key == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Set()
	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(elem)
		return false
	}

	if len(c.items) >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry[V]).key)
			c.stats.Evict()
		}
	}

	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})
	return true
}

// Delete removes an entry by key.
func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(elem)
	delete(c.items, key)
	c.stats.Delete()
	return true
}

// Clear removes all entries.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the current number of entries.
func (c *LRU[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cache statistics.
func (c *LRU[V]) Stats() *Statistics { return c.stats }
