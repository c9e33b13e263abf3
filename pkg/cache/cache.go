// Package cache provides small thread-safe in-process caches used to reduce
// KV substrate round-trips on read-heavy paths.
package cache

import (
	"errors"
	"sync/atomic"
)

// ErrInvalidKey is returned when an empty key is used.
var ErrInvalidKey = errors.New("cache: key cannot be empty")

// Cache is the common interface implemented by all cache variants.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V) bool // true if a new entry was created
	Delete(key string) bool
	Clear()
	Size() int
	Stats() *Statistics
}

// Statistics tracks cache effectiveness. All counters are safe for
// concurrent use.
type Statistics struct {
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
	evicted atomic.Int64
}

// Hit records a cache hit.
func (s *Statistics) Hit() { s.hits.Add(1) }

// Miss records a cache miss.
func (s *Statistics) Miss() { s.misses.Add(1) }

// Set records a write.
func (s *Statistics) Set() { s.sets.Add(1) }

// Delete records a removal.
func (s *Statistics) Delete() { s.deletes.Add(1) }

// Evict records an eviction.
func (s *Statistics) Evict() { s.evicted.Add(1) }

// Hits returns the hit count.
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the miss count.
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Evictions returns the eviction count.
func (s *Statistics) Evictions() int64 { return s.evicted.Load() }

// HitRate returns hits/(hits+misses), or 0 when no lookups happened.
func (s *Statistics) HitRate() float64 {
	hits := s.hits.Load()
	total := hits + s.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
