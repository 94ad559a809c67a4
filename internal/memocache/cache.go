// Package memocache provides a process-lifetime key/value cache with
// per-entry expiry, shielding the upstream market-data provider from
// redundant reads within a short window. Entries are evicted lazily on the
// next lookup; there is no background sweep and no capacity bound —
// unbounded growth is an accepted tradeoff for the low-cardinality key
// space of market and price queries.
package memocache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   any
	expires time.Time
}

// Cache is a mutex-guarded in-memory TTL cache. The clock is injected so
// expiry is testable without sleeping.
type Cache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]entry
}

// New creates a Cache using the wall clock.
func New() *Cache {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Cache that reads time from now.
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{
		now:     now,
		entries: make(map[string]entry),
	}
}

// Get returns the cached value for key, or false when the key is absent or
// expired. Expired entries are deleted on the way out.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with an absolute expiry of now + ttl.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		value:   value,
		expires: c.now().Add(ttl),
	}
}

// Len reports the number of stored entries, including any not yet lazily
// evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// WithCache returns the memoized value for key when present and fresh;
// otherwise it invokes producer, stores the result, and returns it.
//
// The cache lock is not held across the producer call, so two concurrent
// misses for the same key may both invoke the producer. That is duplicate
// work, not a correctness violation, and the last writer wins.
func WithCache[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, producer func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	value, err := producer(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.Set(key, value, ttl)
	return value, nil
}
