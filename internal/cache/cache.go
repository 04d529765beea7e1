// Package cache provides a bounded, time-boxed result cache and a caching
// decorator for the report query layer.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value  V
	stored time.Time
}

type order struct {
	key    string
	stored time.Time
}

// Cache keeps at most capacity values, each valid for ttl after it was stored.
type Cache[V any] struct {
	mu       sync.Mutex
	items    map[string]entry[V]
	order    []order
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// New creates a cache. A nil now uses time.Now. A ttl <= 0 disables caching.
func New[V any](capacity int, ttl time.Duration, now func() time.Time) *Cache[V] {
	if capacity <= 0 {
		capacity = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{
		items:    make(map[string]entry[V], capacity),
		order:    make([]order, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      now,
	}
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c.ttl <= 0 {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.stored) > c.ttl {
		delete(c.items, key)
		return zero, false
	}
	return e.value, true
}

// Put stores value under key.
func (c *Cache[V]) Put(key string, value V) {
	if c.ttl <= 0 {
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[V]{value: value, stored: now}
	c.order = append(c.order, order{key: key, stored: now})
	c.compact(now)
}

// Len returns the number of stored values, expired ones included until they
// are compacted away.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge drops every value.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry[V], c.capacity)
	c.order = c.order[:0]
}

func (c *Cache[V]) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].stored.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if e, ok := c.items[oldest.key]; ok && e.stored.Equal(oldest.stored) {
			delete(c.items, oldest.key)
		}
	}
}
