package cache

import (
	"sync"
	"time"
)

// Cache is a small in-memory cache with a fixed expiry per entry
type Cache[V any] struct {
	data  map[string]V
	times map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
}

// NewCache creates a new cache with the specified TTL
func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		data:  make(map[string]V),
		times: make(map[string]time.Time),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a value that has not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	val, exists := c.data[key]
	if !exists {
		return zero, false
	}

	if c.now().Sub(c.times[key]) > c.ttl {
		return zero, false
	}

	return val, true
}

// Set stores a value in the cache
func (c *Cache[V]) Set(key string, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = val
	c.times[key] = c.now()
}

// Delete removes a value
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	delete(c.times, key)
}
