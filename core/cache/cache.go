package cache

import (
	"sync"
	"time"
)

// Cache is a small thread-safe TTL cache. Used for short-lived lookups
// that repeat in bursts (customer typeahead); entries are evicted lazily
// on read.
type Cache struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

type item struct {
	value     interface{}
	expiresAt time.Time // zero means no expiration
}

func NewCache() *Cache {
	return &Cache{items: make(map[string]item), now: time.Now}
}

// SetClock overrides the time source (tests).
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

// Set stores a value. ttl <= 0 means no expiration.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	it := item{value: value}
	if ttl > 0 {
		it.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
}

// Get returns the value if present and not expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !it.expiresAt.IsZero() && c.now().After(it.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return it.value, true
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Flush drops everything.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.items = make(map[string]item)
	c.mu.Unlock()
}

// Len reports live entries, sweeping expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, it := range c.items {
		if !it.expiresAt.IsZero() && now.After(it.expiresAt) {
			delete(c.items, k)
		}
	}
	return len(c.items)
}
