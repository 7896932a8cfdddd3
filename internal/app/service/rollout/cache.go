package rollout

import (
	"sync"
	"time"
)

// Cache is a small TTL cache for per-user rollout decisions. It is injected
// into the service rather than held as a package-level singleton so tests can
// substitute a fresh instance per run.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	value      bool
	expiration time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl}
}

func (c *Cache) Get(key string) (bool, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiration) {
		return false, false
	}
	return e.value, true
}

func (c *Cache) Set(key string, value bool) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expiration: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
