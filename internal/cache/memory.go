package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache holds fetched source payload bodies in memory, keyed by
// PayloadKey. The TTL is a backstop; entries are normally evicted explicitly
// once their run reaches a terminal state.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a payload cache with the given default TTL and
// background cleanup interval
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		store: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get returns the cached payload body for a key
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if val, found := c.store.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores a payload body under the key with the given TTL
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	c.store.Set(key, value, ttl)
	return nil
}

// Delete evicts one key
func (c *MemoryCache) Delete(key string) error {
	c.store.Delete(key)
	return nil
}

// Clear drops every cached payload
func (c *MemoryCache) Clear() error {
	c.store.Flush()
	return nil
}
