package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InMemoryCache is a TTL cache for hot read paths, mainly library lookups
// on the request path. Eviction is crude: when full, expired entries go
// first, then an arbitrary one.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	maxSize int
	logger  *zap.Logger
}

type cacheEntry struct {
	value    any
	deadline time.Time
}

// NewInMemoryCache creates a cache holding at most maxSize entries. A
// background sweep drops expired entries once a minute.
func NewInMemoryCache(maxSize int, logger *zap.Logger) Cache {
	c := &InMemoryCache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		logger:  logger,
	}

	go c.sweep()

	return c
}

// Get returns the cached value or ErrNotFound when absent or expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.deadline) {
		return nil, ErrNotFound
	}

	return entry.value, nil
}

// Set stores a value with a TTL, evicting if the cache is full.
func (c *InMemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = cacheEntry{
		value:    value,
		deadline: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a key.
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// evictLocked frees one slot, preferring an expired entry.
func (c *InMemoryCache) evictLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.deadline) {
			delete(c.entries, k)
			return
		}
	}
	for k := range c.entries {
		delete(c.entries, k)
		return
	}
}

func (c *InMemoryCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for k, e := range c.entries {
			if now.After(e.deadline) {
				delete(c.entries, k)
			}
		}
		c.mu.Unlock()
	}
}
