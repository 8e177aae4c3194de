package credentials

import (
	"context"
	"sync"
	"time"
)

// CachedStore wraps a Store with a TTL cache so that jobs sharing a
// credential reference hit the backing store once per TTL. Resolution
// failures are not cached — the next caller retries.
type CachedStore struct {
	inner Store
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Cached wraps store with a TTL cache.
func Cached(store Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		inner:   store,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachedStore) Resolve(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	if e, ok := c.entries[name]; ok && time.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	value, err := c.inner.Resolve(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[name] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return value, nil
}
