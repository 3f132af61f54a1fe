package pricing

import (
	"sync"
	"time"
)

// DefaultCacheTTL is the validity window for a cached price.
const DefaultCacheTTL = 30 * time.Second

type cacheEntry struct {
	price     float64
	timestamp time.Time
}

// Cache is a time-boxed memo of the last known price per symbol. Entries
// older than the TTL are no longer served as fresh but are retained so the
// resolver can fall back to a stale quote when the upstream is down.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration

	now func() time.Time
}

// NewCache creates a price cache with the given TTL. A non-positive TTL
// falls back to DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetPrice returns the cached price for symbol if its age is strictly
// within the TTL.
func (c *Cache) GetPrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok {
		return 0, false
	}
	if c.now().Sub(e.timestamp) >= c.ttl {
		return 0, false
	}
	return e.price, true
}

// StalePrice returns the last known price for symbol regardless of age.
func (c *Cache) StalePrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok {
		return 0, false
	}
	return e.price, true
}

// SetPrice overwrites the entry for symbol unconditionally with the
// current timestamp.
func (c *Cache) SetPrice(symbol string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = cacheEntry{price: price, timestamp: c.now()}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
