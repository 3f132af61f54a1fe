package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_GetPrice_FreshEntry(t *testing.T) {
	cache := NewCache(30 * time.Second)

	cache.SetPrice("BTCUSDT", 43250)

	price, ok := cache.GetPrice("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, 43250.0, price)
}

func TestCache_GetPrice_Miss(t *testing.T) {
	cache := NewCache(30 * time.Second)

	_, ok := cache.GetPrice("ETHUSDT")
	assert.False(t, ok)
}

func TestCache_GetPrice_ExpiresAtTTL(t *testing.T) {
	cache := NewCache(30 * time.Second)

	base := time.Now()
	cache.now = func() time.Time { return base }
	cache.SetPrice("BTCUSDT", 43250)

	// Strictly within the window
	cache.now = func() time.Time { return base.Add(30*time.Second - time.Millisecond) }
	price, ok := cache.GetPrice("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, 43250.0, price)

	// Exactly at the TTL boundary the entry is no longer fresh
	cache.now = func() time.Time { return base.Add(30 * time.Second) }
	_, ok = cache.GetPrice("BTCUSDT")
	assert.False(t, ok)

	// But it is still available as a stale fallback
	price, ok = cache.StalePrice("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, 43250.0, price)
}

func TestCache_SetPrice_Overwrites(t *testing.T) {
	cache := NewCache(30 * time.Second)

	cache.SetPrice("BTCUSDT", 43250)
	cache.SetPrice("BTCUSDT", 44000)

	price, ok := cache.GetPrice("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, 44000.0, price)
}

func TestCache_Clear(t *testing.T) {
	cache := NewCache(30 * time.Second)

	cache.SetPrice("BTCUSDT", 43250)
	cache.SetPrice("ETHUSDT", 2650)
	cache.Clear()

	_, ok := cache.GetPrice("BTCUSDT")
	assert.False(t, ok)
	_, ok = cache.StalePrice("ETHUSDT")
	assert.False(t, ok)
}
