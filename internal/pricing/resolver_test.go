package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ksred/paper-exchange/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource serves a fixed price per symbol and counts upstream calls.
type stubSource struct {
	prices map[string]float64
	err    error
	calls  int
}

func (s *stubSource) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	s.calls++
	if s.err != nil {
		return Ticker{}, s.err
	}
	price, ok := s.prices[symbol]
	if !ok {
		return Ticker{}, errors.New("unknown symbol")
	}
	return Ticker{Symbol: symbol, LastPrice: price}, nil
}

func newTestResolver(cache *Cache, source Source) *Resolver {
	return NewResolver(cache, source, ResolverOptions{
		MinRequestInterval: time.Millisecond,
		RequestTimeout:     time.Second,
	})
}

func TestResolver_FetchesAndCaches(t *testing.T) {
	source := &stubSource{prices: map[string]float64{"BTCUSDT": 43250}}
	cache := NewCache(30 * time.Second)
	resolver := newTestResolver(cache, source)

	price, err := resolver.CurrentPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 43250.0, price)
	assert.Equal(t, 1, source.calls)

	// Second lookup is served from cache, no upstream call
	price, err = resolver.CurrentPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 43250.0, price)
	assert.Equal(t, 1, source.calls)
}

func TestResolver_FallsBackToStaleEntry(t *testing.T) {
	source := &stubSource{err: errors.New("upstream timeout")}
	cache := NewCache(30 * time.Second)
	resolver := newTestResolver(cache, source)

	// Simulate a previously cached quote that has since expired
	base := time.Now()
	cache.now = func() time.Time { return base.Add(-time.Minute) }
	cache.SetPrice("BTCUSDT", 42000)
	cache.now = time.Now

	price, err := resolver.CurrentPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 42000.0, price)
	assert.Equal(t, 1, source.calls)
}

func TestResolver_FallsBackToDefaultTable(t *testing.T) {
	source := &stubSource{err: errors.New("upstream down")}
	cache := NewCache(30 * time.Second)
	resolver := newTestResolver(cache, source)

	price, err := resolver.CurrentPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrices["BTCUSDT"], price)

	// The default was written through to the cache
	cached, ok := cache.GetPrice("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, DefaultPrices["BTCUSDT"], cached)
}

func TestResolver_ExhaustedChain(t *testing.T) {
	source := &stubSource{err: errors.New("upstream down")}
	cache := NewCache(30 * time.Second)
	resolver := newTestResolver(cache, source)

	_, err := resolver.CurrentPrice(context.Background(), "DOGE/USDT")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPriceUnavailable)
}

func TestResolver_RateLimiterSuppressesUpstream(t *testing.T) {
	source := &stubSource{prices: map[string]float64{"BTCUSDT": 43250}}
	cache := NewCache(time.Nanosecond) // every entry is immediately stale
	resolver := NewResolver(cache, source, ResolverOptions{
		MinRequestInterval: time.Hour,
		RequestTimeout:     time.Second,
	})

	// First call consumes the limiter burst and hits upstream
	price, err := resolver.CurrentPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 43250.0, price)
	require.Equal(t, 1, source.calls)

	// Cache is already stale, but the limiter blocks a second upstream
	// call; the stale entry is served instead
	price, err = resolver.CurrentPrice(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 43250.0, price)
	assert.Equal(t, 1, source.calls)
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", NormalizeSymbol("BTC/USDT"))
	assert.Equal(t, "ETHUSDT", NormalizeSymbol("eth/usdt"))
	assert.Equal(t, "BTCUSDT", NormalizeSymbol("BTCUSDT"))
}
