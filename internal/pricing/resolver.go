package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ksred/paper-exchange/internal/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultPrices is the static fallback table, keyed by flattened symbol.
// It is the last line of the fallback chain and keeps order settlement
// alive when both the upstream and the cache have nothing to offer.
var DefaultPrices = map[string]float64{
	"BTCUSDT": 43250,
	"ETHUSDT": 2650,
	"BNBUSDT": 315,
	"SOLUSDT": 98,
	"XRPUSDT": 0.52,
}

// Resolver turns a trading pair into a usable price. Lookup order: fresh
// cache entry, rate-limited upstream fetch, stale cache entry, static
// default. It only errors when every rung is exhausted, which cannot
// happen for pairs covered by the default table.
type Resolver struct {
	cache    *Cache
	source   Source
	defaults map[string]float64
	timeout  time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// ResolverOptions tunes a Resolver. Zero values select the defaults.
type ResolverOptions struct {
	// MinRequestInterval is the minimum spacing between upstream calls
	// for the same symbol. Defaults to one second.
	MinRequestInterval time.Duration
	// RequestTimeout bounds a single upstream fetch. Defaults to 5s.
	RequestTimeout time.Duration
	// Defaults overrides the static fallback table.
	Defaults map[string]float64
}

// NewResolver wires a resolver over the given cache and source.
func NewResolver(cache *Cache, source Source, opts ResolverOptions) *Resolver {
	if opts.MinRequestInterval <= 0 {
		opts.MinRequestInterval = time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = DefaultPrices
	}
	return &Resolver{
		cache:    cache,
		source:   source,
		defaults: defaults,
		timeout:  opts.RequestTimeout,
		limiters: make(map[string]*rate.Limiter),
		interval: opts.MinRequestInterval,
	}
}

// NormalizeSymbol flattens a "BASE/QUOTE" pair into the upstream symbol
// form, e.g. "BTC/USDT" -> "BTCUSDT".
func NormalizeSymbol(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
}

// CurrentPrice resolves the price for a trading pair. It sits on the hot
// settlement and valuation paths, so upstream failures degrade to a stale
// or default price instead of propagating.
func (r *Resolver) CurrentPrice(ctx context.Context, pair string) (float64, error) {
	symbol := NormalizeSymbol(pair)
	logger := log.With().Str("symbol", symbol).Str("component", "price_resolver").Logger()

	// Fresh cache hit: no upstream call. This is the primary defense
	// against upstream rate limits.
	if price, ok := r.cache.GetPrice(symbol); ok {
		return price, nil
	}

	if r.limiter(symbol).Allow() {
		fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
		ticker, err := r.source.FetchTicker(fetchCtx, symbol)
		cancel()
		if err == nil {
			r.cache.SetPrice(symbol, ticker.LastPrice)
			return ticker.LastPrice, nil
		}
		logger.Warn().Err(err).Msg("upstream ticker fetch failed, falling back")
	} else {
		logger.Debug().Msg("upstream fetch suppressed by rate limiter")
	}

	if price, ok := r.cache.StalePrice(symbol); ok {
		logger.Debug().Float64("price", price).Msg("serving stale cached price")
		return price, nil
	}

	if price, ok := r.defaults[symbol]; ok {
		logger.Info().Float64("price", price).Msg("serving static default price")
		r.cache.SetPrice(symbol, price)
		return price, nil
	}

	return 0, fmt.Errorf("%w for %s", types.ErrPriceUnavailable, pair)
}

func (r *Resolver) limiter(symbol string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[symbol]
	if !ok {
		l = rate.NewLimiter(rate.Every(r.interval), 1)
		r.limiters[symbol] = l
	}
	return l
}
