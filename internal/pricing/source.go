package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Ticker is the quote shape returned by a price source.
type Ticker struct {
	Symbol    string
	LastPrice float64
}

// Source is the upstream price capability. Implementations may block on
// the network and may fail; the resolver absorbs both.
type Source interface {
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
}

// HTTPSource fetches tickers from a Binance-compatible REST endpoint
// (GET /api/v3/ticker/price?symbol=BTCUSDT).
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates an HTTP price source against baseURL with the
// given request timeout.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Ticker{}, fmt.Errorf("failed to build ticker request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Ticker{}, fmt.Errorf("ticker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Ticker{}, fmt.Errorf("ticker request for %s returned status %d", symbol, resp.StatusCode)
	}

	var payload struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Ticker{}, fmt.Errorf("failed to decode ticker response: %w", err)
	}

	price, err := strconv.ParseFloat(payload.Price, 64)
	if err != nil {
		return Ticker{}, fmt.Errorf("malformed ticker price %q: %w", payload.Price, err)
	}

	return Ticker{Symbol: payload.Symbol, LastPrice: price}, nil
}

// SimulatedSource serves random-walk prices seeded from a static table.
// Used for development and the simulation client so the server runs
// without any upstream exchange.
type SimulatedSource struct {
	mu      sync.Mutex
	prices  map[string]float64
	latency time.Duration
}

// NewSimulatedSource seeds the walk with the given prices. Each fetch
// moves the price by up to ±2%, mirroring typical tick-to-tick drift.
func NewSimulatedSource(seed map[string]float64) *SimulatedSource {
	prices := make(map[string]float64, len(seed))
	for symbol, price := range seed {
		prices[symbol] = price
	}
	return &SimulatedSource{
		prices:  prices,
		latency: 20 * time.Millisecond,
	}
}

func (s *SimulatedSource) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	select {
	case <-ctx.Done():
		return Ticker{}, ctx.Err()
	case <-time.After(s.latency):
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[symbol]
	if !ok {
		return Ticker{}, fmt.Errorf("unknown symbol %s", symbol)
	}

	price = price * (1 + (rand.Float64()*0.04 - 0.02))
	s.prices[symbol] = price

	log.Debug().
		Str("symbol", symbol).
		Float64("price", price).
		Msg("simulated ticker served")

	return Ticker{Symbol: symbol, LastPrice: price}, nil
}
