package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor periodically re-evaluates resting limit orders against fresh
// prices so they fill once the market moves through their limit.
type Processor struct {
	engine       *Engine
	processDelay time.Duration
}

// NewProcessor creates a processor re-checking open orders every
// interval. A non-positive interval defaults to five seconds.
func NewProcessor(engine *Engine, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Processor{
		engine:       engine,
		processDelay: interval,
	}
}

// Start begins the re-evaluation loop and blocks until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "order_processor").Logger()
	logger.Info().Dur("interval", p.processDelay).Msg("starting open order processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down open order processor")
			return
		case <-ticker.C:
			p.processOpenOrders(ctx)
		}
	}
}

func (p *Processor) processOpenOrders(ctx context.Context) {
	open := p.engine.ledger.OpenOrders()
	if len(open) == 0 {
		return
	}

	log.Debug().Int("open_count", len(open)).Msg("re-evaluating resting orders")

	for _, order := range open {
		p.engine.processOrder(ctx, order.ID)
	}
}
