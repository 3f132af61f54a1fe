package engine

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/ksred/paper-exchange/internal/ledger"
	"github.com/ksred/paper-exchange/internal/pricing"
	"github.com/ksred/paper-exchange/internal/types"
	"github.com/rs/zerolog/log"
)

// Config tunes the simulated execution behaviour.
type Config struct {
	// MinSettleLatency and MaxSettleLatency bound the simulated
	// network/matching delay between order placement and settlement.
	MinSettleLatency time.Duration
	MaxSettleLatency time.Duration
	// QuoteCurrency is the currency portfolio valuations are reported in.
	QuoteCurrency string
}

// DefaultConfig mirrors typical exchange round-trip latency.
func DefaultConfig() Config {
	return Config{
		MinSettleLatency: 1 * time.Second,
		MaxSettleLatency: 3 * time.Second,
		QuoteCurrency:    "USDT",
	}
}

// Engine accepts order requests, schedules asynchronous settlement and
// applies fills to the ledger. It is the only writer of order state.
type Engine struct {
	ledger *ledger.Ledger
	prices *pricing.Resolver
	cfg    Config
}

// New creates an execution engine over the given ledger and price
// resolver.
func New(l *ledger.Ledger, prices *pricing.Resolver, cfg Config) *Engine {
	if cfg.QuoteCurrency == "" {
		cfg.QuoteCurrency = "USDT"
	}
	return &Engine{
		ledger: l,
		prices: prices,
		cfg:    cfg,
	}
}

// PlaceOrder validates the request, records a PENDING order synchronously
// and schedules settlement. The caller observes the pending order
// immediately; settlement failures are captured on the order itself
// rather than returned here.
func (e *Engine) PlaceOrder(req types.OrderRequest) (types.Order, error) {
	if err := validateRequest(req); err != nil {
		return types.Order{}, err
	}

	order := e.ledger.AppendOrder(types.Order{
		Pair:       req.Pair,
		Type:       req.Type,
		Side:       req.Side,
		Amount:     req.Amount,
		LimitPrice: req.LimitPrice,
	})

	log.Info().
		Int64("order_id", order.ID).
		Str("pair", order.Pair).
		Str("side", string(order.Side)).
		Str("order_type", string(order.Type)).
		Float64("amount", order.Amount).
		Msg("order accepted, scheduling settlement")

	go e.settle(order.ID)

	return order, nil
}

// CancelOrder cancels a PENDING or OPEN order. Terminal orders and
// unknown IDs are rejected.
func (e *Engine) CancelOrder(id int64) (types.Order, error) {
	order, err := e.ledger.Cancel(id)
	if err != nil {
		return types.Order{}, err
	}
	log.Info().Int64("order_id", id).Msg("order cancelled")
	return order, nil
}

// GetOrder returns a snapshot of a single order.
func (e *Engine) GetOrder(id int64) (types.Order, error) {
	return e.ledger.Order(id)
}

// GetBalance returns a snapshot of all currency balances.
func (e *Engine) GetBalance() types.Balance {
	return e.ledger.Balances()
}

// GetActiveOrders returns all PENDING and OPEN orders.
func (e *Engine) GetActiveOrders() []types.Order {
	return e.ledger.ActiveOrders()
}

// GetOrderHistory returns all orders, newest first.
func (e *Engine) GetOrderHistory() []types.Order {
	return e.ledger.OrderHistory()
}

// GetPositions returns all open positions marked to current market
// prices.
func (e *Engine) GetPositions(ctx context.Context) []types.Position {
	positions := e.ledger.Positions()
	for i := range positions {
		price, err := e.prices.CurrentPrice(ctx, positions[i].Currency+"/"+e.cfg.QuoteCurrency)
		if err != nil {
			continue
		}
		positions[i].CurrentPrice = price
		positions[i].UnrealizedPnl = positions[i].Amount*price - positions[i].TotalValue
	}
	return positions
}

// GetPortfolioSummary values the quote balance plus all positions at
// current prices.
func (e *Engine) GetPortfolioSummary(ctx context.Context) types.PortfolioSummary {
	holdings := e.GetPositions(ctx)

	summary := types.PortfolioSummary{
		TotalValue: e.ledger.Balances()[e.cfg.QuoteCurrency],
		Holdings:   holdings,
	}

	var costBasis float64
	for _, pos := range holdings {
		summary.TotalValue += pos.Amount * pos.CurrentPrice
		summary.TotalPnl += pos.UnrealizedPnl
		costBasis += pos.TotalValue
	}
	if costBasis > 0 {
		summary.TotalPnlPercent = summary.TotalPnl / costBasis * 100
	}
	return summary
}

// settle waits out the simulated matching latency and then processes the
// order. Two orders placed back to back may settle in either order; the
// engine guarantees only per-order atomicity.
func (e *Engine) settle(id int64) {
	delay := e.cfg.MinSettleLatency
	if jitter := e.cfg.MaxSettleLatency - e.cfg.MinSettleLatency; jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(jitter)))
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	e.processOrder(context.Background(), id)
}

// processOrder resolves the current price, decides executability and
// applies the resulting transition. It is also invoked by the processor
// to re-evaluate resting orders, so every transition is guarded: a
// concurrent cancellation makes this a no-op rather than a double apply.
func (e *Engine) processOrder(ctx context.Context, id int64) {
	logger := log.With().Int64("order_id", id).Str("component", "execution").Logger()

	order, err := e.ledger.Order(id)
	if err != nil {
		logger.Error().Err(err).Msg("order vanished before settlement")
		return
	}
	if order.Status != types.StatusPending && order.Status != types.StatusOpen {
		logger.Debug().Str("status", string(order.Status)).Msg("order already terminal, skipping settlement")
		return
	}

	price, err := e.prices.CurrentPrice(ctx, order.Pair)
	if err != nil {
		logger.Warn().Err(err).Msg("settlement failed: no price available")
		e.markFailed(id, err.Error())
		return
	}

	if !executable(order, price) {
		if err := e.ledger.MarkOpen(id); err != nil && !errors.Is(err, types.ErrInvalidTransition) {
			logger.Error().Err(err).Msg("failed to rest limit order")
		}
		logger.Info().
			Float64("current_price", price).
			Float64("limit_price", order.LimitPrice).
			Msg("limit order resting at unfavorable price")
		return
	}

	executedPrice := price
	if order.Type == types.TypeLimit {
		executedPrice = order.LimitPrice
	}

	filled, err := e.ledger.ApplyFill(id, executedPrice)
	switch {
	case err == nil:
		logger.Info().
			Float64("executed_price", filled.Execution.ExecutedPrice).
			Float64("total_value", filled.Execution.TotalValue).
			Msg("order filled")
	case errors.Is(err, types.ErrInsufficientBalance):
		logger.Warn().Err(err).Msg("fill rejected")
		e.markFailed(id, err.Error())
	case errors.Is(err, types.ErrInvalidTransition):
		// Lost the race against a cancellation; nothing was applied.
		logger.Debug().Err(err).Msg("settlement raced a cancellation, no-op")
	default:
		logger.Error().Err(err).Msg("fill application failed")
		e.markFailed(id, err.Error())
	}
}

func (e *Engine) markFailed(id int64, message string) {
	if err := e.ledger.MarkFailed(id, message); err != nil {
		log.Debug().Err(err).Int64("order_id", id).Msg("order no longer failable")
	}
}

// executable applies the price test: market orders always execute, limit
// buys need the market at or below the limit, limit sells at or above.
func executable(order types.Order, currentPrice float64) bool {
	if order.Type == types.TypeMarket {
		return true
	}
	if order.Side == types.SideBuy {
		return currentPrice <= order.LimitPrice
	}
	return currentPrice >= order.LimitPrice
}

func validateRequest(req types.OrderRequest) error {
	if base, quote := types.SplitPair(req.Pair); base == "" || quote == "" {
		return types.NewValidationError("pair", "must be in BASE/QUOTE form")
	}
	if req.Side != types.SideBuy && req.Side != types.SideSell {
		return types.NewValidationError("side", "must be BUY or SELL")
	}
	if req.Type != types.TypeMarket && req.Type != types.TypeLimit {
		return types.NewValidationError("order_type", "must be MARKET or LIMIT")
	}
	if req.Amount <= 0 {
		return types.NewValidationError("amount", "must be greater than zero")
	}
	if req.Type == types.TypeLimit && req.LimitPrice <= 0 {
		return types.NewValidationError("limit_price", "required for limit orders and must be greater than zero")
	}
	return nil
}
