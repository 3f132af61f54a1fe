package types

import (
	"strings"
	"time"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderType string

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusOpen      OrderStatus = "OPEN"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusFailed    OrderStatus = "FAILED"
)

// IsTerminal reports whether no further transition out of the status is
// permitted.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusFailed
}

// Execution records the fill details of an order. It is set exactly once,
// on the transition to FILLED.
type Execution struct {
	ExecutedPrice  float64   `json:"executed_price"`
	ExecutedAmount float64   `json:"executed_amount"`
	TotalValue     float64   `json:"total_value"`
	ExecutedAt     time.Time `json:"executed_at"`
}

// Order is a single simulated exchange order. IDs are monotonic integers
// assigned at creation and never reused.
type Order struct {
	ID         int64       `json:"order_id"`
	Pair       string      `json:"pair"`
	Type       OrderType   `json:"order_type"`
	Side       OrderSide   `json:"side"`
	Amount     float64     `json:"amount"`
	LimitPrice float64     `json:"limit_price,omitempty"`
	Status     OrderStatus `json:"status"`
	Execution  *Execution  `json:"execution,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// OrderRequest is the caller-supplied shape for placing an order.
type OrderRequest struct {
	Pair       string    `json:"pair" binding:"required"`
	Type       OrderType `json:"order_type" binding:"required"`
	Side       OrderSide `json:"side" binding:"required"`
	Amount     float64   `json:"amount" binding:"required"`
	LimitPrice float64   `json:"limit_price,omitempty"`
}

// BaseCurrency returns the base leg of a BASE/QUOTE pair, e.g. "BTC" for
// "BTC/USDT". Returns "" for a malformed pair.
func BaseCurrency(pair string) string {
	base, _ := SplitPair(pair)
	return base
}

// QuoteCurrency returns the quote leg of a BASE/QUOTE pair.
func QuoteCurrency(pair string) string {
	_, quote := SplitPair(pair)
	return quote
}

// SplitPair splits "BTC/USDT" into ("BTC", "USDT").
func SplitPair(pair string) (base, quote string) {
	parts := strings.SplitN(pair, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ""
	}
	return parts[0], parts[1]
}

// Balance maps currency symbol to the held, non-negative amount.
type Balance map[string]float64

// Position tracks the net holding of a base currency along with its
// volume-weighted average entry price.
type Position struct {
	Currency      string  `json:"currency"`
	Amount        float64 `json:"amount"`
	AvgPrice      float64 `json:"avg_price"`
	TotalValue    float64 `json:"total_value"`
	CurrentPrice  float64 `json:"current_price,omitempty"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

type TransactionType string

const (
	TxDeposit    TransactionType = "DEPOSIT"
	TxWithdrawal TransactionType = "WITHDRAWAL"
	TxTrade      TransactionType = "TRADE"
)

// Transaction is an immutable, append-only audit record of a balance
// mutation. The transaction log is the sole audit trail for balances.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	Type          TransactionType `json:"type"`
	Currency      string          `json:"currency,omitempty"`
	Pair          string          `json:"pair,omitempty"`
	Amount        float64         `json:"amount"`
	Price         float64         `json:"price,omitempty"`
	Total         float64         `json:"total,omitempty"`
	OrderID       int64           `json:"order_id,omitempty"`
	Address       string          `json:"address,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// PortfolioSummary is the aggregate valuation of balances and open
// positions at current market prices.
type PortfolioSummary struct {
	TotalValue      float64    `json:"total_value"`
	TotalPnl        float64    `json:"total_pnl"`
	TotalPnlPercent float64    `json:"total_pnl_percent"`
	Holdings        []Position `json:"holdings"`
}
