package ledger

import (
	"time"

	"gorm.io/gorm"
)

// OrderRecord is the persisted audit row for an order. The in-memory
// ledger remains authoritative; rows here mirror every state an order
// passes through.
type OrderRecord struct {
	gorm.Model     `json:"-"`
	OrderID        int64     `gorm:"uniqueIndex" json:"order_id"`
	Pair           string    `json:"pair"`
	Side           string    `json:"side"`
	OrderType      string    `json:"order_type"`
	Amount         float64   `json:"amount"`
	LimitPrice     float64   `json:"limit_price"`
	Status         string    `json:"status"`
	ExecutedPrice  float64   `json:"executed_price"`
	ExecutedAmount float64   `json:"executed_amount"`
	TotalValue     float64   `json:"total_value"`
	Error          string    `json:"error"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TransactionRecord is the persisted audit row for a balance mutation.
// Rows are created once and never updated.
type TransactionRecord struct {
	gorm.Model    `json:"-"`
	TransactionID string    `gorm:"uniqueIndex" json:"transaction_id"`
	Type          string    `json:"type"`
	Currency      string    `json:"currency"`
	Pair          string    `json:"pair"`
	Amount        float64   `json:"amount"`
	Price         float64   `json:"price"`
	Total         float64   `json:"total"`
	OrderID       int64     `json:"order_id"`
	Address       string    `json:"address"`
	Timestamp     time.Time `json:"timestamp"`
}
