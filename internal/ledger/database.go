package ledger

import (
	"github.com/ksred/paper-exchange/internal/types"
	"gorm.io/gorm"
)

// Database persists the audit mirror of orders and transactions.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(orderRecord(order)).Error
}

func (d *Database) UpdateOrder(order *types.Order) error {
	record := orderRecord(order)
	return d.db.Model(&OrderRecord{}).
		Where("order_id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":          record.Status,
			"executed_price":  record.ExecutedPrice,
			"executed_amount": record.ExecutedAmount,
			"total_value":     record.TotalValue,
			"error":           record.Error,
			"updated_at":      record.UpdatedAt,
		}).Error
}

func (d *Database) CreateTransaction(txn *types.Transaction) error {
	record := &TransactionRecord{
		TransactionID: txn.TransactionID,
		Type:          string(txn.Type),
		Currency:      txn.Currency,
		Pair:          txn.Pair,
		Amount:        txn.Amount,
		Price:         txn.Price,
		Total:         txn.Total,
		OrderID:       txn.OrderID,
		Address:       txn.Address,
		Timestamp:     txn.Timestamp,
	}
	return d.db.Create(record).Error
}

func orderRecord(order *types.Order) *OrderRecord {
	record := &OrderRecord{
		OrderID:    order.ID,
		Pair:       order.Pair,
		Side:       string(order.Side),
		OrderType:  string(order.Type),
		Amount:     order.Amount,
		LimitPrice: order.LimitPrice,
		Status:     string(order.Status),
		Error:      order.Error,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
	if order.Execution != nil {
		record.ExecutedPrice = order.Execution.ExecutedPrice
		record.ExecutedAmount = order.Execution.ExecutedAmount
		record.TotalValue = order.Execution.TotalValue
	}
	return record
}
