package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/paper-exchange/internal/types"
	"github.com/rs/zerolog/log"
)

// Ledger is the single source of truth for balances, orders, positions
// and the transaction log. Every mutation runs as one compound operation
// under the ledger mutex, so a balance check and the mutation it guards
// can never be interleaved with another writer. Read accessors return
// defensive copies.
type Ledger struct {
	mu           sync.Mutex
	balances     map[string]float64
	orders       map[int64]*types.Order
	orderIDs     []int64
	positions    map[string]*types.Position
	transactions []types.Transaction
	nextOrderID  int64

	db *Database
}

// New creates a ledger seeded with the given starting balances. The audit
// database is optional; a nil db keeps the ledger purely in memory.
func New(db *Database, starting types.Balance) *Ledger {
	balances := make(map[string]float64, len(starting))
	for currency, amount := range starting {
		balances[currency] = amount
	}
	return &Ledger{
		balances:    balances,
		orders:      make(map[int64]*types.Order),
		positions:   make(map[string]*types.Position),
		nextOrderID: 1,
		db:          db,
	}
}

// AppendOrder assigns the next monotonic ID, stamps the order PENDING and
// records it. Returns a snapshot of the stored order.
func (l *Ledger) AppendOrder(order types.Order) types.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	order.ID = l.nextOrderID
	l.nextOrderID++
	order.Status = types.StatusPending
	order.CreatedAt = now
	order.UpdatedAt = now

	stored := order
	l.orders[stored.ID] = &stored
	l.orderIDs = append(l.orderIDs, stored.ID)

	l.auditCreateOrder(&stored)
	return order
}

// Order returns a snapshot of the order with the given ID.
func (l *Ledger) Order(id int64) (types.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[id]
	if !ok {
		return types.Order{}, fmt.Errorf("%w: order %d", types.ErrOrderNotFound, id)
	}
	return copyOrder(order), nil
}

// ActiveOrders returns snapshots of all PENDING and OPEN orders in
// creation order.
func (l *Ledger) ActiveOrders() []types.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	var active []types.Order
	for _, id := range l.orderIDs {
		order := l.orders[id]
		if order.Status == types.StatusPending || order.Status == types.StatusOpen {
			active = append(active, copyOrder(order))
		}
	}
	return active
}

// OpenOrders returns snapshots of resting limit orders only.
func (l *Ledger) OpenOrders() []types.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	var open []types.Order
	for _, id := range l.orderIDs {
		order := l.orders[id]
		if order.Status == types.StatusOpen {
			open = append(open, copyOrder(order))
		}
	}
	return open
}

// OrderHistory returns snapshots of all orders, newest first.
func (l *Ledger) OrderHistory() []types.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	history := make([]types.Order, 0, len(l.orderIDs))
	for i := len(l.orderIDs) - 1; i >= 0; i-- {
		history = append(history, copyOrder(l.orders[l.orderIDs[i]]))
	}
	return history
}

// Balances returns a copy of the balance map.
func (l *Ledger) Balances() types.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(types.Balance, len(l.balances))
	for currency, amount := range l.balances {
		balances[currency] = amount
	}
	return balances
}

// Positions returns copies of all non-zero positions.
func (l *Ledger) Positions() []types.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions := make([]types.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		positions = append(positions, *pos)
	}
	return positions
}

// Transactions returns up to limit transactions, newest first. A
// non-positive limit returns the full log.
func (l *Ledger) Transactions(limit int) []types.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.transactions)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.Transaction, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.transactions[i])
	}
	return out
}

// Deposit credits a currency and records a DEPOSIT transaction.
func (l *Ledger) Deposit(currency string, amount float64) types.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit(currency, amount)
	txn := types.Transaction{
		TransactionID: newTransactionID(),
		Type:          types.TxDeposit,
		Currency:      currency,
		Amount:        amount,
		Timestamp:     time.Now(),
	}
	l.appendTransaction(txn)
	return txn
}

// Withdraw debits a currency and records a WITHDRAWAL transaction. It
// fails closed: an insufficient balance aborts before any mutation.
func (l *Ledger) Withdraw(currency string, amount float64, address string) (types.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[currency] < amount {
		return types.Transaction{}, fmt.Errorf("%w: %s balance %f is less than %f",
			types.ErrInsufficientBalance, currency, l.balances[currency], amount)
	}
	if err := l.debit(currency, amount); err != nil {
		return types.Transaction{}, err
	}
	txn := types.Transaction{
		TransactionID: newTransactionID(),
		Type:          types.TxWithdrawal,
		Currency:      currency,
		Amount:        amount,
		Address:       address,
		Timestamp:     time.Now(),
	}
	l.appendTransaction(txn)
	return txn, nil
}

// MarkOpen transitions a PENDING order to OPEN (resting limit order).
// An already-OPEN order is left untouched.
func (l *Ledger) MarkOpen(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %d", types.ErrOrderNotFound, id)
	}
	if order.Status == types.StatusOpen {
		return nil
	}
	if order.Status != types.StatusPending {
		return fmt.Errorf("%w: order %d is %s", types.ErrInvalidTransition, id, order.Status)
	}
	order.Status = types.StatusOpen
	order.UpdatedAt = time.Now()
	l.auditUpdateOrder(order)
	return nil
}

// MarkFailed transitions a PENDING or OPEN order to FAILED, recording the
// error message on the order. Balances are untouched.
func (l *Ledger) MarkFailed(id int64, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[id]
	if !ok {
		return fmt.Errorf("%w: order %d", types.ErrOrderNotFound, id)
	}
	if order.Status.IsTerminal() {
		return fmt.Errorf("%w: order %d is %s", types.ErrInvalidTransition, id, order.Status)
	}
	order.Status = types.StatusFailed
	order.Error = message
	order.UpdatedAt = time.Now()
	l.auditUpdateOrder(order)
	return nil
}

// Cancel transitions a PENDING or OPEN order to CANCELLED and returns the
// resulting snapshot.
func (l *Ledger) Cancel(id int64) (types.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[id]
	if !ok {
		return types.Order{}, fmt.Errorf("%w: order %d", types.ErrOrderNotFound, id)
	}
	if order.Status.IsTerminal() {
		return types.Order{}, fmt.Errorf("%w: cannot cancel order %d in status %s",
			types.ErrInvalidTransition, id, order.Status)
	}
	order.Status = types.StatusCancelled
	order.UpdatedAt = time.Now()
	l.auditUpdateOrder(order)
	return copyOrder(order), nil
}

// ApplyFill executes the atomic fill step for an order at the given
// price: balance pre-check, debit/credit, FILLED transition, position
// update and trade transaction all happen under one lock acquisition.
func (l *Ledger) ApplyFill(id int64, executedPrice float64) (types.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[id]
	if !ok {
		return types.Order{}, fmt.Errorf("%w: order %d", types.ErrOrderNotFound, id)
	}
	if order.Status != types.StatusPending && order.Status != types.StatusOpen {
		return types.Order{}, fmt.Errorf("%w: order %d is %s", types.ErrInvalidTransition, id, order.Status)
	}

	base, quote := types.SplitPair(order.Pair)
	totalValue := executedPrice * order.Amount

	// Atomic check-then-act: validate funds before touching anything.
	switch order.Side {
	case types.SideBuy:
		if l.balances[quote] < totalValue {
			return types.Order{}, fmt.Errorf("%w: %s balance %f is less than required %f",
				types.ErrInsufficientBalance, quote, l.balances[quote], totalValue)
		}
	case types.SideSell:
		if l.balances[base] < order.Amount {
			return types.Order{}, fmt.Errorf("%w: %s balance %f is less than required %f",
				types.ErrInsufficientBalance, base, l.balances[base], order.Amount)
		}
	}

	now := time.Now()
	if order.Side == types.SideBuy {
		if err := l.debit(quote, totalValue); err != nil {
			return types.Order{}, err
		}
		l.credit(base, order.Amount)
		l.applyBuyPosition(base, order.Amount, executedPrice)
	} else {
		if err := l.debit(base, order.Amount); err != nil {
			return types.Order{}, err
		}
		l.credit(quote, totalValue)
		l.applySellPosition(base, order.Amount)
	}

	order.Status = types.StatusFilled
	order.Execution = &types.Execution{
		ExecutedPrice:  executedPrice,
		ExecutedAmount: order.Amount,
		TotalValue:     totalValue,
		ExecutedAt:     now,
	}
	order.UpdatedAt = now

	l.appendTransaction(types.Transaction{
		TransactionID: newTransactionID(),
		Type:          types.TxTrade,
		Pair:          order.Pair,
		Amount:        order.Amount,
		Price:         executedPrice,
		Total:         totalValue,
		OrderID:       order.ID,
		Timestamp:     now,
	})
	l.auditUpdateOrder(order)

	return copyOrder(order), nil
}

// credit adds amount to a currency balance.
func (l *Ledger) credit(currency string, amount float64) {
	l.balances[currency] += amount
}

// debit removes amount from a currency balance. The non-negative
// invariant is enforced here as a last resort; callers are expected to
// have checked already.
func (l *Ledger) debit(currency string, amount float64) error {
	if l.balances[currency] < amount {
		return fmt.Errorf("%w: debit of %f %s exceeds balance %f",
			types.ErrInsufficientBalance, amount, currency, l.balances[currency])
	}
	l.balances[currency] -= amount
	return nil
}

// applyBuyPosition folds a buy fill into the position for the base
// currency, recomputing the volume-weighted average entry price.
func (l *Ledger) applyBuyPosition(currency string, amount, price float64) {
	pos, ok := l.positions[currency]
	if !ok {
		l.positions[currency] = &types.Position{
			Currency:   currency,
			Amount:     amount,
			AvgPrice:   price,
			TotalValue: amount * price,
		}
		return
	}
	newAmount := pos.Amount + amount
	pos.AvgPrice = (pos.Amount*pos.AvgPrice + amount*price) / newAmount
	pos.Amount = newAmount
	pos.TotalValue = pos.Amount * pos.AvgPrice
}

// applySellPosition reduces the position for the base currency. The
// average entry price is unchanged by sells. A position sold down to zero
// is removed.
func (l *Ledger) applySellPosition(currency string, amount float64) {
	pos, ok := l.positions[currency]
	if !ok {
		return
	}
	pos.Amount -= amount
	if pos.Amount <= 1e-12 {
		delete(l.positions, currency)
		return
	}
	pos.TotalValue = pos.Amount * pos.AvgPrice
}

func (l *Ledger) appendTransaction(txn types.Transaction) {
	l.transactions = append(l.transactions, txn)
	if l.db != nil {
		if err := l.db.CreateTransaction(&txn); err != nil {
			log.Warn().Err(err).Str("transaction_id", txn.TransactionID).
				Msg("failed to persist transaction audit record")
		}
	}
}

func (l *Ledger) auditCreateOrder(order *types.Order) {
	if l.db == nil {
		return
	}
	if err := l.db.CreateOrder(order); err != nil {
		log.Warn().Err(err).Int64("order_id", order.ID).
			Msg("failed to persist order audit record")
	}
}

func (l *Ledger) auditUpdateOrder(order *types.Order) {
	if l.db == nil {
		return
	}
	if err := l.db.UpdateOrder(order); err != nil {
		log.Warn().Err(err).Int64("order_id", order.ID).
			Msg("failed to update order audit record")
	}
}

func copyOrder(order *types.Order) types.Order {
	out := *order
	if order.Execution != nil {
		execution := *order.Execution
		out.Execution = &execution
	}
	return out
}

func newTransactionID() string {
	return "TXN_" + uuid.New().String()
}
