package ledger

import (
	"testing"

	"github.com/ksred/paper-exchange/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(starting types.Balance) *Ledger {
	return New(nil, starting)
}

func placeOrder(l *Ledger, pair string, side types.OrderSide, orderType types.OrderType, amount, limitPrice float64) types.Order {
	return l.AppendOrder(types.Order{
		Pair:       pair,
		Side:       side,
		Type:       orderType,
		Amount:     amount,
		LimitPrice: limitPrice,
	})
}

func TestLedger_AppendOrder_MonotonicIDs(t *testing.T) {
	l := newTestLedger(types.Balance{"USDT": 10000})

	first := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 0.1, 0)
	second := placeOrder(l, "ETH/USDT", types.SideBuy, types.TypeMarket, 1, 0)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, types.StatusPending, first.Status)
}

func TestLedger_Deposit(t *testing.T) {
	l := newTestLedger(types.Balance{})

	txn := l.Deposit("BTC", 0.5)

	assert.Equal(t, types.TxDeposit, txn.Type)
	assert.Equal(t, "BTC", txn.Currency)
	assert.Equal(t, 0.5, txn.Amount)
	assert.NotEmpty(t, txn.TransactionID)
	assert.Equal(t, 0.5, l.Balances()["BTC"])
}

func TestLedger_Withdraw_InsufficientBalance(t *testing.T) {
	l := newTestLedger(types.Balance{"BTC": 0.1})

	_, err := l.Withdraw("BTC", 5, "bc1qaddr")

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	// No mutation, no transaction
	assert.Equal(t, 0.1, l.Balances()["BTC"])
	assert.Empty(t, l.Transactions(0))
}

func TestLedger_Withdraw(t *testing.T) {
	l := newTestLedger(types.Balance{"BTC": 1})

	txn, err := l.Withdraw("BTC", 0.4, "bc1qaddr")

	require.NoError(t, err)
	assert.Equal(t, types.TxWithdrawal, txn.Type)
	assert.Equal(t, "bc1qaddr", txn.Address)
	assert.InDelta(t, 0.6, l.Balances()["BTC"], 1e-9)
}

func TestLedger_ApplyFill_BuyConservation(t *testing.T) {
	l := newTestLedger(types.Balance{"USDT": 10000})
	order := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 0.1, 0)

	filled, err := l.ApplyFill(order.ID, 43250)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFilled, filled.Status)
	require.NotNil(t, filled.Execution)
	assert.Equal(t, 43250.0, filled.Execution.ExecutedPrice)
	assert.InDelta(t, 4325, filled.Execution.TotalValue, 1e-9)

	balances := l.Balances()
	assert.InDelta(t, 5675, balances["USDT"], 1e-9)
	assert.InDelta(t, 0.1, balances["BTC"], 1e-9)
	// No third currency touched
	assert.Len(t, balances, 2)

	txns := l.Transactions(0)
	require.Len(t, txns, 1)
	assert.Equal(t, types.TxTrade, txns[0].Type)
	assert.Equal(t, order.ID, txns[0].OrderID)
	assert.InDelta(t, 4325, txns[0].Total, 1e-9)
}

func TestLedger_ApplyFill_SellInverse(t *testing.T) {
	l := newTestLedger(types.Balance{"BTC": 1, "USDT": 0})
	order := placeOrder(l, "BTC/USDT", types.SideSell, types.TypeMarket, 0.25, 0)

	_, err := l.ApplyFill(order.ID, 40000)
	require.NoError(t, err)

	balances := l.Balances()
	assert.InDelta(t, 0.75, balances["BTC"], 1e-9)
	assert.InDelta(t, 10000, balances["USDT"], 1e-9)
}

func TestLedger_ApplyFill_InsufficientBalance(t *testing.T) {
	l := newTestLedger(types.Balance{"USDT": 100})
	order := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 0.1, 0)

	_, err := l.ApplyFill(order.ID, 43250)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	// Nothing was mutated
	assert.Equal(t, 100.0, l.Balances()["USDT"])
	assert.Empty(t, l.Transactions(0))
	stored, err := l.Order(order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, stored.Status)
}

func TestLedger_WeightedAveragePosition(t *testing.T) {
	l := newTestLedger(types.Balance{"USDT": 100000})

	first := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 1, 0)
	_, err := l.ApplyFill(first.ID, 40000)
	require.NoError(t, err)

	second := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 1, 0)
	_, err = l.ApplyFill(second.ID, 44000)
	require.NoError(t, err)

	positions := l.Positions()
	require.Len(t, positions, 1)
	pos := positions[0]
	assert.Equal(t, "BTC", pos.Currency)
	assert.InDelta(t, 2, pos.Amount, 1e-9)
	assert.InDelta(t, 42000, pos.AvgPrice, 1e-9)
	assert.InDelta(t, 84000, pos.TotalValue, 1e-9)
}

func TestLedger_SellLeavesAvgPriceUnchanged(t *testing.T) {
	l := newTestLedger(types.Balance{"USDT": 100000})

	buy := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 2, 0)
	_, err := l.ApplyFill(buy.ID, 42000)
	require.NoError(t, err)

	sell := placeOrder(l, "BTC/USDT", types.SideSell, types.TypeMarket, 1, 0)
	_, err = l.ApplyFill(sell.ID, 45000)
	require.NoError(t, err)

	positions := l.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 1, positions[0].Amount, 1e-9)
	assert.InDelta(t, 42000, positions[0].AvgPrice, 1e-9)
}

func TestLedger_PositionClosedAtZero(t *testing.T) {
	l := newTestLedger(types.Balance{"USDT": 100000})

	buy := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 1, 0)
	_, err := l.ApplyFill(buy.ID, 42000)
	require.NoError(t, err)

	sell := placeOrder(l, "BTC/USDT", types.SideSell, types.TypeMarket, 1, 0)
	_, err = l.ApplyFill(sell.ID, 42000)
	require.NoError(t, err)

	assert.Empty(t, l.Positions())
}

func TestLedger_TerminalOrdersAreImmutable(t *testing.T) {
	l := newTestLedger(types.Balance{"USDT": 10000})
	order := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 0.1, 0)

	_, err := l.ApplyFill(order.ID, 43250)
	require.NoError(t, err)

	_, err = l.Cancel(order.ID)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	err = l.MarkFailed(order.ID, "boom")
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	_, err = l.ApplyFill(order.ID, 43250)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	// Still exactly one fill applied
	assert.InDelta(t, 5675, l.Balances()["USDT"], 1e-9)

	stored, err := l.Order(order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFilled, stored.Status)
	assert.Empty(t, stored.Error)
}

func TestLedger_CancelResting(t *testing.T) {
	l := newTestLedger(types.Balance{"USDT": 10000})
	order := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeLimit, 0.1, 40000)

	require.NoError(t, l.MarkOpen(order.ID))

	cancelled, err := l.Cancel(order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.Status)

	// A later settlement attempt is rejected
	_, err = l.ApplyFill(order.ID, 39000)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestLedger_CancelUnknownOrder(t *testing.T) {
	l := newTestLedger(types.Balance{})

	_, err := l.Cancel(99)
	assert.ErrorIs(t, err, types.ErrOrderNotFound)
}

func TestLedger_TransactionsNewestFirst(t *testing.T) {
	l := newTestLedger(types.Balance{})

	l.Deposit("BTC", 1)
	l.Deposit("ETH", 2)
	l.Deposit("USDT", 3)

	txns := l.Transactions(0)
	require.Len(t, txns, 3)
	assert.Equal(t, "USDT", txns[0].Currency)
	assert.Equal(t, "ETH", txns[1].Currency)
	assert.Equal(t, "BTC", txns[2].Currency)

	limited := l.Transactions(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "USDT", limited[0].Currency)
}

func TestLedger_ReadAccessorsReturnCopies(t *testing.T) {
	l := newTestLedger(types.Balance{"USDT": 1000})

	balances := l.Balances()
	balances["USDT"] = 0
	assert.Equal(t, 1000.0, l.Balances()["USDT"])

	order := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 0.1, 0)
	snapshot, err := l.Order(order.ID)
	require.NoError(t, err)
	snapshot.Status = types.StatusFailed

	stored, err := l.Order(order.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, stored.Status)
}

func TestLedger_ActiveOrders(t *testing.T) {
	l := newTestLedger(types.Balance{"USDT": 10000})

	pending := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 0.1, 0)
	resting := placeOrder(l, "ETH/USDT", types.SideSell, types.TypeLimit, 1, 3000)
	require.NoError(t, l.MarkOpen(resting.ID))
	filled := placeOrder(l, "BTC/USDT", types.SideBuy, types.TypeMarket, 0.01, 0)
	_, err := l.ApplyFill(filled.ID, 43250)
	require.NoError(t, err)

	active := l.ActiveOrders()
	require.Len(t, active, 2)
	assert.Equal(t, pending.ID, active[0].ID)
	assert.Equal(t, resting.ID, active[1].ID)

	history := l.OrderHistory()
	require.Len(t, history, 3)
	// Newest first
	assert.Equal(t, filled.ID, history[0].ID)
}
