package wallet

import (
	"testing"

	"github.com/ksred/paper-exchange/internal/ledger"
	"github.com/ksred/paper-exchange/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(starting types.Balance) (*Service, *ledger.Ledger) {
	book := ledger.New(nil, starting)
	return NewService(book, 0), book
}

func TestService_Deposit(t *testing.T) {
	s, book := newTestService(types.Balance{})

	txn, err := s.Deposit("BTC", 1.5)

	require.NoError(t, err)
	assert.Equal(t, types.TxDeposit, txn.Type)
	assert.Equal(t, "BTC", txn.Currency)
	assert.Equal(t, 1.5, txn.Amount)
	assert.Equal(t, 1.5, book.Balances()["BTC"])
}

func TestService_Deposit_Validation(t *testing.T) {
	s, book := newTestService(types.Balance{})

	_, err := s.Deposit("", 1)
	var validationErr *types.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = s.Deposit("BTC", 0)
	assert.ErrorAs(t, err, &validationErr)

	_, err = s.Deposit("BTC", -5)
	assert.ErrorAs(t, err, &validationErr)

	assert.Empty(t, book.Transactions(0))
}

func TestService_Withdraw(t *testing.T) {
	s, book := newTestService(types.Balance{"BTC": 2})

	txn, err := s.Withdraw("BTC", 0.5, "bc1qexample")

	require.NoError(t, err)
	assert.Equal(t, types.TxWithdrawal, txn.Type)
	assert.Equal(t, "bc1qexample", txn.Address)
	assert.InDelta(t, 1.5, book.Balances()["BTC"], 1e-9)
}

func TestService_Withdraw_InsufficientBalance(t *testing.T) {
	s, book := newTestService(types.Balance{"BTC": 0.1})

	_, err := s.Withdraw("BTC", 5, "bc1qexample")

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	// Fails closed: balance unchanged, no transaction recorded
	assert.Equal(t, 0.1, book.Balances()["BTC"])
	assert.Empty(t, book.Transactions(0))
}

func TestService_Withdraw_Validation(t *testing.T) {
	s, _ := newTestService(types.Balance{"BTC": 1})

	var validationErr *types.ValidationError

	_, err := s.Withdraw("BTC", 1, "")
	assert.ErrorAs(t, err, &validationErr)

	_, err = s.Withdraw("", 1, "bc1qexample")
	assert.ErrorAs(t, err, &validationErr)

	_, err = s.Withdraw("BTC", -1, "bc1qexample")
	assert.ErrorAs(t, err, &validationErr)
}

func TestService_TransactionHistory(t *testing.T) {
	s, _ := newTestService(types.Balance{})

	_, err := s.Deposit("BTC", 1)
	require.NoError(t, err)
	_, err = s.Deposit("ETH", 2)
	require.NoError(t, err)
	_, err = s.Withdraw("BTC", 0.5, "bc1qexample")
	require.NoError(t, err)

	history := s.GetTransactionHistory(0)
	require.Len(t, history, 3)
	// Newest first
	assert.Equal(t, types.TxWithdrawal, history[0].Type)
	assert.Equal(t, "ETH", history[1].Currency)
	assert.Equal(t, "BTC", history[2].Currency)

	limited := s.GetTransactionHistory(1)
	require.Len(t, limited, 1)
	assert.Equal(t, types.TxWithdrawal, limited[0].Type)
}
