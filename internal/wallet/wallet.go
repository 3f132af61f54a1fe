package wallet

import (
	"time"

	"github.com/ksred/paper-exchange/internal/ledger"
	"github.com/ksred/paper-exchange/internal/types"
	"github.com/rs/zerolog/log"
)

// Service derives deposit and withdrawal transactions from ledger
// mutations. Each operation simulates settlement latency around a
// logically atomic balance mutation.
type Service struct {
	ledger        *ledger.Ledger
	settleLatency time.Duration
}

// NewService creates a wallet service over the given ledger.
func NewService(l *ledger.Ledger, settleLatency time.Duration) *Service {
	return &Service{
		ledger:        l,
		settleLatency: settleLatency,
	}
}

// Deposit credits the currency and records a DEPOSIT transaction.
func (s *Service) Deposit(currency string, amount float64) (types.Transaction, error) {
	logger := log.With().
		Str("currency", currency).
		Float64("amount", amount).
		Str("service", "wallet").
		Logger()

	if currency == "" {
		return types.Transaction{}, types.NewValidationError("currency", "must not be empty")
	}
	if amount <= 0 {
		return types.Transaction{}, types.NewValidationError("amount", "must be greater than zero")
	}

	s.simulateSettlement()

	txn := s.ledger.Deposit(currency, amount)
	logger.Info().Str("transaction_id", txn.TransactionID).Msg("deposit recorded")
	return txn, nil
}

// Withdraw debits the currency and records a WITHDRAWAL transaction. It
// fails closed: an insufficient balance aborts before any mutation.
func (s *Service) Withdraw(currency string, amount float64, address string) (types.Transaction, error) {
	logger := log.With().
		Str("currency", currency).
		Float64("amount", amount).
		Str("service", "wallet").
		Logger()

	if currency == "" {
		return types.Transaction{}, types.NewValidationError("currency", "must not be empty")
	}
	if amount <= 0 {
		return types.Transaction{}, types.NewValidationError("amount", "must be greater than zero")
	}
	if address == "" {
		return types.Transaction{}, types.NewValidationError("address", "must not be empty")
	}

	s.simulateSettlement()

	txn, err := s.ledger.Withdraw(currency, amount, address)
	if err != nil {
		logger.Warn().Err(err).Msg("withdrawal rejected")
		return types.Transaction{}, err
	}

	logger.Info().Str("transaction_id", txn.TransactionID).Str("address", address).
		Msg("withdrawal recorded")
	return txn, nil
}

// GetTransactionHistory returns up to limit transactions, newest first.
func (s *Service) GetTransactionHistory(limit int) []types.Transaction {
	return s.ledger.Transactions(limit)
}

func (s *Service) simulateSettlement() {
	if s.settleLatency > 0 {
		time.Sleep(s.settleLatency)
	}
}
