package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBalance is returned when a debit would drive a
	// currency balance negative. The check happens before any mutation.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOrderNotFound is returned when an order ID does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidTransition is returned when an operation is attempted on
	// an order in a terminal state.
	ErrInvalidTransition = errors.New("invalid order state transition")

	// ErrPriceUnavailable is returned when the price fallback chain is
	// exhausted: no live quote, no cached entry and no static default.
	ErrPriceUnavailable = errors.New("price unavailable")
)

// ValidationError marks a request rejected before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single bad field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
