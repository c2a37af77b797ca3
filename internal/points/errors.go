package points

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/Susa-Sek/chorechamp-sub001/internal/model"
)

// Sentinel errors for points operations.
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidState           = errors.New("invalid state")
	ErrWindowExpired          = errors.New("undo window expired")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrOutOfStock             = errors.New("reward out of stock")
	ErrNotAvailable           = errors.New("reward not available")
	ErrPartialFailure         = errors.New("partial failure")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidInput           = errors.New("invalid input")
	ErrConcurrentModification = errors.New("concurrent balance modification")
)

// InsufficientBalanceError reports a spend larger than the available balance.
type InsufficientBalanceError struct {
	UserID    string
	Available int64
	Requested int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %s: available %d, requested %d", e.UserID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// PartialFailureError reports a mutation that failed after its first write
// and whose compensation could not be confirmed. The balance row may not
// match the ledger until reconciled.
type PartialFailureError struct {
	UserID       string
	Kind         model.TransactionType
	ReferenceID  string
	Points       int64
	Cause        error
	Compensation error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure for user %s (%s %+d): balance requires reconciliation: %v",
		e.UserID, e.Kind, e.Points, multierr.Combine(e.Cause, e.Compensation))
}

func (e *PartialFailureError) Unwrap() error {
	return ErrPartialFailure
}

// IsClientError reports whether err is an expected validation outcome that
// should be surfaced to the caller as-is.
func IsClientError(err error) bool {
	if errors.Is(err, ErrPartialFailure) {
		return false
	}
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrWindowExpired) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrNotAvailable) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
