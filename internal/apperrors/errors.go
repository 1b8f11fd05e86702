package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError rejects malformed input before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientBalanceError rejects a debit that would take a balance
// negative.
type InsufficientBalanceError struct {
	AccountID uint
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on account %d: requested %s, available %s",
		e.AccountID, e.Requested.String(), e.Available.String())
}

// ConcurrencyConflictError signals lock contention on an account or game.
// Callers retry a bounded number of times before surfacing it.
type ConcurrencyConflictError struct {
	Resource string
	ID       string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %s", e.Resource, e.ID)
}

// DataUnavailableError defers the dependent operation; it is not a
// failure. The caller retries on a later pass.
type DataUnavailableError struct {
	Source string
	Reason string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s not ready: %s", e.Source, e.Reason)
}

// ConsistencyViolationError is fatal for the batch that raised it. The
// batch aborts without committing and the error is logged with full
// context for manual reconciliation.
type ConsistencyViolationError struct {
	Detail string
}

func (e *ConsistencyViolationError) Error() string {
	return "consistency violation: " + e.Detail
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsInsufficientBalance(err error) bool {
	var target *InsufficientBalanceError
	return errors.As(err, &target)
}

func IsConcurrencyConflict(err error) bool {
	var target *ConcurrencyConflictError
	return errors.As(err, &target)
}

func IsDataUnavailable(err error) bool {
	var target *DataUnavailableError
	return errors.As(err, &target)
}

func IsConsistencyViolation(err error) bool {
	var target *ConsistencyViolationError
	return errors.As(err, &target)
}
