package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports a single invalid or missing field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a field-addressable validation failure.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientStockError rejects a removal that would drive stock negative.
// Nothing is persisted when this is returned.
type InsufficientStockError struct {
	ItemID    int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: requested %s, available %s",
		e.ItemID, e.Requested.String(), e.Available.String())
}

// NotFoundError indicates a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ConsistencyError indicates an operation that would corrupt ledger state,
// e.g. voiding an already-voided entry or editing a voided one.
type ConsistencyError struct {
	EntryID int64
	Reason  string
}

func (e *ConsistencyError) Error() string {
	if e.EntryID != 0 {
		return fmt.Sprintf("consistency: entry %d: %s", e.EntryID, e.Reason)
	}
	return fmt.Sprintf("consistency: %s", e.Reason)
}

// LimitReachedError carries an external policy denial. Services surface it as
// a soft stop: the caller receives the message and no state changes.
type LimitReachedError struct {
	Message string
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("limit reached: %s", e.Message)
}

// StorageError wraps a lower-level datastore failure. The core never retries
// these; callers decide.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage annotates a storage failure with the operation that produced it.
// A nil err passes through.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
