// Package errs holds the error taxonomy shared by services, stores and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrInvalid  = errors.New("invalid")
	ErrConflict = errors.New("conflict")
	// ErrUnbalanced marks a voucher whose debits and credits differ.
	ErrUnbalanced = errors.New("unbalanced_voucher")
	// ErrPersistence marks a storage failure that was fully compensated.
	ErrPersistence = errors.New("persistence")
	// ErrInconsistent marks a storage failure whose compensation also failed.
	ErrInconsistent = errors.New("inconsistent_state")
)

// ValidationError is a caller-correctable input problem, rejected before any write.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Invalid builds a ValidationError.
func Invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

// UnbalancedVoucherError reports the two column sums of a rejected voucher.
type UnbalancedVoucherError struct {
	Debit  int64
	Credit int64
}

func (e *UnbalancedVoucherError) Error() string {
	return fmt.Sprintf("sum(debits)=%d must equal sum(credits)=%d", e.Debit, e.Credit)
}

func (e *UnbalancedVoucherError) Is(target error) bool {
	return target == ErrUnbalanced || target == ErrInvalid
}

// NotFoundError names the kind and id of a missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return e.Kind + " " + e.ID + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

// PersistenceError wraps a storage failure in the middle of a multi-step write
// after the completed steps were undone.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// InconsistentStateError means a step failed and undoing the earlier steps failed too.
// The records named by Op need reconciliation.
type InconsistentStateError struct {
	Op              string
	Cause           error
	CompensationErr error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s: %v (compensation failed: %v)", e.Op, e.Cause, e.CompensationErr)
}

func (e *InconsistentStateError) Unwrap() []error { return []error{e.Cause, e.CompensationErr} }

func (e *InconsistentStateError) Is(target error) bool { return target == ErrInconsistent }

// ConflictError reports a uniqueness or concurrent-update collision.
type ConflictError struct{ Msg string }

func (e *ConflictError) Error() string { return e.Msg }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Conflict builds a ConflictError.
func Conflict(msg string) error { return &ConflictError{Msg: msg} }
