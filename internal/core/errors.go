package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by every backend. Callers match them with errors.Is
// and errors.As; the concrete types carry diagnostics.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidValue        = errors.New("invalid value")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrIO                  = errors.New("file store failure")
)

// InsufficientBalanceError is returned when a debit exceeds the payer's
// balance at the instant of the check.
type InsufficientBalanceError struct {
	Requested Money
	Available Money
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s", e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// StorageUnavailableError wraps a failure or timeout of the transactional store.
type StorageUnavailableError struct {
	Op    string
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Cause)
}

func (e *StorageUnavailableError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func (e *StorageUnavailableError) Unwrap() error { return e.Cause }

// IOError wraps a file-store write or delete failure.
type IOError struct {
	Op    string
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("file store %s %q: %v", e.Op, e.Path, e.Cause)
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func (e *IOError) Unwrap() error { return e.Cause }

// IsDomainError reports whether err is one of the kinds a caller is expected
// to recover from.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInsufficientBalance)
}
