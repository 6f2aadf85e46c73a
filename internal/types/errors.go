package types

import (
	"errors"
	"fmt"
)

// Expected, caller-recoverable failures of the ledger and the engine
var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrUnknownSymbol      = errors.New("unknown symbol")
	ErrPriceUnavailable   = errors.New("price unavailable")
	ErrInvalidShareCount  = errors.New("shares must be a positive integer")
	ErrInvalidAmount      = errors.New("amount must be a positive number")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidInput       = errors.New("invalid input")
)

// StorageError reports a persistence failure that is not a domain condition.
// Transient is set for lock conflicts that may succeed when retried.
type StorageError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a retryable storage conflict
func IsTransient(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Transient
}
