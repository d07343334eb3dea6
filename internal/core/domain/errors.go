package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable is returned when no wallet provider is reachable.
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	// ErrUserRejected is returned when the user declines a request.
	ErrUserRejected = errors.New("user rejected request")
	// ErrOperationInFlight is returned when a mutating operation is already pending.
	ErrOperationInFlight = errors.New("another operation is in flight")
	// ErrReverted is wrapped by TransactionError when a receipt reports failure.
	ErrReverted = errors.New("transaction reverted")
)

// ValidationError reports a missing or malformed input. No network call has
// been made when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ReadError reports a failed read-only call.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s failed: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// TransactionError reports a failed mutating call or confirmation.
type TransactionError struct {
	Op     string
	TxHash string
	Err    error
}

func (e *TransactionError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s transaction %s failed: %v", e.Op, e.TxHash, e.Err)
	}
	return fmt.Sprintf("%s transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// EnrichmentError reports a failed metadata fetch.
type EnrichmentError struct {
	TokenID string
	Err     error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("failed to fetch token URI for %s: %v", e.TokenID, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }
