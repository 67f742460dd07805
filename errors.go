package pricecheck

import (
	"errors"
	"fmt"
)

// Common errors returned by the pricecheck library.
var (
	// ErrNotFound is returned when a document does not exist in the local store.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when a write carries a stale or missing revision.
	ErrConflict = errors.New("document update conflict")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrOffline is returned when a sync is attempted without network connectivity.
	ErrOffline = errors.New("no network connectivity")

	// ErrCreationExhausted is returned when a product could not be created
	// because every attempt hit a revision conflict.
	ErrCreationExhausted = errors.New("product creation exhausted retries")

	// ErrInvalidEAN is returned when a barcode is not a 13-digit numeric string.
	ErrInvalidEAN = errors.New("EAN must be 13 numeric digits")

	// ErrSyncAborted is returned when the user declines to continue a sync
	// after an upload failure.
	ErrSyncAborted = errors.New("sync aborted by user")
)

// ValidationError is returned when user input or configuration is rejected
// before any store write. Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string

	// Err is an optional sentinel the failure corresponds to.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError is returned when a backend call fails at the network or
// protocol level. Extractable via errors.As(). Supports Unwrap().
type TransportError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport: %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("transport: %s failed (status %d): %v", e.Operation, e.StatusCode, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a revision conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
