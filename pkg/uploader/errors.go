package uploader

import (
	"errors"
	"fmt"

	"github.com/rshade/bulkload/internal/engine/batch"
)

// Sentinel errors for structured error handling.
var (
	// ErrInvalidConfiguration is returned by Run before any batch is processed.
	ErrInvalidConfiguration = batch.ErrInvalidConfiguration

	// ErrIdentifierMismatch marks a batch whose upload returned a different
	// number of identifiers than it had items.
	ErrIdentifierMismatch = errors.New("Some items in the batch failed to get an identifier") //nolint:staticcheck // user-facing message

	// ErrUnknown replaces failure values that are not errors.
	ErrUnknown = errors.New("unknown error")
)

// FailureKind classifies a failed batch.
type FailureKind string

const (
	// KindContent means the upload succeeded but the identifiers did not line up
	// with the batch items.
	KindContent FailureKind = "content"
	// KindTransport means the upload itself returned an error or panicked.
	KindTransport FailureKind = "transport"
)

// BatchError is the failure recorded for one batch.
type BatchError struct {
	Kind FailureKind
	// Number is the 1-based batch sequence index.
	Number int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d: %v", e.Number, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// failureCause converts a recovered panic value into an error.
func failureCause(v any) error {
	if err, ok := v.(error); ok && err != nil {
		return err
	}
	return ErrUnknown
}
