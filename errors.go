package stashy

import (
	"errors"
	"fmt"
)

// ErrInvalidKey indicates a key failed validation. Errors returned by
// ValidateKey wrap this sentinel and carry the specific reason, check with
// errors.Is(err, ErrInvalidKey).
var ErrInvalidKey = errors.New("invalid key")

// BackendError wraps a failure surfaced by a backend's underlying storage or
// transport. The original cause is preserved for diagnostics via Unwrap but
// is never inspected by this package, callers needing finer-grained handling
// should unwrap it themselves.
type BackendError struct {
	cause error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return "backend error: " + e.cause.Error()
}

// Unwrap returns the original backend failure.
func (e *BackendError) Unwrap() error {
	return e.cause
}

// backendErr wraps err into a BackendError, nil passes through unchanged.
func backendErr(err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{cause: err}
}

// ResponseError represents an HTTP error response from a remote stash
// service. Surfaced as the cause of a BackendError.
type ResponseError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("stashy: HTTP %d", e.StatusCode)
}
