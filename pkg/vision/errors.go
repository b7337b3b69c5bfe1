package vision

import (
	"errors"
	"fmt"
)

// UpstreamError represents a failed call to the vision model. Timeouts are
// upstream errors with Timeout set; both are transient and retryable
// unless the status code says otherwise.
type UpstreamError struct {
	// StatusCode is the upstream HTTP status, 0 for transport failures.
	StatusCode int

	// Operation is "describe" or "answer".
	Operation string

	// Message is the upstream error text, if any.
	Message string

	// Timeout marks calls that exceeded the configured deadline.
	Timeout bool

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("vision %s timed out: %v", e.Operation, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("vision %s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("vision %s failed: %v", e.Operation, e.Err)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient. Timeouts, transport
// failures, 429 and 5xx responses are worth retrying; other 4xx responses
// are not, the request itself is bad.
func (e *UpstreamError) Retryable() bool {
	if e.Timeout || e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsRetryable reports whether err is a retryable upstream failure.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	return false
}
