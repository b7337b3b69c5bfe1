package admission

import (
	"errors"

	"github.com/visionassist/scene-cache/pkg/fingerprint"
	"github.com/visionassist/scene-cache/pkg/vision"
)

// Errors surfaced by the admission controller.
var (
	// ErrNoContext is returned when a question arrives for a session that
	// has no scene description yet.
	ErrNoContext = errors.New("no scene context for session")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	// The upstream cause is wrapped alongside it.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrThrottled is returned when a call is rate limited and no cached
	// answer exists to serve instead.
	ErrThrottled = errors.New("call rate limited and no cached answer available")
)

// shouldRetry reports whether an upstream failure is worth another
// attempt. Malformed frames are the caller's fault and never retried;
// everything else defers to the upstream error classification.
func shouldRetry(err error) bool {
	if errors.Is(err, fingerprint.ErrInvalidFrame) {
		return false
	}
	return vision.IsRetryable(err)
}
