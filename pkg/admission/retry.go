package admission

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for upstream retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the backoff before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration

	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// callWithRetry executes an upstream call with exponential backoff and
// jitter. Non-retryable errors return immediately; retryable ones are
// reattempted up to the cap, after which the last error is surfaced
// wrapped in ErrRetryExhausted. The backoff wait respects ctx.
func callWithRetry(ctx context.Context, logger zerolog.Logger, cfg RetryConfig, operation string, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		text, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("Upstream call succeeded after retry")
			}
			return text, nil
		}

		lastErr = err
		if !shouldRetry(err) {
			return "", err
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(operation).Inc()

		// ±20% jitter to avoid synchronized retries across fingerprints.
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(operation).Observe(jitter.Seconds())

		logger.Debug().
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Err(err).
			Msg("Retrying upstream call after backoff")

		// Cancellation is not exhaustion; surface the ctx error as-is so
		// callers can tell an abandoned call from a worn-out upstream.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(operation).Inc()
	logger.Warn().
		Str("operation", operation).
		Int("max_attempts", cfg.MaxAttempts).
		Err(lastErr).
		Msg("Upstream retry attempts exhausted")

	return "", fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
