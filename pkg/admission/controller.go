// Package admission implements the policy that turns a raw camera frame
// into either a cheap cache answer or a justified upstream model call.
//
// Per frame the controller either returns a fresh cached result, attaches
// the caller to an in-flight call for the same scene, serves a stale
// answer when the session's call budget is exhausted, or elects the caller
// leader of a new upstream call cycle.
package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/visionassist/scene-cache/pkg/fingerprint"
	"github.com/visionassist/scene-cache/pkg/session"
	"github.com/visionassist/scene-cache/pkg/store"
	"github.com/visionassist/scene-cache/pkg/vision"
)

// Status classifies how a frame submission was resolved.
type Status string

const (
	// StatusProcessed means this caller led a new upstream call.
	StatusProcessed Status = "processed"

	// StatusHit means a fresh cached result was served, no upstream call.
	StatusHit Status = "hit"

	// StatusCoalesced means the caller joined an in-flight call for the
	// same scene and received the leader's result.
	StatusCoalesced Status = "coalesced"

	// StatusThrottled means the per-session call interval had not elapsed
	// and the most recent cached answer was served instead.
	StatusThrottled Status = "throttled"
)

// Result is the outcome of a frame submission.
type Result struct {
	// Status classifies how the frame was resolved.
	Status Status `json:"status"`

	// Description is the scene description text.
	Description string `json:"description"`

	// Fingerprint is the cache key the frame resolved to.
	Fingerprint fingerprint.Value `json:"fingerprint"`

	// Distance is the similarity distance to the matched entry, -1 when
	// the frame matched nothing.
	Distance int `json:"distance"`
}

// Config holds the admission policy configuration.
type Config struct {
	// FreshnessWindow is how long a Ready result is served without a new
	// upstream call. Must be >= MinCallInterval: serving stale-but-recent
	// beats an unnecessary call.
	FreshnessWindow time.Duration

	// MinCallInterval bounds the upstream call rate per session.
	MinCallInterval time.Duration

	// FailureBackoff is how long a Failed entry keeps answering with its
	// stored error before a fresh attempt is admitted.
	FailureBackoff time.Duration

	// Retry configures upstream retry behavior.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		FreshnessWindow: 10 * time.Second,
		MinCallInterval: 2 * time.Second,
		FailureBackoff:  5 * time.Second,
		Retry:           DefaultRetryConfig(),
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.FreshnessWindow <= 0 {
		return fmt.Errorf("freshness window must be positive (got %v)", c.FreshnessWindow)
	}
	if c.MinCallInterval < 0 {
		return fmt.Errorf("min call interval must be non-negative (got %v)", c.MinCallInterval)
	}
	if c.FreshnessWindow < c.MinCallInterval {
		return fmt.Errorf("freshness window (%v) must be >= min call interval (%v)", c.FreshnessWindow, c.MinCallInterval)
	}
	if c.FailureBackoff < 0 {
		return fmt.Errorf("failure backoff must be non-negative (got %v)", c.FailureBackoff)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry attempts must be >= 1 (got %d)", c.Retry.MaxAttempts)
	}
	return nil
}

// Controller is the admission policy. It owns no state of its own; the
// entry and session stores are passed in explicitly and shared with the
// janitor and transport.
type Controller struct {
	engine   *fingerprint.Engine
	entries  *store.Store
	sessions *session.Store
	model    vision.Client
	config   Config
	logger   zerolog.Logger
}

// New creates an admission controller.
func New(engine *fingerprint.Engine, entries *store.Store, sessions *session.Store, model vision.Client, cfg Config, logger zerolog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil || entries == nil || sessions == nil || model == nil {
		return nil, fmt.Errorf("engine, stores and model client are required")
	}
	return &Controller{
		engine:   engine,
		entries:  entries,
		sessions: sessions,
		model:    model,
		config:   cfg,
		logger:   logger.With().Str("component", "admission").Logger(),
	}, nil
}

// SubmitFrame resolves one incoming frame for a session. force bypasses
// the freshness check (the result is refreshed even if a fresh entry
// exists) but still honors the throttle and single-flight invariants.
func (c *Controller) SubmitFrame(ctx context.Context, sessionID string, frame []byte, force bool) (Result, error) {
	fp, err := c.engine.Fingerprint(frame)
	if err != nil {
		invalidFramesTotal.Inc()
		c.logger.Warn().Str("session_id", sessionID).Err(err).Msg("Frame rejected")
		return Result{}, err
	}

	now := time.Now()
	entry, dist, found := c.entries.Nearest(fp, c.engine.Threshold())

	// Canonicalize near-duplicates onto the stored fingerprint so they
	// share one entry and one in-flight call.
	key := fp
	if !found {
		dist = -1
	} else {
		key = entry.Fingerprint
	}

	if found && !force && entry.Fresh(c.config.FreshnessWindow, now) {
		c.entries.Touch(key, now)
		// A served description becomes the session's context even when
		// another session's call produced it; Ask must work for any
		// session that has been answered.
		c.sessions.SetDescription(sessionID, entry.Result, now)
		c.logger.Debug().
			Str("session_id", sessionID).
			Stringer("fingerprint", key).
			Int("distance", dist).
			Msg("Cache hit")
		return Result{Status: StatusHit, Description: entry.Result, Fingerprint: key, Distance: dist}, nil
	}

	// A scene that just failed keeps failing cheaply until the backoff
	// elapses; then a fresh cycle is admitted below.
	if found && entry.State == store.StateFailed && now.Sub(entry.FailedAt) < c.config.FailureBackoff {
		return Result{}, entry.LastErr
	}

	// An in-flight call for this scene is joined without consulting the
	// throttle: no new upstream call is made.
	if found && entry.State == store.StatePending {
		return c.joinOrLead(ctx, sessionID, key, dist, frame, now, true)
	}

	if !c.sessions.AllowCall(sessionID, c.config.MinCallInterval, now) {
		throttledTotal.Inc()
		c.logger.Debug().
			Str("session_id", sessionID).
			Stringer("fingerprint", key).
			Msg("Throttled by min call interval")

		if desc, ok := c.sessions.Description(sessionID); ok {
			return Result{Status: StatusThrottled, Description: desc, Fingerprint: key, Distance: dist}, nil
		}
		// The session has answered nothing yet; a stale entry from another
		// session is still better than nothing.
		if found && entry.State == store.StateReady {
			c.entries.Touch(key, now)
			c.sessions.SetDescription(sessionID, entry.Result, now)
			return Result{Status: StatusThrottled, Description: entry.Result, Fingerprint: key, Distance: dist}, nil
		}
		return Result{}, ErrThrottled
	}

	return c.joinOrLead(ctx, sessionID, key, dist, frame, now, false)
}

// joinOrLead begins (or joins) the call cycle for key. Exactly one caller
// comes back as leader and performs the upstream call; everyone else
// suspends on the ticket. joined marks callers that found the cycle
// already pending and skipped the throttle.
func (c *Controller) joinOrLead(ctx context.Context, sessionID string, key fingerprint.Value, dist int, frame []byte, now time.Time, joined bool) (Result, error) {
	ticket, already := c.entries.BeginPending(key, now)
	if already {
		coalescedWaitersTotal.Inc()
		c.logger.Debug().
			Str("session_id", sessionID).
			Stringer("fingerprint", key).
			Msg("Coalesced into in-flight call")

		text, err := ticket.Wait(ctx)
		if err != nil {
			return Result{}, err
		}
		c.sessions.SetDescription(sessionID, text, time.Now())
		return Result{Status: StatusCoalesced, Description: text, Fingerprint: key, Distance: dist}, nil
	}

	if joined {
		// The pending cycle resolved between lookup and BeginPending and
		// this caller was elected leader instead. The throttle it skipped
		// applies after all: a denied session backs out of the cycle
		// rather than lead a call inside its interval.
		if !c.sessions.AllowCall(sessionID, c.config.MinCallInterval, now) {
			c.entries.Withdraw(ticket, ErrThrottled)
			throttledTotal.Inc()
			if desc, ok := c.sessions.Description(sessionID); ok {
				return Result{Status: StatusThrottled, Description: desc, Fingerprint: key, Distance: dist}, nil
			}
			return Result{}, ErrThrottled
		}
	}

	return c.lead(ctx, sessionID, ticket, dist, frame)
}

// lead performs the upstream call for the cycle and resolves the ticket.
// The leader's own disconnect must not strand the waiters, so the call
// itself is detached from the caller's cancellation.
func (c *Controller) lead(ctx context.Context, sessionID string, ticket *store.Ticket, dist int, frame []byte) (Result, error) {
	callCtx := context.WithoutCancel(ctx)
	start := time.Now()

	text, err := callWithRetry(callCtx, c.logger, c.config.Retry, "describe", func(ctx context.Context) (string, error) {
		return c.model.Describe(ctx, frame)
	})
	upstreamDuration.WithLabelValues("describe").Observe(time.Since(start).Seconds())

	if err != nil {
		upstreamCallsTotal.WithLabelValues("describe", "error").Inc()
		c.entries.Fail(ticket, err, time.Now())
		c.logger.Error().
			Str("session_id", sessionID).
			Stringer("fingerprint", ticket.Fingerprint()).
			Err(err).
			Msg("Upstream describe failed")
		return Result{}, err
	}

	upstreamCallsTotal.WithLabelValues("describe", "ok").Inc()
	now := time.Now()
	c.entries.Complete(ticket, text, now)
	c.sessions.SetDescription(sessionID, text, now)

	c.logger.Info().
		Str("session_id", sessionID).
		Stringer("fingerprint", ticket.Fingerprint()).
		Dur("duration", time.Since(start)).
		Msg("Scene described")

	return Result{Status: StatusProcessed, Description: text, Fingerprint: ticket.Fingerprint(), Distance: dist}, nil
}

// Ask answers a contextual question against the session's last scene
// description. Questions vary per call, so answers are never cached.
func (c *Controller) Ask(ctx context.Context, sessionID, question string) (string, error) {
	desc, ok := c.sessions.Description(sessionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoContext, sessionID)
	}

	start := time.Now()
	answer, err := callWithRetry(ctx, c.logger, c.config.Retry, "answer", func(ctx context.Context) (string, error) {
		return c.model.Answer(ctx, desc, question)
	})
	upstreamDuration.WithLabelValues("answer").Observe(time.Since(start).Seconds())

	if err != nil {
		upstreamCallsTotal.WithLabelValues("answer", "error").Inc()
		return "", err
	}
	upstreamCallsTotal.WithLabelValues("answer", "ok").Inc()
	return answer, nil
}

// SessionClosed releases the session's context and throttle state. Called
// by the transport when the connection goes away.
func (c *Controller) SessionClosed(sessionID string) {
	c.sessions.Remove(sessionID)
}
