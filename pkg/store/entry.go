package store

import (
	"time"

	"github.com/visionassist/scene-cache/pkg/fingerprint"
)

// State is the lifecycle state of a cache entry.
type State string

const (
	// StatePending means an upstream call is in flight and waiters may be
	// queued on the entry's ticket.
	StatePending State = "pending"

	// StateReady means a result is available.
	StateReady State = "ready"

	// StateFailed means the last call cycle errored; the entry is eligible
	// for a fresh attempt once the caller's backoff has elapsed.
	StateFailed State = "failed"
)

// Entry is a point-in-time view of a cache entry. The store owns the live
// record; callers only ever see copies.
type Entry struct {
	// Fingerprint is the entry's cache key.
	Fingerprint fingerprint.Value

	// Result is the scene description (Ready entries only).
	Result string

	// State is the entry's lifecycle state.
	State State

	// CreatedAt is when the current result was produced. Freshness is
	// measured against this timestamp.
	CreatedAt time.Time

	// LastAccessedAt is the last confirmed use. Idle eviction is measured
	// against this timestamp.
	LastAccessedAt time.Time

	// HitCount is the number of confirmed cache hits across call cycles.
	HitCount int64

	// FailedAt is when the last call cycle failed (Failed entries only).
	FailedAt time.Time

	// LastErr is the terminal error of the last call cycle (Failed entries
	// only).
	LastErr error
}

// Fresh reports whether the entry holds a result younger than the window.
func (e Entry) Fresh(window time.Duration, now time.Time) bool {
	return e.State == StateReady && now.Sub(e.CreatedAt) < window
}

// IdleFor returns how long the entry has gone without a confirmed use.
func (e Entry) IdleFor(now time.Time) time.Duration {
	return now.Sub(e.LastAccessedAt)
}

// record is the live, store-owned representation of an entry.
type record struct {
	result         string
	state          State
	createdAt      time.Time
	lastAccessedAt time.Time
	hits           int64
	failedAt       time.Time
	lastErr        error

	// ticket is non-nil only while state is StatePending.
	ticket *Ticket
}

func (r *record) snapshot(fp fingerprint.Value) Entry {
	return Entry{
		Fingerprint:    fp,
		Result:         r.result,
		State:          r.state,
		CreatedAt:      r.createdAt,
		LastAccessedAt: r.lastAccessedAt,
		HitCount:       r.hits,
		FailedAt:       r.failedAt,
		LastErr:        r.lastErr,
	}
}
