// Package janitor reclaims memory from the entry store on a timer: idle
// entries past their TTL are evicted, and when the store still exceeds its
// cap the least recently used entries go next. The sweep is advisory
// cleanup only; correctness never depends on its timing, only the memory
// bound does. Pending entries are never touched.
package janitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/visionassist/scene-cache/pkg/store"
)

// Config holds the janitor configuration.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration

	// IdleTTL evicts entries whose last confirmed use is older than this.
	IdleTTL time.Duration

	// MaxEntries is the entry cap enforced by LRU eviction after the idle
	// pass.
	MaxEntries int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Interval:   60 * time.Second,
		IdleTTL:    300 * time.Second,
		MaxEntries: 256,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive (got %v)", c.Interval)
	}
	if c.IdleTTL <= 0 {
		return fmt.Errorf("idle TTL must be positive (got %v)", c.IdleTTL)
	}
	if c.MaxEntries < 1 {
		return fmt.Errorf("max entries must be >= 1 (got %d)", c.MaxEntries)
	}
	return nil
}

// Janitor periodically trims the entry store. It shares no lock scope with
// the request path beyond the store's brief per-shard critical sections.
type Janitor struct {
	entries *store.Store
	config  Config
	logger  zerolog.Logger
}

// New creates a janitor for the given store.
func New(entries *store.Store, cfg Config, logger zerolog.Logger) (*Janitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Janitor{
		entries: entries,
		config:  cfg,
		logger:  logger.With().Str("component", "janitor").Logger(),
	}, nil
}

// Run sweeps the store every interval until ctx is cancelled. It is meant
// to run in its own goroutine for the lifetime of the process.
func (j *Janitor) Run(ctx context.Context) {
	j.logger.Info().
		Dur("interval", j.config.Interval).
		Dur("idle_ttl", j.config.IdleTTL).
		Int("max_entries", j.config.MaxEntries).
		Msg("Janitor started")

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("Janitor stopped")
			return
		case <-ticker.C:
			j.sweep(time.Now())
		}
	}
}

// sweep runs one cleanup pass: idle eviction first, then LRU down to the
// entry cap. Returns the number of evicted entries.
func (j *Janitor) sweep(now time.Time) int {
	snapshots := j.entries.Snapshots()
	evicted := 0

	survivors := snapshots[:0]
	for _, e := range snapshots {
		if e.State == store.StatePending {
			continue
		}
		if e.IdleFor(now) > j.config.IdleTTL {
			if j.entries.Evict(e.Fingerprint) {
				evictionsTotal.WithLabelValues("idle").Inc()
				evicted++
				continue
			}
		}
		survivors = append(survivors, e)
	}

	// LRU pass: oldest confirmed use goes first. Pending entries were
	// filtered above and still count against the cap, so the store may
	// briefly exceed it while calls are in flight.
	if excess := j.entries.Len() - j.config.MaxEntries; excess > 0 {
		sort.Slice(survivors, func(a, b int) bool {
			return survivors[a].LastAccessedAt.Before(survivors[b].LastAccessedAt)
		})
		for _, e := range survivors {
			if excess <= 0 {
				break
			}
			if j.entries.Evict(e.Fingerprint) {
				evictionsTotal.WithLabelValues("capacity").Inc()
				evicted++
				excess--
			}
		}
	}

	if evicted > 0 {
		j.logger.Debug().
			Int("evicted", evicted).
			Int("remaining", j.entries.Len()).
			Msg("Sweep complete")
	}
	return evicted
}
