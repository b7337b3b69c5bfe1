package store

import (
	"sync"
	"time"

	"github.com/visionassist/scene-cache/pkg/fingerprint"
)

// shardCount bounds lock contention: mutations on different fingerprints
// only collide when they land in the same shard.
const shardCount = 64

// Store is a bounded in-memory map from fingerprint to cache entry. All
// state lives in process memory and is rebuilt from scratch on restart.
type Store struct {
	shards [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	records map[fingerprint.Value]*record
}

// New creates an empty store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].records = make(map[fingerprint.Value]*record)
	}
	return s
}

func (s *Store) shardFor(fp fingerprint.Value) *shard {
	// Fibonacci hashing; raw average hashes cluster in the low bits.
	return &s.shards[(uint64(fp)*0x9e3779b97f4a7c15)>>58]
}

// Lookup returns a snapshot of the entry with exactly this fingerprint.
// It is read-only: recency is only updated by a confirmed use via Touch.
func (s *Store) Lookup(fp fingerprint.Value) (Entry, bool) {
	sh := s.shardFor(fp)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	rec, ok := sh.records[fp]
	if !ok {
		return Entry{}, false
	}
	return rec.snapshot(fp), true
}

// Nearest returns a snapshot of the stored entry whose fingerprint is
// closest to fp within maxDistance, preferring an exact match. The second
// return is the distance to the match. A miss increments the miss metric.
//
// The scan is linear over all entries; the janitor's entry cap keeps it
// bounded.
func (s *Store) Nearest(fp fingerprint.Value, maxDistance int) (Entry, int, bool) {
	best := Entry{}
	bestDist := maxDistance + 1

	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for key, rec := range sh.records {
			d := fingerprint.Distance(fp, key)
			if d < bestDist {
				best = rec.snapshot(key)
				bestDist = d
			}
		}
		sh.mu.RUnlock()
	}

	if bestDist > maxDistance {
		cacheMisses.Inc()
		return Entry{}, 0, false
	}
	return best, bestDist, true
}

// Touch records a confirmed cache hit: updates recency and the hit count.
// Repeated lookups never mutate the stored result.
func (s *Store) Touch(fp fingerprint.Value, now time.Time) {
	sh := s.shardFor(fp)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[fp]
	if !ok {
		return
	}
	rec.lastAccessedAt = now
	rec.hits++
	cacheHits.Inc()
}

// BeginPending atomically starts a call cycle for fp. Exactly one caller
// receives alreadyPending == false and becomes the leader obligated to
// resolve the ticket via Complete or Fail; everyone else must Wait on the
// returned ticket. A Ready or Failed entry is replaced by the new Pending
// cycle; an existing Pending cycle is joined.
func (s *Store) BeginPending(fp fingerprint.Value, now time.Time) (*Ticket, bool) {
	sh := s.shardFor(fp)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if rec, ok := sh.records[fp]; ok {
		if rec.state == StatePending {
			return rec.ticket, true
		}
		t := newTicket(fp)
		rec.state = StatePending
		rec.ticket = t
		rec.lastErr = nil
		rec.lastAccessedAt = now
		return t, false
	}

	t := newTicket(fp)
	sh.records[fp] = &record{
		state:          StatePending,
		createdAt:      now,
		lastAccessedAt: now,
		ticket:         t,
	}
	cacheEntries.Inc()
	return t, false
}

// Complete transitions the ticket's cycle to Ready, stores the result and
// releases all waiters with it.
func (s *Store) Complete(t *Ticket, result string, now time.Time) {
	sh := s.shardFor(t.fp)
	sh.mu.Lock()
	if rec, ok := sh.records[t.fp]; ok && rec.ticket == t {
		rec.result = result
		rec.state = StateReady
		rec.createdAt = now
		rec.lastAccessedAt = now
		rec.ticket = nil
		rec.lastErr = nil
	}
	sh.mu.Unlock()

	t.resolve(result, nil)
}

// Fail transitions the ticket's cycle to Failed and releases all waiters
// with the leader's error. The entry keeps the error so follow-up frames
// within the failure backoff can be answered without a new call.
func (s *Store) Fail(t *Ticket, err error, now time.Time) {
	sh := s.shardFor(t.fp)
	sh.mu.Lock()
	if rec, ok := sh.records[t.fp]; ok && rec.ticket == t {
		rec.state = StateFailed
		rec.failedAt = now
		rec.lastErr = err
		rec.ticket = nil
	}
	sh.mu.Unlock()

	t.resolve("", err)
}

// Withdraw backs out of a call cycle whose upstream call never started:
// the entry is removed and any waiters that joined meanwhile receive err.
// Used by a leader that declines the call after winning the election.
func (s *Store) Withdraw(t *Ticket, err error) {
	sh := s.shardFor(t.fp)
	sh.mu.Lock()
	if rec, ok := sh.records[t.fp]; ok && rec.ticket == t {
		delete(sh.records, t.fp)
		cacheEntries.Dec()
	}
	sh.mu.Unlock()

	t.resolve("", err)
}

// Evict removes a Ready or Failed entry. Pending entries are never evicted
// while a cycle is in flight; Evict reports whether the entry was removed.
func (s *Store) Evict(fp fingerprint.Value) bool {
	sh := s.shardFor(fp)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[fp]
	if !ok || rec.state == StatePending {
		return false
	}
	delete(sh.records, fp)
	cacheEntries.Dec()
	return true
}

// Len returns the current entry count across all states.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.records)
		sh.mu.RUnlock()
	}
	return n
}

// Snapshots returns a point-in-time copy of every entry, for the janitor's
// sweep and the stats surface. No shard lock is held across shards.
func (s *Store) Snapshots() []Entry {
	out := make([]Entry, 0, s.Len())
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for fp, rec := range sh.records {
			out = append(out, rec.snapshot(fp))
		}
		sh.mu.RUnlock()
	}
	return out
}

// Stats summarizes the store for the transport's stats endpoint.
type Stats struct {
	Entries   int   `json:"entries"`
	Ready     int   `json:"ready"`
	Pending   int   `json:"pending"`
	Failed    int   `json:"failed"`
	TotalHits int64 `json:"total_hits"`
}

// CollectStats aggregates entry counts and hit totals.
func (s *Store) CollectStats() Stats {
	var st Stats
	for _, e := range s.Snapshots() {
		st.Entries++
		st.TotalHits += e.HitCount
		switch e.State {
		case StateReady:
			st.Ready++
		case StatePending:
			st.Pending++
		case StateFailed:
			st.Failed++
		}
	}
	return st
}
