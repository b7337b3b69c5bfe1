// Package session tracks per-session state: the most recent scene
// description (consulted by contextual questions) and the per-session
// upstream call clock used by the minimum-interval throttle.
//
// Entries are created on first use, overwritten last-write-wins on every
// new scene description, and removed when the transport signals that the
// session disconnected. Synchronization is per session: the outer lock
// only guards map membership.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Context is the last scene description produced for a session.
type Context struct {
	SessionID            string    `json:"session_id"`
	LastSceneDescription string    `json:"last_scene_description"`
	LastUpdatedAt        time.Time `json:"last_updated_at"`
}

type state struct {
	mu          sync.Mutex
	description string
	updatedAt   time.Time
	lastCallAt  time.Time
}

// Store holds the state of all active sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*state
	logger   zerolog.Logger
}

// New creates an empty session store.
func New(logger zerolog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*state),
		logger:   logger,
	}
}

// get returns the session state, creating it on first use.
func (s *Store) get(sessionID string) *state {
	s.mu.RLock()
	st, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.sessions[sessionID]; ok {
		return st
	}
	st = &state{}
	s.sessions[sessionID] = st
	s.logger.Debug().Str("session_id", sessionID).Msg("Session created")
	return st
}

// SetDescription overwrites the session's scene description, last-write-wins.
func (s *Store) SetDescription(sessionID, description string, now time.Time) {
	st := s.get(sessionID)
	st.mu.Lock()
	st.description = description
	st.updatedAt = now
	st.mu.Unlock()
}

// Description returns the session's last scene description, if any.
func (s *Store) Description(sessionID string) (string, bool) {
	s.mu.RLock()
	st, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.updatedAt.IsZero() {
		return "", false
	}
	return st.description, true
}

// Snapshot returns the session's Context, if one exists.
func (s *Store) Snapshot(sessionID string) (Context, bool) {
	s.mu.RLock()
	st, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return Context{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.updatedAt.IsZero() {
		return Context{}, false
	}
	return Context{
		SessionID:            sessionID,
		LastSceneDescription: st.description,
		LastUpdatedAt:        st.updatedAt,
	}, true
}

// AllowCall checks the session's minimum-interval throttle and, when the
// call is admitted, stamps the session's call clock in the same critical
// section. It returns false while the last admitted call for this session
// is younger than interval, bounding the upstream call rate under fast
// frame arrival.
func (s *Store) AllowCall(sessionID string, interval time.Duration, now time.Time) bool {
	st := s.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.lastCallAt.IsZero() && now.Sub(st.lastCallAt) < interval {
		return false
	}
	st.lastCallAt = now
	return true
}

// Remove destroys the session's state. Called when the transport reports
// the session disconnected.
func (s *Store) Remove(sessionID string) {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if ok {
		s.logger.Debug().Str("session_id", sessionID).Msg("Session removed")
	}
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
