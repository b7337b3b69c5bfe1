package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/visionassist/scene-cache/pkg/admission"
	"github.com/visionassist/scene-cache/pkg/fingerprint"
	"github.com/visionassist/scene-cache/pkg/session"
	"github.com/visionassist/scene-cache/pkg/store"
	"github.com/visionassist/scene-cache/pkg/vision"
)

// maxFrameBytes bounds frame uploads; larger payloads are rejected before
// decoding.
const maxFrameBytes = 8 << 20

type server struct {
	controller *admission.Controller
	entries    *store.Store
	sessions   *session.Store
	logger     zerolog.Logger
}

func newServer(controller *admission.Controller, entries *store.Store, sessions *session.Store, logger zerolog.Logger) *server {
	return &server{
		controller: controller,
		entries:    entries,
		sessions:   sessions,
		logger:     logger.With().Str("component", "http").Logger(),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/frames", s.handleSubmitFrame)
	mux.HandleFunc("POST /v1/questions", s.handleAskQuestion)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleSessionContext)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleSessionClosed)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

type frameResponse struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Fingerprint string `json:"fingerprint"`
	Distance    int    `json:"distance"`
}

// handleSubmitFrame accepts a raw encoded frame as the request body. The
// session is identified by the X-Session-ID header; a missing header mints
// a new session id, returned in the response. ?force=1 refreshes the
// description even when a fresh cached one exists.
func (s *server) handleSubmitFrame(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	frame, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read frame body")
		return
	}
	if len(frame) > maxFrameBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}

	force := r.URL.Query().Get("force") == "1" || r.URL.Query().Get("force") == "true"

	result, err := s.controller.SubmitFrame(r.Context(), sessionID, frame, force)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, frameResponse{
		SessionID:   sessionID,
		Status:      string(result.Status),
		Description: result.Description,
		Fingerprint: result.Fingerprint.String(),
		Distance:    result.Distance,
	})
}

type questionRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type questionResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

func (s *server) handleAskQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || req.Question == "" {
		s.writeError(w, http.StatusBadRequest, "session_id and question are required")
		return
	}

	answer, err := s.controller.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, questionResponse{
		SessionID: req.SessionID,
		Answer:    answer,
	})
}

// handleSessionContext reports the session's last scene description and
// when it was produced.
func (s *server) handleSessionContext(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.sessions.Snapshot(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "no context for session")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *server) handleSessionClosed(w http.ResponseWriter, r *http.Request) {
	s.controller.SessionClosed(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

type statsResponse struct {
	Cache    store.Stats `json:"cache"`
	Sessions int         `json:"sessions"`
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statsResponse{
		Cache:    s.entries.CollectStats(),
		Sessions: s.sessions.Len(),
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// writeEngineError maps engine errors onto HTTP statuses.
func (s *server) writeEngineError(w http.ResponseWriter, err error) {
	var ue *vision.UpstreamError

	switch {
	case errors.Is(err, fingerprint.ErrInvalidFrame):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, admission.ErrNoContext):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, admission.ErrThrottled):
		s.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &ue), errors.Is(err, admission.ErrRetryExhausted):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Unclassified engine error")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
