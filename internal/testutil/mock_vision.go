// Package testutil provides testing utilities for the scene cache engine.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Outcome scripts one model call: either Text or Err is delivered.
type Outcome struct {
	Text string
	Err  error
}

// ScriptedModel is an in-memory vision model for tests. Describe consumes
// scripted outcomes in order (the last one repeats); Answer echoes the
// question against the supplied context unless overridden.
type ScriptedModel struct {
	mu sync.Mutex

	// DescribeOutcomes are consumed in order by Describe calls.
	DescribeOutcomes []Outcome

	// AnswerOutcome, when set, is returned by every Answer call.
	AnswerOutcome *Outcome

	// Delay is applied to every call before responding, honoring ctx.
	Delay time.Duration

	// Gate, when non-nil, blocks Describe until the channel is closed.
	// Used to hold a leader call open while waiters pile up.
	Gate chan struct{}

	describeCalls int
	answerCalls   int
	lastContext   string
	lastQuestion  string
}

// Describe implements vision.Client.
func (m *ScriptedModel) Describe(ctx context.Context, frame []byte) (string, error) {
	m.mu.Lock()
	idx := m.describeCalls
	m.describeCalls++
	gate := m.Gate
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return "", err
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.DescribeOutcomes) == 0 {
		return fmt.Sprintf("scene %d", idx), nil
	}
	if idx >= len(m.DescribeOutcomes) {
		idx = len(m.DescribeOutcomes) - 1
	}
	out := m.DescribeOutcomes[idx]
	return out.Text, out.Err
}

// Answer implements vision.Client.
func (m *ScriptedModel) Answer(ctx context.Context, sceneContext, question string) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.answerCalls++
	m.lastContext = sceneContext
	m.lastQuestion = question
	if m.AnswerOutcome != nil {
		return m.AnswerOutcome.Text, m.AnswerOutcome.Err
	}
	return fmt.Sprintf("about %q: %s", question, sceneContext), nil
}

func (m *ScriptedModel) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.Delay):
		return nil
	}
}

// DescribeCalls returns how many Describe calls were made.
func (m *ScriptedModel) DescribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.describeCalls
}

// AnswerCalls returns how many Answer calls were made.
func (m *ScriptedModel) AnswerCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answerCalls
}

// LastAnswerInput returns the context and question of the last Answer call.
func (m *ScriptedModel) LastAnswerInput() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastContext, m.lastQuestion
}

// MockGatewayResponse defines the behavior of one mock gateway endpoint.
type MockGatewayResponse struct {
	StatusCode int
	Text       string
	ErrorText  string
	Delay      time.Duration
}

// MockGateway is a configurable mock vision gateway HTTP server.
type MockGateway struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]MockGatewayResponse

	// RequestCount tracks total requests across endpoints.
	RequestCount int
}

// NewMockGateway creates a mock gateway returning 200 with a canned text
// for /v1/describe and /v1/answer until scripted otherwise.
func NewMockGateway() *MockGateway {
	g := &MockGateway{
		responses: make(map[string]MockGatewayResponse),
	}

	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.RequestCount++
		resp, scripted := g.responses[r.URL.Path]
		g.mu.Unlock()

		if !scripted {
			resp = MockGatewayResponse{StatusCode: http.StatusOK, Text: "a person at a desk"}
		}
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"text":  resp.Text,
			"error": resp.ErrorText,
		})
	}))

	return g
}

// URL returns the gateway's base URL.
func (g *MockGateway) URL() string {
	return g.server.URL
}

// Script sets the response for an endpoint path.
func (g *MockGateway) Script(path string, resp MockGatewayResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[path] = resp
}

// Requests returns the total request count.
func (g *MockGateway) Requests() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.RequestCount
}

// Close shuts the server down.
func (g *MockGateway) Close() {
	g.server.Close()
}
