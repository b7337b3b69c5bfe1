// Package vision wraps the external vision-and-chat model behind a narrow
// capability: describe a frame, or answer a question about the last known
// scene. Calls may take hundreds of milliseconds to seconds and may fail
// or rate-limit; callers own retry policy.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client is the upstream model capability consumed by the admission
// controller. Implementations must honor ctx cancellation and deadlines.
type Client interface {
	// Describe produces a scene description for an encoded frame.
	Describe(ctx context.Context, frame []byte) (string, error)

	// Answer answers a question against a prior scene description.
	Answer(ctx context.Context, sceneContext, question string) (string, error)
}

// Config holds the HTTP model client configuration.
type Config struct {
	// BaseURL of the model gateway, e.g. "https://vision.example.com".
	BaseURL string

	// APIKey sent as a bearer token.
	APIKey string

	// Model is the upstream model identifier.
	Model string

	// Timeout is the per-call deadline. A call exceeding it fails with a
	// retryable timeout error.
	Timeout time.Duration

	// MaxOutputTokens caps the generated description/answer length.
	MaxOutputTokens int

	// Temperature controls generation randomness.
	Temperature float64
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:         baseURL,
		APIKey:          apiKey,
		Model:           "gemma-3-27b-it",
		Timeout:         30 * time.Second,
		MaxOutputTokens: 2048,
		Temperature:     0.7,
	}
}

// HTTPClient calls a JSON vision gateway. It implements Client.
type HTTPClient struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// NewHTTPClient creates an HTTP model client.
func NewHTTPClient(cfg Config, logger zerolog.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %v)", cfg.Timeout)
	}
	return &HTTPClient{
		httpClient: &http.Client{},
		config:     cfg,
		logger:     logger.With().Str("component", "vision-client").Logger(),
	}, nil
}

type generateRequest struct {
	Model           string  `json:"model"`
	Prompt          string  `json:"prompt"`
	Image           string  `json:"image,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	Temperature     float64 `json:"temperature"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Describe produces a scene description for an encoded frame.
func (c *HTTPClient) Describe(ctx context.Context, frame []byte) (string, error) {
	req := generateRequest{
		Model:           c.config.Model,
		Prompt:          describePrompt,
		Image:           base64.StdEncoding.EncodeToString(frame),
		MaxOutputTokens: c.config.MaxOutputTokens,
		Temperature:     c.config.Temperature,
	}
	return c.generate(ctx, "describe", "/v1/describe", req)
}

// Answer answers a question against a prior scene description.
func (c *HTTPClient) Answer(ctx context.Context, sceneContext, question string) (string, error) {
	req := generateRequest{
		Model:           c.config.Model,
		Prompt:          answerPrompt(sceneContext, question),
		MaxOutputTokens: c.config.MaxOutputTokens,
		Temperature:     c.config.Temperature,
	}
	return c.generate(ctx, "answer", "/v1/answer", req)
}

func (c *HTTPClient) generate(ctx context.Context, op, path string, payload generateRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s request: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			c.logger.Warn().Str("operation", op).Dur("elapsed", time.Since(start)).Msg("Model call timed out")
			return "", &UpstreamError{Operation: op, Timeout: true, Err: err}
		}
		return "", &UpstreamError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &UpstreamError{Operation: op, Err: err}
	}

	var out generateResponse
	if resp.StatusCode != http.StatusOK {
		_ = json.Unmarshal(respBody, &out)
		c.logger.Warn().
			Str("operation", op).
			Int("status", resp.StatusCode).
			Msg("Model call failed")
		return "", &UpstreamError{
			StatusCode: resp.StatusCode,
			Operation:  op,
			Message:    firstNonEmpty(out.Error, resp.Status),
		}
	}

	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &UpstreamError{Operation: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Text == "" {
		return "", &UpstreamError{Operation: op, Err: errors.New("empty model response")}
	}

	c.logger.Debug().
		Str("operation", op).
		Dur("duration", time.Since(start)).
		Msg("Model call succeeded")

	return out.Text, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *HTTPClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
