// Package config loads the engine configuration from a YAML file with
// environment variable expansion, on top of safe defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/visionassist/scene-cache/pkg/admission"
	"github.com/visionassist/scene-cache/pkg/fingerprint"
	"github.com/visionassist/scene-cache/pkg/janitor"
)

// Config holds all scene-cache configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Policy   PolicyConfig   `yaml:"policy"`
	Log      LogConfig      `yaml:"log"`
}

// UpstreamConfig defines the vision model gateway.
type UpstreamConfig struct {
	URL             string        `yaml:"url"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Temperature     float64       `yaml:"temperature"`
}

// CacheConfig controls the entry store and janitor.
type CacheConfig struct {
	MaxEntries          int           `yaml:"max_entries"`
	IdleTTL             time.Duration `yaml:"idle_ttl"`
	SimilarityThreshold int           `yaml:"similarity_threshold"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
}

// PolicyConfig controls the admission policy.
type PolicyConfig struct {
	FreshnessWindow time.Duration `yaml:"freshness_window"`
	MinCallInterval time.Duration `yaml:"min_call_interval"`
	FailureBackoff  time.Duration `yaml:"failure_backoff"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryMaxBackoff time.Duration `yaml:"retry_max_backoff"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a Config with safe defaults. The tuning values mirror a
// ~2 fps camera stream: fresh results are reused for 10 s and each session
// is limited to one upstream call every 2 s.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Upstream: UpstreamConfig{
			Model:           "gemma-3-27b-it",
			Timeout:         30 * time.Second,
			MaxOutputTokens: 2048,
			Temperature:     0.7,
		},
		Cache: CacheConfig{
			MaxEntries:          256,
			IdleTTL:             5 * time.Minute,
			SimilarityThreshold: 10,
			SweepInterval:       60 * time.Second,
		},
		Policy: PolicyConfig{
			FreshnessWindow: 10 * time.Second,
			MinCallInterval: 2 * time.Second,
			FailureBackoff:  5 * time.Second,
			RetryAttempts:   3,
			RetryBackoff:    1 * time.Second,
			RetryMaxBackoff: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults, expanding environment
// variables (e.g. api_key: ${VISION_API_KEY}) before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants beyond what the component
// configs check themselves.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream url is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive (got %v)", c.Upstream.Timeout)
	}
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > fingerprint.MaxDistance {
		return fmt.Errorf("similarity threshold must be in [0,%d] (got %d)", fingerprint.MaxDistance, c.Cache.SimilarityThreshold)
	}
	if err := c.PolicyConfig().Validate(); err != nil {
		return err
	}
	if err := c.JanitorConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// PolicyConfig converts to the admission controller's configuration.
func (c *Config) PolicyConfig() admission.Config {
	return admission.Config{
		FreshnessWindow: c.Policy.FreshnessWindow,
		MinCallInterval: c.Policy.MinCallInterval,
		FailureBackoff:  c.Policy.FailureBackoff,
		Retry: admission.RetryConfig{
			MaxAttempts:       c.Policy.RetryAttempts,
			InitialBackoff:    c.Policy.RetryBackoff,
			MaxBackoff:        c.Policy.RetryMaxBackoff,
			BackoffMultiplier: 2.0,
		},
	}
}

// JanitorConfig converts to the janitor's configuration.
func (c *Config) JanitorConfig() janitor.Config {
	return janitor.Config{
		Interval:   c.Cache.SweepInterval,
		IdleTTL:    c.Cache.IdleTTL,
		MaxEntries: c.Cache.MaxEntries,
	}
}
