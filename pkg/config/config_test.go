package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene-cache.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Policy.FreshnessWindow < cfg.Policy.MinCallInterval {
		t.Error("default freshness window below min call interval")
	}
	if err := cfg.PolicyConfig().Validate(); err != nil {
		t.Errorf("default policy config invalid: %v", err)
	}
	if err := cfg.JanitorConfig().Validate(); err != nil {
		t.Errorf("default janitor config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
upstream:
  url: "https://vision.example.com"
  api_key: "secret"
  timeout: 10s
cache:
  max_entries: 64
  idle_ttl: 2m
  similarity_threshold: 6
policy:
  freshness_window: 5s
  min_call_interval: 2s
  retry_attempts: 2
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Upstream.Timeout != 10*time.Second {
		t.Errorf("Upstream.Timeout = %v", cfg.Upstream.Timeout)
	}
	if cfg.Cache.MaxEntries != 64 || cfg.Cache.IdleTTL != 2*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Policy.FreshnessWindow != 5*time.Second || cfg.Policy.RetryAttempts != 2 {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
	// Unset fields keep their defaults.
	if cfg.Policy.RetryBackoff != time.Second {
		t.Errorf("RetryBackoff lost its default: %v", cfg.Policy.RetryBackoff)
	}
	if cfg.Upstream.Model == "" {
		t.Error("Model lost its default")
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_VISION_KEY", "from-env")

	path := writeConfig(t, `
upstream:
  url: "https://vision.example.com"
  api_key: ${TEST_VISION_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Upstream.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want env expansion", cfg.Upstream.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "listen: [not: valid")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Upstream.URL = "https://vision.example.com"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing url", func(c *Config) { c.Upstream.URL = "" }, "upstream url"},
		{"empty listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"bad threshold", func(c *Config) { c.Cache.SimilarityThreshold = 65 }, "similarity threshold"},
		{"freshness below interval", func(c *Config) { c.Policy.FreshnessWindow = time.Second }, "freshness window"},
		{"zero upstream timeout", func(c *Config) { c.Upstream.Timeout = 0 }, "upstream timeout"},
		{"zero max entries", func(c *Config) { c.Cache.MaxEntries = 0 }, "max entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}
