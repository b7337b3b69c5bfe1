// scene-proxy serves a camera-frame description API backed by the frame
// cache and call-reduction engine. Transport wiring only; all policy lives
// in the engine packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/visionassist/scene-cache/pkg/admission"
	"github.com/visionassist/scene-cache/pkg/config"
	"github.com/visionassist/scene-cache/pkg/fingerprint"
	"github.com/visionassist/scene-cache/pkg/janitor"
	"github.com/visionassist/scene-cache/pkg/logging"
	"github.com/visionassist/scene-cache/pkg/session"
	"github.com/visionassist/scene-cache/pkg/store"
	"github.com/visionassist/scene-cache/pkg/vision"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var listen string

	cmd := &cobra.Command{
		Use:     "scene-proxy",
		Short:   "Camera scene description proxy with frame caching and call reduction",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, listen)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")

	return cmd
}

func run(configPath, listen string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	engine, err := fingerprint.New(cfg.Cache.SimilarityThreshold)
	if err != nil {
		return err
	}

	model, err := vision.NewHTTPClient(vision.Config{
		BaseURL:         cfg.Upstream.URL,
		APIKey:          cfg.Upstream.APIKey,
		Model:           cfg.Upstream.Model,
		Timeout:         cfg.Upstream.Timeout,
		MaxOutputTokens: cfg.Upstream.MaxOutputTokens,
		Temperature:     cfg.Upstream.Temperature,
	}, logger)
	if err != nil {
		return err
	}

	entries := store.New()
	sessions := session.New(logging.NewLogger("session"))

	controller, err := admission.New(engine, entries, sessions, model, cfg.PolicyConfig(), logger)
	if err != nil {
		return err
	}

	sweeper, err := janitor.New(entries, cfg.JanitorConfig(), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)

	srv := newServer(controller, entries, sessions, logger)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	logger.Info().
		Str("listen", cfg.Listen).
		Str("upstream", cfg.Upstream.URL).
		Str("version", version).
		Msg("scene-proxy started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// loadConfig reads the config file when given one, otherwise falls back to
// defaults plus environment variables for the two required upstream values.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	cfg := config.Default()
	cfg.Upstream.URL = os.Getenv("VISION_URL")
	cfg.Upstream.APIKey = os.Getenv("VISION_API_KEY")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
