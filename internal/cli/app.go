// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Service wiring shared by the TUI and the commands.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/config"
	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/logging"
	"github.com/jeranaias/ragrun/internal/metrics"
	"github.com/jeranaias/ragrun/internal/ollama"
	"github.com/jeranaias/ragrun/internal/prompts"
	"github.com/jeranaias/ragrun/internal/session"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/websearch"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// =============================================================================
// CONFIG
// =============================================================================

// LoadConfig loads the configuration. A config file that fails to decode is
// reported on stderr and the defaults are used.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if cfg == nil {
		return nil, err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", WarningStyle.Render("[WARN]"), err)
	}
	return cfg, nil
}

// =============================================================================
// SERVICES
// =============================================================================

// ServiceOptions select what OpenServices builds.
type ServiceOptions struct {
	// Model overrides the configured chat model.
	Model string

	// Verbose enables debug logging.
	Verbose bool

	// LogFileOnly keeps logs off the terminal. Used by the TUI.
	LogFileOnly bool

	// Storage opens the chat database.
	Storage bool

	// Workflow builds the LLM stack, ingestion and the session controller.
	// It implies Storage.
	Workflow bool

	// Metrics starts the Prometheus endpoint when enabled in the config.
	Metrics bool
}

// Services holds everything a command needs. Fields not requested through
// ServiceOptions are nil.
type Services struct {
	Config  *config.Config
	Logger  *zap.Logger
	Ollama  *ollama.Client
	Metrics *metrics.Recorder

	DB         *storage.DB
	Workflow   *workflow.Workflow
	Pipeline   *ingest.Pipeline
	Job        *ingest.Job
	Runner     *session.Runner
	Controller *session.Controller

	cancel context.CancelFunc
}

// OpenServices wires the services selected by opts.
func OpenServices(ctx context.Context, cfg *config.Config, opts ServiceOptions) (*Services, error) {
	if opts.Model != "" {
		cfg.Local.OllamaModel = opts.Model
	}

	logCfg := cfg.Logging
	if !opts.Verbose && !opts.LogFileOnly && logCfg.File == "" {
		logCfg.Level = "warn"
	}
	logger, err := logging.New(logCfg, logging.Options{FileOnly: opts.LogFileOnly, Verbose: opts.Verbose})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Services{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Ollama: ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:      cfg.Local.OllamaURL,
			Timeout:      time.Duration(cfg.Local.RequestTimeoutSecs) * time.Second,
			DefaultModel: cfg.Local.OllamaModel,
			MaxRetries:   2,
		}),
		cancel: cancel,
	}

	if opts.Metrics && cfg.Metrics.Enabled {
		go func() {
			if err := s.Metrics.Serve(ctx, cfg.Metrics.ListenAddr, logger); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	if opts.Storage || opts.Workflow {
		db, err := storage.Open(ctx, cfg.Storage.DatabasePath, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.DB = db
	}

	if opts.Workflow {
		if err := s.buildWorkflow(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Services) buildWorkflow(ctx context.Context) error {
	cfg := s.Config

	set, err := prompts.Default().Merge(cfg.Prompts.Overrides())
	if err != nil {
		return fmt.Errorf("invalid prompt override: %w", err)
	}

	searcher, err := websearch.New(cfg.WebSearch, s.Metrics.ObserveWebSearch, s.Logger)
	if err != nil {
		return err
	}

	wf, err := workflow.New(ctx, workflow.Config{
		Model:            cfg.Local.OllamaModel,
		Temperature:      cfg.Local.Temperature,
		NumCtx:           cfg.Local.NumCtx,
		MaxRetries:       cfg.Workflow.MaxRetries,
		SearchResults:    cfg.WebSearch.SearchResults,
		GradeConcurrency: cfg.Workflow.GradeConcurrency,
		MaxRunSteps:      cfg.Workflow.MaxRunSteps,
		Prompts:          set,
	}, workflow.Deps{
		LLM:      s.Ollama,
		Searcher: searcher,
		Logger:   s.Logger,
	})
	if err != nil {
		return err
	}
	s.Workflow = wf

	s.Pipeline = ingest.NewPipeline(ingest.Deps{
		Embeddings: s.Ollama,
		Metrics:    s.Metrics,
		Logger:     s.Logger,
	})
	s.Job = ingest.NewJob(s.Pipeline, s.Logger)
	s.Runner = session.NewRunner(wf, s.Metrics, s.Logger)
	s.Controller = session.NewController(session.Options{
		Store:      s.DB,
		Runner:     s.Runner,
		Ingest:     s.Job,
		Settings:   ingest.SettingsFrom(cfg.Documents),
		MaxRetries: cfg.Workflow.MaxRetries,
		Logger:     s.Logger,
	})
	return nil
}

// Settings returns the ingestion settings from the config.
func (s *Services) Settings() ingest.Settings {
	return ingest.SettingsFrom(s.Config.Documents)
}

// Close stops background work and closes the database.
func (s *Services) Close() error {
	if s.Runner != nil {
		s.Runner.Stop()
		s.Runner.Wait()
	}
	if s.Job != nil {
		s.Job.Cancel()
		s.Job.Wait()
	}
	if s.cancel != nil {
		s.cancel()
	}
	var errs []error
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	if s.Logger != nil {
		if err := s.Logger.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
			s.Logger.Debug("logger sync", zap.Error(err))
		}
	}
	return errors.Join(errs...)
}
