// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Starts the Bubble Tea chat screen.

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/ui/chat"
)

// HandleTUI runs the full-screen chat. It accepts the same document flags as
// "ragrun chat": -f/--file, --watch, --store and --max-retries.
func HandleTUI(ctx context.Context, args Args) error {
	if err := RequiresTTY("tui"); err != nil {
		return err
	}

	p := NewArgParser(args.Raw, "watch", "w")
	opts, err := parseAskOptions(p)
	if err != nil {
		return err
	}
	if opts.File == "" {
		opts.File = p.Positional(0)
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	applyAskOptions(cfg, opts)

	svc, err := OpenServices(ctx, cfg, ServiceOptions{
		Model:       args.Model,
		Verbose:     args.Verbose,
		LogFileOnly: true,
		Workflow:    true,
		Metrics:     true,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Ollama.CheckRunning(ctx); err != nil {
		return err
	}

	if opts.File != "" && opts.Watch {
		go func() {
			req := ingest.Request{Path: opts.File, Settings: svc.Controller.Settings()}
			if err := svc.Job.Watch(ctx, req, ingest.DefaultDebounce); err != nil && ctx.Err() == nil {
				svc.Logger.Warn("watch stopped", zap.String("path", opts.File), zap.Error(err))
			}
		}()
	}

	model := chat.New(ctx, chat.Options{
		Controller:  svc.Controller,
		Model:       cfg.Local.OllamaModel,
		InitialPath: opts.File,
		WordWrap:    cfg.UI.WordWrap,
		ShowElapsed: cfg.UI.ShowElapsed,
		Logger:      svc.Logger,
	})

	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	svc.Logger.Info("tui started", zap.String("model", cfg.Local.OllamaModel))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
