// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// =============================================================================
// FILE WATCHER
// =============================================================================

// DefaultDebounce is how long a file must stay quiet before a change fires.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes to a single source file. The parent directory is
// watched so editors that replace the file on save are still seen.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending time.Time
}

// NewWatcher starts watching path. Events are only delivered once Run is
// called.
func NewWatcher(path string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     filepath.Clean(abs),
		watcher:  fw,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Run calls onChange after each debounced write or create of the file and
// returns when ctx is done.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) error {
	defer w.watcher.Close()

	ticker := time.NewTicker(w.debounce / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.String("path", w.path), zap.Error(err))

		case now := <-ticker.C:
			w.mu.Lock()
			fire := !w.pending.IsZero() && now.Sub(w.pending) >= w.debounce
			if fire {
				w.pending = time.Time{}
			}
			w.mu.Unlock()

			if fire {
				w.logger.Info("source changed", zap.String("path", w.path))
				onChange(w.path)
			}
		}
	}
}

// Watch re-ingests req whenever its source file changes, until ctx is done.
func (j *Job) Watch(ctx context.Context, req Request, debounce time.Duration) error {
	w, err := NewWatcher(req.Path, debounce, j.logger)
	if err != nil {
		return err
	}
	return w.Run(ctx, func(string) {
		j.Start(ctx, req)
	})
}
