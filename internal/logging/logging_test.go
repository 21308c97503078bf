// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/ragrun/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_FileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ragrun.log")

	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", File: path}, Options{FileOnly: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("ingest finished", zap.Int("chunks", 12))
	logger.Debug("not written")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"chunks":12`) {
		t.Errorf("log output missing field: %s", out)
	}
	if strings.Contains(out, "not written") {
		t.Errorf("debug line written at info level: %s", out)
	}
}

func TestNew_FileOnlyWithoutFileIsNop(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "console"}, Options{FileOnly: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("expected a no-op logger")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
}
