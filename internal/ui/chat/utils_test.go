// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/ragrun/internal/workflow"
)

func TestFitWidth(t *testing.T) {
	tests := []struct {
		in    string
		width int
	}{
		{"short", 10},
		{"exactly ten", 11},
		{"a much longer chat title", 10},
		{"日本語のタイトルです", 9},
		{"line\nbreak", 12},
	}
	for _, tt := range tests {
		got := fitWidth(tt.in, tt.width)
		if w := runewidth.StringWidth(got); w != tt.width {
			t.Errorf("fitWidth(%q, %d) = %q has width %d", tt.in, tt.width, got, w)
		}
		if strings.Contains(got, "\n") {
			t.Errorf("fitWidth(%q) kept a newline", tt.in)
		}
	}
	if got := fitWidth("x", 0); got != "" {
		t.Errorf("fitWidth(x, 0) = %q, want empty", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0.0s"},
		{1500 * time.Millisecond, "1.5s"},
		{59 * time.Second, "59.0s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.in); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStepLabel(t *testing.T) {
	tests := []struct {
		step workflow.Step
		want string
	}{
		{workflow.Step{Node: workflow.NodeRetrieve}, "retrieving documents"},
		{workflow.Step{Node: workflow.NodeGradeGeneration, Decision: "useful"}, "checking answer -> useful"},
		{workflow.Step{Node: "custom"}, "custom"},
	}
	for _, tt := range tests {
		if got := stepLabel(tt.step); got != tt.want {
			t.Errorf("stepLabel(%+v) = %q, want %q", tt.step, got, tt.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	if got := baseName("/home/me/docs/report.pdf"); got != "report.pdf" {
		t.Errorf("baseName(path) = %q", got)
	}
	if got := baseName("https://example.com/page"); got != "https://example.com/page" {
		t.Errorf("baseName(url) = %q", got)
	}
}

func TestHelpLine(t *testing.T) {
	keys := DefaultKeyMap()
	line := HelpLine(keys.ShortHelp())
	for _, want := range []string{"enter ask", "ctrl+s stop", "ctrl+y copy", "tab focus", "ctrl+c quit"} {
		if !strings.Contains(line, want) {
			t.Errorf("HelpLine() = %q, missing %q", line, want)
		}
	}

	keys.Copy.SetEnabled(false)
	if strings.Contains(HelpLine(keys.ShortHelp()), "copy") {
		t.Error("disabled bindings should be left out")
	}
}
