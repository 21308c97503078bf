// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SPINNERS
// =============================================================================

// SpinnerConfig describes a frame animation.
type SpinnerConfig struct {
	Frames []string
	FPS    int
}

// LineSpinner is the ASCII spinner shown while a question is answered.
var LineSpinner = SpinnerConfig{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    10,
}

// DotsSpinner is shown while a document is ingested.
var DotsSpinner = SpinnerConfig{
	Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
	FPS:    6,
}

// Duration is the time each frame stays on screen.
func (s SpinnerConfig) Duration() time.Duration {
	if s.FPS <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(s.FPS)
}

// Bubbles converts the config for the bubbles spinner.
func (s SpinnerConfig) Bubbles() spinner.Spinner {
	return spinner.Spinner{Frames: s.Frames, FPS: s.Duration()}
}

// =============================================================================
// PROGRESS BAR
// =============================================================================

var (
	ProgressFull  = "#"
	ProgressEmpty = "-"
)

// RenderProgressBar draws done/total as a bar of width cells.
func RenderProgressBar(done, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat(ProgressFull, filled) + strings.Repeat(ProgressEmpty, width-filled) + "]"
}
