// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/ragrun/internal/workflow"
)

// =============================================================================
// CLIPBOARD UTILITIES
// =============================================================================

// copyToClipboard copies text to the system clipboard.
func copyToClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// =============================================================================
// TEXT UTILITIES
// =============================================================================

// fitWidth truncates s to width cells and pads it with spaces to exactly
// width cells.
func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}

// formatElapsed renders d with one decimal, as in "3.2s".
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// stepLabels name the graph nodes for the progress line.
var stepLabels = map[string]string{
	workflow.NodeRouteQuestion:   "routing question",
	workflow.NodeRetrieve:        "retrieving documents",
	workflow.NodeGradeDocuments:  "grading documents",
	workflow.NodeWebsearch:       "searching the web",
	workflow.NodeGenerate:        "generating answer",
	workflow.NodeGradeGeneration: "checking answer",
}

// stepLabel describes what the graph does after step completed.
func stepLabel(step workflow.Step) string {
	label, ok := stepLabels[step.Node]
	if !ok {
		label = step.Node
	}
	if step.Decision != "" {
		label += " -> " + step.Decision
	}
	return label
}

// baseName shortens a document path for the status bar. URLs are kept.
func baseName(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return filepath.Base(path)
}
