// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared lipgloss styles for command output.
//
// Colors are disabled when stdout is not a terminal or NO_COLOR is set.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	// SectionStyle is used for section headers
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			MarginTop(1)

	// LabelStyle is used for left-aligned field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(18)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// PromptStyle is used for the chat prompt
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	// StepStyle is used for workflow progress lines
	StepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("105"))
)

// =============================================================================
// RENDER HELPERS
// =============================================================================

// RenderSeparator renders a horizontal rule. The width defaults to the
// terminal width capped at 60.
func RenderSeparator(width ...int) string {
	w := GetTerminalWidth()
	if w > 60 {
		w = 60
	}
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	sep := "─"
	if GetColorProfile() == termenv.Ascii {
		sep = "-"
	}
	return SeparatorStyle.Render(strings.Repeat(sep, w))
}

// RenderLabel renders "label:" padded to the label column.
func RenderLabel(label string) string {
	return LabelStyle.Render(label + ":")
}

// RenderField renders one "label: value" line.
func RenderField(label, value string) string {
	return RenderLabel(label) + " " + ValueStyle.Render(value)
}

// RenderStatus renders a status word in the matching color.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "ready", "useful", "stop", "running", "installed":
		return SuccessStyle.Render(status)
	case "error", "failed", "not running", "missing", "not supported":
		return ErrorStyle.Render(status)
	case "force stop", "max retries", "pending", "not useful":
		return WarningStyle.Render(status)
	default:
		return DimStyle.Render(status)
	}
}
