// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds every style of the chat screen plus the terminal size the
// layout is computed for.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Chat list pane
	Pane             lipgloss.Style
	PaneFocused      lipgloss.Style
	PaneTitle        lipgloss.Style
	FilterPrompt     lipgloss.Style
	ChatItem         lipgloss.Style
	ChatItemSelected lipgloss.Style
	ChatItemCurrent  lipgloss.Style
	ChatMeta         lipgloss.Style

	// Transcript
	HumanLabel lipgloss.Style
	AILabel    lipgloss.Style
	Question   lipgloss.Style
	FinishLine lipgloss.Style
	Failed     lipgloss.Style
	Empty      lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputFocused   lipgloss.Style
	Dialog         lipgloss.Style
	DialogTitle    lipgloss.Style

	// Progress
	Spinner  lipgloss.Style
	StepText lipgloss.Style

	// Status bar
	StatusBar      lipgloss.Style
	StatusKey      lipgloss.Style
	StatusValue    lipgloss.Style
	StatusReady    lipgloss.Style
	StatusNotReady lipgloss.Style
	StatusBusy     lipgloss.Style
	Notice         lipgloss.Style
	NoticeError    lipgloss.Style
	Help           lipgloss.Style
}

// NewTheme detects the terminal's capabilities and builds the styles.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.PaneFocused = t.Pane.
		BorderForeground(Cyan)

	t.PaneTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.FilterPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ChatItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.ChatItemSelected = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true)

	t.ChatItemCurrent = lipgloss.NewStyle().
		Foreground(Purple)

	t.ChatMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.HumanLabel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.AILabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.Question = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.FinishLine = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		PaddingLeft(2)

	t.Failed = lipgloss.NewStyle().
		Foreground(Rose).
		PaddingLeft(2)

	t.Empty = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.InputFocused = t.InputContainer.
		BorderForeground(Cyan)

	t.Dialog = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Amber).
		Padding(0, 1)

	t.DialogTitle = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.StepText = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusKey = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextMuted)

	t.StatusValue = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextPrimary)

	t.StatusReady = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(Emerald).
		Bold(true)

	t.StatusNotReady = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(Rose).
		Bold(true)

	t.StatusBusy = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(Amber).
		Bold(true)

	t.Notice = lipgloss.NewStyle().
		Foreground(Emerald)

	t.NoticeError = lipgloss.NewStyle().
		Foreground(Rose)

	t.Help = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// =============================================================================
// LAYOUT
// =============================================================================

// SetSize records the terminal size.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode is a width class of the terminal.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)

// GetLayoutMode classifies the current width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// ChatListWidth is the outer width of the chat list pane. Narrow terminals
// hide the pane unless it has focus.
func (t *Theme) ChatListWidth(focused bool) int {
	switch t.GetLayoutMode() {
	case LayoutNarrow:
		if focused {
			return t.Width
		}
		return 0
	case LayoutMedium:
		return 28
	}
	return 36
}

// Glamour standard style names for the transcript.
const (
	MarkdownDark  = "dark"
	MarkdownLight = "light"
	MarkdownNoTTY = "notty"
)
