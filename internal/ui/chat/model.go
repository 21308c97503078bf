// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/session"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Controller is the part of session.Controller the UI drives.
type Controller interface {
	Events() <-chan session.Event
	IngestEvents() <-chan ingest.Event
	CurrentChat() int64
	Settings() ingest.Settings
	Ready() bool
	Index() *ingest.Result
	Busy() bool
	Submit(ctx context.Context, question string) (int64, error)
	Stop()
	NewChat(ctx context.Context) (*storage.Chat, error)
	SelectChat(ctx context.Context, id int64) ([]storage.Detail, error)
	RenameChat(ctx context.Context, id int64, title string) error
	DeleteChat(ctx context.Context, id int64) error
	FilterChats(ctx context.Context, filter string) ([]storage.Chat, error)
	Ingest(ctx context.Context, path string)
}

var _ Controller = (*session.Controller)(nil)

// Options configure the chat screen.
type Options struct {
	Controller Controller

	// Model is the generation model shown in the status bar.
	Model string

	// InitialPath, if set, is ingested when the screen starts.
	InitialPath string

	// WordWrap caps the transcript width; 0 uses the viewport width.
	WordWrap int

	// ShowElapsed adds the finish line under every answer.
	ShowElapsed bool

	Logger *zap.Logger
}

// =============================================================================
// STATE
// =============================================================================

// Focus is the pane receiving keys.
type Focus int

const (
	FocusInput Focus = iota
	FocusList
)

// Mode is the dialog shown in place of the input, if any.
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
	ModeRename
	ModeIngest
	ModeConfirmDelete
)

// runState tracks the question being answered.
type runState struct {
	chatID   int64
	question string
	step     string
	answer   string
	started  time.Time
}

// ingestState tracks the document being ingested.
type ingestState struct {
	path  string
	stage ingest.Stage
	done  int
	total int
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	opts   Options
	keys   KeyMap
	theme  *styles.Theme
	logger *zap.Logger

	width  int
	height int

	focus Focus
	mode  Mode

	// Chat list
	chats  []storage.Chat
	cursor int
	filter textinput.Model

	// Selected chat
	currentID int64
	details   []storage.Detail

	// Widgets
	viewport viewport.Model
	input    textarea.Model
	dialog   textinput.Model
	spinner  spinner.Model

	// The question being answered and the document being ingested
	run       *runState
	ingesting *ingestState

	notice      string
	noticeError bool
	noticeSeq   int

	// render turns markdown into terminal text for a wrap width.
	render    func(md string, width int) string
	renderers map[int]*glamour.TermRenderer

	// target is the chat a rename or delete dialog acts on.
	target storage.Chat
}

// New returns the chat screen. Call it with a non-nil Controller.
func New(ctx context.Context, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	theme := styles.NewTheme()

	input := textarea.New()
	input.Placeholder = "Ask a question about your document..."
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline.SetKeys("alt+enter")
	input.Focus()

	filter := textinput.New()
	filter.Prompt = "filter: "
	filter.PromptStyle = theme.FilterPrompt
	filter.Placeholder = "title"

	dialog := textinput.New()
	dialog.Prompt = "> "
	dialog.PromptStyle = theme.FilterPrompt

	sp := spinner.New()
	sp.Spinner = styles.LineSpinner.Bubbles()
	sp.Style = theme.Spinner

	m := Model{
		ctx:       ctx,
		ctrl:      opts.Controller,
		opts:      opts,
		keys:      DefaultKeyMap(),
		theme:     theme,
		logger:    logger,
		filter:    filter,
		viewport:  viewport.New(0, 0),
		input:     input,
		dialog:    dialog,
		spinner:   sp,
		renderers: make(map[int]*glamour.TermRenderer),
	}
	m.render = m.glamourRender
	return m
}

// Init loads the chat list, starts reading controller events and ingests
// the initial document.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		loadChatsCmd(m.ctx, m.ctrl, ""),
		waitForRunEvent(m.ctrl.Events()),
		waitForIngestEvent(m.ctrl.IngestEvents()),
	}
	if m.opts.InitialPath != "" {
		path := m.opts.InitialPath
		ctrl, ctx := m.ctrl, m.ctx
		cmds = append(cmds, func() tea.Msg {
			ctrl.Ingest(ctx, path)
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Focus returns the focused pane.
func (m Model) Focus() Focus { return m.focus }

// Mode returns the open dialog.
func (m Model) Mode() Mode { return m.mode }

// CurrentChat returns the id of the chat shown in the transcript, or 0.
func (m Model) CurrentChat() int64 { return m.currentID }

// Chats returns the listed chats.
func (m Model) Chats() []storage.Chat { return m.chats }

// Notice returns the status notice and whether it reports an error.
func (m Model) Notice() (string, bool) { return m.notice, m.noticeError }

// Busy reports whether a question is being answered.
func (m Model) Busy() bool { return m.run != nil }

// LastAnswer returns the streamed text of a running answer in the current
// chat, or else its newest saved answer.
func (m Model) LastAnswer() string {
	if m.run != nil && m.run.chatID == m.currentID && m.run.answer != "" {
		return m.run.answer
	}
	for i := len(m.details) - 1; i >= 0; i-- {
		d := m.details[i]
		if d.Type == storage.ChatAI && d.FinishReason != session.FinishError && d.Content != "" {
			return d.Content
		}
	}
	return ""
}

// selectedChat returns the chat under the list cursor.
func (m Model) selectedChat() (storage.Chat, bool) {
	if m.cursor < 0 || m.cursor >= len(m.chats) {
		return storage.Chat{}, false
	}
	return m.chats[m.cursor], true
}

// =============================================================================
// RENDERING HELPERS
// =============================================================================

// glamourRender renders md with a renderer cached per wrap width. Errors fall
// back to the raw markdown.
func (m Model) glamourRender(md string, width int) string {
	r, ok := m.renderers[width]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.markdownStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.logger.Debug("glamour renderer unavailable", zap.Error(err))
			return md
		}
		m.renderers[width] = r
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// markdownStyle picks the glamour style from the background detected at
// startup. Auto detection is not used once the program owns the terminal.
func (m Model) markdownStyle() string {
	switch {
	case m.theme.ColorProfile == termenv.Ascii:
		return styles.MarkdownNoTTY
	case m.theme.IsDark:
		return styles.MarkdownDark
	}
	return styles.MarkdownLight
}

// setNotice shows msg in the status bar until it expires.
func (m *Model) setNotice(msg string, isErr bool) tea.Cmd {
	m.notice = msg
	m.noticeError = isErr
	m.noticeSeq++
	return expireNotice(m.noticeSeq)
}
