// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/session"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// Fixed heights of the screen's rows.
const (
	statusHeight = 1
	helpHeight   = 1
	stepHeight   = 1
	inputHeight  = 3
	// inputAreaHeight adds the input's top border.
	inputAreaHeight = inputHeight + 1
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles a message and returns the new model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case RunEventMsg:
		m, cmd := m.handleRunEvent(msg.Event)
		return m, tea.Batch(cmd, waitForRunEvent(m.ctrl.Events()))

	case IngestEventMsg:
		m, cmd := m.handleIngestEvent(msg.Event)
		return m, tea.Batch(cmd, waitForIngestEvent(m.ctrl.IngestEvents()))

	case ChatsLoadedMsg:
		return m.handleChatsLoaded(msg)

	case ChatOpenedMsg:
		return m.handleChatOpened(msg)

	case ChatCreatedMsg:
		if msg.Err != nil {
			return m, m.setNotice("Could not create chat: "+msg.Err.Error(), true)
		}
		m.currentID = msg.Chat.ID
		m.details = nil
		m.refreshTranscript()
		return m, loadChatsCmd(m.ctx, m.ctrl, m.filter.Value())

	case ChatDeletedMsg:
		if msg.Err != nil {
			return m, m.setNotice("Could not delete chat: "+msg.Err.Error(), true)
		}
		if msg.ID == m.currentID {
			m.currentID = 0
			m.details = nil
			m.refreshTranscript()
		}
		return m, tea.Batch(
			m.setNotice("Chat deleted", false),
			loadChatsCmd(m.ctx, m.ctrl, m.filter.Value()),
		)

	case ChatRenamedMsg:
		if msg.Err != nil {
			return m, m.setNotice("Could not rename chat: "+msg.Err.Error(), true)
		}
		return m, tea.Batch(
			m.setNotice("Renamed to "+msg.Title, false),
			loadChatsCmd(m.ctx, m.ctrl, m.filter.Value()),
		)

	case SubmittedMsg:
		return m.handleSubmitted(msg)

	case CopiedMsg:
		if msg.Err != nil {
			return m, m.setNotice("Failed to copy: "+msg.Err.Error(), true)
		}
		return m, m.setNotice(fmt.Sprintf("Copied answer (%d chars)", msg.Chars), false)

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
			m.noticeError = false
		}
		return m, nil

	case spinner.TickMsg:
		if m.run == nil && m.ingesting == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.layout()
	return m, nil
}

// layout sizes the widgets for the terminal and the focused pane.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	listWidth := m.theme.ChatListWidth(m.focus == FocusList)
	right := max(m.width-listWidth, 0)
	body := m.height - statusHeight - helpHeight

	m.viewport.Width = right
	m.viewport.Height = max(body-inputAreaHeight-stepHeight, 1)
	m.input.SetWidth(max(right, 1))
	m.dialog.Width = max(right-8, 10)
	// Pane border and padding take four columns.
	m.filter.Width = max(listWidth-4-len(m.filter.Prompt)-1, 1)
	m.refreshTranscript()
}

// refreshTranscript re-renders the transcript and scrolls to its end.
func (m *Model) refreshTranscript() {
	if m.viewport.Width <= 0 {
		return
	}
	m.viewport.SetContent(m.renderTranscript(m.viewport.Width))
	m.viewport.GotoBottom()
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		if m.ctrl.Busy() {
			m.ctrl.Stop()
		}
		return m, tea.Quit
	}

	switch m.mode {
	case ModeFilter:
		return m.handleFilterKey(msg)
	case ModeRename, ModeIngest:
		return m.handleDialogKey(msg)
	case ModeConfirmDelete:
		return m.handleConfirmKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Stop):
		if m.run == nil && !m.ctrl.Busy() {
			return m, m.setNotice("Nothing to stop", false)
		}
		m.ctrl.Stop()
		return m, m.setNotice("Stopping...", false)

	case key.Matches(msg, m.keys.NewChat):
		return m, newChatCmd(m.ctx, m.ctrl)

	case key.Matches(msg, m.keys.Delete):
		chat, ok := m.actionTarget()
		if !ok {
			return m, m.setNotice("No chat selected", true)
		}
		m.target = chat
		m.openDialog(ModeConfirmDelete, "")
		return m, nil

	case key.Matches(msg, m.keys.Rename):
		chat, ok := m.actionTarget()
		if !ok {
			return m, m.setNotice("No chat selected", true)
		}
		m.target = chat
		m.openDialog(ModeRename, chat.Title)
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.mode = ModeFilter
		m.input.Blur()
		if m.focus != FocusList {
			m.focus = FocusList
			m.layout()
		}
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Ingest):
		if m.ingesting != nil {
			return m, m.setNotice("Already ingesting "+baseName(m.ingesting.path), true)
		}
		path := ""
		if idx := m.ctrl.Index(); idx != nil {
			path = idx.Path
		}
		m.openDialog(ModeIngest, path)
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		answer := m.LastAnswer()
		if answer == "" {
			return m, m.setNotice("No answer to copy", true)
		}
		return m, copyCmd(answer)

	case key.Matches(msg, m.keys.Focus):
		if m.focus == FocusInput {
			m.focus = FocusList
			m.input.Blur()
		} else {
			m.focus = FocusInput
			m.input.Focus()
		}
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == FocusList {
		return m.handleListKey(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		return m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.chats)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		chat, ok := m.selectedChat()
		if !ok {
			return m, nil
		}
		m.currentID = chat.ID
		m.focus = FocusInput
		m.input.Focus()
		m.layout()
		return m, openChatCmd(m.ctx, m.ctrl, chat.ID)
	}
	return m, nil
}

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.mode = ModeNormal
		m.filter.Blur()
		m.filter.SetValue("")
		return m, loadChatsCmd(m.ctx, m.ctrl, "")
	case key.Matches(msg, m.keys.Submit):
		m.mode = ModeNormal
		m.filter.Blur()
		return m, nil
	}

	before := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if v := m.filter.Value(); v != before {
		return m, tea.Batch(cmd, loadChatsCmd(m.ctx, m.ctrl, v))
	}
	return m, cmd
}

func (m Model) handleDialogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.closeDialog()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		value := strings.TrimSpace(m.dialog.Value())
		mode := m.mode
		m.closeDialog()
		if value == "" {
			return m, nil
		}
		if mode == ModeRename {
			return m, renameChatCmd(m.ctx, m.ctrl, m.target.ID, value)
		}
		return m.startIngest(value)
	}

	var cmd tea.Cmd
	m.dialog, cmd = m.dialog.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.closeDialog()
	if msg.String() == "y" || msg.String() == "Y" {
		return m, deleteChatCmd(m.ctx, m.ctrl, m.target.ID)
	}
	return m, m.setNotice("Delete cancelled", false)
}

// actionTarget is the chat a rename or delete applies to: the list cursor
// when the list has focus, else the open chat.
func (m Model) actionTarget() (storage.Chat, bool) {
	if m.focus == FocusList {
		return m.selectedChat()
	}
	for _, c := range m.chats {
		if c.ID == m.currentID {
			return c, true
		}
	}
	return storage.Chat{}, false
}

func (m *Model) openDialog(mode Mode, value string) {
	m.mode = mode
	m.input.Blur()
	m.dialog.SetValue(value)
	m.dialog.CursorEnd()
	m.dialog.Focus()
}

func (m *Model) closeDialog() {
	m.mode = ModeNormal
	m.dialog.Blur()
	m.dialog.SetValue("")
	if m.focus == FocusInput {
		m.input.Focus()
	}
}

// =============================================================================
// QUESTIONS
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if question == "" {
		return m, nil
	}
	if m.run != nil {
		return m, m.setNotice("A question is already running. Press ctrl+s to stop it.", true)
	}
	if !m.ctrl.Ready() {
		return m, m.setNotice("No document indexed. Press ctrl+o to ingest one.", true)
	}

	m.run = &runState{
		chatID:   m.currentID,
		question: question,
		step:     "starting",
		started:  time.Now(),
	}
	m.input.Reset()
	m.refreshTranscript()
	return m, tea.Batch(submitCmd(m.ctx, m.ctrl, question), m.spinner.Tick)
}

func (m Model) handleSubmitted(msg SubmittedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.run = nil
		m.input.SetValue(msg.Question)
		m.refreshTranscript()
		text := msg.Err.Error()
		if errors.Is(msg.Err, session.ErrNotReady) {
			text = "No document indexed. Press ctrl+o to ingest one."
		}
		return m, m.setNotice(text, true)
	}
	if m.run != nil && m.run.question == msg.Question {
		m.run.chatID = msg.ChatID
	}
	m.currentID = msg.ChatID
	return m, tea.Batch(
		openChatCmd(m.ctx, m.ctrl, msg.ChatID),
		loadChatsCmd(m.ctx, m.ctrl, m.filter.Value()),
	)
}

// regenerates reports whether the graded answer is discarded for a new one.
func regenerates(step workflow.Step) bool {
	if step.Node != workflow.NodeGradeGeneration {
		return false
	}
	switch workflow.Outcome(step.Decision) {
	case workflow.OutcomeNotSupported, workflow.OutcomeNotUseful:
		return true
	}
	return false
}

func (m Model) handleRunEvent(e session.Event) (Model, tea.Cmd) {
	switch e.Kind {
	case session.EventStep:
		if m.run != nil {
			m.run.step = stepLabel(e.Step)
			if regenerates(e.Step) {
				m.run.answer = ""
				if m.run.chatID == m.currentID {
					m.refreshTranscript()
				}
			}
		}
		return m, nil

	case session.EventToken:
		if m.run != nil {
			m.run.answer += e.Token
			if m.run.chatID == m.currentID {
				m.refreshTranscript()
			}
		}
		return m, nil

	case session.EventResponse:
		return m, nil
	}

	// Terminal: the answer row is saved, reload what storage has.
	m.run = nil
	var notice tea.Cmd
	switch {
	case e.Err == nil:
		text := "Answered"
		if e.Result != nil {
			text = fmt.Sprintf("Answered in %s (%s)", formatElapsed(e.Result.Elapsed), e.Result.FinishReason)
		}
		notice = m.setNotice(text, false)
	case errors.Is(e.Err, workflow.ErrForceStopped):
		notice = m.setNotice("["+workflow.FinishForceStop+"]", false)
	case errors.Is(e.Err, workflow.ErrNotSupported):
		notice = m.setNotice("No supported answer was found", true)
	default:
		m.logger.Warn("question failed", zap.Int64("chat_id", e.ChatID), zap.Error(e.Err))
		notice = m.setNotice("Question failed: "+e.Err.Error(), true)
	}

	cmds := []tea.Cmd{notice, loadChatsCmd(m.ctx, m.ctrl, m.filter.Value())}
	if e.ChatID == m.currentID {
		cmds = append(cmds, openChatCmd(m.ctx, m.ctrl, e.ChatID))
	}
	m.refreshTranscript()
	return m, tea.Batch(cmds...)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (m Model) startIngest(path string) (tea.Model, tea.Cmd) {
	ctrl, ctx := m.ctrl, m.ctx
	return m, tea.Batch(
		m.setNotice("Ingesting "+baseName(path), false),
		func() tea.Msg {
			ctrl.Ingest(ctx, path)
			return nil
		},
	)
}

func (m Model) handleIngestEvent(e ingest.Event) (Model, tea.Cmd) {
	switch e.Stage {
	case ingest.StageStarted:
		m.ingesting = &ingestState{path: e.Path, stage: e.Stage}
		return m, m.spinner.Tick

	case ingest.StageFinished:
		m.ingesting = nil
		text := "Indexed " + baseName(e.Path)
		if r := e.Result; r != nil {
			text = fmt.Sprintf("Indexed %s: %d chunks in %s", baseName(r.Path), r.Chunks, formatElapsed(r.Elapsed))
		}
		return m, m.setNotice(text, false)

	case ingest.StageFailed:
		m.ingesting = nil
		msg := "unknown error"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return m, m.setNotice("Ingestion failed: "+msg, true)
	}

	if m.ingesting == nil {
		m.ingesting = &ingestState{path: e.Path}
	}
	m.ingesting.stage = e.Stage
	m.ingesting.done = e.Done
	m.ingesting.total = e.Total
	return m, nil
}

// =============================================================================
// CHATS
// =============================================================================

func (m Model) handleChatsLoaded(msg ChatsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m, m.setNotice("Could not load chats: "+msg.Err.Error(), true)
	}
	if msg.Filter != m.filter.Value() {
		return m, nil
	}
	m.chats = msg.Chats
	m.cursor = min(m.cursor, max(len(m.chats)-1, 0))
	for i, c := range m.chats {
		if c.ID == m.currentID {
			m.cursor = i
			break
		}
	}
	return m, nil
}

func (m Model) handleChatOpened(msg ChatOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		if errors.Is(msg.Err, storage.ErrChatNotFound) && msg.ID == m.currentID {
			m.currentID = 0
			m.details = nil
			m.refreshTranscript()
		}
		return m, m.setNotice("Could not open chat: "+msg.Err.Error(), true)
	}
	if msg.ID != m.currentID {
		return m, nil
	}
	m.details = msg.Details
	m.refreshTranscript()
	return m, nil
}
