// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/session"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/ui/styles"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the screen: chat list and conversation side by side, then
// the status bar and the help line.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	body := m.height - statusHeight - helpHeight
	listWidth := m.theme.ChatListWidth(m.focus == FocusList)

	var panes []string
	if listWidth > 0 {
		panes = append(panes, m.renderChatList(listWidth, body))
	}
	if right := m.width - listWidth; right > 0 {
		panes = append(panes, m.renderConversation(right, body))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, panes...),
		m.renderStatusBar(),
		m.renderHelp(),
	)
}

// =============================================================================
// CHAT LIST
// =============================================================================

func (m Model) renderChatList(width, height int) string {
	pane := m.theme.Pane
	if m.focus == FocusList {
		pane = m.theme.PaneFocused
	}
	inner := max(width-4, 1)
	rows := max(height-2, 1)

	lines := []string{m.theme.PaneTitle.Render(fitWidth("Chats", inner))}
	if m.mode == ModeFilter || m.filter.Value() != "" {
		lines = append(lines, m.filter.View())
	}

	visible := rows - len(lines)
	if len(m.chats) == 0 {
		lines = append(lines, m.theme.Empty.Render(fitWidth("No chats yet", inner)))
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	for i := start; i < len(m.chats) && i < start+visible; i++ {
		lines = append(lines, m.renderChatItem(m.chats[i], i == m.cursor, inner))
	}

	return pane.
		Width(inner + 2).
		Height(rows).
		MaxHeight(height).
		Render(strings.Join(lines, "\n"))
}

func (m Model) renderChatItem(c storage.Chat, selected bool, width int) string {
	marker := "  "
	if c.ID == m.currentID {
		marker = "> "
	}
	text := fitWidth(marker+c.Title, width)
	switch {
	case selected && m.focus == FocusList:
		return m.theme.ChatItemSelected.Render(text)
	case c.ID == m.currentID:
		return m.theme.ChatItemCurrent.Render(text)
	}
	return m.theme.ChatItem.Render(text)
}

// =============================================================================
// CONVERSATION
// =============================================================================

func (m Model) renderConversation(width, height int) string {
	input := m.renderInputArea(width)
	step := m.renderStepLine(width)
	transcript := lipgloss.NewStyle().
		Width(width).
		Height(max(height-lipgloss.Height(input)-lipgloss.Height(step), 1)).
		Render(m.viewport.View())
	return lipgloss.JoinVertical(lipgloss.Left, transcript, step, input)
}

// renderTranscript renders the saved messages of the current chat followed
// by the running question, if it belongs to this chat.
func (m Model) renderTranscript(width int) string {
	wrap := width - 2
	if m.opts.WordWrap > 0 && m.opts.WordWrap < wrap {
		wrap = m.opts.WordWrap
	}
	wrap = max(wrap, 10)

	var sb strings.Builder
	for _, d := range m.details {
		sb.WriteString(m.renderDetail(d, wrap))
		sb.WriteString("\n")
	}

	if r := m.run; r != nil && r.chatID == m.currentID {
		if !m.questionSaved(r.question) {
			sb.WriteString(m.renderQuestion(r.question, wrap))
			sb.WriteString("\n")
		}
		if r.answer != "" {
			sb.WriteString(m.theme.AILabel.Render("ragrun"))
			sb.WriteString("\n")
			sb.WriteString(m.render(r.answer, wrap))
		}
	}

	if sb.Len() == 0 {
		return m.theme.Empty.Render(m.emptyHint())
	}
	return strings.TrimRight(sb.String(), "\n")
}

// questionSaved reports whether the newest saved message is question.
func (m Model) questionSaved(question string) bool {
	if len(m.details) == 0 {
		return false
	}
	last := m.details[len(m.details)-1]
	return last.Type == storage.ChatHuman && last.Content == question
}

func (m Model) renderDetail(d storage.Detail, wrap int) string {
	if d.Type == storage.ChatHuman {
		return m.renderQuestion(d.Content, wrap)
	}

	var sb strings.Builder
	sb.WriteString(m.theme.AILabel.Render("ragrun"))
	sb.WriteString("\n")
	if d.FinishReason == session.FinishError {
		sb.WriteString(m.theme.Failed.Width(wrap).Render(d.Content))
		sb.WriteString("\n")
	} else {
		sb.WriteString(strings.TrimRight(m.render(d.Content, wrap), "\n"))
		sb.WriteString("\n")
	}
	if m.opts.ShowElapsed {
		sb.WriteString(m.theme.FinishLine.Render(strings.Trim(storage.FinishLine(d), "_")))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderQuestion(q string, wrap int) string {
	return m.theme.HumanLabel.Render("You") + "\n" +
		m.theme.Question.Width(wrap).Render(q) + "\n"
}

func (m Model) emptyHint() string {
	if !m.ctrl.Ready() && m.ingesting == nil {
		return "No document indexed yet. Press ctrl+o to ingest a PDF, DOCX, text file or URL."
	}
	return "Ask a question about your document."
}

// renderStepLine shows the spinner and the workflow step while a question
// runs, or the embedding progress of an ingestion.
func (m Model) renderStepLine(width int) string {
	var line string
	switch {
	case m.run != nil:
		elapsed := formatElapsed(time.Since(m.run.started))
		line = m.spinner.View() + " " + m.theme.StepText.Render(m.run.step+"  "+elapsed)
	case m.ingesting != nil:
		line = m.spinner.View() + " " + m.theme.StepText.Render(m.ingestLabel())
	}
	return lipgloss.NewStyle().Width(width).MaxHeight(stepHeight).Render(line)
}

func (m Model) ingestLabel() string {
	in := m.ingesting
	label := fmt.Sprintf("ingesting %s: %s", baseName(in.path), in.stage)
	if in.stage == ingest.StageEmbedded && in.total > 0 {
		label += fmt.Sprintf(" %s %d/%d", styles.RenderProgressBar(in.done, in.total, 20), in.done, in.total)
	}
	return label
}

func (m Model) renderInputArea(width int) string {
	switch m.mode {
	case ModeRename:
		return m.renderDialog(width, "Rename chat", m.dialog.View())
	case ModeIngest:
		return m.renderDialog(width, "Ingest document (path or URL)", m.dialog.View())
	case ModeConfirmDelete:
		return m.renderDialog(width, "Delete chat", fmt.Sprintf("Delete %q? y to confirm, any other key to cancel", m.target.Title))
	}

	box := m.theme.InputContainer
	if m.focus == FocusInput {
		box = m.theme.InputFocused
	}
	return box.Width(width).Render(m.input.View())
}

func (m Model) renderDialog(width int, title, body string) string {
	inner := max(width-4, 1)
	return m.theme.Dialog.
		Width(inner + 2).
		Render(m.theme.DialogTitle.Render(fitWidth(title, inner)) + "\n" + body)
}

// =============================================================================
// STATUS BAR
// =============================================================================

// renderStatusBar shows model, store, chunk count and index readiness on the
// left and the current notice on the right.
func (m Model) renderStatusBar() string {
	t := m.theme
	sep := t.StatusKey.Render(" | ")

	store := m.ctrl.Settings().VectorStore
	chunks := "-"
	if idx := m.ctrl.Index(); idx != nil {
		store = idx.Store
		chunks = fmt.Sprintf("%d", idx.Chunks)
	}

	var ready string
	switch {
	case m.ingesting != nil:
		ready = t.StatusBusy.Render(styles.StatusIndicators.Pending + " indexing")
	case m.ctrl.Ready():
		ready = t.StatusReady.Render(styles.StatusIndicators.Success + " index ready")
	default:
		ready = t.StatusNotReady.Render(styles.StatusIndicators.Error + " no index")
	}

	left := t.StatusKey.Render("model ") + t.StatusValue.Render(orDash(m.opts.Model)) + sep +
		t.StatusKey.Render("store ") + t.StatusValue.Render(orDash(store)) + sep +
		t.StatusKey.Render("chunks ") + t.StatusValue.Render(chunks) + sep +
		ready
	if m.run != nil {
		left += sep + t.StatusBusy.Render("answering")
	}

	right := ""
	if m.notice != "" {
		style := t.Notice
		if m.noticeError {
			style = t.NoticeError
		}
		room := m.width - lipgloss.Width(left) - 4
		if room > 3 {
			right = style.Background(styles.SurfaceDim).Render(strings.TrimRight(fitWidth(m.notice, room), " "))
		}
	}

	gap := max(m.width-2-lipgloss.Width(left)-lipgloss.Width(right), 1)
	line := left + t.StatusValue.Render(strings.Repeat(" ", gap)) + right
	return t.StatusBar.Width(m.width).MaxHeight(statusHeight).Render(line)
}

func (m Model) renderHelp() string {
	line := HelpLine(m.keys.ShortHelp())
	if m.focus == FocusList {
		line = HelpLine([]key.Binding{m.keys.Up, m.keys.Down, m.keys.Open}) + "  " + line
	}
	return m.theme.Help.Render(fitWidth(line, m.width))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
