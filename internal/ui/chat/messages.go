// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragrun/internal/ingest"
	"github.com/jeranaias/ragrun/internal/session"
	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/util"
)

// =============================================================================
// CONTROLLER MESSAGES
// =============================================================================

// RunEventMsg carries one event of a running question.
type RunEventMsg struct {
	Event session.Event
}

// IngestEventMsg carries one ingestion progress event.
type IngestEventMsg struct {
	Event ingest.Event
}

// waitForRunEvent reads the next run event. The model issues it again after
// every RunEventMsg so exactly one read is outstanding.
func waitForRunEvent(ch <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return RunEventMsg{Event: e}
	}
}

func waitForIngestEvent(ch <-chan ingest.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return IngestEventMsg{Event: e}
	}
}

// =============================================================================
// CHAT MESSAGES
// =============================================================================

// ChatsLoadedMsg delivers the chat list for a filter.
type ChatsLoadedMsg struct {
	Filter string
	Chats  []storage.Chat
	Err    error
}

// ChatOpenedMsg delivers the messages of a selected chat.
type ChatOpenedMsg struct {
	ID      int64
	Details []storage.Detail
	Err     error
}

// ChatCreatedMsg reports a new empty chat.
type ChatCreatedMsg struct {
	Chat *storage.Chat
	Err  error
}

// ChatDeletedMsg reports a removed chat.
type ChatDeletedMsg struct {
	ID  int64
	Err error
}

// ChatRenamedMsg reports a retitled chat.
type ChatRenamedMsg struct {
	ID    int64
	Title string
	Err   error
}

// SubmittedMsg reports that a question was saved and its run started.
type SubmittedMsg struct {
	ChatID   int64
	Question string
	Err      error
}

// CopiedMsg reports a clipboard write.
type CopiedMsg struct {
	Chars int
	Err   error
}

// noticeExpiredMsg clears the notice with the same sequence number.
type noticeExpiredMsg struct {
	seq int
}

// =============================================================================
// COMMANDS
// =============================================================================

// titleWidth bounds the title given to a chat from its first question.
const titleWidth = 60

func loadChatsCmd(ctx context.Context, ctrl Controller, filter string) tea.Cmd {
	return func() tea.Msg {
		chats, err := ctrl.FilterChats(ctx, filter)
		return ChatsLoadedMsg{Filter: filter, Chats: chats, Err: err}
	}
}

func openChatCmd(ctx context.Context, ctrl Controller, id int64) tea.Cmd {
	return func() tea.Msg {
		details, err := ctrl.SelectChat(ctx, id)
		return ChatOpenedMsg{ID: id, Details: details, Err: err}
	}
}

func newChatCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		chat, err := ctrl.NewChat(ctx)
		return ChatCreatedMsg{Chat: chat, Err: err}
	}
}

func deleteChatCmd(ctx context.Context, ctrl Controller, id int64) tea.Cmd {
	return func() tea.Msg {
		return ChatDeletedMsg{ID: id, Err: ctrl.DeleteChat(ctx, id)}
	}
}

func renameChatCmd(ctx context.Context, ctrl Controller, id int64, title string) tea.Cmd {
	return func() tea.Msg {
		return ChatRenamedMsg{ID: id, Title: title, Err: ctrl.RenameChat(ctx, id, title)}
	}
}

// submitCmd saves the question and starts its run. A chat created for the
// question is titled after it.
func submitCmd(ctx context.Context, ctrl Controller, question string) tea.Cmd {
	return func() tea.Msg {
		fresh := ctrl.CurrentChat() == 0
		id, err := ctrl.Submit(ctx, question)
		if err == nil && fresh {
			_ = ctrl.RenameChat(ctx, id, util.OneLine(question, titleWidth))
		}
		return SubmittedMsg{ChatID: id, Question: question, Err: err}
	}
}

// writeClipboard is replaced in tests.
var writeClipboard = copyToClipboard

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return CopiedMsg{Chars: len([]rune(text)), Err: writeClipboard(text)}
	}
}

const noticeTTL = 4 * time.Second

func expireNotice(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}
