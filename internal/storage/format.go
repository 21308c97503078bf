// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/ragrun/internal/util"
)

// =============================================================================
// CHAT LIST
// =============================================================================

// FormatChatList formats chats as a table for the history command.
func FormatChatList(chats []Chat) string {
	if len(chats) == 0 {
		return "No chats found."
	}

	var sb strings.Builder
	sb.WriteString("Chats:\n")
	sb.WriteString("-----------------------------------------------------\n")
	sb.WriteString(pad("ID", 6) + " " + pad("Created", 17) + " Title\n")
	sb.WriteString("-----------------------------------------------------\n")

	for _, c := range chats {
		sb.WriteString(pad(strconv.FormatInt(c.ID, 10), 6) + " " +
			pad(c.CreatedAt.Local().Format("2006-01-02 15:04"), 17) + " " +
			util.OneLine(c.Title, 40) + "\n")
	}
	return sb.String()
}

// pad right-pads s with spaces to width terminal columns.
func pad(s string, width int) string {
	w := util.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders a chat transcript as Markdown. AI messages carry
// their model, finish reason and elapsed time.
func ExportMarkdown(chat Chat, details []Detail) string {
	var sb strings.Builder
	sb.WriteString("# " + chat.Title + "\n\n")
	sb.WriteString("Created: " + chat.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, d := range details {
		role := "**User**"
		if d.Type == ChatAI {
			role = "**Assistant**"
		}
		sb.WriteString(role + " (" + d.CreatedAt.Local().Format("15:04") + "):\n\n")
		sb.WriteString(d.Content)
		sb.WriteString("\n\n")
		if d.Type == ChatAI {
			sb.WriteString(FinishLine(d) + "\n\n")
		}
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

// FinishLine summarizes an AI message as an italic line of model, finish
// reason and elapsed seconds.
func FinishLine(d Detail) string {
	parts := make([]string, 0, 3)
	if d.Model != "" {
		parts = append(parts, d.Model)
	}
	if d.FinishReason != "" {
		parts = append(parts, d.FinishReason)
	}
	parts = append(parts, fmt.Sprintf("%.1fs", d.Elapsed.Seconds()))
	return "_" + strings.Join(parts, " · ") + "_"
}
