// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragrun/internal/storage"
)

func sampleTranscript() Transcript {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return Transcript{
		Chat: storage.Chat{ID: 4, Title: "Q3 report: <summary>", CreatedAt: created},
		Details: []storage.Detail{
			{ID: 1, ChatID: 4, Type: storage.ChatHuman, Content: "What is <b>revenue</b>?", CreatedAt: created},
			{
				ID: 2, ChatID: 4, Type: storage.ChatAI,
				Content:      "Revenue is **$4M**.\n\n<script>alert(1)</script>",
				Model:        "llama3.2",
				FinishReason: "stop",
				Elapsed:      2 * time.Second,
				Image:        "graph TD\n  A-->B",
				CreatedAt:    created,
			},
		},
	}
}

func fixedOptions() *Options {
	return &Options{Theme: "light", Now: func() time.Time {
		return time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	}}
}

// =============================================================================
// FORMAT SELECTION TESTS
// =============================================================================

func TestNew(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"", ".md"},
		{"md", ".md"},
		{"Markdown", ".md"},
		{".json", ".json"},
		{"html", ".html"},
		{"htm", ".html"},
	}
	for _, tt := range tests {
		e, err := New(tt.format, nil)
		require.NoError(t, err, tt.format)
		assert.Equal(t, tt.ext, e.FileExtension(), tt.format)
	}

	_, err := New("pdf", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("out/chat.JSON"))
	assert.Equal(t, FormatHTML, FormatFromPath("chat.htm"))
	assert.Equal(t, FormatMarkdown, FormatFromPath("chat.md"))
	assert.Equal(t, FormatMarkdown, FormatFromPath("chat"))
}

func TestFilename(t *testing.T) {
	chat := storage.Chat{ID: 9, Title: `a/b: "c" d`}
	assert.Equal(t, "chat_9_a-b-_-c-_d.md", Filename(chat, NewMarkdownExporter(nil)))

	chat.Title = "   "
	assert.Equal(t, "chat_9_chat.json", Filename(chat, NewJSONExporter(nil)))

	chat.Title = strings.Repeat("x", 80)
	name := Filename(chat, NewHTMLExporter(nil))
	assert.Equal(t, len("chat_9_")+50+len(".html"), len(name))
}

// =============================================================================
// EXPORTER TESTS
// =============================================================================

func TestMarkdownExporter(t *testing.T) {
	tr := sampleTranscript()

	out, err := NewMarkdownExporter(&Options{}).Export(tr)
	require.NoError(t, err)
	md := string(out)
	assert.Contains(t, md, "# Q3 report: <summary>")
	assert.Contains(t, md, "**User**")
	assert.Contains(t, md, "**Assistant**")
	assert.Contains(t, md, "llama3.2")
	assert.NotContains(t, md, "```mermaid")

	out, err = NewMarkdownExporter(&Options{IncludeGraph: true}).Export(tr)
	require.NoError(t, err)
	assert.Contains(t, string(out), "```mermaid\ngraph TD\n  A-->B\n```")
}

func TestJSONExporter(t *testing.T) {
	tr := sampleTranscript()

	out, err := NewJSONExporter(fixedOptions()).Export(tr)
	require.NoError(t, err)

	var got struct {
		Chat       storage.Chat     `json:"chat"`
		Messages   []storage.Detail `json:"messages"`
		ExportedAt time.Time        `json:"exported_at"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, int64(4), got.Chat.ID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, storage.ChatAI, got.Messages[1].Type)
	assert.Empty(t, got.Messages[1].Image, "graph is left out by default")
	assert.Equal(t, 2025, got.ExportedAt.Year())

	// The caller's details are not modified.
	assert.NotEmpty(t, tr.Details[1].Image)
}

func TestHTMLExporter(t *testing.T) {
	tr := sampleTranscript()
	opts := fixedOptions()
	opts.IncludeGraph = true

	out, err := NewHTMLExporter(opts).Export(tr)
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "<title>Q3 report: &lt;summary&gt;</title>")
	assert.Contains(t, page, `class="light-theme"`)
	assert.Contains(t, page, "What is &lt;b&gt;revenue&lt;/b&gt;?")
	assert.Contains(t, page, "<strong>$4M</strong>")
	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.Contains(t, page, `<pre class="mermaid">graph TD`)
	assert.Contains(t, page, "A--&gt;B")
	assert.Contains(t, page, "March 2, 2025")
}

func TestHTMLExporter_HighlightsFencedCode(t *testing.T) {
	tr := sampleTranscript()
	tr.Details[1].Content = "Use this:\n\n```go\nfunc main() {}\n```\n"

	out, err := NewHTMLExporter(&Options{Theme: "dark"}).Export(tr)
	require.NoError(t, err)
	page := string(out)

	assert.NotContains(t, page, `<code class="language-go">`, "goldmark's plain code block was not replaced")
	assert.Contains(t, page, "#66d9ef", "monokai keyword color is inlined")
	assert.Contains(t, page, ">func</span>")
	assert.Contains(t, page, "<p>Use this:</p>")
}

func TestHighlightCode_UnknownLanguage(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, highlightCode(&sb, "<b>not html</b>\n", "no-such-language", "no-such-style"))
	assert.Contains(t, sb.String(), "&lt;b&gt;")
	assert.NotContains(t, sb.String(), "<b>not html</b>")
}
