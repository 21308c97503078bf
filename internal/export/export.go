// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved chats as Markdown, JSON or HTML.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/ragrun/internal/storage"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Transcript is a chat with its messages.
type Transcript struct {
	Chat    storage.Chat
	Details []storage.Detail
}

// Exporter renders a transcript in one format.
type Exporter interface {
	Export(t Transcript) ([]byte, error)

	// FileExtension returns the extension with its dot, e.g. ".md".
	FileExtension() string

	MimeType() string
}

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// Format names accepted by New.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatHTML     = "html"
)

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configure an export.
type Options struct {
	// IncludeGraph appends the Mermaid graph stored with each answer.
	IncludeGraph bool

	// Theme of HTML exports, "light" or "dark".
	Theme string

	// Now stamps the export. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{Theme: "dark", Now: time.Now}
}

func (o *Options) now() time.Time {
	if o == nil || o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// =============================================================================
// FORMAT SELECTION
// =============================================================================

// New returns the exporter for format. Aliases md, htm and the extensions
// with a leading dot are accepted.
func New(format string, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "", "md", FormatMarkdown:
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case "htm", FormatHTML:
		return NewHTMLExporter(opts), nil
	}
	return nil, fmt.Errorf("%w: %q (use markdown, json or html)", ErrUnknownFormat, format)
}

// FormatFromPath guesses the format from the extension of path. Unknown or
// missing extensions give markdown.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".html", ".htm":
		return FormatHTML
	}
	return FormatMarkdown
}

// Filename is a suggested file name for exporting chat with e.
func Filename(chat storage.Chat, e Exporter) string {
	return fmt.Sprintf("chat_%d_%s%s", chat.ID, sanitizeFilename(chat.Title), e.FileExtension())
}

// sanitizeFilename replaces characters that are invalid in file names on
// Windows or Unix and caps the length at 50 runes.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	var sb strings.Builder
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			sb.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			sb.WriteRune('_')
		case r < 32 || r == 127:
			sb.WriteRune('-')
		default:
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "chat"
	}
	return sb.String()
}

// roleLabel names the author of d.
func roleLabel(d storage.Detail) string {
	if d.Type == storage.ChatAI {
		return "Assistant"
	}
	return "User"
}
