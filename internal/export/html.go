// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"

	"github.com/jeranaias/ragrun/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter writes a standalone page. Answers are converted from Markdown
// with goldmark, and fenced code is highlighted with chroma. Raw HTML inside
// answers is not passed through.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates an HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(renderer.WithNodeRenderers(newCodeHighlighter(opts.Theme))),
		),
	}
}

// Export renders t as HTML.
func (e *HTMLExporter) Export(t Transcript) ([]byte, error) {
	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(t.Chat.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"ragrun\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n<div class=\"container\">\n", theme)

	sb.WriteString("<header class=\"header\">\n")
	fmt.Fprintf(&sb, "    <h1>%s</h1>\n", html.EscapeString(t.Chat.Title))
	fmt.Fprintf(&sb, "    <p class=\"meta\">Created %s &middot; %d message(s)</p>\n",
		t.Chat.CreatedAt.Format(time.RFC3339), len(t.Details))
	sb.WriteString("</header>\n<main class=\"conversation\">\n")

	for _, d := range t.Details {
		msg, err := e.renderMessage(d)
		if err != nil {
			return nil, err
		}
		sb.WriteString(msg)
	}
	sb.WriteString("</main>\n")

	if e.options.IncludeGraph {
		if graph := lastGraph(t.Details); graph != "" {
			sb.WriteString("<section class=\"graph\">\n<h2>Workflow graph</h2>\n")
			fmt.Fprintf(&sb, "<pre class=\"mermaid\">%s</pre>\n</section>\n", html.EscapeString(graph))
		}
	}

	fmt.Fprintf(&sb, "<footer class=\"footer\">Exported from ragrun on %s</footer>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("</div>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

func (e *HTMLExporter) FileExtension() string { return ".html" }

func (e *HTMLExporter) MimeType() string { return "text/html" }

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderMessage(d storage.Detail) (string, error) {
	var sb strings.Builder
	class := "user"
	if d.Type == storage.ChatAI {
		class = "assistant"
	}
	fmt.Fprintf(&sb, "<div class=\"message %s-message\">\n", class)
	fmt.Fprintf(&sb, "    <div class=\"role\">%s <span class=\"time\">%s</span></div>\n",
		roleLabel(d), d.CreatedAt.Local().Format("15:04"))

	if d.Type != storage.ChatAI {
		fmt.Fprintf(&sb, "    <div class=\"content question\">%s</div>\n", html.EscapeString(d.Content))
		sb.WriteString("</div>\n")
		return sb.String(), nil
	}

	var body bytes.Buffer
	if err := e.md.Convert([]byte(d.Content), &body); err != nil {
		return "", fmt.Errorf("render message %d: %w", d.ID, err)
	}
	sb.WriteString("    <div class=\"content\">\n")
	sb.Write(body.Bytes())
	sb.WriteString("    </div>\n")
	fmt.Fprintf(&sb, "    <div class=\"finish\">%s</div>\n",
		html.EscapeString(strings.Trim(storage.FinishLine(d), "_")))
	sb.WriteString("</div>\n")
	return sb.String(), nil
}

const css = `    <style>
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 0; line-height: 1.55; }
        .dark-theme { background: #1e1e2e; color: #cdd6f4; }
        .light-theme { background: #ffffff; color: #1f2937; }
        .container { max-width: 860px; margin: 0 auto; padding: 24px; }
        .header h1 { margin-bottom: 4px; color: #a78bfa; }
        .meta, .time, .finish, .footer { color: #6c7086; font-size: 0.85em; }
        .message { border-radius: 8px; padding: 12px 16px; margin: 12px 0; }
        .user-message { border-left: 4px solid #22d3ee; }
        .assistant-message { border-left: 4px solid #a78bfa; }
        .dark-theme .message { background: #313244; }
        .light-theme .message { background: #f5f5f5; }
        .role { font-weight: bold; margin-bottom: 6px; }
        .question { white-space: pre-wrap; }
        .finish { font-style: italic; margin-top: 6px; }
        pre { overflow-x: auto; padding: 8px; border-radius: 6px; background: rgba(127,127,127,0.15); }
        .footer { margin-top: 32px; text-align: center; }
    </style>
`
