// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"strings"

	"github.com/jeranaias/ragrun/internal/storage"
)

// MarkdownExporter writes the transcript produced by storage.ExportMarkdown,
// optionally followed by each answer's graph as a mermaid block.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders t as Markdown.
func (e *MarkdownExporter) Export(t Transcript) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString(storage.ExportMarkdown(t.Chat, t.Details))

	if e.options.IncludeGraph {
		if graph := lastGraph(t.Details); graph != "" {
			sb.WriteString("## Workflow graph\n\n```mermaid\n")
			sb.WriteString(strings.TrimRight(graph, "\n"))
			sb.WriteString("\n```\n")
		}
	}
	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) FileExtension() string { return ".md" }

func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

// lastGraph returns the newest graph stored with an answer. All answers of
// one binary carry the same graph.
func lastGraph(details []storage.Detail) string {
	for i := len(details) - 1; i >= 0; i-- {
		if details[i].Image != "" {
			return details[i].Image
		}
	}
	return ""
}
