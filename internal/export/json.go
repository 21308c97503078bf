// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/ragrun/internal/storage"
)

// JSONExporter writes the chat row and its messages as indented JSON. The
// graph text is dropped unless IncludeGraph is set.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonTranscript struct {
	Chat       storage.Chat     `json:"chat"`
	Messages   []storage.Detail `json:"messages"`
	ExportedAt time.Time        `json:"exported_at"`
}

// Export renders t as JSON.
func (e *JSONExporter) Export(t Transcript) ([]byte, error) {
	messages := make([]storage.Detail, len(t.Details))
	copy(messages, t.Details)
	if !e.options.IncludeGraph {
		for i := range messages {
			messages[i].Image = ""
		}
	}
	out, err := json.MarshalIndent(jsonTranscript{
		Chat:       t.Chat,
		Messages:   messages,
		ExportedAt: e.options.now().UTC(),
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func (e *JSONExporter) FileExtension() string { return ".json" }

func (e *JSONExporter) MimeType() string { return "application/json" }
