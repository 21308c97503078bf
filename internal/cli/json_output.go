// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for --json.
//
// With --json the command result is the only thing written to stdout.
// Progress and human-readable notes go to stderr.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jeranaias/ragrun/internal/storage"
	"github.com/jeranaias/ragrun/internal/workflow"
)

// JSONResponse is the envelope every command prints in JSON mode.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to stdout.
func (r *JSONResponse) Print() error {
	return r.Write(os.Stdout)
}

// Write writes the indented response to w.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// StderrPrint prints to stderr.
func StderrPrint(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// AskData is the result of "ragrun ask".
type AskData struct {
	Question     string            `json:"question"`
	Answer       string            `json:"answer"`
	Model        string            `json:"model"`
	RouteType    string            `json:"route_type"`
	FinishReason string            `json:"finish_reason"`
	Outcome      string            `json:"outcome"`
	LoopStep     int               `json:"loop_step"`
	ElapsedSecs  float64           `json:"elapsed_seconds"`
	Steps        []string          `json:"steps"`
	Sources      []AskSource       `json:"sources,omitempty"`
	Index        *IngestData       `json:"index,omitempty"`
	ChatID       int64             `json:"chat_id,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// AskSource is one document the answer was generated from.
type AskSource struct {
	Source  string `json:"source"`
	Preview string `json:"preview"`
}

// NewAskData builds AskData from a workflow result.
func NewAskData(question string, res *workflow.Result) AskData {
	data := AskData{Question: question, Steps: []string{}}
	if res == nil {
		return data
	}
	data.Answer = res.Answer
	data.Model = res.Model
	data.RouteType = res.RouteType
	data.FinishReason = res.FinishReason
	data.Outcome = string(res.Outcome)
	data.LoopStep = res.LoopStep
	data.ElapsedSecs = res.Elapsed.Seconds()
	for _, s := range res.Steps {
		data.Steps = append(data.Steps, s.Node)
	}
	for _, d := range res.Documents {
		data.Sources = append(data.Sources, AskSource{
			Source:  sourceLabel(d.Metadata),
			Preview: truncate(d.Content, 120),
		})
	}
	return data
}

// IngestData is the result of "ragrun ingest".
type IngestData struct {
	Path           string  `json:"path"`
	Documents      int     `json:"documents"`
	Chunks         int     `json:"chunks"`
	Tokens         int     `json:"tokens"`
	Store          string  `json:"vector_store"`
	EmbeddingModel string  `json:"embedding_model"`
	FinishReason   string  `json:"finish_reason"`
	ElapsedSecs    float64 `json:"elapsed_seconds"`
}

// HistoryShowData is the result of "ragrun history show".
type HistoryShowData struct {
	Chat    storage.Chat     `json:"chat"`
	Details []storage.Detail `json:"details"`
}
