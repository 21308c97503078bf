// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader parses the NDJSON body of a streaming chat response.
type StreamReader struct {
	reader      *bufio.Reader
	accumulator strings.Builder
	model       string
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReaderSize(r, 64<<10)}
}

// streamLine mirrors one line of the /api/chat stream.
type streamLine struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason,omitempty"`
	Error           string `json:"error,omitempty"`
	TotalDuration   int64  `json:"total_duration,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// Process reads chunks until the final one and returns it. callback may be
// nil. A stream that ends without a done chunk is an error.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) (StreamChunk, error) {
	for {
		if err := ctx.Err(); err != nil {
			return StreamChunk{}, err
		}

		chunk, err := s.readChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return StreamChunk{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "stream ended before completion"}
			}
			return StreamChunk{}, err
		}
		if chunk == nil {
			continue
		}

		if callback != nil {
			callback(*chunk)
		}
		if chunk.Done {
			return *chunk, nil
		}
	}
}

// readChunk reads and parses one line. It returns nil, nil for blank or
// malformed lines.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var resp streamLine
	if jsonErr := json.Unmarshal(line, &resp); jsonErr != nil {
		return nil, nil
	}
	if resp.Error != "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: resp.Error}
	}

	if resp.Model != "" {
		s.model = resp.Model
	}
	s.accumulator.WriteString(resp.Message.Content)

	chunk := &StreamChunk{
		Content:    resp.Message.Content,
		Done:       resp.Done,
		DoneReason: resp.DoneReason,
		Model:      s.model,
	}
	if resp.Done {
		chunk.TotalDuration = time.Duration(resp.TotalDuration)
		chunk.PromptTokens = resp.PromptEvalCount
		chunk.CompletionTokens = resp.EvalCount
	}
	return chunk, nil
}

// Accumulated returns all content received so far.
func (s *StreamReader) Accumulated() string {
	return s.accumulator.String()
}

// Model returns the model name reported by the stream.
func (s *StreamReader) Model() string {
	return s.model
}
