// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package splitter cuts documents into overlapping chunks measured in model
// tokens. Text is split on the coarsest separator present (paragraphs, then
// lines, then words, then characters) and the pieces are merged greedily up
// to the chunk size.
package splitter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/ragrun/internal/document"
)

// DefaultSeparators is the separator hierarchy used when none is given.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Tokenizer counts tokens in a piece of text.
type Tokenizer interface {
	Count(text string) int
}

// RuneCounter counts runes. It is exact and dependency-free, which suits
// tests and offline use.
type RuneCounter struct{}

// Count returns the number of runes in text.
func (RuneCounter) Count(text string) int { return len([]rune(text)) }

// Chunk is one piece of a document ready for embedding.
type Chunk struct {
	Text     string
	Tokens   int
	Index    int
	Metadata document.Metadata
}

// Splitter splits text recursively. The zero value is not usable; use New.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	tokenizer    Tokenizer
}

// ErrInvalidSize is returned by New for a bad size/overlap pair.
var ErrInvalidSize = errors.New("invalid chunk size")

// New returns a Splitter producing chunks of at most chunkSize tokens with up
// to chunkOverlap tokens shared between neighbours.
func New(chunkSize, chunkOverlap int, tok Tokenizer, separators ...string) (*Splitter, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidSize, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidSize, chunkOverlap, chunkSize)
	}
	if tok == nil {
		tok = RuneCounter{}
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   separators,
		tokenizer:    tok,
	}, nil
}

// Split returns the chunks of text in order. A piece that cannot be split
// further and is still larger than the chunk size is returned whole.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

// SplitDocuments splits every document and numbers the chunks across the
// whole batch.
func (s *Splitter) SplitDocuments(docs []document.Document) []Chunk {
	var chunks []Chunk
	for _, d := range docs {
		for _, text := range s.Split(d.Content) {
			chunks = append(chunks, Chunk{
				Text:     text,
				Tokens:   s.tokenizer.Count(text),
				Index:    len(chunks),
				Metadata: d.Metadata,
			})
		}
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepingSeparator(text, sep) {
		if s.tokenizer.Count(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				final = append(final, trimmed)
			}
			continue
		}
		final = append(final, s.split(piece, rest)...)
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge joins consecutive pieces into chunks, carrying the tail of each
// chunk into the next as overlap.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		lengths []int
		total   int
	)

	emit := func() {
		if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
			chunks = append(chunks, doc)
		}
	}

	for _, piece := range pieces {
		n := s.tokenizer.Count(piece)
		if total+n > s.chunkSize && len(current) > 0 {
			emit()
			for len(current) > 0 && (total > s.chunkOverlap || total+n > s.chunkSize) {
				total -= lengths[0]
				current = current[1:]
				lengths = lengths[1:]
			}
		}
		current = append(current, piece)
		lengths = append(lengths, n)
		total += n
	}
	if len(current) > 0 {
		emit()
	}
	return chunks
}

// splitKeepingSeparator splits text on sep and prefixes each piece after the
// first with the separator, so joining the pieces restores the text. An
// empty sep splits into runes.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
