// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package splitter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jeranaias/ragrun/internal/document"
)

func TestNew_RejectsBadSizes(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap, nil)
			assert.ErrorIs(t, err, ErrInvalidSize)
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{
			name: "short text is one chunk",
			text: "  hello world  ",
			size: 100,
			want: []string{"hello world"},
		},
		{
			name: "empty text yields nothing",
			text: "   ",
			size: 10,
			want: nil,
		},
		{
			name: "paragraphs merge up to size",
			text: "aaaa\n\nbbbb\n\ncccc",
			size: 10,
			want: []string{"aaaa\n\nbbbb", "cccc"},
		},
		{
			name:    "words carry overlap",
			text:    "a b c d e f",
			size:    5,
			overlap: 2,
			want:    []string{"a b c", "c d", "d e", "e f"},
		},
		{
			name: "long word falls back to characters",
			text: "abcdefghij",
			size: 4,
			want: []string{"abcd", "efgh", "ij"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.size, tt.overlap, RuneCounter{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Split(tt.text))
		})
	}
}

func TestSplitDocuments_KeepsMetadata(t *testing.T) {
	s, err := New(10, 0, RuneCounter{})
	require.NoError(t, err)

	docs := []document.Document{
		{Content: "aaaa\n\nbbbb\n\ncccc", Metadata: document.Metadata{Source: "one.txt", Type: document.TypeText}},
		{Content: "short", Metadata: document.Metadata{Source: "two.md", Type: document.TypeMarkdown}},
	}
	chunks := s.SplitDocuments(docs)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, len([]rune(c.Text)), c.Tokens)
	}
	assert.Equal(t, "one.txt", chunks[0].Metadata.Source)
	assert.Equal(t, "one.txt", chunks[1].Metadata.Source)
	assert.Equal(t, "two.md", chunks[2].Metadata.Source)
	assert.Equal(t, "short", chunks[2].Text)
}

// markers builds text from unique words so every chunk has exactly one
// position in the input.
func markers(t *rapid.T) string {
	n := rapid.IntRange(1, 120).Draw(t, "words")
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(rapid.SampledFrom([]string{" ", " ", " ", "\n", "\n\n"}).Draw(t, "sep"))
		}
		fmt.Fprintf(&b, "w%d", i)
	}
	return b.String()
}

func TestSplit_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := markers(t)
		size := rapid.IntRange(8, 60).Draw(t, "size")
		overlap := rapid.IntRange(0, size/2).Draw(t, "overlap")

		s, err := New(size, overlap, RuneCounter{})
		require.NoError(t, err)
		chunks := s.Split(text)
		require.NotEmpty(t, chunks)

		covered := 0
		prevStart := -1
		for _, c := range chunks {
			require.NotEmpty(t, c)
			require.LessOrEqual(t, len([]rune(c)), size, "chunk %q", c)

			idx := strings.Index(text, c)
			require.GreaterOrEqual(t, idx, 0, "chunk %q is not a substring", c)
			require.GreaterOrEqual(t, idx, prevStart, "chunks out of order")
			require.Empty(t, strings.TrimSpace(text[min(covered, idx):idx]), "gap before %q", c)

			prevStart = idx
			covered = max(covered, idx+len(c))
		}
		require.Empty(t, strings.TrimSpace(text[covered:]))
	})
}
