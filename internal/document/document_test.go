// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// =============================================================================
// TYPE DETECTION
// =============================================================================

func TestDetectType(t *testing.T) {
	tests := map[string]Type{
		"notes.txt":                TypeText,
		"README.md":                TypeMarkdown,
		"Paper.PDF":                TypePDF,
		"report.docx":              TypeDOCX,
		"https://example.com/page": TypeURL,
		"HTTP://EXAMPLE.COM":       TypeURL,
	}
	for in, want := range tests {
		got, err := DetectType(in)
		if err != nil {
			t.Errorf("DetectType(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("DetectType(%q) = %q, want %q", in, got, want)
		}
	}

	_, err := DetectType("slides.pptx")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoad_Text(t *testing.T) {
	path := writeFile(t, "notes.txt", "Line one.  \r\nLine two.\r\n\r\n")

	docs, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Line one.\nLine two.", docs[0].Content)
	assert.Equal(t, path, docs[0].Metadata.Source)
	assert.Equal(t, TypeText, docs[0].Metadata.Type)
}

func TestLoad_NotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.pdf")

	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "File not found: "+path, err.Error())
}

func TestLoad_Unsupported(t *testing.T) {
	path := writeFile(t, "deck.pptx", "binary")

	_, err := NewLoader().Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLoad_Empty(t *testing.T) {
	path := writeFile(t, "blank.txt", "  \n\t\n")

	_, err := NewLoader().Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoad_BadPDF(t *testing.T) {
	path := writeFile(t, "fake.pdf", "this is not a pdf")

	_, err := NewLoader().Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoad_DOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Adaptive</w:t></w:r><w:r><w:t xml:space="preserve"> retrieval</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t><w:tab/><w:t>paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	docs, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Adaptive retrieval\nSecond\tparagraph", docs[0].Content)
	assert.Equal(t, TypeDOCX, docs[0].Metadata.Type)
}

func TestLoad_DOCXMissingBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, _ = zw.Create("docProps/core.xml")
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestLoad_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title> Agents </title><style>p{color:red}</style></head>
<body><nav>Home | About</nav><h1>Agent memory</h1><p>Short-term memory uses <b>context</b>.</p>
<script>var x = 1;</script><ul><li>Long-term</li><li>Episodic</li></ul></body></html>`)
	}))
	defer srv.Close()

	docs, err := NewLoader().Load(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d := docs[0]
	assert.Equal(t, "Agents", d.Metadata.Title)
	assert.Equal(t, TypeURL, d.Metadata.Type)
	assert.Equal(t, "Agent memory\nShort-term memory uses context .\nLong-term\nEpisodic", d.Content)
	assert.NotContains(t, d.Content, "var x")
	assert.NotContains(t, d.Content, "Home")
}

func TestLoad_URLStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := NewLoader().Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
}

// =============================================================================
// NORMALIZATION
// =============================================================================

func TestNormalize(t *testing.T) {
	decomposed := "Cafe\u0301"
	assert.Equal(t, "Caf\u00e9", Normalize(decomposed))

	invalid := string([]byte{'o', 'k', 0xff})
	assert.True(t, strings.HasPrefix(Normalize(invalid), "ok"))
	assert.NotContains(t, Normalize(invalid), string([]byte{0xff}))
}

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("ingest: %w", &NotFoundError{Path: "/tmp/x.txt"})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "File not found: /tmp/x.txt")
}
