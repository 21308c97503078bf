// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package document loads source material for ingestion: plain text and
// markdown files, PDF, DOCX, and web pages.
package document

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// TYPES
// =============================================================================

// Document is one unit of loaded text. PDFs yield one Document per page;
// other sources yield a single Document.
type Document struct {
	Content  string
	Metadata Metadata
}

// Metadata describes where a Document came from.
type Metadata struct {
	Source string `json:"source"`
	Type   Type   `json:"type"`
	Page   int    `json:"page,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Type identifies a supported source format.
type Type string

const (
	TypeText     Type = "Text"
	TypeMarkdown Type = "Markdown"
	TypePDF      Type = "PDF"
	TypeDOCX     Type = "DOCX"
	TypeURL      Type = "Url"
)

var (
	// ErrUnsupportedType is returned for sources with no loader.
	ErrUnsupportedType = errors.New("Unsupported file type")

	// ErrNotFound is returned when a file source does not exist.
	ErrNotFound = errors.New("File not found")

	// ErrEmpty is returned when a source yields no text.
	ErrEmpty = errors.New("document contains no text")
)

// NotFoundError carries the missing path. It matches ErrNotFound.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "File not found: " + e.Path
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// =============================================================================
// LOADER
// =============================================================================

// Loader reads documents from paths and URLs.
type Loader struct {
	// HTTPClient fetches URL sources. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// MaxURLBytes caps the size of a fetched page (default 10 MiB).
	MaxURLBytes int64
}

// NewLoader returns a Loader with default settings.
func NewLoader() *Loader {
	return &Loader{
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		MaxURLBytes: 10 << 20,
	}
}

// DetectType returns the source type of a path or URL.
func DetectType(source string) (Type, error) {
	lower := strings.ToLower(strings.TrimSpace(source))
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return TypeURL, nil
	}
	switch filepath.Ext(lower) {
	case ".txt", ".text", ".log":
		return TypeText, nil
	case ".md", ".markdown":
		return TypeMarkdown, nil
	case ".pdf":
		return TypePDF, nil
	case ".docx":
		return TypeDOCX, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(source))
}

// Load reads source and returns its documents. Files are checked for
// existence before their type, so a missing file of any extension reports
// the missing path.
func (l *Loader) Load(ctx context.Context, source string) ([]Document, error) {
	source = strings.TrimSpace(source)
	typ, typeErr := DetectType(source)

	if typ != TypeURL {
		info, err := os.Stat(source)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &NotFoundError{Path: source}
			}
			return nil, fmt.Errorf("failed to stat %s: %w", source, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", source)
		}
	}
	if typeErr != nil {
		return nil, typeErr
	}

	var (
		docs []Document
		err  error
	)
	switch typ {
	case TypeText, TypeMarkdown:
		docs, err = loadText(source, typ)
	case TypePDF:
		docs, err = loadPDF(source)
	case TypeDOCX:
		docs, err = loadDOCX(source)
	case TypeURL:
		docs, err = l.loadURL(ctx, source)
	}
	if err != nil {
		return nil, err
	}

	out := docs[:0]
	for _, d := range docs {
		d.Content = Normalize(d.Content)
		if strings.TrimSpace(d.Content) != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmpty)
	}
	return out, nil
}

// Normalize repairs invalid UTF-8, converts to NFC, normalizes line endings
// and trims trailing spaces on each line.
func Normalize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func loadText(path string, typ Type) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return []Document{{
		Content:  string(data),
		Metadata: Metadata{Source: path, Type: typ, Title: filepath.Base(path)},
	}}, nil
}
