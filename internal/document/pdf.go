// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"fmt"
	"path/filepath"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts plain text page by page. Pages without text (scans) are
// skipped.
func loadPDF(path string) (docs []Document, err error) {
	defer func() {
		// The PDF parser panics on some malformed cross-reference tables.
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("failed to parse PDF %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	title := filepath.Base(path)
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d of %s: %w", i, path, err)
		}
		docs = append(docs, Document{
			Content:  text,
			Metadata: Metadata{Source: path, Type: TypePDF, Page: i, Title: title},
		})
	}
	return docs, nil
}
