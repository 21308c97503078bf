// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/ragrun/internal/document"
	"github.com/jeranaias/ragrun/internal/embedding"
)

// DefaultK is the number of documents a Retriever returns when K is unset.
const DefaultK = 3

// ErrNoStore is returned by a Retriever with no store attached.
var ErrNoStore = errors.New("retriever has no vector store")

// Retriever answers a text query with the nearest stored documents.
type Retriever struct {
	Store    Store
	Embedder embedding.Embedder
	K        int
}

// Retrieve embeds query and returns the top K documents in score order.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]document.Document, error) {
	if r == nil || r.Store == nil || r.Embedder == nil {
		return nil, ErrNoStore
	}
	k := r.K
	if k <= 0 {
		k = DefaultK
	}

	vec, err := r.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	hits, err := r.Store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	docs := make([]document.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.Record.Document
	}
	return docs, nil
}
