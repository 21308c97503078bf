// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package embedding turns text into vectors using an Ollama embedding model.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Embedder produces vectors for documents and queries.
type Embedder interface {
	// EmbedDocuments returns one vector per text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)

	// EmbedQuery returns the vector for a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// Client is the part of the Ollama client used here.
type Client interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float64, error)
}

// ErrEmptyVector is returned when the model yields a zero-length embedding.
var ErrEmptyVector = errors.New("embedding model returned an empty vector")

// Options configures an Ollama embedder.
type Options struct {
	// Model is the embedding model name (default: nomic-embed-text).
	Model string

	// BatchSize is the number of texts per request (default: 16).
	BatchSize int

	// Concurrency bounds in-flight requests (default: 4).
	Concurrency int

	// Progress, if set, is called after each batch with the number of
	// texts embedded so far.
	Progress func(done, total int)

	Logger *zap.Logger
}

// Ollama embeds text through the Ollama /api/embed endpoint.
type Ollama struct {
	client Client
	opts   Options
	logger *zap.Logger
}

// NewOllama returns an embedder backed by client.
func NewOllama(client Client, opts Options) *Ollama {
	if opts.Model == "" {
		opts.Model = "nomic-embed-text"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ollama{client: client, opts: opts, logger: logger}
}

// Model returns the embedding model name.
func (o *Ollama) Model() string { return o.opts.Model }

// EmbedDocuments embeds texts in batches with bounded concurrency. The first
// failing batch cancels the rest.
func (o *Ollama) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	var (
		mu   sync.Mutex
		done int
	)
	for start := 0; start < len(texts); start += o.opts.BatchSize {
		start := start
		end := min(start+o.opts.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := o.client.Embed(gctx, o.opts.Model, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			for i, v := range vecs {
				if len(v) == 0 {
					return fmt.Errorf("embed text %d: %w", start+i, ErrEmptyVector)
				}
				out[start+i] = v
			}
			if o.opts.Progress != nil {
				mu.Lock()
				done += end - start
				o.opts.Progress(done, len(texts))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	o.logger.Debug("embedded documents",
		zap.String("model", o.opts.Model),
		zap.Int("count", len(texts)))
	return out, nil
}

// EmbedQuery embeds a single query.
func (o *Ollama) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vecs, err := o.client.Embed(ctx, o.opts.Model, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, ErrEmptyVector
	}
	return vecs[0], nil
}
