// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ingest turns a document into a ready retriever: load, split, embed
// and index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/config"
	"github.com/jeranaias/ragrun/internal/document"
	"github.com/jeranaias/ragrun/internal/embedding"
	"github.com/jeranaias/ragrun/internal/metrics"
	"github.com/jeranaias/ragrun/internal/splitter"
	"github.com/jeranaias/ragrun/internal/vectorstore"
)

// =============================================================================
// TYPES
// =============================================================================

// FinishStop is the finish reason of a successful ingestion.
const FinishStop = "stop"

// ErrNoPath is returned for an empty request path.
var ErrNoPath = errors.New("no document path given")

// Settings are the document options an ingestion runs with.
type Settings struct {
	EmbeddingModel   string
	VectorStore      string
	ChunkSize        int
	ChunkOverlap     int
	RetrieveDocs     int
	EmbedConcurrency int
}

// SettingsFrom copies the [documents] section.
func SettingsFrom(cfg config.DocumentsConfig) Settings {
	return Settings{
		EmbeddingModel:   cfg.EmbeddingModel,
		VectorStore:      cfg.VectorStore,
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		RetrieveDocs:     cfg.RetrieveDocs,
		EmbedConcurrency: cfg.EmbedConcurrency,
	}
}

// Request asks for one document to be ingested.
type Request struct {
	Path     string
	Settings Settings

	// Progress, if set, receives every stage event of the run.
	Progress func(Event)
}

// Result describes a finished ingestion.
type Result struct {
	Path         string
	Retriever    *vectorstore.Retriever
	Documents    int
	Chunks       int
	Tokens       int
	Store        string
	Model        string
	FinishReason string
	Elapsed      time.Duration
}

// Stage identifies a progress event.
type Stage string

const (
	StageStarted  Stage = "started"
	StageLoaded   Stage = "loaded"
	StageSplit    Stage = "split"
	StageEmbedded Stage = "embedded"
	StageFinished Stage = "finished"
	StageFailed   Stage = "failed"
)

// Terminal reports whether no further events follow s.
func (s Stage) Terminal() bool {
	return s == StageFinished || s == StageFailed
}

// Event reports ingestion progress. Done and Total count chunks during
// embedding; Result is set on StageFinished and Err on StageFailed.
type Event struct {
	Stage  Stage
	Path   string
	Done   int
	Total  int
	Result *Result
	Err    error
}

// DocumentLoader reads a source into documents.
type DocumentLoader interface {
	Load(ctx context.Context, source string) ([]document.Document, error)
}

// =============================================================================
// PIPELINE
// =============================================================================

// Deps are the services a Pipeline uses.
type Deps struct {
	Loader DocumentLoader

	// Embeddings is the Ollama client used for /api/embed.
	Embeddings embedding.Client

	// Tokenizer counts chunk tokens. Nil selects cl100k_base, falling back
	// to rune counting when the encoding cannot be loaded.
	Tokenizer splitter.Tokenizer

	Metrics *metrics.Recorder
	Logger  *zap.Logger
}

// Pipeline runs ingestions.
type Pipeline struct {
	deps   Deps
	logger *zap.Logger

	tokOnce sync.Once
	tok     splitter.Tokenizer
}

// NewPipeline returns a Pipeline over deps.
func NewPipeline(deps Deps) *Pipeline {
	if deps.Loader == nil {
		deps.Loader = document.NewLoader()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, logger: logger}
}

func (p *Pipeline) tokenizer() splitter.Tokenizer {
	p.tokOnce.Do(func() {
		if p.deps.Tokenizer != nil {
			p.tok = p.deps.Tokenizer
			return
		}
		tk, err := splitter.NewTiktoken(splitter.DefaultEncoding)
		if err != nil {
			p.logger.Warn("tiktoken unavailable, counting runes", zap.Error(err))
			p.tok = splitter.RuneCounter{}
			return
		}
		p.tok = tk
	})
	return p.tok
}

// Run ingests req.Path. Events are emitted for each stage, ending with
// StageFinished or StageFailed.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	emit := func(e Event) {
		e.Path = req.Path
		if req.Progress != nil {
			req.Progress(e)
		}
	}
	fail := func(err error) (*Result, error) {
		p.logger.Warn("ingestion failed", zap.String("path", req.Path), zap.Error(err))
		emit(Event{Stage: StageFailed, Err: err})
		return nil, err
	}

	emit(Event{Stage: StageStarted})
	s := req.Settings

	if err := checkSource(req.Path); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	docs, err := p.deps.Loader.Load(ctx, req.Path)
	if err != nil {
		return fail(fmt.Errorf("load: %w", err))
	}
	emit(Event{Stage: StageLoaded, Total: len(docs)})

	sp, err := splitter.New(s.ChunkSize, s.ChunkOverlap, p.tokenizer())
	if err != nil {
		return fail(err)
	}
	chunks := sp.SplitDocuments(docs)
	if len(chunks) == 0 {
		return fail(fmt.Errorf("split: %w", document.ErrEmpty))
	}
	emit(Event{Stage: StageSplit, Total: len(chunks)})

	embedder := embedding.NewOllama(p.deps.Embeddings, embedding.Options{
		Model:       s.EmbeddingModel,
		Concurrency: s.EmbedConcurrency,
		Logger:      p.logger,
		Progress: func(done, total int) {
			emit(Event{Stage: StageEmbedded, Done: done, Total: total})
		},
	})
	texts := make([]string, len(chunks))
	tokens := 0
	for i, c := range chunks {
		texts[i] = c.Text
		tokens += c.Tokens
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fail(fmt.Errorf("embed: %w", err))
	}

	store, err := vectorstore.New(s.VectorStore, p.logger)
	if err != nil {
		return fail(err)
	}
	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Record{
			Vector:   vectors[i],
			Document: document.Document{Content: c.Text, Metadata: c.Metadata},
		}
	}
	if err := store.Add(ctx, records); err != nil {
		return fail(fmt.Errorf("index: %w", err))
	}

	res := &Result{
		Path:         req.Path,
		Retriever:    &vectorstore.Retriever{Store: store, Embedder: embedder, K: s.RetrieveDocs},
		Documents:    len(docs),
		Chunks:       len(chunks),
		Tokens:       tokens,
		Store:        config.NormalizeVectorStore(s.VectorStore),
		Model:        embedder.Model(),
		FinishReason: FinishStop,
		Elapsed:      time.Since(start),
	}
	p.deps.Metrics.ObserveIngest(res.Elapsed, res.Chunks)
	p.logger.Info("ingestion finished",
		zap.String("path", req.Path),
		zap.Int("chunks", res.Chunks),
		zap.String("store", res.Store),
		zap.Duration("elapsed", res.Elapsed))
	emit(Event{Stage: StageFinished, Result: res, Done: res.Chunks, Total: res.Chunks})
	return res, nil
}

// checkSource verifies a file source exists. URLs are checked when fetched.
func checkSource(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrNoPath
	}
	if typ, _ := document.DetectType(path); typ == document.TypeURL {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document.NotFoundError{Path: path}
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
