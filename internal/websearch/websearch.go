// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package websearch provides the web search fallback used when local
// documents cannot answer a question.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/config"
)

// Provider names accepted by New.
const (
	ProviderTavily     = "tavily"
	ProviderDuckDuckGo = "duckduckgo"
)

var (
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("search query is empty")

	// ErrUnknownProvider is returned by New for an unrecognized provider.
	ErrUnknownProvider = errors.New("unknown web search provider")

	// ErrMissingAPIKey is returned by NewTavily without a key.
	ErrMissingAPIKey = errors.New("tavily api key is not set")
)

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Result, error)
}

// ObserveFunc is called after every search with the provider name and the
// search error, if any.
type ObserveFunc func(provider string, err error)

// New builds the Searcher described by cfg, wrapped in a rate limiter when
// requests_per_minute is positive. Selecting Tavily without an API key falls
// back to DuckDuckGo.
func New(cfg config.WebSearchConfig, observe ObserveFunc, logger *zap.Logger) (Searcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	var (
		s    Searcher
		name string
	)
	switch p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p {
	case ProviderTavily:
		t, err := NewTavily(cfg.TavilyAPIKey, timeout)
		if errors.Is(err, ErrMissingAPIKey) {
			logger.Warn("tavily selected without an api key, using duckduckgo")
			s, name = NewDuckDuckGo(timeout), ProviderDuckDuckGo
			break
		}
		if err != nil {
			return nil, err
		}
		s, name = t, ProviderTavily
	case ProviderDuckDuckGo, "":
		s, name = NewDuckDuckGo(timeout), ProviderDuckDuckGo
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	if observe != nil {
		s = observed{next: s, name: name, fn: observe}
	}
	if cfg.RequestsPerMinute > 0 {
		s = NewRateLimited(s, cfg.RequestsPerMinute)
	}
	logger.Debug("web search ready",
		zap.String("provider", name),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute))
	return s, nil
}

type observed struct {
	next Searcher
	name string
	fn   ObserveFunc
}

func (o observed) Search(ctx context.Context, query string, k int) ([]Result, error) {
	res, err := o.next.Search(ctx, query, k)
	o.fn(o.name, err)
	return res, err
}

// Contents joins the result contents with newlines, the shape the workflow
// stores as a single web document.
func Contents(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n")
}
