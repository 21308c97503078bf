// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TavilyEndpoint is the Tavily search API URL.
const TavilyEndpoint = "https://api.tavily.com/search"

// Tavily searches through the Tavily API.
type Tavily struct {
	// Endpoint overrides TavilyEndpoint (tests).
	Endpoint string

	apiKey string
	client *http.Client
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []Result `json:"results"`
}

// NewTavily returns a Tavily searcher. A zero timeout means 15s.
func NewTavily(apiKey string, timeout time.Duration) (*Tavily, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Tavily{
		Endpoint: TavilyEndpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Search posts the query and returns up to k results.
func (t *Tavily) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = 3
	}

	body, err := json.Marshal(tavilyRequest{APIKey: t.apiKey, Query: query, MaxResults: k})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily search: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out tavilyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 5*1024*1024)).Decode(&out); err != nil {
		return nil, fmt.Errorf("tavily search: decode response: %w", err)
	}
	if len(out.Results) > k {
		out.Results = out.Results[:k]
	}
	return out.Results, nil
}
