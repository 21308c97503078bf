// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package websearch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to the wrapped Searcher.
type RateLimited struct {
	next    Searcher
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute searches per minute with a burst of one.
// A non-positive perMinute disables limiting.
func NewRateLimited(next Searcher, perMinute int) *RateLimited {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, 1)}
}

// Search waits for a token, or for ctx, before searching.
func (r *RateLimited) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Search(ctx, query, k)
}
