// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vectorstore holds embedded chunks in memory and answers
// nearest-neighbour queries by cosine similarity.
//
// Two stores are provided: Flat, an exact brute-force scan, and HNSW, an
// approximate hierarchical graph index for larger corpora.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/ragrun/internal/config"
	"github.com/jeranaias/ragrun/internal/document"
)

// =============================================================================
// TYPES
// =============================================================================

// Record is one stored chunk and its embedding.
type Record struct {
	ID       string
	Vector   []float64
	Document document.Document
}

// Result is a search hit. Score is the cosine similarity to the query.
type Result struct {
	Record Record
	Score  float64
}

// Store is an in-memory vector index.
//
// Implementations are safe for concurrent use.
type Store interface {
	// Add indexes records. Records without an ID get a random one.
	Add(ctx context.Context, records []Record) error

	// Search returns up to k records ordered by descending score.
	Search(ctx context.Context, query []float64, k int) ([]Result, error)

	// Len returns the number of indexed records.
	Len() int
}

// Kind names a store implementation.
const (
	KindFlat = "flat"
	KindHNSW = "hnsw"
)

var (
	// ErrUnsupportedStore is returned by New for an unknown kind.
	ErrUnsupportedStore = errors.New("Unsupported vector store type.")

	// ErrDimensionMismatch is returned when a vector's length differs from
	// the store's.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector is returned for a zero-length vector.
	ErrEmptyVector = errors.New("empty vector")
)

// New returns an empty store of the given kind. Legacy names (sklearn,
// faiss) are accepted.
func New(kind string, logger *zap.Logger) (Store, error) {
	switch config.NormalizeVectorStore(kind) {
	case KindFlat:
		return NewFlat(), nil
	case KindHNSW:
		return NewHNSW(DefaultHNSWConfig(), logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, kind)
	}
}

// =============================================================================
// VECTOR MATH
// =============================================================================

// normalize returns v scaled to unit length. A zero vector is returned as is.
func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	out := make([]float64, len(v))
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// prepare validates a batch against dim, fills in IDs and returns the unit
// vectors. dim is updated when the store was empty.
func prepare(records []Record, dim *int) ([][]float64, error) {
	units := make([][]float64, len(records))
	for i := range records {
		v := records[i].Vector
		if len(v) == 0 {
			return nil, fmt.Errorf("record %d: %w", i, ErrEmptyVector)
		}
		if *dim == 0 {
			*dim = len(v)
		}
		if len(v) != *dim {
			return nil, fmt.Errorf("record %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(v), *dim)
		}
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		units[i] = normalize(v)
	}
	return units, nil
}

func checkQuery(query []float64, dim int) error {
	if len(query) == 0 {
		return ErrEmptyVector
	}
	if dim != 0 && len(query) != dim {
		return fmt.Errorf("query: %w: got %d, want %d", ErrDimensionMismatch, len(query), dim)
	}
	return nil
}
