// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vectorstore

import (
	"context"
	"sort"
	"sync"
)

// Flat is an exact store that scores every record on each query.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	records []Record
	units   [][]float64
}

// NewFlat returns an empty exact store.
func NewFlat() *Flat {
	return &Flat{}
}

// Add appends records. The batch is rejected whole if any vector is invalid.
func (f *Flat) Add(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := append([]Record(nil), records...)
	dim := f.dim
	units, err := prepare(batch, &dim)
	if err != nil {
		return err
	}
	f.dim = dim
	f.records = append(f.records, batch...)
	f.units = append(f.units, units...)
	return nil
}

// Search scores all records. Ties keep insertion order.
func (f *Flat) Search(ctx context.Context, query []float64, k int) ([]Result, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := checkQuery(query, f.dim); err != nil {
		return nil, err
	}
	if k <= 0 || len(f.records) == 0 {
		return nil, nil
	}

	q := normalize(query)
	results := make([]Result, len(f.records))
	for i, u := range f.units {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		results[i] = Result{Record: f.records[i], Score: dot(q, u)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of records.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.records)
}
