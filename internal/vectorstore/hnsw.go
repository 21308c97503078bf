// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vectorstore

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HNSWConfig tunes the graph index.
type HNSWConfig struct {
	M              int     `json:"m"`               // links per node per layer (layer 0 gets 2*M)
	EfConstruction int     `json:"ef_construction"` // candidate list size while inserting
	EfSearch       int     `json:"ef_search"`       // candidate list size while searching
	MaxLevel       int     `json:"max_level"`
	Ml             float64 `json:"ml"` // level normalization factor
	Seed           int64   `json:"seed"`
}

// DefaultHNSWConfig suits document-sized corpora (up to tens of thousands
// of chunks).
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		M:              16,
		EfConstruction: 200,
		EfSearch:       64,
		MaxLevel:       16,
		Ml:             1.0 / math.Log(16),
	}
}

// HNSW is an approximate nearest-neighbour index (Hierarchical Navigable
// Small World). Distance is 1 - cosine similarity.
type HNSW struct {
	mu     sync.RWMutex
	cfg    HNSWConfig
	logger *zap.Logger
	rng    *rand.Rand

	dim      int
	records  []Record
	units    [][]float64
	links    [][][]int // node -> level -> neighbours
	entry    int
	maxLevel int
}

// NewHNSW returns an empty index. Zero fields of cfg take defaults, and a
// zero Seed seeds from the clock.
func NewHNSW(cfg HNSWConfig, logger *zap.Logger) *HNSW {
	d := DefaultHNSWConfig()
	if cfg.M <= 0 {
		cfg.M = d.M
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = d.EfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = d.EfSearch
	}
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = d.MaxLevel
	}
	if cfg.Ml <= 0 {
		cfg.Ml = 1.0 / math.Log(float64(max(cfg.M, 2)))
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HNSW{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
		entry:  -1,
	}
}

// Add inserts records into the graph.
func (h *HNSW) Add(ctx context.Context, records []Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	batch := append([]Record(nil), records...)
	dim := h.dim
	units, err := prepare(batch, &dim)
	if err != nil {
		return err
	}
	h.dim = dim

	start := time.Now()
	for i := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.records = append(h.records, batch[i])
		h.units = append(h.units, units[i])
		h.insert(len(h.records) - 1)
	}

	h.logger.Debug("hnsw records indexed",
		zap.Int("added", len(batch)),
		zap.Int("size", len(h.records)),
		zap.Int("max_level", h.maxLevel),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Search walks the graph from the top layer down and returns the best k
// candidates found on layer 0.
func (h *HNSW) Search(ctx context.Context, query []float64, k int) ([]Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := checkQuery(query, h.dim); err != nil {
		return nil, err
	}
	if k <= 0 || h.entry < 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := normalize(query)
	ep := h.entry
	for lc := h.maxLevel; lc > 0; lc-- {
		ep = h.searchLayer(q, ep, 1, lc)[0].id
	}
	found := h.searchLayer(q, ep, max(h.cfg.EfSearch, k), 0)
	if len(found) > k {
		found = found[:k]
	}

	results := make([]Result, len(found))
	for i, c := range found {
		results[i] = Result{Record: h.records[c.id], Score: 1 - c.dist}
	}
	return results, nil
}

// Len returns the number of indexed records.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// =============================================================================
// GRAPH CONSTRUCTION
// =============================================================================

func (h *HNSW) insert(n int) {
	level := h.randomLevel()
	h.links = append(h.links, make([][]int, level+1))

	if h.entry < 0 {
		h.entry = n
		h.maxLevel = level
		return
	}

	q := h.units[n]
	ep := h.entry
	for lc := h.maxLevel; lc > level; lc-- {
		ep = h.searchLayer(q, ep, 1, lc)[0].id
	}

	for lc := min(level, h.maxLevel); lc >= 0; lc-- {
		found := h.searchLayer(q, ep, h.cfg.EfConstruction, lc)
		m := h.maxLinks(lc)

		neighbours := make([]int, 0, min(m, len(found)))
		for _, c := range found[:min(m, len(found))] {
			neighbours = append(neighbours, c.id)
		}
		h.links[n][lc] = neighbours

		for _, nb := range neighbours {
			h.links[nb][lc] = append(h.links[nb][lc], n)
			if len(h.links[nb][lc]) > m {
				h.links[nb][lc] = h.closest(nb, h.links[nb][lc], m)
			}
		}
		ep = found[0].id
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = n
	}
}

func (h *HNSW) maxLinks(level int) int {
	if level == 0 {
		return h.cfg.M * 2
	}
	return h.cfg.M
}

// closest keeps the m candidates nearest to node.
func (h *HNSW) closest(node int, ids []int, m int) []int {
	cands := make([]candidate, len(ids))
	for i, id := range ids {
		cands[i] = candidate{id: id, dist: h.distance(h.units[node], id)}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	out := make([]int, m)
	for i := range out {
		out[i] = cands[i].id
	}
	return out
}

func (h *HNSW) randomLevel() int {
	level := int(-math.Log(1-h.rng.Float64()) * h.cfg.Ml)
	return min(level, h.cfg.MaxLevel)
}

func (h *HNSW) distance(q []float64, id int) float64 {
	return 1 - dot(q, h.units[id])
}

// =============================================================================
// LAYER SEARCH
// =============================================================================

type candidate struct {
	id   int
	dist float64
}

// searchLayer runs a best-first search on one layer and returns up to ef
// candidates sorted by ascending distance.
func (h *HNSW) searchLayer(q []float64, ep, ef, level int) []candidate {
	visited := map[int]bool{ep: true}
	start := candidate{id: ep, dist: h.distance(q, ep)}
	frontier := &minHeap{start}
	best := &maxHeap{start}

	for frontier.Len() > 0 {
		c := heap.Pop(frontier).(candidate)
		if c.dist > (*best)[0].dist {
			break
		}
		if level >= len(h.links[c.id]) {
			continue
		}
		for _, nb := range h.links[c.id][level] {
			if visited[nb] {
				continue
			}
			visited[nb] = true

			d := h.distance(q, nb)
			if best.Len() < ef || d < (*best)[0].dist {
				heap.Push(frontier, candidate{id: nb, dist: d})
				heap.Push(best, candidate{id: nb, dist: d})
				if best.Len() > ef {
					heap.Pop(best)
				}
			}
		}
	}

	out := make([]candidate, best.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(best).(candidate)
	}
	return out
}

type minHeap []candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

type maxHeap []candidate

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
