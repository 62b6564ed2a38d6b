// Package hnswindex is an in-process similarity index holding one HNSW graph
// per attribute partition.
package hnswindex

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/internal/domain/similarity"
	"github.com/okian/brandmatch/pkg/metrics"
)

// Option applies a configuration option to the Index.
type Option func(*Index)

// WithPartitions creates empty partitions up front so they are queryable
// before anything is indexed into them.
func WithPartitions(ps ...attribute.Partition) Option {
	return func(ix *Index) {
		for _, p := range ps {
			ix.partition(p, true)
		}
	}
}

// WithDimension rejects vectors of any other length. Zero accepts the
// length of the first vector added to each partition.
func WithDimension(dim int) Option {
	return func(ix *Index) {
		if dim > 0 {
			ix.dim = dim
		}
	}
}

// WithEfSearch sets the HNSW candidate list size used during search.
func WithEfSearch(ef int) Option {
	return func(ix *Index) {
		if ef > 0 {
			ix.efSearch = ef
		}
	}
}

// partition keeps the vectors authoritative and treats the graph as a
// derived view. Replacing or removing a node marks the graph stale and the
// next query rebuilds it from vectors; hnsw.Graph.Delete is never called.
type partition struct {
	mu      sync.Mutex
	ef      int
	graph   *hnsw.Graph[string]
	vectors map[string][]float32
	texts   map[string]string
	dim     int
	stale   bool
}

func newGraph(ef int) *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	g.EfSearch = ef
	return g
}

// rebuild recreates the graph in id order. Callers hold mu.
func (part *partition) rebuild() {
	ids := make([]string, 0, len(part.vectors))
	for id := range part.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	g := newGraph(part.ef)
	for _, id := range ids {
		g.Add(hnsw.MakeNode(id, part.vectors[id]))
	}
	part.graph = g
	part.stale = false
}

// Index implements similarity.Index. Scores are cosine similarities in [-1, 1].
type Index struct {
	mu         sync.RWMutex
	partitions map[attribute.Partition]*partition
	dim        int
	efSearch   int
}

var _ similarity.Index = (*Index)(nil)

// New creates an empty Index.
func New(opts ...Option) *Index {
	ix := &Index{partitions: make(map[attribute.Partition]*partition), efSearch: 64}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func (ix *Index) partition(p attribute.Partition, create bool) *partition {
	ix.mu.RLock()
	part, ok := ix.partitions[p]
	ix.mu.RUnlock()
	if ok || !create {
		return part
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if part, ok = ix.partitions[p]; ok {
		return part
	}
	part = &partition{
		ef:      ix.efSearch,
		graph:   newGraph(ix.efSearch),
		vectors: make(map[string][]float32),
		texts:   make(map[string]string),
	}
	ix.partitions[p] = part
	metrics.UpdateIndexedCandidates(string(p), 0)
	return part
}

// Query returns up to topN nearest candidates of partition.
func (ix *Index) Query(ctx context.Context, vec embedding.Vector, p attribute.Partition, topN int) ([]model.RawMatch, error) {
	start := time.Now()
	defer func() { metrics.RecordIndexQueryLatency(string(p), float64(time.Since(start).Microseconds())/1000) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", similarity.ErrIndexUnavailable, err)
	}
	part := ix.partition(p, false)
	if part == nil {
		return nil, fmt.Errorf("%w: partition %q", similarity.ErrIndexNotReady, p)
	}
	key, _ := p.Key()

	part.mu.Lock()
	defer part.mu.Unlock()

	if len(part.vectors) == 0 || topN <= 0 {
		return []model.RawMatch{}, nil
	}
	if part.dim != len(vec) {
		return nil, fmt.Errorf("%w: %w: query dimension %d, partition holds %d", similarity.ErrIndexUnavailable, embedding.ErrDataIntegrity, len(vec), part.dim)
	}
	if part.stale {
		part.rebuild()
	}

	nodes := part.graph.Search(vec, topN)
	out := make([]model.RawMatch, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, model.RawMatch{
			CandidateID: n.Key,
			Attribute:   key,
			Score:       1 - float64(hnsw.CosineDistance(vec, n.Value)),
		})
	}
	return out, nil
}

// Upsert indexes vec as candidateID's vector in partition, replacing any
// previous one. Partitions are created on first write.
func (ix *Index) Upsert(_ context.Context, p attribute.Partition, candidateID, text string, vec embedding.Vector) error {
	if candidateID == "" {
		return fmt.Errorf("%w: empty candidate id", embedding.ErrDataIntegrity)
	}
	if err := embedding.Validate(vec, ix.dim); err != nil {
		return err
	}
	part := ix.partition(p, true)

	part.mu.Lock()
	defer part.mu.Unlock()

	if part.dim > 0 && part.dim != len(vec) {
		return fmt.Errorf("%w: dimension %d, partition holds %d", embedding.ErrDataIntegrity, len(vec), part.dim)
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	_, replaced := part.vectors[candidateID]
	part.vectors[candidateID] = cp
	part.texts[candidateID] = text
	part.dim = len(vec)
	switch {
	case replaced:
		part.stale = true
	case !part.stale:
		part.graph.Add(hnsw.MakeNode(candidateID, cp))
	}
	metrics.UpdateIndexedCandidates(string(p), len(part.vectors))
	return nil
}

// Delete removes candidateID from partition. Unknown ids are ignored.
func (ix *Index) Delete(_ context.Context, p attribute.Partition, candidateID string) error {
	part := ix.partition(p, false)
	if part == nil {
		return nil
	}
	part.mu.Lock()
	defer part.mu.Unlock()

	if _, ok := part.vectors[candidateID]; ok {
		delete(part.vectors, candidateID)
		part.stale = true
	}
	delete(part.texts, candidateID)
	if len(part.vectors) == 0 {
		part.graph = newGraph(part.ef)
		part.stale = false
		part.dim = 0
	}
	metrics.UpdateIndexedCandidates(string(p), len(part.vectors))
	return nil
}

// Text returns the indexed text of candidateID in partition.
func (ix *Index) Text(p attribute.Partition, candidateID string) (string, bool) {
	part := ix.partition(p, false)
	if part == nil {
		return "", false
	}
	part.mu.Lock()
	defer part.mu.Unlock()
	t, ok := part.texts[candidateID]
	return t, ok
}

// Sizes returns the number of candidates per existing partition.
func (ix *Index) Sizes() map[attribute.Partition]int {
	ix.mu.RLock()
	parts := make(map[attribute.Partition]*partition, len(ix.partitions))
	for name, part := range ix.partitions {
		parts[name] = part
	}
	ix.mu.RUnlock()

	out := make(map[attribute.Partition]int, len(parts))
	for name, part := range parts {
		part.mu.Lock()
		out[name] = len(part.vectors)
		part.mu.Unlock()
	}
	return out
}
