package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex using brute-force search.
type VectorIndex struct {
	mu      sync.RWMutex
	records map[string]domain.VectorRecord
	dims    int
}

// NewVectorIndex creates a new in-memory vector index.
// A non-zero dims makes Upsert reject vectors of any other length.
func NewVectorIndex(dims int) *VectorIndex {
	return &VectorIndex{
		records: make(map[string]domain.VectorRecord),
		dims:    dims,
	}
}

// Upsert validates every record before writing any of them.
func (v *VectorIndex) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
		}
		if v.dims > 0 && len(rec.Vector) != v.dims {
			return fmt.Errorf("%w: record %s has %d dimensions, want %d", domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), v.dims)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, rec := range records {
		rec.Vector = slices.Clone(rec.Vector)
		v.records[rec.ID] = rec
	}
	return nil
}

// Query scores every record in the requested collections.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, opts domain.QueryOptions) ([]domain.QueryHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.Normalised()

	v.mu.RLock()
	defer v.mu.RUnlock()
	hits := make([]domain.QueryHit, 0, len(v.records))
	for _, rec := range v.records {
		if !slices.Contains(opts.Collections, rec.Collection) {
			continue
		}
		hits = append(hits, domain.QueryHit{Record: rec, Score: domain.CosineSimilarity(vector, rec.Vector)})
	}
	return domain.TopHits(hits, opts.K), nil
}

// Count returns the number of records per collection.
func (v *VectorIndex) Count(_ context.Context) (map[domain.Collection]int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	counts := make(map[domain.Collection]int)
	for _, rec := range v.records {
		counts[rec.Collection]++
	}
	return counts, nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}
