package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// VectorIndex stores embedded chunks in per-family collections keyed by content hash.
type VectorIndex interface {
	// Upsert writes all records or none of them.
	// A record whose ID already exists is overwritten, so re-ingesting identical
	// content never grows the index.
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// Query returns the top-k records by cosine similarity across the requested collections.
	Query(ctx context.Context, vector []float32, opts domain.QueryOptions) ([]domain.QueryHit, error)

	// Count returns the number of records per collection.
	Count(ctx context.Context) (map[domain.Collection]int, error)

	// Close releases resources.
	Close() error
}
