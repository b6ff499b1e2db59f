package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// QueryService provides ad hoc retrieval over the index.
type QueryService interface {
	// Query embeds text and returns the nearest chunks with their citations.
	Query(ctx context.Context, text string, opts domain.QueryOptions) ([]domain.QueryHit, error)

	// Stats returns chunk counts per collection and registry counts per status.
	Stats(ctx context.Context) (*domain.IndexStats, error)
}
