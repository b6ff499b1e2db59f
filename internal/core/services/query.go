package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService answers ad hoc retrieval queries against the index.
type QueryService struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	registry driven.ProcessedFileRegistry
}

// NewQueryService creates a query service. The registry is optional and only
// feeds Stats.
func NewQueryService(embedder driven.EmbeddingService, index driven.VectorIndex, registry driven.ProcessedFileRegistry) *QueryService {
	return &QueryService{
		embedder: embedder,
		index:    index,
		registry: registry,
	}
}

// Query embeds text and returns the nearest chunks.
func (s *QueryService) Query(ctx context.Context, text string, opts domain.QueryOptions) ([]domain.QueryHit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.index.Query(ctx, vector, opts.Normalised())
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return hits, nil
}

// Stats returns chunk counts per collection and registry counts per status.
func (s *QueryService) Stats(ctx context.Context) (*domain.IndexStats, error) {
	if s.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	counts, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	stats := &domain.IndexStats{
		Chunks: make(map[domain.Collection]int, len(domain.AllCollections())),
		Files:  make(map[domain.FileStatus]int),
	}
	for _, c := range domain.AllCollections() {
		stats.Chunks[c] = counts[c]
	}

	if s.registry != nil {
		files, err := s.registry.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list registry: %w", err)
		}
		for _, f := range files {
			stats.Files[f.Status]++
		}
	}
	return stats, nil
}
