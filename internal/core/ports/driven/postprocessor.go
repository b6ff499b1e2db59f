package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ChunkProcessor transforms or filters a document's chunks.
// Processors are chained in a pipeline (e.g., quality gate, custom filters).
type ChunkProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process receives the chunks in document order and returns the survivors.
	Process(ctx context.Context, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// ChunkPipeline chains multiple ChunkProcessors.
type ChunkPipeline interface {
	// Process runs the chunks through all processors in order.
	Process(ctx context.Context, chunks []domain.Chunk) ([]domain.Chunk, error)
}
