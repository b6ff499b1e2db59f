package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// DefaultEmbedBatchSize is the number of chunks embedded per model call.
const DefaultEmbedBatchSize = 64

// IndexResult counts what one Index call wrote.
type IndexResult struct {
	Stored     int
	Duplicates int
}

// Indexer embeds chunks and upserts them keyed by content hash.
type Indexer struct {
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	batchSize int
}

// NewIndexer creates an indexer. A non-positive batch size uses the default.
func NewIndexer(embedder driven.EmbeddingService, index driven.VectorIndex, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &Indexer{
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
	}
}

// Index embeds every chunk and writes them in a single upsert.
// Chunks sharing a content hash are written once. Nothing is written unless
// every chunk was embedded.
func (i *Indexer) Index(ctx context.Context, chunks []domain.Chunk) (IndexResult, error) {
	var res IndexResult
	if i.embedder == nil {
		return res, domain.ErrEmbeddingUnavailable
	}
	if i.index == nil {
		return res, domain.ErrVectorIndexUnavailable
	}

	unique := make([]domain.Chunk, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.ID]; ok {
			res.Duplicates++
			continue
		}
		seen[c.ID] = struct{}{}
		unique = append(unique, c)
	}
	if len(unique) == 0 {
		return res, nil
	}

	dims := i.embedder.Dimensions()
	records := make([]domain.VectorRecord, 0, len(unique))
	for start := 0; start < len(unique); start += i.batchSize {
		end := min(start+i.batchSize, len(unique))
		batch := unique[start:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}
		vectors, err := i.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return res, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return res, fmt.Errorf("embed batch %d-%d: got %d vectors for %d texts", start, end, len(vectors), len(batch))
		}

		for j := range batch {
			if dims > 0 && len(vectors[j]) != dims {
				return res, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vectors[j]), dims)
			}
			batch[j].Embedding = vectors[j]
			records = append(records, domain.RecordFromChunk(batch[j]))
		}
	}

	if err := i.index.Upsert(ctx, records); err != nil {
		return res, fmt.Errorf("upsert: %w", err)
	}
	res.Stored = len(records)
	logger.Debug("indexed %d chunks (%d duplicates)", res.Stored, res.Duplicates)
	return res, nil
}
