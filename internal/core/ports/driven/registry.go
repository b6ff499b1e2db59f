package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ProcessedFileRegistry persists which source documents have been ingested.
// Keys are document content hashes, so entries for different documents never contend.
type ProcessedFileRegistry interface {
	// Get returns the entry for a document hash, or domain.ErrNotFound.
	Get(ctx context.Context, hash string) (*domain.ProcessedFile, error)

	// Put inserts or replaces the entry for file.Hash atomically.
	Put(ctx context.Context, file domain.ProcessedFile) error

	// List returns every entry, most recently updated first.
	List(ctx context.Context) ([]domain.ProcessedFile, error)
}
