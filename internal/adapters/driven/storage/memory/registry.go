package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ProcessedFileRegistry = (*Registry)(nil)

// Registry is an in-memory implementation of driven.ProcessedFileRegistry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.ProcessedFile
}

// NewRegistry creates a new in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]domain.ProcessedFile),
	}
}

// Get returns the entry for a document hash.
func (r *Registry) Get(_ context.Context, hash string) (*domain.ProcessedFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// Put inserts or replaces an entry.
func (r *Registry) Put(_ context.Context, file domain.ProcessedFile) error {
	if file.Hash == "" {
		return domain.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[file.Hash] = file
	return nil
}

// List returns every entry, most recently updated first.
func (r *Registry) List(_ context.Context) ([]domain.ProcessedFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.ProcessedFile, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].Hash < result[j].Hash
	})
	return result, nil
}
