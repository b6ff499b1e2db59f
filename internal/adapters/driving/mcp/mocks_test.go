package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	hits  []domain.QueryHit
	stats *domain.IndexStats
	opts  domain.QueryOptions
	err   error
}

func (m *mockQueryService) Query(_ context.Context, _ string, opts domain.QueryOptions) ([]domain.QueryHit, error) {
	m.opts = opts
	return m.hits, m.err
}

func (m *mockQueryService) Stats(_ context.Context) (*domain.IndexStats, error) {
	return m.stats, m.err
}

// mockIngestor is a mock implementation of driving.Ingestor.
type mockIngestor struct {
	report     *domain.IngestReport
	err        error
	folderPath string
	filePath   string
	force      bool
}

func (m *mockIngestor) IngestFolder(_ context.Context, path string, force bool) (*domain.IngestReport, error) {
	m.folderPath, m.force = path, force
	return m.report, m.err
}

func (m *mockIngestor) IngestFile(_ context.Context, path string, force bool) (*domain.IngestReport, error) {
	m.filePath, m.force = path, force
	return m.report, m.err
}
