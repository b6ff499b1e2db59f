package driving

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Ingestor runs the ingestion pipeline over source documents.
type Ingestor interface {
	// IngestFolder discovers PDFs under path and ingests every document whose hash
	// is not yet registered as ingested. force re-ingests registered documents.
	// A failing document is recorded in the report and never aborts the batch.
	IngestFolder(ctx context.Context, path string, force bool) (*domain.IngestReport, error)

	// IngestFile ingests exactly one document, bypassing folder discovery.
	IngestFile(ctx context.Context, path string, force bool) (*domain.IngestReport, error)
}
