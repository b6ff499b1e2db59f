package driven

import "github.com/custodia-labs/sercha-ingest/internal/core/domain"

// LayoutClassifier segments a page into typed, non-overlapping blocks
// ordered top-to-bottom then left-to-right.
type LayoutClassifier interface {
	Classify(page domain.PageRecord) []domain.LayoutBlock
}
