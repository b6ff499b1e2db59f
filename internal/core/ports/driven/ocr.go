package driven

import (
	"context"
	"image"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// OCREngine recognises words in an image.
type OCREngine interface {
	// Recognize returns word boxes in the coordinate space of img.Bounds(),
	// so recognising a sub-image yields boxes positioned on the parent image.
	// Confidence is normalised to [0,1].
	Recognize(ctx context.Context, img image.Image) ([]domain.OCRBox, error)
}
