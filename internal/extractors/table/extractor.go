// Package table recovers row/column structure from TABLE regions.
//
// Ruled regions with a text layer are reconstructed from rule geometry and
// span positions. Regions without usable text (scans, raster tables) are
// OCR'd and the word boxes clustered into rows and columns. Both paths build
// a domain.Matrix, so markdown and CSV renderings cannot drift apart.
package table

import (
	"context"
	"fmt"
	"image"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/ocr"
)

// Defaults for table shape and OCR clustering.
const (
	DefaultMinRows = 2
	DefaultMinCols = 2

	// DefaultRowTolerance is the OCR row clustering tolerance in rendered pixels.
	DefaultRowTolerance = 12.0
)

// Extractor implements table extraction for one region at a time.
type Extractor struct {
	fallback     *ocr.Fallback
	minRows      int
	minCols      int
	rowTolerance float64
}

// Option configures the extractor.
type Option func(*Extractor)

// WithMinShape sets the smallest grid kept as a table.
func WithMinShape(rows, cols int) Option {
	return func(e *Extractor) {
		if rows > 0 {
			e.minRows = rows
		}
		if cols > 0 {
			e.minCols = cols
		}
	}
}

// WithRowTolerance sets the OCR row clustering tolerance in pixels.
func WithRowTolerance(px float64) Option {
	return func(e *Extractor) {
		if px > 0 {
			e.rowTolerance = px
		}
	}
}

// NewExtractor creates an extractor. fallback may be nil, in which case
// regions without a text layer yield domain.ErrOCRUnavailable.
func NewExtractor(fallback *ocr.Fallback, opts ...Option) *Extractor {
	e := &Extractor{
		fallback:     fallback,
		minRows:      DefaultMinRows,
		minCols:      DefaultMinCols,
		rowTolerance: DefaultRowTolerance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the table in block, or nil when the region does not hold
// enough structure. img is the rendered page; it is only needed for OCR.
func (e *Extractor) Extract(ctx context.Context, page domain.PageRecord, img image.Image, block domain.LayoutBlock) (*domain.ExtractedTable, error) {
	if block.Type != domain.BlockTable {
		return nil, fmt.Errorf("extract table from %s block: %w", block.Type, domain.ErrInvalidInput)
	}

	var (
		m      domain.Matrix
		method domain.TableMethod
	)
	if block.Ruled && page.HasNativeText && len(block.Spans) > 0 {
		m = vectorMatrix(page.Rules, block)
		method = domain.TableMethodVector
	} else {
		boxes, err := e.fallback.RecognizeRegion(ctx, page, img, block.BBox)
		if err != nil {
			return nil, fmt.Errorf("table on page %d: %w", page.Number, err)
		}
		m = ocrMatrix(boxes, e.rowTolerance/page.Scale())
		method = domain.TableMethodOCR
	}

	if m.Rows() < e.minRows || m.Cols() < e.minCols {
		logger.Debug("page %d: dropping %dx%d %s table", page.Number, m.Rows(), m.Cols(), method)
		return nil, nil
	}
	return domain.NewExtractedTable(m, block.BBox, page.Number, method), nil
}
