package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// ChartDescriber summarises a chart image in prose.
type ChartDescriber interface {
	// DescribeChart returns a natural-language summary of the PNG-encoded chart.
	// axisText is the OCR'd title, axis and legend text, used as a hint.
	DescribeChart(ctx context.Context, png []byte, axisText string) (string, error)
}

// ChartDigitiser recovers the data table behind a chart image.
type ChartDigitiser interface {
	// DigitiseChart returns the series as a linearised table:
	// rows separated by "<0x0A>" or newlines, cells by "|", first row the header.
	DigitiseChart(ctx context.Context, png []byte) (string, error)
}

// ChartClassifier labels a chart from its caption and OCR text.
type ChartClassifier interface {
	Classify(text string) domain.ChartType
}
