// Package chart analyses extracted figures: OCR of axis and legend text,
// keyword chart-type classification, and the external description and
// digitisation models. Model failures never drop a figure; the affected
// fields stay empty.
package chart

import (
	"context"
	"image"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/ocr"
)

// DefaultConfidence is the OCR threshold for chart text, lower than for body
// text because axis labels are small.
const DefaultConfidence = 0.30

// Processor enriches figures in place.
type Processor struct {
	fallback   *ocr.Fallback
	classifier driven.ChartClassifier
	describer  driven.ChartDescriber
	digitiser  driven.ChartDigitiser
	digitise   bool
}

// Option configures the processor.
type Option func(*Processor)

// WithDigitise enables or disables chart digitisation.
func WithDigitise(enabled bool) Option {
	return func(p *Processor) {
		p.digitise = enabled
	}
}

// NewProcessor creates a processor. Any collaborator may be nil; the
// corresponding step is skipped. A nil classifier uses the keyword classifier.
func NewProcessor(fallback *ocr.Fallback, classifier driven.ChartClassifier, describer driven.ChartDescriber, digitiser driven.ChartDigitiser, opts ...Option) *Processor {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	p := &Processor{
		fallback:   fallback,
		classifier: classifier,
		describer:  describer,
		digitiser:  digitiser,
		digitise:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process fills OCRText, ChartType, Description and Series on fig.
func (p *Processor) Process(ctx context.Context, page domain.PageRecord, img image.Image, fig *domain.ExtractedFigure) {
	fig.ChartType = domain.ChartUnknown

	if p.fallback.Available() && img != nil {
		boxes, err := p.fallback.RecognizeRegion(ctx, page, img, fig.BBox)
		if err != nil {
			logger.Warn("page %d figure %d: chart OCR failed: %v", fig.Page, fig.Index, err)
		} else {
			fig.OCRText = ocr.Text(boxes)
		}
	}

	if t := p.classifier.Classify(strings.TrimSpace(fig.Caption + " " + fig.OCRText)); t != "" {
		fig.ChartType = t
	}

	if p.describer != nil && len(fig.PNG) > 0 {
		desc, err := p.describer.DescribeChart(ctx, fig.PNG, fig.OCRText)
		switch {
		case err != nil:
			logger.Warn("page %d figure %d: chart description failed: %v", fig.Page, fig.Index, err)
		case strings.TrimSpace(desc) != "":
			desc = strings.TrimSpace(desc)
			fig.Description = &desc
		}
	}

	if p.digitise && p.digitiser != nil && fig.ChartType != domain.ChartUnknown && len(fig.PNG) > 0 {
		linearised, err := p.digitiser.DigitiseChart(ctx, fig.PNG)
		if err != nil {
			logger.Warn("page %d figure %d: chart digitisation failed: %v", fig.Page, fig.Index, err)
			return
		}
		fig.Series = ParseLinearised(linearised)
	}
}

// rowSeparator is the newline token in linearised chart tables.
const rowSeparator = "<0x0A>"

// ParseLinearised parses a linearised table ("a | b <0x0A> 1 | 2") into a
// series. The first row holds the column names. Returns nil when fewer than
// two rows are present.
func ParseLinearised(text string) *domain.Series {
	text = strings.ReplaceAll(text, rowSeparator, "\n")
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		rows = append(rows, cells)
	}
	if len(rows) < 2 {
		return nil
	}
	return &domain.Series{Columns: rows[0], Rows: rows[1:]}
}
