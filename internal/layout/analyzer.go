// Package layout classifies page spans and regions into layout blocks.
//
// Classification is heuristic: font size relative to the page median,
// position within header/footer bands, caption and footnote patterns, and
// region detection from image placements and rule geometry. Analyzer
// implements driven.LayoutClassifier so a learned model can replace it.
package layout

import (
	"sort"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Analyzer implements the interface.
var _ driven.LayoutClassifier = (*Analyzer)(nil)

// Default heuristic thresholds.
const (
	// DefaultHeadingRatio classifies lines at or above median*ratio as headings.
	DefaultHeadingRatio = 1.25

	// DefaultHeaderBand and DefaultFooterBand are relative page heights.
	DefaultHeaderBand = 0.06
	DefaultFooterBand = 0.92

	// DefaultFootnoteRatio classifies marked lines below median*ratio as footnotes.
	DefaultFootnoteRatio = 0.85

	// DefaultCaptionMaxDistance is the caption reach from a region, in points.
	DefaultCaptionMaxDistance = 150.0

	// DefaultMinImageRatio ignores image placements below this share of the page (icons, logos).
	DefaultMinImageRatio = 0.01

	// DefaultMaxImageRatio ignores placements covering nearly the whole page (scans, backgrounds).
	DefaultMaxImageRatio = 0.8

	// defaultMedianFontSize applies when a page has no spans.
	defaultMedianFontSize = 12.0
)

// Analyzer implements driven.LayoutClassifier.
type Analyzer struct {
	headingRatio       float64
	headerBand         float64
	footerBand         float64
	footnoteRatio      float64
	captionMaxDistance float64
	minImageRatio      float64
	maxImageRatio      float64
	minTableRows       int
	minTableCols       int
}

// Option configures the analyzer.
type Option func(*Analyzer)

// WithHeadingRatio sets the heading font-size ratio.
func WithHeadingRatio(r float64) Option {
	return func(a *Analyzer) {
		if r > 1 {
			a.headingRatio = r
		}
	}
}

// WithMarginBands sets the header and footer bands as relative page heights.
func WithMarginBands(header, footer float64) Option {
	return func(a *Analyzer) {
		if header >= 0 && footer <= 1 && header < footer {
			a.headerBand = header
			a.footerBand = footer
		}
	}
}

// WithCaptionMaxDistance sets how far from a region a caption may sit.
func WithCaptionMaxDistance(d float64) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.captionMaxDistance = d
		}
	}
}

// WithMinImageRatio sets the icon threshold for image placements.
func WithMinImageRatio(r float64) Option {
	return func(a *Analyzer) {
		if r >= 0 && r < 1 {
			a.minImageRatio = r
		}
	}
}

// WithTableShape sets the minimum grid shape for aligned-text table detection.
func WithTableShape(rows, cols int) Option {
	return func(a *Analyzer) {
		if rows >= 2 {
			a.minTableRows = rows
		}
		if cols >= 2 {
			a.minTableCols = cols
		}
	}
}

// NewAnalyzer creates an analyzer with default thresholds.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		headingRatio:       DefaultHeadingRatio,
		headerBand:         DefaultHeaderBand,
		footerBand:         DefaultFooterBand,
		footnoteRatio:      DefaultFootnoteRatio,
		captionMaxDistance: DefaultCaptionMaxDistance,
		minImageRatio:      DefaultMinImageRatio,
		maxImageRatio:      DefaultMaxImageRatio,
		minTableRows:       2,
		minTableCols:       2,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Classify returns the page's blocks, non-overlapping, ordered top-to-bottom then left-to-right.
// OCR-derived spans must already be on the page; they are treated like native spans.
func (a *Analyzer) Classify(page domain.PageRecord) []domain.LayoutBlock {
	regions := a.detectRegions(page)

	free := make([]domain.TextSpan, 0, len(page.Spans))
	for _, s := range page.Spans {
		if idx := containing(regions, s.BBox); idx >= 0 {
			regions[idx].Spans = append(regions[idx].Spans, s)
			continue
		}
		free = append(free, s)
	}

	median := medianFontSize(page.Spans)
	lines := buildLines(free)
	for i := range lines {
		lines[i].kind = a.classifyLine(lines[i], median, page, regions)
	}

	blocks := mergeLines(lines, page.Number)
	blocks = append(blocks, regions...)
	blocks = resolveOverlaps(blocks)

	for i := range blocks {
		if blocks[i].Type.IsRegion() {
			blocks[i].Text = spanText(blocks[i].Spans)
		}
	}
	sortBlocks(blocks)
	return blocks
}

// containing returns the index of the region holding the span centre, or -1.
func containing(regions []domain.LayoutBlock, b domain.BBox) int {
	cx, cy := b.Center()
	for i, r := range regions {
		if r.BBox.Contains(cx, cy) {
			return i
		}
	}
	return -1
}

func medianFontSize(spans []domain.TextSpan) float64 {
	sizes := make([]float64, 0, len(spans))
	for _, s := range spans {
		if s.FontSize > 0 {
			sizes = append(sizes, s.FontSize)
		}
	}
	if len(sizes) == 0 {
		return defaultMedianFontSize
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

func sortBlocks(blocks []domain.LayoutBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].BBox.Y0 != blocks[j].BBox.Y0 {
			return blocks[i].BBox.Y0 < blocks[j].BBox.Y0
		}
		return blocks[i].BBox.X0 < blocks[j].BBox.X0
	})
}
