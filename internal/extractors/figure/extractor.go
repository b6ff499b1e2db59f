// Package figure crops FIGURE regions from rendered pages, persists them
// under the document hash and links each to its nearest caption.
package figure

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"sort"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/ocr"
)

// Defaults for figure candidates and caption linking.
const (
	// DefaultMinAreaRatio skips figures smaller than this share of the page.
	DefaultMinAreaRatio = 0.02

	// DefaultCaptionMaxDistance is how far, edge to edge, a caption may sit from its figure in points.
	DefaultCaptionMaxDistance = 150.0

	// MinCropPixels skips crops narrower or shorter than this.
	MinCropPixels = 20

	// imageDedupeIoU treats an image placement as already covered by a figure block.
	imageDedupeIoU = 0.3

	iconRatio = 0.01
	scanRatio = 0.8
)

// Extractor implements figure extraction for one page at a time.
type Extractor struct {
	store              driven.FigureStore
	minAreaRatio       float64
	captionMaxDistance float64
}

// Option configures the extractor.
type Option func(*Extractor)

// WithMinAreaRatio sets the smallest figure kept, as a share of the page area.
func WithMinAreaRatio(r float64) Option {
	return func(e *Extractor) {
		if r >= 0 && r < 1 {
			e.minAreaRatio = r
		}
	}
}

// WithCaptionMaxDistance sets the caption linking radius in points.
func WithCaptionMaxDistance(d float64) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.captionMaxDistance = d
		}
	}
}

// NewExtractor creates an extractor persisting crops to store.
func NewExtractor(store driven.FigureStore, opts ...Option) *Extractor {
	e := &Extractor{
		store:              store,
		minAreaRatio:       DefaultMinAreaRatio,
		captionMaxDistance: DefaultCaptionMaxDistance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract crops every figure candidate on the page and links captions.
// Figures are numbered per page in reading order; the number is part of the
// persisted file name, so re-extraction overwrites the same files.
func (e *Extractor) Extract(ctx context.Context, doc domain.SourceDocument, page domain.PageRecord, img image.Image, blocks []domain.LayoutBlock) ([]domain.ExtractedFigure, error) {
	candidates := e.candidates(page, blocks)
	if len(candidates) == 0 {
		return nil, nil
	}
	if img == nil {
		logger.Warn("%s: page %d has %d figures but no rendered image", doc.FileName(), page.Number, len(candidates))
		return nil, nil
	}

	var figures []domain.ExtractedFigure
	for _, box := range candidates {
		crop := ocr.Crop(img, box.Scale(page.Scale()))
		if crop == nil || crop.Bounds().Dx() < MinCropPixels || crop.Bounds().Dy() < MinCropPixels {
			continue
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, crop); err != nil {
			return nil, fmt.Errorf("encode figure on page %d: %w", page.Number, err)
		}

		k := len(figures) + 1
		path, err := e.store.Save(ctx, doc.Hash, page.Number, k, buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("save figure %d on page %d: %w", k, page.Number, err)
		}

		figures = append(figures, domain.ExtractedFigure{
			Index:     k,
			Page:      page.Number,
			BBox:      box,
			ImagePath: path,
			ChartType: domain.ChartUnknown,
			PNG:       buf.Bytes(),
		})
	}

	var captions []domain.LayoutBlock
	for _, b := range blocks {
		if b.Type == domain.BlockCaption {
			captions = append(captions, b)
		}
	}
	LinkCaptions(figures, captions, e.captionMaxDistance)

	logger.Debug("%s: page %d: %d figures", doc.FileName(), page.Number, len(figures))
	return figures, nil
}

// candidates returns FIGURE block boxes plus image placements no block
// covers, filtered by size and ordered top-to-bottom then left-to-right.
func (e *Extractor) candidates(page domain.PageRecord, blocks []domain.LayoutBlock) []domain.BBox {
	var boxes []domain.BBox
	for _, b := range blocks {
		if b.Type == domain.BlockFigure {
			boxes = append(boxes, b.BBox)
		}
	}

	pageArea := page.Bounds().Area()
	for _, img := range page.Images {
		img = img.Intersect(page.Bounds())
		if pageArea > 0 {
			ratio := img.Area() / pageArea
			if ratio < iconRatio || ratio >= scanRatio {
				continue
			}
		}
		if covered(img, boxes) {
			continue
		}
		boxes = append(boxes, img)
	}

	kept := boxes[:0]
	for _, b := range boxes {
		if pageArea > 0 && b.Area()/pageArea < e.minAreaRatio {
			continue
		}
		kept = append(kept, b)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Y0 != kept[j].Y0 {
			return kept[i].Y0 < kept[j].Y0
		}
		return kept[i].X0 < kept[j].X0
	})
	return kept
}

func covered(img domain.BBox, boxes []domain.BBox) bool {
	for _, b := range boxes {
		if img.IoU(b) > imageDedupeIoU {
			return true
		}
		// a placement inside a merged figure region
		if area := img.Area(); area > 0 && img.Intersect(b).Area() >= 0.8*area {
			return true
		}
	}
	return false
}

// LinkCaptions assigns captions to figures by ascending centre distance.
// Each caption links to at most one figure and each figure to at most one
// caption. A pair is only eligible when the boxes are within maxDistance
// edge to edge, the reach layout uses to classify captions, so a tall
// figure still links the caption directly beneath it. Ties are broken by
// figure order, then caption order.
func LinkCaptions(figures []domain.ExtractedFigure, captions []domain.LayoutBlock, maxDistance float64) {
	type pair struct {
		fig, cap int
		dist     float64
	}
	var pairs []pair
	for i := range figures {
		for j, c := range captions {
			if figures[i].BBox.EdgeDistance(c.BBox) > maxDistance {
				continue
			}
			pairs = append(pairs, pair{i, j, figures[i].BBox.CenterDistance(c.BBox)})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		if math.Abs(pairs[a].dist-pairs[b].dist) > 1e-9 {
			return pairs[a].dist < pairs[b].dist
		}
		if pairs[a].fig != pairs[b].fig {
			return pairs[a].fig < pairs[b].fig
		}
		return pairs[a].cap < pairs[b].cap
	})

	usedCaption := make([]bool, len(captions))
	for _, p := range pairs {
		if figures[p.fig].HasCaption() || usedCaption[p.cap] {
			continue
		}
		figures[p.fig].Caption = captions[p.cap].Text
		usedCaption[p.cap] = true
	}
}
