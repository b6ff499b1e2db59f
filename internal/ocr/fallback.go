// Package ocr recovers text from rendered page images when a page or region
// lacks a usable text layer.
//
// Fallback wraps a driven.OCREngine: it crops regions in page points, applies
// the confidence threshold, maps pixel boxes back to page points and merges
// words into phrase spans that the layout analyzer classifies like native text.
package ocr

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// DefaultConfidence is the minimum confidence for a recognised word.
const DefaultConfidence = 0.40

// DefaultPhraseGap merges words closer than this multiple of the word height.
const DefaultPhraseGap = 1.2

// Fallback runs OCR over pages and page regions.
type Fallback struct {
	engine     driven.OCREngine
	confidence float64
	phraseGap  float64
}

// Option configures the fallback.
type Option func(*Fallback)

// WithConfidence sets the minimum word confidence in [0,1].
func WithConfidence(c float64) Option {
	return func(f *Fallback) {
		if c >= 0 && c <= 1 {
			f.confidence = c
		}
	}
}

// WithPhraseGap sets the word merge distance as a multiple of word height.
func WithPhraseGap(g float64) Option {
	return func(f *Fallback) {
		if g > 0 {
			f.phraseGap = g
		}
	}
}

// NewFallback creates a fallback over engine. A nil engine makes every call
// return domain.ErrOCRUnavailable.
func NewFallback(engine driven.OCREngine, opts ...Option) *Fallback {
	f := &Fallback{
		engine:     engine,
		confidence: DefaultConfidence,
		phraseGap:  DefaultPhraseGap,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithThreshold returns a copy using a different confidence threshold.
func (f *Fallback) WithThreshold(c float64) *Fallback {
	cp := *f
	WithConfidence(c)(&cp)
	return &cp
}

// Available reports whether an engine is configured.
func (f *Fallback) Available() bool {
	return f != nil && f.engine != nil
}

// LoadImage decodes a rendered page PNG.
func LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page image: %w", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode page image %s: %w", path, err)
	}
	return img, nil
}

// RecognizePage OCRs the whole rendered page and returns phrase spans in page points.
func (f *Fallback) RecognizePage(ctx context.Context, page domain.PageRecord, img image.Image) ([]domain.TextSpan, error) {
	boxes, err := f.RecognizeRegion(ctx, page, img, page.Bounds())
	if err != nil {
		return nil, err
	}
	return Phrases(boxes, f.phraseGap), nil
}

// RecognizeRegion OCRs region (page points) of the rendered page. The
// returned word boxes are in page points and above the confidence threshold.
func (f *Fallback) RecognizeRegion(ctx context.Context, page domain.PageRecord, img image.Image, region domain.BBox) ([]domain.OCRBox, error) {
	if !f.Available() {
		return nil, domain.ErrOCRUnavailable
	}
	if img == nil {
		return nil, fmt.Errorf("page %d has no rendered image: %w", page.Number, domain.ErrRendererUnavailable)
	}

	scale := page.Scale()
	crop := Crop(img, region.Scale(scale))
	if crop == nil {
		return nil, nil
	}

	raw, err := f.engine.Recognize(ctx, crop)
	if err != nil {
		return nil, fmt.Errorf("ocr page %d: %w", page.Number, err)
	}

	boxes := make([]domain.OCRBox, 0, len(raw))
	for _, b := range raw {
		text := domain.NormalizeText(b.Text)
		if text == "" || b.Confidence < f.confidence {
			continue
		}
		boxes = append(boxes, domain.OCRBox{Text: text, BBox: b.BBox.Scale(1 / scale), Confidence: b.Confidence})
	}
	sortReadingOrder(boxes)
	return boxes, nil
}

// Crop returns the part of img inside rect (pixels), or nil when the
// intersection is empty. Bounds of the result keep img's coordinate space.
func Crop(img image.Image, rect domain.BBox) image.Image {
	r := image.Rect(
		int(math.Floor(rect.X0)), int(math.Floor(rect.Y0)),
		int(math.Ceil(rect.X1)), int(math.Ceil(rect.Y1)),
	).Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	dst := image.NewRGBA(r)
	draw.Draw(dst, r, img, r.Min, draw.Src)
	return dst
}

// Text joins boxes in reading order.
func Text(boxes []domain.OCRBox) string {
	parts := make([]string, 0, len(boxes))
	for _, row := range Rows(boxes, 0) {
		for _, b := range row {
			parts = append(parts, b.Text)
		}
	}
	return domain.NormalizeText(strings.Join(parts, " "))
}

// Phrases merges words on the same row into spans, splitting where the gap
// exceeds gap times the word height so that table columns stay apart.
func Phrases(boxes []domain.OCRBox, gap float64) []domain.TextSpan {
	var spans []domain.TextSpan
	for _, row := range Rows(boxes, 0) {
		var cur *domain.TextSpan
		var words int
		for _, b := range row {
			h := b.BBox.Height()
			if cur != nil && b.BBox.X0-cur.BBox.X1 <= gap*math.Max(h, cur.FontSize) {
				cur.Text += " " + b.Text
				cur.BBox = cur.BBox.Union(b.BBox)
				cur.FontSize = math.Max(cur.FontSize, h)
				cur.Confidence += b.Confidence
				words++
				continue
			}
			if cur != nil {
				cur.Confidence /= float64(words)
				spans = append(spans, *cur)
			}
			cur = &domain.TextSpan{Text: b.Text, BBox: b.BBox, FontSize: h, FromOCR: true, Confidence: b.Confidence}
			words = 1
		}
		if cur != nil {
			cur.Confidence /= float64(words)
			spans = append(spans, *cur)
		}
	}
	return spans
}

// Rows clusters boxes by vertical centre. A box joins the current row when
// its centre is within tolerance of the row's first centre; a zero tolerance
// uses half the row's first box height. Rows are top-down, cells left-to-right.
func Rows(boxes []domain.OCRBox, tolerance float64) [][]domain.OCRBox {
	sorted := make([]domain.OCRBox, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		_, yi := sorted[i].BBox.Center()
		_, yj := sorted[j].BBox.Center()
		return yi < yj
	})

	var rows [][]domain.OCRBox
	var anchor, tol float64
	for _, b := range sorted {
		_, cy := b.BBox.Center()
		if len(rows) > 0 && math.Abs(cy-anchor) <= tol {
			rows[len(rows)-1] = append(rows[len(rows)-1], b)
			continue
		}
		rows = append(rows, []domain.OCRBox{b})
		anchor = cy
		tol = tolerance
		if tol <= 0 {
			tol = b.BBox.Height() / 2
		}
	}
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].BBox.X0 < row[j].BBox.X0 })
	}
	return rows
}

func sortReadingOrder(boxes []domain.OCRBox) {
	sort.SliceStable(boxes, func(i, j int) bool {
		if boxes[i].BBox.Y0 != boxes[j].BBox.Y0 {
			return boxes[i].BBox.Y0 < boxes[j].BBox.Y0
		}
		return boxes[i].BBox.X0 < boxes[j].BBox.X0
	})
}
