package domain

import (
	"path/filepath"
	"strings"
)

// SourceDocument is a PDF discovered for ingestion.
// Its identity is the SHA-256 of the raw bytes, never the file name:
// renaming a file keeps its hash, editing it changes the hash.
type SourceDocument struct {
	// Path is the location the document was read from.
	Path string

	// Hash is the hex SHA-256 of the file bytes.
	Hash string

	// PageCount is filled in by the parser.
	PageCount int
}

// FileName returns the base name used in citations.
func (d SourceDocument) FileName() string {
	return filepath.Base(d.Path)
}

// ShortHash returns the first 12 hex characters of the hash for log lines.
func (d SourceDocument) ShortHash() string {
	if len(d.Hash) <= 12 {
		return d.Hash
	}
	return d.Hash[:12]
}

// TextSpan is a run of text on one line with uniform font.
// Native spans come from the PDF text layer; OCR spans come from the fallback.
type TextSpan struct {
	Text     string
	BBox     BBox
	FontSize float64

	// FontName is the PDF base font name when known.
	FontName string

	// Bold is derived from the font name or render mode.
	Bold bool

	// FromOCR marks spans recovered by OCR rather than the text layer.
	FromOCR bool

	// Confidence is the OCR confidence in [0,1]; 1 for native spans.
	Confidence float64
}

// Rule is a stroked or filled line segment drawn on the page.
// Tables are recognised from grids of rules.
type Rule struct {
	BBox BBox
}

// Horizontal reports whether the rule is wider than it is tall.
func (r Rule) Horizontal() bool {
	return r.BBox.Width() >= r.BBox.Height()
}

// PageRecord is one parsed page. Coordinates are PDF points with a top-left origin.
type PageRecord struct {
	// Number is the 1-based page index.
	Number int

	Width  float64
	Height float64

	// ImagePath is the rendered raster of the page, empty if rendering failed.
	ImagePath string

	// DPI is the resolution ImagePath was rendered at.
	DPI int

	// Spans are the native text spans in content-stream order.
	Spans []TextSpan

	// Rules are the line segments drawn on the page.
	Rules []Rule

	// Images are the placement boxes of embedded raster images.
	Images []BBox

	// HasNativeText is false when the page must be routed through OCR.
	HasNativeText bool

	// RawText is the page text in reading order, used for page summaries.
	RawText string
}

// Scale returns the points-to-pixels factor for the rendered image.
func (p PageRecord) Scale() float64 {
	if p.DPI <= 0 {
		return 1
	}
	return float64(p.DPI) / 72.0
}

// Bounds returns the page box.
func (p PageRecord) Bounds() BBox {
	return BBox{X1: p.Width, Y1: p.Height}
}

// ParsedDocument is the parser output for one source document.
type ParsedDocument struct {
	Source SourceDocument
	Pages  []PageRecord

	// Cleanup removes rendered page images once the document is done.
	Cleanup func()
}

// OCRBox is a single recognised word or phrase.
// BBox is in the pixel space of the image that was recognised.
type OCRBox struct {
	Text       string
	BBox       BBox
	Confidence float64
}

// NormalizeText folds whitespace runs to single spaces and trims the result.
// Content hashes and duplicate detection operate on normalized text.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
