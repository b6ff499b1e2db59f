// Package pdf parses PDF documents into page records.
//
// Document structure (validation, page boxes, content streams) is read with
// pdfcpu; positioned glyphs are read with ledongthuc/pdf and merged into
// spans. Pages are rasterised by a driven.PageRenderer for OCR and figure
// cropping.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	ltpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure Parser implements the interface.
var _ driven.PageParser = (*Parser)(nil)

// DefaultDPI is the default render resolution.
const DefaultDPI = 100

// MinNativeChars is the text-layer length below which a page is treated as scanned.
const MinNativeChars = 20

// Fallback page size (US Letter) when the page box cannot be read.
const (
	letterWidth  = 612.0
	letterHeight = 792.0
)

// Parser implements driven.PageParser.
type Parser struct {
	renderer       driven.PageRenderer
	dpi            int
	maxPages       int
	minNativeChars int
}

// Option configures the parser.
type Option func(*Parser)

// WithDPI sets the render resolution.
func WithDPI(dpi int) Option {
	return func(p *Parser) {
		if dpi > 0 {
			p.dpi = dpi
		}
	}
}

// WithMaxPages caps the number of pages parsed per document. Zero means unlimited.
func WithMaxPages(n int) Option {
	return func(p *Parser) {
		if n >= 0 {
			p.maxPages = n
		}
	}
}

// WithMinNativeChars sets the text-layer length that counts as native text.
func WithMinNativeChars(n int) Option {
	return func(p *Parser) {
		if n >= 0 {
			p.minNativeChars = n
		}
	}
}

// New creates a parser. renderer may be nil, in which case pages carry no image.
func New(renderer driven.PageRenderer, opts ...Option) *Parser {
	p := &Parser{
		renderer:       renderer,
		dpi:            DefaultDPI,
		minNativeChars: MinNativeChars,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse opens the document and extracts every page.
func (p *Parser) Parse(ctx context.Context, doc domain.SourceDocument, workDir string) (*domain.ParsedDocument, error) {
	defer logger.Timed("parse %s", doc.FileName())()

	pctx, err := openStructure(doc.Path)
	if err != nil {
		return nil, &domain.DocumentOpenError{Path: doc.Path, Err: err}
	}

	count := pctx.PageCount
	if count == 0 {
		return nil, &domain.DocumentOpenError{Path: doc.Path, Err: errors.New("document has no pages")}
	}
	if p.maxPages > 0 && count > p.maxPages {
		logger.Info("%s: limiting to %d of %d pages", doc.FileName(), p.maxPages, count)
		count = p.maxPages
	}

	dims, err := pctx.PageDims()
	if err != nil {
		logger.Warn("%s: reading page boxes: %v", doc.FileName(), err)
	}

	glyphFile, glyphReader, err := ltpdf.Open(doc.Path)
	if err != nil {
		// structure is valid, so pages are still rendered and routed to OCR
		logger.Warn("%s: text layer unreadable: %v", doc.FileName(), err)
		glyphReader = nil
	} else {
		defer glyphFile.Close()
	}

	images := p.render(ctx, doc, workDir, count)

	parsed := &domain.ParsedDocument{
		Source: doc,
		Pages:  make([]domain.PageRecord, 0, count),
		Cleanup: func() {
			for _, path := range images {
				_ = os.Remove(path)
			}
		},
	}
	parsed.Source.PageCount = count

	for nr := 1; nr <= count; nr++ {
		if err := ctx.Err(); err != nil {
			parsed.Cleanup()
			return nil, err
		}
		w, h := letterWidth, letterHeight
		if nr-1 < len(dims) && dims[nr-1].Width > 0 && dims[nr-1].Height > 0 {
			w, h = dims[nr-1].Width, dims[nr-1].Height
		}
		rec := domain.PageRecord{
			Number:    nr,
			Width:     w,
			Height:    h,
			ImagePath: images[nr],
			DPI:       p.dpi,
		}
		p.parsePage(pctx, glyphReader, &rec)
		parsed.Pages = append(parsed.Pages, rec)
	}

	return parsed, nil
}

func openStructure(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return pctx, nil
}

func (p *Parser) render(ctx context.Context, doc domain.SourceDocument, workDir string, count int) map[int]string {
	if p.renderer == nil {
		return map[int]string{}
	}
	images, err := p.renderer.Render(ctx, doc.Path, workDir, p.dpi, 1, count)
	if err != nil {
		logger.Warn("%s: rendering pages: %v", doc.FileName(), err)
	}
	if images == nil {
		images = map[int]string{}
	}
	return images
}

// parsePage fills spans, rules and image placements. Failures in either
// source leave the page without that data; a page without native text is
// routed to OCR downstream.
func (p *Parser) parsePage(pctx *model.Context, r *ltpdf.Reader, rec *domain.PageRecord) {
	var page ltpdf.Page
	hasPage := false
	if r != nil {
		hasPage = safely(rec.Number, "page lookup", func() {
			page = r.Page(rec.Number)
			if page.V.IsNull() {
				panic("page not found")
			}
		})
	}

	safely(rec.Number, "content scan", func() {
		data, err := readContent(pctx, rec.Number)
		if err != nil {
			panic(err)
		}
		isImage := imageResolver(pctx, page, hasPage, rec.Number)
		scan := scanContent(data, rec.Height, isImage)
		rec.Rules = scan.Rules
		rec.Images = scan.Images
	})

	if !hasPage {
		return
	}
	safely(rec.Number, "text layer", func() {
		content := page.Content()
		rows := groupRows(toGlyphs(content.Text, rec.Height))
		rec.Spans = mergeSpans(rows)
		rec.RawText = rawText(spanLines(rec.Spans))
	})
	rec.HasNativeText = len([]rune(strings.TrimSpace(rec.RawText))) > p.minNativeChars
	if !rec.HasNativeText {
		rec.Spans = nil
	}
}

func readContent(pctx *model.Context, nr int) ([]byte, error) {
	rd, err := pdfcpu.ExtractPageContent(pctx, nr)
	if err != nil {
		return nil, err
	}
	if rd == nil {
		return nil, nil
	}
	return io.ReadAll(rd)
}

// imageResolver decides which XObject names are raster images.
func imageResolver(pctx *model.Context, page ltpdf.Page, hasPage bool, nr int) func(string) bool {
	if hasPage {
		xobjects := page.V.Key("Resources").Key("XObject")
		return func(name string) (ok bool) {
			defer func() {
				if recover() != nil {
					ok = false
				}
			}()
			return xobjects.Key(name).Key("Subtype").Name() == "Image"
		}
	}
	if len(pdfcpu.ImageObjNrs(pctx, nr)) == 0 {
		return func(string) bool { return false }
	}
	return nil
}

// safely runs fn, converting a panic from a malformed stream into a logged page warning.
func safely(page int, what string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("page %d: %s failed: %v", page, what, r)
			ok = false
		}
	}()
	fn()
	return true
}
