package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// PageOCR recognises text on pages without a native text layer.
type PageOCR interface {
	Available() bool
	RecognizePage(ctx context.Context, page domain.PageRecord, img image.Image) ([]domain.TextSpan, error)
}

// TableExtractor recovers a table from a TABLE block. A nil table means the
// region had too little structure.
type TableExtractor interface {
	Extract(ctx context.Context, page domain.PageRecord, img image.Image, block domain.LayoutBlock) (*domain.ExtractedTable, error)
}

// FigureExtractor crops, persists and captions the figures of one page.
type FigureExtractor interface {
	Extract(ctx context.Context, doc domain.SourceDocument, page domain.PageRecord, img image.Image, blocks []domain.LayoutBlock) ([]domain.ExtractedFigure, error)
}

// ChartAnalyser enriches a figure in place. It never fails the figure.
type ChartAnalyser interface {
	Process(ctx context.Context, page domain.PageRecord, img image.Image, fig *domain.ExtractedFigure)
}

// Chunker turns blocks, tables and figures into typed chunks.
type Chunker interface {
	TextChunks(doc domain.SourceDocument, blocks []domain.LayoutBlock) []domain.Chunk
	TableChunk(doc domain.SourceDocument, t *domain.ExtractedTable, k int, section string) domain.Chunk
	FigureChunk(doc domain.SourceDocument, f domain.ExtractedFigure, section string) domain.Chunk
	PageSummary(doc domain.SourceDocument, page int, blocks []domain.LayoutBlock, tables []*domain.ExtractedTable, figures []domain.ExtractedFigure) (domain.Chunk, bool)
}

// ImageLoader decodes a rendered page image.
type ImageLoader func(path string) (image.Image, error)

// Stages are the collaborators of the per-document pipeline.
// OCR, Charts, Resources and LoadImage may be nil; the dependent steps are skipped.
type Stages struct {
	Parser    driven.PageParser
	Layout    driven.LayoutClassifier
	OCR       PageOCR
	Tables    TableExtractor
	Figures   FigureExtractor
	Charts    ChartAnalyser
	Chunker   Chunker
	Gate      driven.ChunkPipeline
	Indexer   *Indexer
	Resources driven.FigureCommitter
	LoadImage ImageLoader
}

// DocumentPipeline runs every stage for one document, start to finish.
type DocumentPipeline struct {
	stages  Stages
	workDir string
}

// NewDocumentPipeline creates a pipeline. Rendered pages go under workDir,
// or the system temp dir when empty.
func NewDocumentPipeline(stages Stages, workDir string) *DocumentPipeline {
	return &DocumentPipeline{stages: stages, workDir: workDir}
}

// Run parses, segments, extracts, chunks, gates and indexes doc.
// Either every surviving chunk is upserted or an error is returned.
//
//nolint:gocognit,gocyclo // Pipeline orchestration with sequential steps
func (p *DocumentPipeline) Run(ctx context.Context, doc domain.SourceDocument) (domain.DocumentStats, error) {
	var stats domain.DocumentStats
	s := p.stages
	if s.Parser == nil || s.Layout == nil || s.Chunker == nil || s.Indexer == nil {
		return stats, errors.New("document pipeline not configured")
	}

	// 1. PARSE
	workDir, err := os.MkdirTemp(p.workDir, "pages-"+doc.ShortHash()+"-")
	if err != nil {
		return stats, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	parsed, err := s.Parser.Parse(ctx, doc, workDir)
	if err != nil {
		return stats, fmt.Errorf("parse: %w", err)
	}
	if parsed.Cleanup != nil {
		defer parsed.Cleanup()
	}
	doc = parsed.Source
	stats.Pages = len(parsed.Pages)

	// Figures saved by this run stay staged until the chunks are indexed.
	committed := false
	if s.Resources != nil {
		if err := s.Resources.Discard(doc.Hash); err != nil {
			return stats, fmt.Errorf("clear staged figures: %w", err)
		}
		defer func() {
			if committed {
				return
			}
			if err := s.Resources.Discard(doc.Hash); err != nil {
				logger.Warn("%s: discard staged figures: %v", doc.FileName(), err)
			}
		}()
	}

	var (
		blocks    []domain.LayoutBlock
		exhibits  []domain.Chunk
		section   string
		warnedOCR bool
	)

	for _, page := range parsed.Pages {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		img := p.loadImage(page)

		// 2. OCR FALLBACK
		if !page.HasNativeText && img != nil && s.OCR != nil && s.OCR.Available() {
			spans, err := s.OCR.RecognizePage(ctx, page, img)
			switch {
			case errors.Is(err, domain.ErrOCRUnavailable):
				if !warnedOCR {
					logger.Warn("%s: %v; scanned pages yield no text", doc.FileName(), err)
					warnedOCR = true
				}
			case err != nil:
				logger.Warn("%s page %d: OCR failed: %v", doc.FileName(), page.Number, err)
			default:
				page.Spans = spans
				stats.OCRPages++
			}
		}

		// 3. LAYOUT
		pageBlocks := s.Layout.Classify(page)
		blocks = append(blocks, pageBlocks...)

		// 4. TABLES
		var tables []*domain.ExtractedTable
		tableSection := section
		for _, b := range pageBlocks {
			if b.Type == domain.BlockHeading {
				tableSection = domain.NormalizeText(b.Text)
			}
			if b.Type != domain.BlockTable || s.Tables == nil {
				continue
			}
			t, err := s.Tables.Extract(ctx, page, img, b)
			if err != nil {
				logger.Warn("%s page %d: table extraction failed: %v", doc.FileName(), page.Number, err)
				continue
			}
			if t == nil {
				continue
			}
			tables = append(tables, t)
			exhibits = append(exhibits, s.Chunker.TableChunk(doc, t, len(tables), tableSection))
			stats.TableChunks++
		}

		// 5. FIGURES AND CHARTS
		var figures []domain.ExtractedFigure
		if s.Figures != nil {
			figures, err = s.Figures.Extract(ctx, doc, page, img, pageBlocks)
			if err != nil {
				return stats, fmt.Errorf("extract figures on page %d: %w", page.Number, err)
			}
		}
		for i := range figures {
			if s.Charts != nil {
				s.Charts.Process(ctx, page, img, &figures[i])
			}
			exhibits = append(exhibits, s.Chunker.FigureChunk(doc, figures[i], figureSection(pageBlocks, figures[i], page, section)))
			stats.FigureChunks++
		}

		if c, ok := s.Chunker.PageSummary(doc, page.Number, pageBlocks, tables, figures); ok {
			exhibits = append(exhibits, c)
			stats.SummaryChunks++
		}
		section = sectionAt(pageBlocks, page.Height, section)
	}

	// 6. CHUNK
	chunks := s.Chunker.TextChunks(doc, blocks)
	stats.TextChunks = len(chunks)
	chunks = append(chunks, exhibits...)

	// 7. QUALITY GATE
	gated := chunks
	if s.Gate != nil {
		gated, err = s.Gate.Process(ctx, chunks)
		if err != nil {
			return stats, fmt.Errorf("quality gate: %w", err)
		}
	}
	stats.Rejected = len(chunks) - len(gated)
	if len(gated) == 0 {
		logger.Warn("%s: no chunks survived extraction", doc.FileName())
	}

	// 8. EMBED AND UPSERT
	res, err := s.Indexer.Index(ctx, gated)
	if err != nil {
		return stats, fmt.Errorf("index: %w", err)
	}
	stats.Stored = res.Stored
	stats.Duplicates = res.Duplicates

	// 9. PUBLISH FIGURES
	if s.Resources != nil {
		if err := s.Resources.Commit(ctx, doc.Hash); err != nil {
			return stats, fmt.Errorf("publish figures: %w", err)
		}
		committed = true
	}
	return stats, nil
}

func (p *DocumentPipeline) loadImage(page domain.PageRecord) image.Image {
	if page.ImagePath == "" || p.stages.LoadImage == nil {
		return nil
	}
	img, err := p.stages.LoadImage(page.ImagePath)
	if err != nil {
		logger.Warn("page %d: load image: %v", page.Number, err)
		return nil
	}
	return img
}

// figureSection is the section a figure sits in. A figure without a box is
// attributed to the page's last heading.
func figureSection(blocks []domain.LayoutBlock, fig domain.ExtractedFigure, page domain.PageRecord, carry string) string {
	if fig.BBox.IsEmpty() {
		return sectionAt(blocks, page.Height, carry)
	}
	return sectionAt(blocks, fig.BBox.Y0, carry)
}

// sectionAt returns the text of the last heading starting above y,
// or carry when the page has none.
func sectionAt(blocks []domain.LayoutBlock, y float64, carry string) string {
	section := carry
	for _, b := range blocks {
		if b.BBox.Y0 > y {
			break
		}
		if b.Type == domain.BlockHeading {
			section = domain.NormalizeText(b.Text)
		}
	}
	return section
}
