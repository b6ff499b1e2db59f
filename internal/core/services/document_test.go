package services

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors/chunker"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors/quality"
)

var testDoc = domain.SourceDocument{
	Path: "/reports/outlook.pdf",
	Hash: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
}

const (
	outlookHeading   = "Economic Outlook"
	outlookParagraph = "Growth is expected to slow next year as tighter credit conditions weigh on investment and household spending."
)

func nativePage(n int) domain.PageRecord {
	return domain.PageRecord{Number: n, Width: 612, Height: 792, HasNativeText: true, ImagePath: "page.png"}
}

func outlookBlocks(page int) []domain.LayoutBlock {
	return []domain.LayoutBlock{
		{Type: domain.BlockHeading, Text: outlookHeading, Page: page, BBox: domain.BBox{X0: 72, Y0: 72, X1: 300, Y1: 90}},
		{Type: domain.BlockParagraph, Text: outlookParagraph, Page: page, BBox: domain.BBox{X0: 72, Y0: 100, X1: 540, Y1: 160}},
		{Type: domain.BlockTable, Page: page, BBox: domain.BBox{X0: 72, Y0: 200, X1: 540, Y1: 300}},
		{Type: domain.BlockFigure, Page: page, BBox: domain.BBox{X0: 72, Y0: 320, X1: 540, Y1: 600}},
	}
}

func loadBlank(string) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 850, 1100)), nil
}

type pipelineFixture struct {
	stages   Stages
	index    *memory.VectorIndex
	embedder *fakeEmbedder
	layout   *fakeLayout
}

func newPipelineFixture() *pipelineFixture {
	index := memory.NewVectorIndex(fakeDims)
	embedder := &fakeEmbedder{}
	layout := &fakeLayout{blocks: map[int][]domain.LayoutBlock{1: outlookBlocks(1)}}
	matrix := domain.NewMatrix([][]string{{"Year", "GDP"}, {"2023", "2.1"}, {"2024", "1.4"}})

	return &pipelineFixture{
		index:    index,
		embedder: embedder,
		layout:   layout,
		stages: Stages{
			Parser:    &fakeParser{pages: []domain.PageRecord{nativePage(1)}},
			Layout:    layout,
			Tables:    &fakeTables{table: domain.NewExtractedTable(matrix, domain.BBox{}, 1, domain.TableMethodVector)},
			Figures: &fakeFigures{figures: []domain.ExtractedFigure{{
				Index:     1,
				Page:      1,
				BBox:      domain.BBox{X0: 72, Y0: 320, X1: 540, Y1: 600},
				Caption:   "Figure 1: Real GDP growth",
				ImagePath: "resources/x/page_1_fig_1.png",
			}}},
			Charts:    &fakeCharts{description: "A line chart showing GDP growth slowing from 2.1 to 1.4 percent."},
			Chunker:   chunker.New(),
			Gate:      postprocessors.NewPipeline(quality.New()),
			Indexer:   NewIndexer(embedder, index, 0),
			LoadImage: loadBlank,
		},
	}
}

// ==================== DocumentPipeline Tests ====================

func TestDocumentPipeline_Run(t *testing.T) {
	f := newPipelineFixture()
	p := NewDocumentPipeline(f.stages, t.TempDir())

	stats, err := p.Run(context.Background(), testDoc)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 1, stats.TextChunks)
	assert.Equal(t, 1, stats.TableChunks)
	assert.Equal(t, 1, stats.FigureChunks)
	assert.Equal(t, 1, stats.SummaryChunks)
	assert.Zero(t, stats.Rejected)
	assert.Equal(t, 4, stats.Stored)

	counts, err := f.index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.CollectionText], "text window plus page summary")
	assert.Equal(t, 1, counts[domain.CollectionTables])
	assert.Equal(t, 1, counts[domain.CollectionFigures])
}

func TestDocumentPipeline_CitationsAndSections(t *testing.T) {
	f := newPipelineFixture()
	_, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.NoError(t, err)

	hits, err := f.index.Query(context.Background(), vectorFor(outlookHeading), domain.QueryOptions{K: 10})
	require.NoError(t, err)

	citations := map[domain.ChunkKind]string{}
	for _, h := range hits {
		citations[h.Record.Metadata.BlockType] = h.Record.Citation
		assert.Equal(t, testDoc.Hash, h.Record.Metadata.DocHash)
		if h.Record.Metadata.BlockType != domain.ChunkPageSummary {
			assert.Equal(t, outlookHeading, h.Record.Metadata.Section)
		}
	}
	assert.Equal(t, "outlook.pdf, p.1", citations[domain.ChunkText])
	assert.Equal(t, "outlook.pdf, p.1 – Table 1 (p.1)", citations[domain.ChunkTable])
	assert.Equal(t, "outlook.pdf, p.1 – Figure 1 (p.1)", citations[domain.ChunkFigure])
}

func TestDocumentPipeline_FigureWithoutBoxKeepsSection(t *testing.T) {
	f := newPipelineFixture()
	f.stages.Figures = &fakeFigures{figures: []domain.ExtractedFigure{{Index: 1, Caption: "Figure 1: Real GDP growth"}}}

	_, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.NoError(t, err)

	hits, err := f.index.Query(context.Background(), vectorFor(outlookHeading),
		domain.QueryOptions{K: 10, Collections: []domain.Collection{domain.CollectionFigures}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, outlookHeading, hits[0].Record.Metadata.Section)
}

func TestFigureSection(t *testing.T) {
	blocks := []domain.LayoutBlock{
		{Type: domain.BlockHeading, Text: "Intro", BBox: domain.BBox{X0: 72, Y0: 72, X1: 300, Y1: 90}},
		{Type: domain.BlockHeading, Text: "Results", BBox: domain.BBox{X0: 72, Y0: 400, X1: 300, Y1: 418}},
	}
	page := nativePage(2)

	above := domain.ExtractedFigure{BBox: domain.BBox{X0: 72, Y0: 100, X1: 540, Y1: 300}}
	below := domain.ExtractedFigure{BBox: domain.BBox{X0: 72, Y0: 450, X1: 540, Y1: 600}}

	assert.Equal(t, "Intro", figureSection(blocks, above, page, "Preface"))
	assert.Equal(t, "Results", figureSection(blocks, below, page, "Preface"))
	assert.Equal(t, "Results", figureSection(blocks, domain.ExtractedFigure{}, page, "Preface"))
	assert.Equal(t, "Preface", figureSection(nil, domain.ExtractedFigure{}, page, "Preface"))
}

func TestDocumentPipeline_NotConfigured(t *testing.T) {
	_, err := NewDocumentPipeline(Stages{}, "").Run(context.Background(), testDoc)
	assert.Error(t, err)
}

func TestDocumentPipeline_ParseFailure(t *testing.T) {
	f := newPipelineFixture()
	f.stages.Parser = &fakeParser{err: errBoom}

	_, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDocumentOpen)
	assert.Empty(t, f.embedder.batches)
}

func TestDocumentPipeline_EmbedFailureStoresNothing(t *testing.T) {
	f := newPipelineFixture()
	f.embedder.err = errBoom

	_, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.ErrorIs(t, err, errBoom)

	counts, err := f.index.Count(context.Background())
	require.NoError(t, err)
	for _, c := range domain.AllCollections() {
		assert.Zero(t, counts[c])
	}
}

func TestDocumentPipeline_FiguresCommittedAfterIndexing(t *testing.T) {
	f := newPipelineFixture()
	res := &fakeResources{}
	f.stages.Resources = res

	_, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.NoError(t, err)

	assert.Equal(t, []string{testDoc.Hash}, res.commits)
	assert.Equal(t, []string{testDoc.Hash}, res.discards, "only the stale staging area is cleared")
}

func TestDocumentPipeline_FiguresDiscardedOnFailure(t *testing.T) {
	f := newPipelineFixture()
	res := &fakeResources{}
	f.stages.Resources = res
	f.embedder.err = errBoom

	_, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.ErrorIs(t, err, errBoom)

	assert.Empty(t, res.commits)
	assert.Len(t, res.discards, 2, "cleared before the run and after the failure")
}

func TestDocumentPipeline_CommitFailure(t *testing.T) {
	f := newPipelineFixture()
	res := &fakeResources{commitErr: errBoom}
	f.stages.Resources = res

	_, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.ErrorIs(t, err, errBoom)
	assert.ErrorContains(t, err, "publish figures")
	assert.Len(t, res.discards, 2)
}

func TestDocumentPipeline_OCRFallback(t *testing.T) {
	f := newPipelineFixture()
	scanned := nativePage(1)
	scanned.HasNativeText = false
	f.stages.Parser = &fakeParser{pages: []domain.PageRecord{scanned}}
	ocr := &fakePageOCR{spans: []domain.TextSpan{{Text: "Scanned text", FromOCR: true}}}
	f.stages.OCR = ocr

	stats, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.NoError(t, err)

	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, 1, stats.OCRPages)
	require.Len(t, f.layout.seen, 1)
	assert.Equal(t, ocr.spans, f.layout.seen[0].Spans, "layout sees the OCR spans")
}

func TestDocumentPipeline_OCRSkippedOnNativePages(t *testing.T) {
	f := newPipelineFixture()
	ocr := &fakePageOCR{}
	f.stages.OCR = ocr

	_, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Zero(t, ocr.calls)
}

func TestDocumentPipeline_OCRUnavailableIsNotFatal(t *testing.T) {
	f := newPipelineFixture()
	scanned := nativePage(1)
	scanned.HasNativeText = false
	f.stages.Parser = &fakeParser{pages: []domain.PageRecord{scanned, func() domain.PageRecord {
		p := scanned
		p.Number = 2
		return p
	}()}}
	f.stages.OCR = &fakePageOCR{err: domain.ErrOCRUnavailable}

	stats, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Zero(t, stats.OCRPages)
	assert.Equal(t, 2, stats.Pages)
}

func TestDocumentPipeline_TableFailureIsNotFatal(t *testing.T) {
	f := newPipelineFixture()
	f.stages.Tables = &fakeTables{err: errBoom}

	stats, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Zero(t, stats.TableChunks)
	assert.Equal(t, 1, stats.FigureChunks)
}

func TestDocumentPipeline_FigureFailureFailsDocument(t *testing.T) {
	f := newPipelineFixture()
	f.stages.Figures = &fakeFigures{err: errBoom}

	_, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	assert.ErrorIs(t, err, errBoom)
}

func TestDocumentPipeline_WithoutOptionalStages(t *testing.T) {
	f := newPipelineFixture()
	f.stages.Tables = nil
	f.stages.Figures = nil
	f.stages.Charts = nil
	f.stages.Gate = nil
	f.stages.LoadImage = nil

	stats, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TextChunks)
	assert.Equal(t, 2, stats.Stored)
}

func TestDocumentPipeline_GateRejects(t *testing.T) {
	f := newPipelineFixture()
	f.layout.blocks[1] = append(f.layout.blocks[1], domain.LayoutBlock{
		Type: domain.BlockHeading, Text: "§§ ## ** ~~ ||", Page: 1, BBox: domain.BBox{X0: 72, Y0: 700, X1: 200, Y1: 710},
	})

	stats, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rejected)
}

func TestDocumentPipeline_Cancelled(t *testing.T) {
	f := newPipelineFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDocumentPipeline(f.stages, t.TempDir()).Run(ctx, testDoc)
	assert.ErrorIs(t, err, context.Canceled)
}

// ==================== sectionAt Tests ====================

func TestSectionAt(t *testing.T) {
	blocks := outlookBlocks(1)

	assert.Equal(t, "carried", sectionAt(blocks, 50, "carried"), "no heading above y")
	assert.Equal(t, outlookHeading, sectionAt(blocks, 400, "carried"))
	assert.Equal(t, "carried", sectionAt(nil, 400, "carried"))
}
