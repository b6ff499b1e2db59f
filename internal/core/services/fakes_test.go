package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"image"
	"sync"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

const fakeDims = 4

// fakeEmbedder derives a deterministic vector from each text.
type fakeEmbedder struct {
	mu      sync.Mutex
	err     error
	batches [][]string
	short   bool // return vectors one element too short
}

var _ driven.EmbeddingService = (*fakeEmbedder)(nil)

func vectorFor(text string) []float32 {
	sum := sha256.Sum256([]byte(domain.NormalizeText(text)))
	v := make([]float32, fakeDims)
	for i := range v {
		v[i] = float32(sum[i]) + 1
	}
	return v
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches = append(f.batches, texts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
		if f.short {
			out[i] = out[i][:fakeDims-1]
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int            { return fakeDims }
func (f *fakeEmbedder) ModelName() string          { return "fake-embed" }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }
func (f *fakeEmbedder) Close() error               { return nil }

// recordingIndex counts upserts and can fail them.
type recordingIndex struct {
	driven.VectorIndex
	upserts int
	err     error
}

func (r *recordingIndex) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	r.upserts++
	if r.err != nil {
		return r.err
	}
	return r.VectorIndex.Upsert(ctx, records)
}

// fakeParser returns pre-built pages for every document.
type fakeParser struct {
	pages []domain.PageRecord
	err   error
}

func (f *fakeParser) Parse(_ context.Context, doc domain.SourceDocument, _ string) (*domain.ParsedDocument, error) {
	if f.err != nil {
		return nil, &domain.DocumentOpenError{Path: doc.Path, Err: f.err}
	}
	doc.PageCount = len(f.pages)
	return &domain.ParsedDocument{Source: doc, Pages: f.pages}, nil
}

// fakeLayout returns fixed blocks per page and records what it saw.
type fakeLayout struct {
	mu     sync.Mutex
	blocks map[int][]domain.LayoutBlock
	seen   []domain.PageRecord
}

func (f *fakeLayout) Classify(page domain.PageRecord) []domain.LayoutBlock {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, page)
	return f.blocks[page.Number]
}

type fakePageOCR struct {
	spans []domain.TextSpan
	err   error
	calls int
}

func (f *fakePageOCR) Available() bool { return true }

func (f *fakePageOCR) RecognizePage(context.Context, domain.PageRecord, image.Image) ([]domain.TextSpan, error) {
	f.calls++
	return f.spans, f.err
}

type fakeTables struct {
	table *domain.ExtractedTable
	err   error
}

func (f *fakeTables) Extract(_ context.Context, page domain.PageRecord, _ image.Image, block domain.LayoutBlock) (*domain.ExtractedTable, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.table == nil {
		return nil, nil
	}
	t := *f.table
	t.Page = page.Number
	t.BBox = block.BBox
	return &t, nil
}

type fakeFigures struct {
	figures []domain.ExtractedFigure
	err     error
}

func (f *fakeFigures) Extract(_ context.Context, _ domain.SourceDocument, page domain.PageRecord, _ image.Image, _ []domain.LayoutBlock) ([]domain.ExtractedFigure, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.ExtractedFigure, len(f.figures))
	for i, fig := range f.figures {
		fig.Page = page.Number
		out[i] = fig
	}
	return out, nil
}

type fakeCharts struct {
	description string
}

func (f *fakeCharts) Process(_ context.Context, _ domain.PageRecord, _ image.Image, fig *domain.ExtractedFigure) {
	desc := f.description
	fig.Description = &desc
	fig.ChartType = domain.ChartLine
}

var errBoom = errors.New("boom")

// fakeResources records the figure commits and discards of a pipeline run.
type fakeResources struct {
	commits   []string
	discards  []string
	commitErr error
}

var _ driven.FigureCommitter = (*fakeResources)(nil)

func (f *fakeResources) Commit(_ context.Context, docHash string) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, docHash)
	return nil
}

func (f *fakeResources) Discard(docHash string) error {
	f.discards = append(f.discards, docHash)
	return nil
}
