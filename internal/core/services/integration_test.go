package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/resources"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/extractors/figure"
	"github.com/custodia-labs/sercha-ingest/internal/extractors/table"
	"github.com/custodia-labs/sercha-ingest/internal/layout"
	"github.com/custodia-labs/sercha-ingest/internal/ocr"
	pdfparser "github.com/custodia-labs/sercha-ingest/internal/parser/pdf"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors/chunker"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors/quality"
)

// Pages are rendered at 72 DPI so page points and image pixels coincide.
const integrationDPI = 72

// nativeReportPage has a heading, a two-line paragraph and a chart image.
const nativeReportPage = `BT /F1 18 Tf 72 700 Td (Quarterly Review) Tj ET
BT /F1 11 Tf 72 660 Td (Exports grew strongly across all regions this quarter) Tj ET
BT /F1 11 Tf 72 647 Td (while domestic demand held steady despite higher rates) Tj ET
q 300 0 0 200 156 300 cm /Im1 Do Q`

// scannedReportPage is a full-page scan with no text layer.
const scannedReportPage = `q 612 0 0 792 0 0 cm /Im1 Do Q`

// writePDF writes a minimal letter-size PDF with one content stream per page.
// Every page can use the Helvetica font /F1 and the 1x1 image /Im1.
func writePDF(t *testing.T, dir, name string, contents ...string) string {
	t.Helper()

	var objects []string
	add := func(body string) int {
		objects = append(objects, body)
		return len(objects)
	}

	catalog := add("")
	pagesObj := add("")
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	img := add("<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8 /Length 1 >>\nstream\n\x80\nendstream")

	var kids []string
	for _, c := range contents {
		stream := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(c), c))
		page := add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 %d 0 R >> /XObject << /Im1 %d 0 R >> >> /Contents %d 0 R >>",
			pagesObj, font, img, stream))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objects[catalog-1] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesObj)
	objects[pagesObj-1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, catalog, xref)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// blankRenderer writes a white letter-size PNG for every requested page.
type blankRenderer struct{}

var _ driven.PageRenderer = blankRenderer{}

func (blankRenderer) Render(_ context.Context, _, outDir string, dpi, first, last int) (map[int]string, error) {
	w, h := 612*dpi/72, 792*dpi/72
	pages := make(map[int]string, last-first+1)
	for n := first; n <= last; n++ {
		img := image.NewGray(image.Rect(0, 0, w, h))
		for i := range img.Pix {
			img.Pix[i] = 0xff
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		path := filepath.Join(outDir, fmt.Sprintf("page-%d.png", n))
		if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
			return nil, err
		}
		pages[n] = path
	}
	return pages, nil
}

// scanEngine "reads" the scanned page: a heading, a paragraph line and a
// three-row numeric table. Like a real engine it only reports words whose
// centre lies inside the image it was given, in that image's coordinates.
type scanEngine struct {
	words []domain.OCRBox
}

var _ driven.OCREngine = (*scanEngine)(nil)

func newScanEngine() *scanEngine {
	var words []domain.OCRBox
	line := func(text string, x, y, h float64) {
		for _, w := range strings.Fields(text) {
			width := 0.5 * h * float64(utf8.RuneCountInString(w))
			words = append(words, domain.OCRBox{Text: w, BBox: domain.BBox{X0: x, Y0: y, X1: x + width, Y1: y + h}, Confidence: 0.9})
			x += width + 0.5*h
		}
	}
	line("Regional Output", 72, 100, 24)
	line("Output rose in every region during the second quarter of the year", 72, 140, 12)
	for i, row := range [][2]string{{"Region", "Output"}, {"North", "120"}, {"South", "95"}} {
		y := 200 + 20*float64(i)
		line(row[0], 72, y, 12)
		line(row[1], 300, y, 12)
	}
	return &scanEngine{words: words}
}

func (e *scanEngine) Recognize(_ context.Context, img image.Image) ([]domain.OCRBox, error) {
	r := img.Bounds()
	var out []domain.OCRBox
	for _, w := range e.words {
		cx, cy := w.BBox.Center()
		if cx >= float64(r.Min.X) && cx < float64(r.Max.X) && cy >= float64(r.Min.Y) && cy < float64(r.Max.Y) {
			out = append(out, w)
		}
	}
	return out, nil
}

type ingestHarness struct {
	orchestrator *IngestOrchestrator
	index        *memory.VectorIndex
	embedder     *fakeEmbedder
	store        *resources.FigureStore
}

// newIngestHarness wires the real parsing, layout, OCR, extraction, chunking
// and gating stages the way the CLI does, with a fake OCR engine and embedder.
func newIngestHarness(t *testing.T, workers int) *ingestHarness {
	t.Helper()
	root := t.TempDir()

	store, err := resources.NewFigureStore(root)
	require.NoError(t, err)
	fallback := ocr.NewFallback(newScanEngine())
	embedder := &fakeEmbedder{}
	index := memory.NewVectorIndex(fakeDims)

	pipeline := NewDocumentPipeline(Stages{
		Parser:    pdfparser.New(blankRenderer{}, pdfparser.WithDPI(integrationDPI)),
		Layout:    layout.NewAnalyzer(),
		OCR:       fallback,
		Tables:    table.NewExtractor(fallback),
		Figures:   figure.NewExtractor(store),
		Chunker:   chunker.New(),
		Gate:      postprocessors.NewPipeline(quality.New()),
		Indexer:   NewIndexer(embedder, index, 0),
		Resources: store,
		LoadImage: ocr.LoadImage,
	}, t.TempDir())

	return &ingestHarness{
		orchestrator: NewIngestOrchestrator(pipeline, memory.NewRegistry(), WithWorkers(workers)),
		index:        index,
		embedder:     embedder,
		store:        store,
	}
}

func (h *ingestHarness) counts(t *testing.T) map[domain.Collection]int {
	t.Helper()
	counts, err := h.index.Count(context.Background())
	require.NoError(t, err)
	return counts
}

func (h *ingestHarness) ids(t *testing.T) []string {
	t.Helper()
	hits, err := h.index.Query(context.Background(), vectorFor("quarterly review"), domain.QueryOptions{K: 100})
	require.NoError(t, err)
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.Record.ID)
	}
	return ids
}

// newReportFolder holds a native+scanned report and a corrupt PDF.
func newReportFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePDF(t, dir, "quarterly.pdf", nativeReportPage, scannedReportPage)
	writeFile(t, dir, "broken.pdf", "%PDF-1.4\nthis file was truncated in transit")
	return dir
}

// ==================== End-to-End Ingest Tests ====================

func TestIngest_EndToEnd(t *testing.T) {
	h := newIngestHarness(t, 2)
	dir := newReportFolder(t)

	report, err := h.orchestrator.IngestFolder(context.Background(), dir, false)
	require.NoError(t, err)
	require.Len(t, report.Documents, 2)

	broken := report.Documents[0]
	assert.Equal(t, "broken.pdf", filepath.Base(broken.Path))
	assert.Equal(t, domain.DocumentFailed, broken.Status)
	assert.ErrorIs(t, broken.Err, domain.ErrDocumentOpen)

	doc := report.Documents[1]
	require.Equal(t, domain.DocumentIngested, doc.Status, "%v", doc.Err)
	assert.Equal(t, domain.DocumentStats{
		Pages:         2,
		OCRPages:      1,
		TextChunks:    2,
		TableChunks:   1,
		FigureChunks:  1,
		SummaryChunks: 2,
		Stored:        6,
	}, doc.Stats)
	assert.Equal(t, doc.Stats.Extracted()-doc.Stats.Rejected-doc.Stats.Duplicates, doc.Stats.Stored)

	assert.Equal(t, 1, report.Stats.FilesProcessed)
	assert.Equal(t, 1, report.Stats.FilesFailed)
	assert.Equal(t, 6, report.Stats.Stored)

	assert.Equal(t, map[domain.Collection]int{
		domain.CollectionText:    4,
		domain.CollectionTables:  1,
		domain.CollectionFigures: 1,
	}, h.counts(t))
}

func TestIngest_EndToEnd_ChunkContent(t *testing.T) {
	h := newIngestHarness(t, 1)
	dir := newReportFolder(t)

	_, err := h.orchestrator.IngestFolder(context.Background(), dir, false)
	require.NoError(t, err)

	hits, err := h.index.Query(context.Background(), vectorFor("regional output"), domain.QueryOptions{
		K:           10,
		Collections: []domain.Collection{domain.CollectionTables, domain.CollectionFigures},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	byCollection := map[domain.Collection]domain.VectorRecord{}
	for _, hit := range hits {
		byCollection[hit.Record.Collection] = hit.Record
	}

	tbl := byCollection[domain.CollectionTables]
	assert.Contains(t, tbl.Text, "North")
	assert.Contains(t, tbl.Text, "120")
	assert.Equal(t, 2, tbl.Metadata.Page)
	assert.Equal(t, "Regional Output", tbl.Metadata.Section)
	assert.Equal(t, string(domain.TableMethodOCR), tbl.Metadata.Method)

	fig := byCollection[domain.CollectionFigures]
	assert.Equal(t, 1, fig.Metadata.Page)
	require.NotEmpty(t, fig.Metadata.ImagePath)
	assert.FileExists(t, fig.Metadata.ImagePath)
	assert.Equal(t, h.store.Path(fig.Metadata.DocHash, 1, 1), fig.Metadata.ImagePath)
}

func TestIngest_EndToEnd_RerunIsSkipped(t *testing.T) {
	h := newIngestHarness(t, 2)
	dir := newReportFolder(t)

	_, err := h.orchestrator.IngestFolder(context.Background(), dir, false)
	require.NoError(t, err)
	before := h.counts(t)

	report, err := h.orchestrator.IngestFolder(context.Background(), dir, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stats.FilesSkipped)
	assert.Equal(t, 1, report.Stats.FilesFailed, "failed documents are retried")
	assert.Zero(t, report.Stats.Stored)
	assert.Equal(t, before, h.counts(t))
}

func TestIngest_EndToEnd_ForceRerunIsIdempotent(t *testing.T) {
	h := newIngestHarness(t, 2)
	dir := newReportFolder(t)

	first, err := h.orchestrator.IngestFolder(context.Background(), dir, false)
	require.NoError(t, err)
	counts := h.counts(t)
	ids := h.ids(t)

	second, err := h.orchestrator.IngestFolder(context.Background(), dir, true)
	require.NoError(t, err)

	require.Len(t, second.Documents, 2)
	assert.Equal(t, domain.DocumentIngested, second.Documents[1].Status)
	assert.Equal(t, first.Documents[1].Stats, second.Documents[1].Stats)
	assert.Equal(t, counts, h.counts(t))
	assert.ElementsMatch(t, ids, h.ids(t))

	figures, err := filepath.Glob(filepath.Join(filepath.Dir(h.store.Path(first.Documents[1].Hash, 1, 1)), "*.png"))
	require.NoError(t, err)
	assert.Len(t, figures, 1)
}

func TestIngest_EndToEnd_EmbedFailureLeavesNoFigures(t *testing.T) {
	h := newIngestHarness(t, 1)
	h.embedder.err = errBoom
	dir := newReportFolder(t)

	report, err := h.orchestrator.IngestFolder(context.Background(), dir, false)
	require.NoError(t, err)

	doc := report.Documents[1]
	assert.Equal(t, domain.DocumentFailed, doc.Status)
	assert.ErrorIs(t, doc.Err, errBoom)
	assert.Empty(t, h.counts(t))

	figureDir := filepath.Dir(h.store.Path(doc.Hash, 1, 1))
	assert.NoDirExists(t, figureDir)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(figureDir), ".staging", doc.Hash))
}
