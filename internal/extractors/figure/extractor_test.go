package figure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

type savedFigure struct {
	hash    string
	page, k int
	png     []byte
}

type fakeStore struct {
	saved []savedFigure
	err   error
}

func (f *fakeStore) Save(_ context.Context, hash string, page, k int, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, savedFigure{hash, page, k, data})
	return fmt.Sprintf("resources/%s/page_%d_fig_%d.png", hash, page, k), nil
}

var doc = domain.SourceDocument{Path: "/in/report.pdf", Hash: "abc123"}

// page renders at 72 DPI so points equal pixels.
func testPage() (domain.PageRecord, image.Image) {
	return domain.PageRecord{Number: 5, Width: 600, Height: 800, DPI: 72}, image.NewRGBA(image.Rect(0, 0, 600, 800))
}

func TestExtract_CropsPersistsAndLinks(t *testing.T) {
	page, img := testPage()
	blocks := []domain.LayoutBlock{
		{Type: domain.BlockFigure, BBox: domain.BBox{X0: 50, Y0: 400, X1: 250, Y1: 550}},
		{Type: domain.BlockFigure, BBox: domain.BBox{X0: 50, Y0: 100, X1: 250, Y1: 250}},
		{Type: domain.BlockCaption, BBox: domain.BBox{X0: 50, Y0: 260, X1: 250, Y1: 270}, Text: "Figure 1: Inflation"},
		{Type: domain.BlockCaption, BBox: domain.BBox{X0: 50, Y0: 560, X1: 250, Y1: 570}, Text: "Figure 2: Rates"},
	}
	store := &fakeStore{}

	figs, err := NewExtractor(store).Extract(context.Background(), doc, page, img, blocks)

	require.NoError(t, err)
	require.Len(t, figs, 2)
	assert.Equal(t, 1, figs[0].Index)
	assert.InDelta(t, 100.0, figs[0].BBox.Y0, 1e-9)
	assert.Equal(t, "Figure 1: Inflation", figs[0].Caption)
	assert.Equal(t, "Figure 2: Rates", figs[1].Caption)
	assert.Equal(t, "resources/abc123/page_5_fig_2.png", figs[1].ImagePath)
	assert.Equal(t, domain.ChartUnknown, figs[0].ChartType)

	require.Len(t, store.saved, 2)
	assert.Equal(t, "abc123", store.saved[0].hash)
	decoded, err := png.Decode(bytes.NewReader(store.saved[0].png))
	require.NoError(t, err)
	assert.Equal(t, 200, decoded.Bounds().Dx())
	assert.Equal(t, 150, decoded.Bounds().Dy())
}

func TestExtract_DeterministicPaths(t *testing.T) {
	page, img := testPage()
	blocks := []domain.LayoutBlock{{Type: domain.BlockFigure, BBox: domain.BBox{X0: 50, Y0: 100, X1: 250, Y1: 250}}}
	e := NewExtractor(&fakeStore{})

	first, err := e.Extract(context.Background(), doc, page, img, blocks)
	require.NoError(t, err)
	second, err := e.Extract(context.Background(), doc, page, img, blocks)
	require.NoError(t, err)

	assert.Equal(t, first[0].ImagePath, second[0].ImagePath)
}

func TestExtract_ImagePlacementsNotCoveredByBlocks(t *testing.T) {
	page, img := testPage()
	page.Images = []domain.BBox{
		{X0: 55, Y0: 105, X1: 245, Y1: 245},  // covered by the block
		{X0: 300, Y0: 300, X1: 500, Y1: 500}, // new figure
		{X0: 10, Y0: 10, X1: 30, Y1: 30},     // icon
		{X0: 0, Y0: 0, X1: 600, Y1: 800},     // page scan
	}
	blocks := []domain.LayoutBlock{{Type: domain.BlockFigure, BBox: domain.BBox{X0: 50, Y0: 100, X1: 250, Y1: 250}}}

	figs, err := NewExtractor(&fakeStore{}).Extract(context.Background(), doc, page, img, blocks)

	require.NoError(t, err)
	require.Len(t, figs, 2)
	assert.Equal(t, domain.BBox{X0: 300, Y0: 300, X1: 500, Y1: 500}, figs[1].BBox)
}

func TestExtract_SkipsSmallFigures(t *testing.T) {
	page, img := testPage()
	blocks := []domain.LayoutBlock{
		// 1.25% of the page: below the minimum area ratio
		{Type: domain.BlockFigure, BBox: domain.BBox{X0: 0, Y0: 0, X1: 100, Y1: 60}},
		{Type: domain.BlockFigure, BBox: domain.BBox{X0: 50, Y0: 100, X1: 250, Y1: 250}},
	}

	figs, err := NewExtractor(&fakeStore{}).Extract(context.Background(), doc, page, img, blocks)

	require.NoError(t, err)
	require.Len(t, figs, 1)
	assert.Equal(t, 1, figs[0].Index)
}

func TestExtract_SkipsTinyCrops(t *testing.T) {
	page, _ := testPage()
	img := image.NewRGBA(image.Rect(0, 0, 600, 110))
	blocks := []domain.LayoutBlock{{Type: domain.BlockFigure, BBox: domain.BBox{X0: 50, Y0: 100, X1: 250, Y1: 250}}}

	figs, err := NewExtractor(&fakeStore{}, WithMinAreaRatio(0)).Extract(context.Background(), doc, page, img, blocks)

	require.NoError(t, err)
	assert.Empty(t, figs)
}

func TestExtract_NoImage(t *testing.T) {
	page, _ := testPage()
	blocks := []domain.LayoutBlock{{Type: domain.BlockFigure, BBox: domain.BBox{X0: 50, Y0: 100, X1: 250, Y1: 250}}}

	figs, err := NewExtractor(&fakeStore{}).Extract(context.Background(), doc, page, nil, blocks)

	require.NoError(t, err)
	assert.Empty(t, figs)
}

func TestExtract_StoreError(t *testing.T) {
	page, img := testPage()
	blocks := []domain.LayoutBlock{{Type: domain.BlockFigure, BBox: domain.BBox{X0: 50, Y0: 100, X1: 250, Y1: 250}}}

	_, err := NewExtractor(&fakeStore{err: errors.New("disk full")}).Extract(context.Background(), doc, page, img, blocks)

	assert.ErrorContains(t, err, "disk full")
}

func TestLinkCaptions_NearestWins(t *testing.T) {
	figs := []domain.ExtractedFigure{{BBox: domain.BBox{X0: 0, Y0: 0, X1: 100, Y1: 100}}}
	captions := []domain.LayoutBlock{
		{Text: "far", BBox: domain.BBox{X0: 0, Y0: 140, X1: 100, Y1: 150}},  // d = 95
		{Text: "near", BBox: domain.BBox{X0: 0, Y0: 100, X1: 100, Y1: 110}}, // d = 55
	}

	LinkCaptions(figs, captions, 150)

	assert.Equal(t, "near", figs[0].Caption)
}

func TestLinkCaptions_BeyondDistance(t *testing.T) {
	figs := []domain.ExtractedFigure{{BBox: domain.BBox{X0: 0, Y0: 0, X1: 100, Y1: 100}}}
	captions := []domain.LayoutBlock{{Text: "far", BBox: domain.BBox{X0: 0, Y0: 300, X1: 100, Y1: 310}}}

	LinkCaptions(figs, captions, 150)

	assert.False(t, figs[0].HasCaption())
}

func TestLinkCaptions_TallFigure(t *testing.T) {
	figs := []domain.ExtractedFigure{{BBox: domain.BBox{X0: 72, Y0: 320, X1: 540, Y1: 600}}}
	captions := []domain.LayoutBlock{
		{Text: "Figure 3: Regional output", BBox: domain.BBox{X0: 72, Y0: 606, X1: 300, Y1: 618}}, // centres 193.7 apart
	}

	LinkCaptions(figs, captions, 150)

	assert.Equal(t, "Figure 3: Regional output", figs[0].Caption)
}

func TestLinkCaptions_CentreDistanceRanks(t *testing.T) {
	figs := []domain.ExtractedFigure{{BBox: domain.BBox{X0: 72, Y0: 320, X1: 540, Y1: 600}}}
	captions := []domain.LayoutBlock{
		{Text: "above", BBox: domain.BBox{X0: 72, Y0: 290, X1: 540, Y1: 300}},
		{Text: "overlapping", BBox: domain.BBox{X0: 72, Y0: 450, X1: 540, Y1: 470}},
	}

	LinkCaptions(figs, captions, 150)

	assert.Equal(t, "overlapping", figs[0].Caption)
}

func TestLinkCaptions_CaptionUsedOnce(t *testing.T) {
	figs := []domain.ExtractedFigure{
		{BBox: domain.BBox{X0: 0, Y0: 0, X1: 100, Y1: 100}},
		{BBox: domain.BBox{X0: 0, Y0: 120, X1: 100, Y1: 220}},
	}
	captions := []domain.LayoutBlock{{Text: "only", BBox: domain.BBox{X0: 0, Y0: 100, X1: 100, Y1: 110}}}

	LinkCaptions(figs, captions, 150)

	assert.Equal(t, "only", figs[0].Caption)
	assert.False(t, figs[1].HasCaption())
}
