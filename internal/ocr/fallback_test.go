package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// fakeEngine returns fixed boxes (pixels) that fall inside the image it is given.
type fakeEngine struct {
	boxes  []domain.OCRBox
	err    error
	bounds []image.Rectangle
}

func (f *fakeEngine) Recognize(_ context.Context, img image.Image) ([]domain.OCRBox, error) {
	f.bounds = append(f.bounds, img.Bounds())
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.OCRBox
	for _, b := range f.boxes {
		cx, cy := b.BBox.Center()
		if image.Pt(int(cx), int(cy)).In(img.Bounds()) {
			out = append(out, b)
		}
	}
	return out, nil
}

func box(text string, x0, y0, x1, y1, conf float64) domain.OCRBox {
	return domain.OCRBox{Text: text, BBox: domain.BBox{X0: x0, Y0: y0, X1: x1, Y1: y1}, Confidence: conf}
}

// page at 144 DPI: 2 pixels per point.
var testPage = domain.PageRecord{Number: 2, Width: 300, Height: 400, DPI: 144}

func testImage() image.Image {
	return image.NewGray(image.Rect(0, 0, 600, 800))
}

func TestRecognizeRegion_ScalesAndFilters(t *testing.T) {
	engine := &fakeEngine{boxes: []domain.OCRBox{
		box("Revenue", 200, 100, 300, 120, 0.9),
		box("noise", 320, 100, 340, 120, 0.2),
		box("outside", 10, 700, 60, 720, 0.9),
	}}
	f := NewFallback(engine)

	boxes, err := f.RecognizeRegion(context.Background(), testPage, testImage(), domain.BBox{X0: 50, Y0: 25, X1: 250, Y1: 125})

	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, "Revenue", boxes[0].Text)
	assert.Equal(t, domain.BBox{X0: 100, Y0: 50, X1: 150, Y1: 60}, boxes[0].BBox)
	require.Len(t, engine.bounds, 1)
	assert.Equal(t, image.Rect(100, 50, 500, 250), engine.bounds[0])
}

func TestRecognizeRegion_Threshold(t *testing.T) {
	engine := &fakeEngine{boxes: []domain.OCRBox{box("axis", 10, 10, 50, 30, 0.35)}}
	f := NewFallback(engine)

	strict, err := f.RecognizeRegion(context.Background(), testPage, testImage(), testPage.Bounds())
	require.NoError(t, err)
	assert.Empty(t, strict)

	loose, err := f.WithThreshold(0.30).RecognizeRegion(context.Background(), testPage, testImage(), testPage.Bounds())
	require.NoError(t, err)
	assert.Len(t, loose, 1)
}

func TestRecognizeRegion_Unavailable(t *testing.T) {
	_, err := NewFallback(nil).RecognizeRegion(context.Background(), testPage, testImage(), testPage.Bounds())
	assert.ErrorIs(t, err, domain.ErrOCRUnavailable)

	_, err = NewFallback(&fakeEngine{}).RecognizeRegion(context.Background(), testPage, nil, testPage.Bounds())
	assert.ErrorIs(t, err, domain.ErrRendererUnavailable)
}

func TestRecognizeRegion_EngineError(t *testing.T) {
	f := NewFallback(&fakeEngine{err: errors.New("tesseract crashed")})

	_, err := f.RecognizeRegion(context.Background(), testPage, testImage(), testPage.Bounds())

	assert.ErrorContains(t, err, "tesseract crashed")
}

func TestRecognizeRegion_OutsideImage(t *testing.T) {
	boxes, err := NewFallback(&fakeEngine{}).RecognizeRegion(context.Background(), testPage, testImage(), domain.BBox{X0: 400, Y0: 500, X1: 500, Y1: 600})

	require.NoError(t, err)
	assert.Nil(t, boxes)
}

func TestRecognizePage_PhrasesKeepColumnsApart(t *testing.T) {
	engine := &fakeEngine{boxes: []domain.OCRBox{
		box("Net", 100, 100, 140, 120, 0.9),
		box("income", 150, 102, 230, 120, 0.7),
		box("4.5", 500, 100, 540, 120, 0.95),
		box("Total", 100, 160, 160, 180, 0.8),
	}}

	spans, err := NewFallback(engine).RecognizePage(context.Background(), testPage, testImage())

	require.NoError(t, err)
	require.Len(t, spans, 3)
	assert.Equal(t, "Net income", spans[0].Text)
	assert.True(t, spans[0].FromOCR)
	assert.InDelta(t, 0.8, spans[0].Confidence, 1e-9)
	assert.InDelta(t, 10.0, spans[0].FontSize, 1e-9)
	assert.Equal(t, "4.5", spans[1].Text)
	assert.Equal(t, "Total", spans[2].Text)
}

func TestRows_Tolerance(t *testing.T) {
	boxes := []domain.OCRBox{
		box("b", 60, 8, 80, 20, 1),
		box("a", 0, 0, 20, 12, 1),
		box("c", 0, 40, 20, 52, 1),
	}

	rows := Rows(boxes, 12)

	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0][0].Text)
	assert.Equal(t, "b", rows[0][1].Text)
	assert.Equal(t, "c", rows[1][0].Text)
}

func TestText_ReadingOrder(t *testing.T) {
	boxes := []domain.OCRBox{
		box("world", 60, 1, 100, 12, 1),
		box("hello", 0, 2, 50, 12, 1),
		box("again", 0, 30, 40, 42, 1),
	}

	assert.Equal(t, "hello world again", Text(boxes))
}

func TestCrop_KeepsCoordinateSpace(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	img.Set(60, 70, color.White)

	crop := Crop(img, domain.BBox{X0: 50.5, Y0: 60.2, X1: 80, Y1: 90})

	require.NotNil(t, crop)
	assert.Equal(t, image.Rect(50, 60, 80, 90), crop.Bounds())
	assert.Equal(t, color.RGBAModel.Convert(color.White), crop.At(60, 70))
	assert.Nil(t, Crop(img, domain.BBox{X0: 200, Y0: 200, X1: 300, Y1: 300}))
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page-1.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 3))))
	require.NoError(t, f.Close())

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
