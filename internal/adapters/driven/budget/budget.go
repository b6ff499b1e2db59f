// Package budget throttles calls to external models and engines.
//
// Each decorator wraps a capability port and waits on a token bucket before
// every call. A rate of zero or less disables throttling and the wrapped
// value is returned unchanged.
package budget

import (
	"context"
	"image"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Limiter is a token bucket allowing perSecond calls with a burst of one.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter creates a limiter, or returns nil when perSecond <= 0.
func NewLimiter(perSecond float64) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until a call may proceed. A nil limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.bucket.Wait(ctx)
}

// Ensure the decorators implement their ports.
var (
	_ driven.OCREngine        = (*ocrEngine)(nil)
	_ driven.EmbeddingService = (*embeddingService)(nil)
	_ driven.ChartDescriber   = (*ChartModel)(nil)
	_ driven.ChartDigitiser   = (*ChartModel)(nil)
)

type ocrEngine struct {
	next    driven.OCREngine
	limiter *Limiter
}

// OCREngine throttles Recognize calls to perSecond.
func OCREngine(next driven.OCREngine, perSecond float64) driven.OCREngine {
	limiter := NewLimiter(perSecond)
	if next == nil || limiter == nil {
		return next
	}
	return &ocrEngine{next: next, limiter: limiter}
}

func (e *ocrEngine) Recognize(ctx context.Context, img image.Image) ([]domain.OCRBox, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.Recognize(ctx, img)
}

type embeddingService struct {
	driven.EmbeddingService
	limiter *Limiter
}

// EmbeddingService throttles Embed and EmbedBatch calls to perSecond.
// A batch counts as one call.
func EmbeddingService(next driven.EmbeddingService, perSecond float64) driven.EmbeddingService {
	limiter := NewLimiter(perSecond)
	if next == nil || limiter == nil {
		return next
	}
	return &embeddingService{EmbeddingService: next, limiter: limiter}
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.EmbeddingService.Embed(ctx, text)
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.EmbeddingService.EmbedBatch(ctx, texts)
}

// ChartModel throttles a describer and digitiser through one shared bucket,
// since both usually hit the same model endpoint.
type ChartModel struct {
	describer driven.ChartDescriber
	digitiser driven.ChartDigitiser
	limiter   *Limiter
}

// NewChartModel wraps describer and digitiser. Either may be nil; calling the
// missing one returns domain.ErrChartModelUnavailable.
func NewChartModel(describer driven.ChartDescriber, digitiser driven.ChartDigitiser, perSecond float64) *ChartModel {
	return &ChartModel{
		describer: describer,
		digitiser: digitiser,
		limiter:   NewLimiter(perSecond),
	}
}

// DescribeChart waits for the budget, then describes the chart.
func (m *ChartModel) DescribeChart(ctx context.Context, png []byte, axisText string) (string, error) {
	if m.describer == nil {
		return "", domain.ErrChartModelUnavailable
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return m.describer.DescribeChart(ctx, png, axisText)
}

// DigitiseChart waits for the budget, then digitises the chart.
func (m *ChartModel) DigitiseChart(ctx context.Context, png []byte) (string, error) {
	if m.digitiser == nil {
		return "", domain.ErrChartModelUnavailable
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return m.digitiser.DigitiseChart(ctx, png)
}
