// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/budget"
	geminiembed "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/embedding/openai"
	geminivision "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/vision/gemini"
	ollamavision "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/vision/ollama"
	openaivision "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/vision/openai"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// ChartModel is a vision model that can both describe and digitise charts.
type ChartModel interface {
	driven.ChartDescriber
	driven.ChartDigitiser
	ModelName() string
	Ping(ctx context.Context) error
	Close() error
}

// Services holds the AI services for one ingest or query run.
type Services struct {
	// Embedding is throttled to embedding.rate. Never nil after a successful Init.
	Embedding driven.EmbeddingService

	// Chart is throttled to chart.rate; nil when chart models are disabled
	// or unreachable.
	Chart *budget.ChartModel

	// Warnings lists non-fatal issues, such as a chart model that failed its ping.
	Warnings []string

	closers []func() error
}

// Close releases all resources held by the services.
func (s *Services) Close() {
	for _, c := range s.closers {
		c() //nolint:errcheck // best-effort cleanup
	}
	s.closers = nil
}

// Init creates and validates the embedding service, and the chart model when
// configured. An unusable embedding service is an error because nothing can
// be indexed without it; an unusable chart model only adds a warning.
func Init(ctx context.Context, settings *domain.AppSettings, prompts driven.PromptStore) (*Services, error) {
	embedder, err := CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured",
			domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}

	s := &Services{
		Embedding: budget.EmbeddingService(embedder, settings.Embedding.Rate),
		closers:   []func() error{embedder.Close},
	}

	chart, err := CreateAndValidateChartModel(ctx, &settings.Chart, prompts)
	switch {
	case err != nil:
		s.Warnings = append(s.Warnings, err.Error())
	case chart != nil:
		s.Chart = budget.NewChartModel(chart, chart, settings.Chart.Rate)
		s.closers = append(s.closers, chart.Close)
	}
	return s, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'sercha-ingest settings set embedding.*' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'sercha-ingest settings set embedding.*' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// CreateAndValidateChartModel creates a chart model and validates connectivity.
// Returns nil without error when chart models are disabled.
func CreateAndValidateChartModel(ctx context.Context, settings *domain.ChartSettings, prompts driven.PromptStore) (ChartModel, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	model, err := CreateChartModel(ctx, settings, prompts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrChartModelUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := model.Ping(pingCtx); err != nil {
		model.Close()
		return nil, fmt.Errorf("%w: %s unreachable (%w)", domain.ErrChartModelUnavailable, settings.Provider, err)
	}

	return model, nil
}

// CreateEmbeddingService creates the embedding service for the configured provider.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("embedding provider %q is not configured", providerOf(settings))
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey: settings.APIKey,
			Model:  settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateChartModel creates the vision model for the configured provider.
// prompts may be nil, in which case the adapters use built-in prompts.
func CreateChartModel(ctx context.Context, settings *domain.ChartSettings, prompts driven.PromptStore) (ChartModel, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("chart provider %q is not configured", chartProviderOf(settings))
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamavision.NewService(ollamavision.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Prompts: prompts,
		}), nil

	case domain.AIProviderOpenAI:
		return openaivision.NewService(openaivision.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Prompts: prompts,
		})

	case domain.AIProviderGemini:
		return geminivision.NewService(ctx, geminivision.Config{
			APIKey:  settings.APIKey,
			Model:   settings.Model,
			Prompts: prompts,
		})

	default:
		return nil, fmt.Errorf("unsupported chart provider: %s", settings.Provider)
	}
}

func providerOf(settings *domain.EmbeddingSettings) domain.AIProvider {
	if settings == nil {
		return ""
	}
	return settings.Provider
}

func chartProviderOf(settings *domain.ChartSettings) domain.AIProvider {
	if settings == nil {
		return ""
	}
	return settings.Provider
}
