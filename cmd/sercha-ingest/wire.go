package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/budget"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/command"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/ocr/tesseract"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/render/pdftoppm"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/resources"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
	"github.com/custodia-labs/sercha-ingest/internal/extractors/chart"
	"github.com/custodia-labs/sercha-ingest/internal/extractors/figure"
	"github.com/custodia-labs/sercha-ingest/internal/extractors/table"
	"github.com/custodia-labs/sercha-ingest/internal/layout"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/ocr"
	pdfparser "github.com/custodia-labs/sercha-ingest/internal/parser/pdf"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors"
	"github.com/custodia-labs/sercha-ingest/internal/postprocessors/chunker"
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.Warn("close: %v", err)
		}
	}
}

// buildServices is the cli.Factory: it resolves settings from configPath and
// builds only what the command needs.
func buildServices(ctx context.Context, configPath string, needs cli.Needs) (*cli.Services, error) {
	configStore, err := openConfigStore(configPath)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	svc := &cli.Services{Settings: settingsService}
	if needs <= cli.NeedsSettings {
		return svc, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	var cs closers
	registry, index, err := openStorage(ctx, settings, &cs)
	if err != nil {
		cs.close()
		return nil, err
	}
	svc.Close = cs.close

	if needs == cli.NeedsStore {
		svc.Query = services.NewQueryService(nil, index, registry)
		return svc, nil
	}

	prompts, err := file.NewPromptStore(filepath.Join(settings.Storage.Root, "prompts"))
	if err != nil {
		cs.close()
		return nil, err
	}
	models, err := ai.Init(ctx, settings, prompts)
	if err != nil {
		cs.close()
		return nil, err
	}
	cs.add(func() error { models.Close(); return nil })
	svc.Warnings = append(svc.Warnings, models.Warnings...)

	pipeline, warnings, err := buildPipeline(settings, models, index)
	if err != nil {
		cs.close()
		return nil, err
	}
	svc.Warnings = append(svc.Warnings, warnings...)

	svc.Ingestor = services.NewIngestOrchestrator(pipeline, registry, services.WithWorkers(settings.Ingest.Workers))
	svc.Query = services.NewQueryService(models.Embedding, index, registry)
	return svc, nil
}

func openConfigStore(configPath string) (*file.ConfigStore, error) {
	if configPath != "" {
		return file.NewConfigStoreAt(configPath)
	}
	return file.NewConfigStore("")
}

// openStorage opens the registry, which always lives in sqlite under the
// storage root, and the configured vector index.
func openStorage(ctx context.Context, settings *domain.AppSettings, cs *closers) (driven.ProcessedFileRegistry, driven.VectorIndex, error) {
	store, err := sqlite.NewStore(settings.Storage.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	cs.add(store.Close)

	switch settings.Vector.Backend {
	case domain.VectorBackendPGVector:
		index, err := pgvector.NewIndex(ctx, settings.Vector.DSN)
		if err != nil {
			return nil, nil, err
		}
		cs.add(index.Close)
		return store.Registry(), index, nil
	default:
		return store.Registry(), store.VectorIndex(), nil
	}
}

// buildPipeline assembles the per-document stages. Missing external binaries
// degrade the pipeline and are reported as warnings.
func buildPipeline(settings *domain.AppSettings, models *ai.Services, index driven.VectorIndex) (*services.DocumentPipeline, []string, error) {
	var warnings []string
	runner := command.ExecRunner{}

	var renderer driven.PageRenderer
	if r, err := pdftoppm.New(runner); err != nil {
		warnings = append(warnings, fmt.Sprintf("page rendering disabled: %v", err))
	} else {
		renderer = r
	}

	var engine driven.OCREngine
	if e, err := tesseract.New(runner, tesseract.Config{
		Languages:   settings.OCR.Languages,
		Accelerator: settings.OCR.Accelerator,
	}); err != nil {
		warnings = append(warnings, fmt.Sprintf("OCR disabled: %v", err))
	} else {
		engine = budget.OCREngine(e, settings.OCR.Rate)
	}
	fallback := ocr.NewFallback(engine, ocr.WithConfidence(settings.OCR.Confidence))

	figures, err := resources.NewFigureStore(settings.Storage.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("open figure store: %w", err)
	}

	var (
		describer driven.ChartDescriber
		digitiser driven.ChartDigitiser
	)
	if models.Chart != nil {
		describer, digitiser = models.Chart, models.Chart
	}

	gate, err := buildGate(settings)
	if err != nil {
		return nil, nil, err
	}

	stages := services.Stages{
		Parser: pdfparser.New(renderer,
			pdfparser.WithDPI(settings.Ingest.DPI),
			pdfparser.WithMaxPages(settings.Ingest.MaxPages),
		),
		Layout: layout.NewAnalyzer(
			layout.WithCaptionMaxDistance(settings.Figure.CaptionMaxDistance),
			layout.WithTableShape(settings.Table.MinRows, settings.Table.MinCols),
		),
		OCR:    fallback,
		Tables: table.NewExtractor(fallback, table.WithMinShape(settings.Table.MinRows, settings.Table.MinCols)),
		Figures: figure.NewExtractor(figures,
			figure.WithMinAreaRatio(settings.Figure.MinAreaRatio),
			figure.WithCaptionMaxDistance(settings.Figure.CaptionMaxDistance),
		),
		Charts: chart.NewProcessor(fallback.WithThreshold(settings.OCR.ChartConfidence),
			chart.NewKeywordClassifier(), describer, digitiser,
			chart.WithDigitise(settings.Chart.Digitise),
		),
		Chunker: chunker.New(
			chunker.WithChunkSize(settings.Chunk.Size),
			chunker.WithOverlap(settings.Chunk.Overlap),
			chunker.WithPageSummary(settings.Chunk.PageSummary),
			chunker.WithLengthBounds(settings.Quality.MinLength, settings.Quality.MaxLength),
		),
		Gate:      gate,
		Indexer:   services.NewIndexer(models.Embedding, index, settings.Embedding.BatchSize),
		Resources: figures,
		LoadImage: ocr.LoadImage,
	}
	return services.NewDocumentPipeline(stages, ""), warnings, nil
}

// buildGate builds the chunk post-processing pipeline through the processor
// registry so further processors can be added by name.
func buildGate(settings *domain.AppSettings) (*postprocessors.Pipeline, error) {
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)

	q := settings.Quality
	gate, err := registry.BuildPipeline([]string{"quality"}, map[string]map[string]any{
		"quality": {
			"min_length":            q.MinLength,
			"max_length":            q.MaxLength,
			"min_alnum_ratio":       q.MinAlnumRatio,
			"min_unique_word_ratio": q.MinUniqueWordRatio,
			"near_duplicate":        q.NearDuplicate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build quality gate: %w", err)
	}
	return gate, nil
}
