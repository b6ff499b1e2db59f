package services

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// setting binds a config key to the AppSettings field it overrides.
// field returns a pointer to one of: *string, *int, *float64, *bool,
// *domain.AIProvider or *domain.VectorBackend.
type setting struct {
	key   string
	field func(s *domain.AppSettings) any
}

// settingsTable lists every recognised key in display order.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
var settingsTable = []setting{
	{"ingest.dpi", func(s *domain.AppSettings) any { return &s.Ingest.DPI }},
	{"ingest.max_pages", func(s *domain.AppSettings) any { return &s.Ingest.MaxPages }},
	{"ingest.workers", func(s *domain.AppSettings) any { return &s.Ingest.Workers }},
	{"ocr.accelerator", func(s *domain.AppSettings) any { return &s.OCR.Accelerator }},
	{"ocr.languages", func(s *domain.AppSettings) any { return &s.OCR.Languages }},
	{"ocr.confidence", func(s *domain.AppSettings) any { return &s.OCR.Confidence }},
	{"ocr.chart_confidence", func(s *domain.AppSettings) any { return &s.OCR.ChartConfidence }},
	{"ocr.rate", func(s *domain.AppSettings) any { return &s.OCR.Rate }},
	{"chunk.size", func(s *domain.AppSettings) any { return &s.Chunk.Size }},
	{"chunk.overlap", func(s *domain.AppSettings) any { return &s.Chunk.Overlap }},
	{"chunk.page_summary", func(s *domain.AppSettings) any { return &s.Chunk.PageSummary }},
	{"quality.min_length", func(s *domain.AppSettings) any { return &s.Quality.MinLength }},
	{"quality.max_length", func(s *domain.AppSettings) any { return &s.Quality.MaxLength }},
	{"quality.min_alnum_ratio", func(s *domain.AppSettings) any { return &s.Quality.MinAlnumRatio }},
	{"quality.min_unique_word_ratio", func(s *domain.AppSettings) any { return &s.Quality.MinUniqueWordRatio }},
	{"quality.near_duplicate", func(s *domain.AppSettings) any { return &s.Quality.NearDuplicate }},
	{"figure.min_area_ratio", func(s *domain.AppSettings) any { return &s.Figure.MinAreaRatio }},
	{"figure.caption_max_distance", func(s *domain.AppSettings) any { return &s.Figure.CaptionMaxDistance }},
	{"table.min_rows", func(s *domain.AppSettings) any { return &s.Table.MinRows }},
	{"table.min_cols", func(s *domain.AppSettings) any { return &s.Table.MinCols }},
	{"embedding.provider", func(s *domain.AppSettings) any { return &s.Embedding.Provider }},
	{"embedding.model", func(s *domain.AppSettings) any { return &s.Embedding.Model }},
	{"embedding.base_url", func(s *domain.AppSettings) any { return &s.Embedding.BaseURL }},
	{"embedding.api_key", func(s *domain.AppSettings) any { return &s.Embedding.APIKey }},
	{"embedding.batch_size", func(s *domain.AppSettings) any { return &s.Embedding.BatchSize }},
	{"embedding.rate", func(s *domain.AppSettings) any { return &s.Embedding.Rate }},
	{"chart.provider", func(s *domain.AppSettings) any { return &s.Chart.Provider }},
	{"chart.model", func(s *domain.AppSettings) any { return &s.Chart.Model }},
	{"chart.base_url", func(s *domain.AppSettings) any { return &s.Chart.BaseURL }},
	{"chart.api_key", func(s *domain.AppSettings) any { return &s.Chart.APIKey }},
	{"chart.digitise", func(s *domain.AppSettings) any { return &s.Chart.Digitise }},
	{"chart.rate", func(s *domain.AppSettings) any { return &s.Chart.Rate }},
	{"storage.root", func(s *domain.AppSettings) any { return &s.Storage.Root }},
	{"storage.input_dir", func(s *domain.AppSettings) any { return &s.Storage.InputDir }},
	{"vector.backend", func(s *domain.AppSettings) any { return &s.Vector.Backend }},
	{"vector.dsn", func(s *domain.AppSettings) any { return &s.Vector.DSN }},
}

// SettingsService resolves and edits application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get returns the defaults overlaid by every key present in the config store.
// The result is validated; an invalid combination is an error.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()

	for _, st := range settingsTable {
		if _, exists := s.configStore.Get(st.key); !exists {
			continue
		}
		if err := s.load(st, &settings); err != nil {
			return nil, err
		}
	}

	s.applyDerivedDefaults(&settings)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// load copies one stored value into its field.
func (s *SettingsService) load(st setting, settings *domain.AppSettings) error {
	switch p := st.field(settings).(type) {
	case *string:
		*p = s.configStore.GetString(st.key)
	case *int:
		*p = s.configStore.GetInt(st.key)
	case *float64:
		*p = s.configStore.GetFloat(st.key)
	case *bool:
		*p = s.configStore.GetBool(st.key)
	case *domain.AIProvider:
		provider, err := parseProvider(s.configStore.GetString(st.key))
		if err != nil {
			return fmt.Errorf("%s: %w", st.key, err)
		}
		*p = provider
	case *domain.VectorBackend:
		backend, err := parseBackend(s.configStore.GetString(st.key))
		if err != nil {
			return fmt.Errorf("%s: %w", st.key, err)
		}
		*p = backend
	}
	return nil
}

// applyDerivedDefaults fills values that depend on other settings.
func (s *SettingsService) applyDerivedDefaults(settings *domain.AppSettings) {
	if settings.Storage.Root == "" {
		settings.Storage.Root = filepath.Dir(s.configStore.Path())
	}

	// A provider switch without an explicit model gets that provider's default.
	if _, exists := s.configStore.Get("embedding.model"); !exists {
		if model, ok := domain.DefaultEmbeddingModels()[settings.Embedding.Provider]; ok {
			settings.Embedding.Model = model
		}
	}
	if _, exists := s.configStore.Get("chart.model"); !exists {
		if model, ok := domain.DefaultChartModels()[settings.Chart.Provider]; ok {
			settings.Chart.Model = model
		}
	}

	// Cloud providers don't need a base URL; local ones default to the usual port.
	if settings.Embedding.Provider.IsLocal() && settings.Embedding.BaseURL == "" {
		settings.Embedding.BaseURL = defaultOllamaURL
	}
	if settings.Chart.Provider.IsLocal() && settings.Chart.BaseURL == "" {
		settings.Chart.BaseURL = defaultOllamaURL
	}
}

const defaultOllamaURL = "http://localhost:11434"

// Set parses value according to the key's type and persists it.
// The change is rejected if the resulting settings would not validate.
func (s *SettingsService) Set(key, value string) error {
	st, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	current, err := s.Get()
	if err != nil {
		return err
	}

	value = strings.TrimSpace(value)
	var typed any
	switch p := st.field(current).(type) {
	case *string:
		*p, typed = value, value
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects an integer, got %q", domain.ErrInvalidInput, key, value)
		}
		*p, typed = n, n
	case *float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s expects a number, got %q", domain.ErrInvalidInput, key, value)
		}
		*p, typed = f, f
	case *bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects true or false, got %q", domain.ErrInvalidInput, key, value)
		}
		*p, typed = b, b
	case *domain.AIProvider:
		provider, err := parseProvider(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*p, typed = provider, provider.String()
	case *domain.VectorBackend:
		backend, err := parseBackend(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*p, typed = backend, backend.String()
	}

	if err := current.Validate(); err != nil {
		return err
	}
	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys returns every recognised key in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingsTable))
	for i, st := range settingsTable {
		keys[i] = st.key
	}
	return keys
}

// Value formats the resolved value of key for display.
// API keys are masked.
func Value(settings *domain.AppSettings, key string) (string, bool) {
	st, ok := lookupSetting(key)
	if !ok {
		return "", false
	}
	var out string
	switch p := st.field(settings).(type) {
	case *string:
		out = *p
		if strings.HasSuffix(key, ".api_key") && out != "" {
			out = "********"
		}
	case *int:
		out = strconv.Itoa(*p)
	case *float64:
		out = strconv.FormatFloat(*p, 'g', -1, 64)
	case *bool:
		out = strconv.FormatBool(*p)
	case *domain.AIProvider:
		out = p.String()
	case *domain.VectorBackend:
		out = p.String()
	}
	return out, true
}

// Path returns the configuration file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateChartConfig validates the current chart model configuration.
func (s *SettingsService) ValidateChartConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateChart(&settings.Chart)
}

func lookupSetting(key string) (setting, bool) {
	for _, st := range settingsTable {
		if st.key == key {
			return st, true
		}
	}
	return setting{}, false
}

func parseProvider(val string) (domain.AIProvider, error) {
	provider := domain.AIProvider(strings.ToLower(strings.TrimSpace(val)))
	if provider == domain.AIProviderNone || provider.IsValid() {
		return provider, nil
	}
	return "", fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, val)
}

func parseBackend(val string) (domain.VectorBackend, error) {
	backend := domain.VectorBackend(strings.ToLower(strings.TrimSpace(val)))
	if backend.IsValid() {
		return backend, nil
	}
	return "", fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidInput, val)
}
