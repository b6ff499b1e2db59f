package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

func newTestConfigStore(t *testing.T) *file.ConfigStore {
	t.Helper()
	store, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	store := newTestConfigStore(t)
	service := NewSettingsService(store, nil)

	settings, err := service.Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Ingest, settings.Ingest)
	assert.Equal(t, defaults.Chunk, settings.Chunk)
	assert.Equal(t, defaults.Quality, settings.Quality)
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, domain.AIProviderNone, settings.Chart.Provider)
	assert.Equal(t, domain.VectorBackendSQLite, settings.Vector.Backend)
	assert.Equal(t, filepath.Dir(store.Path()), settings.Storage.Root)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("chunk.size", 300))
	require.NoError(t, store.Set("quality.near_duplicate", 0.9))
	require.NoError(t, store.Set("ocr.accelerator", true))
	require.NoError(t, store.Set("embedding.provider", "openai"))
	require.NoError(t, store.Set("embedding.api_key", "sk-test"))
	require.NoError(t, store.Set("storage.root", "/data/ingest"))

	settings, err := NewSettingsService(store, nil).Get()
	require.NoError(t, err)

	assert.Equal(t, 300, settings.Chunk.Size)
	assert.InDelta(t, 0.9, settings.Quality.NearDuplicate, 1e-9)
	assert.True(t, settings.OCR.Accelerator)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model, "provider default model")
	assert.Equal(t, "sk-test", settings.Embedding.APIKey)
	assert.Equal(t, "/data/ingest", settings.Storage.Root)
}

func TestSettingsService_Get_EnvironmentOverrides(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("chunk.size", 300))
	t.Setenv("INGEST_CHUNK_SIZE", "600")
	t.Setenv("INGEST_CHUNK_PAGE_SUMMARY", "false")
	t.Setenv("INGEST_INGEST_DPI", "150")

	settings, err := NewSettingsService(store, nil).Get()
	require.NoError(t, err)

	assert.Equal(t, 600, settings.Chunk.Size)
	assert.False(t, settings.Chunk.PageSummary)
	assert.Equal(t, 150, settings.Ingest.DPI)
}

func TestSettingsService_Get_InvalidProvider(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("chart.provider", "anthropic"))

	_, err := NewSettingsService(store, nil).Get()
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "chart.provider")
}

func TestSettingsService_Get_InvalidCombination(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("vector.backend", "pgvector"))

	_, err := NewSettingsService(store, nil).Get()
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "vector.dsn")
}

func TestSettingsService_Get_LocalChartProviderGetsBaseURL(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("chart.provider", "ollama"))

	settings, err := NewSettingsService(store, nil).Get()
	require.NoError(t, err)

	assert.Equal(t, "llava", settings.Chart.Model)
	assert.Equal(t, "http://localhost:11434", settings.Chart.BaseURL)
}

func TestSettingsService_Set_ParsesByType(t *testing.T) {
	store := newTestConfigStore(t)
	service := NewSettingsService(store, nil)

	require.NoError(t, service.Set("chunk.overlap", "80"))
	require.NoError(t, service.Set("ocr.confidence", "0.55"))
	require.NoError(t, service.Set("chart.digitise", "false"))
	require.NoError(t, service.Set("ocr.languages", "eng+deu"))
	require.NoError(t, service.Set("chart.provider", "Gemini"))

	val, _ := store.Get("chunk.overlap")
	assert.Equal(t, 80, val)
	val, _ = store.Get("chart.provider")
	assert.Equal(t, "gemini", val)

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, 80, settings.Chunk.Overlap)
	assert.InDelta(t, 0.55, settings.OCR.Confidence, 1e-9)
	assert.False(t, settings.Chart.Digitise)
	assert.Equal(t, "eng+deu", settings.OCR.Languages)
	assert.Equal(t, domain.AIProviderGemini, settings.Chart.Provider)
}

func TestSettingsService_Set_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "search.mode", "hybrid"},
		{"not an integer", "chunk.size", "big"},
		{"not a number", "quality.near_duplicate", "high"},
		{"not a bool", "chunk.page_summary", "sometimes"},
		{"unknown provider", "embedding.provider", "anthropic"},
		{"unknown backend", "vector.backend", "qdrant"},
		{"overlap not below size", "chunk.overlap", "450"},
		{"negative max pages", "ingest.max_pages", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestConfigStore(t)
			service := NewSettingsService(store, nil)

			err := service.Set(tt.key, tt.value)
			require.ErrorIs(t, err, domain.ErrInvalidInput)

			_, exists := store.Get(tt.key)
			assert.False(t, exists, "rejected value must not be persisted")
		})
	}
}

func TestSettingsService_Set_StoreError(t *testing.T) {
	store := &failingConfigStore{ConfigStore: newTestConfigStore(t), failOn: "chunk.size"}
	service := NewSettingsService(store, nil)

	err := service.Set("chunk.size", "300")
	assert.Error(t, err)
}

func TestSettingsService_Keys(t *testing.T) {
	service := NewSettingsService(newTestConfigStore(t), nil)
	keys := service.Keys()

	assert.Equal(t, "ingest.dpi", keys[0])
	assert.Contains(t, keys, "quality.min_unique_word_ratio")
	assert.Contains(t, keys, "vector.dsn")

	settings := domain.DefaultAppSettings()
	for _, k := range keys {
		_, ok := Value(&settings, k)
		assert.True(t, ok, k)
	}
}

func TestValue(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding.APIKey = "secret"

	v, ok := Value(&settings, "chunk.size")
	require.True(t, ok)
	assert.Equal(t, "450", v)

	v, _ = Value(&settings, "quality.min_alnum_ratio")
	assert.Equal(t, "0.3", v)

	v, _ = Value(&settings, "embedding.api_key")
	assert.Equal(t, "********", v)

	_, ok = Value(&settings, "nope")
	assert.False(t, ok)
}

func TestSettingsService_Path(t *testing.T) {
	store := newTestConfigStore(t)
	assert.Equal(t, store.Path(), NewSettingsService(store, nil).Path())
}

type mockAIConfigValidator struct {
	embedErr error
	chartErr error
}

func (m *mockAIConfigValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error {
	return m.embedErr
}

func (m *mockAIConfigValidator) ValidateChart(_ *domain.ChartSettings) error {
	return m.chartErr
}

func TestSettingsService_ValidateConfig(t *testing.T) {
	store := newTestConfigStore(t)

	assert.NoError(t, NewSettingsService(store, nil).ValidateEmbeddingConfig())
	assert.NoError(t, NewSettingsService(store, nil).ValidateChartConfig())

	ok := NewSettingsService(store, &mockAIConfigValidator{})
	assert.NoError(t, ok.ValidateEmbeddingConfig())
	assert.NoError(t, ok.ValidateChartConfig())

	failing := NewSettingsService(store, &mockAIConfigValidator{embedErr: assert.AnError, chartErr: assert.AnError})
	assert.ErrorIs(t, failing.ValidateEmbeddingConfig(), assert.AnError)
	assert.ErrorIs(t, failing.ValidateChartConfig(), assert.AnError)
}

// failingConfigStore fails Set for one key.
type failingConfigStore struct {
	driven.ConfigStore
	failOn string
}

func (f *failingConfigStore) Set(key string, value any) error {
	if key == f.failOn {
		return assert.AnError
	}
	return f.ConfigStore.Set(key, value)
}
