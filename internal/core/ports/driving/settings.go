package driving

import "github.com/custodia-labs/sercha-ingest/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get resolves settings from defaults, the config file and the environment.
	Get() (*domain.AppSettings, error)

	// Set persists a single dot-notation key (e.g. "chunk.size") to the config file.
	Set(key, value string) error

	// Keys returns every recognised configuration key in display order.
	Keys() []string

	// Path returns the configuration file path.
	Path() string

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateChartConfig validates the current chart model configuration.
	ValidateChartConfig() error
}
