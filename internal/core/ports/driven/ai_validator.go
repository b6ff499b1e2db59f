package driven

import "github.com/custodia-labs/sercha-ingest/internal/core/domain"

// AIConfigValidator validates AI provider configurations.
// Implementations verify that configurations are valid by testing connectivity
// to the underlying AI services.
type AIConfigValidator interface {
	// ValidateEmbedding validates an embedding configuration by pinging the provider.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateChart validates a chart model configuration.
	// Returns nil if chart models are disabled.
	ValidateChart(config *domain.ChartSettings) error
}
