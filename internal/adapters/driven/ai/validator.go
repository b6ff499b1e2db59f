package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks that a provider configuration is usable by building
// the adapter and pinging it. Unconfigured or disabled providers pass.
type ConfigValidator struct {
	timeout time.Duration
	prompts driven.PromptStore
}

// ValidatorOption configures a ConfigValidator.
type ValidatorOption func(*ConfigValidator)

// WithPingTimeout bounds each validation. Non-positive values are ignored.
func WithPingTimeout(d time.Duration) ValidatorOption {
	return func(v *ConfigValidator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithPrompts makes chart validation use the user's prompt overrides.
func WithPrompts(prompts driven.PromptStore) ValidatorOption {
	return func(v *ConfigValidator) {
		v.prompts = prompts
	}
}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator(opts ...ValidatorOption) *ConfigValidator {
	v := &ConfigValidator{timeout: pingTimeout}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateEmbedding pings the embedding provider described by config.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	if config == nil || !config.IsConfigured() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	svc, err := CreateEmbeddingService(ctx, config)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%s embedding: %w", config.Provider, err)
	}
	return nil
}

// ValidateChart pings the chart model described by config.
func (v *ConfigValidator) ValidateChart(config *domain.ChartSettings) error {
	if config == nil || !config.IsConfigured() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	model, err := CreateChartModel(ctx, config, v.prompts)
	if err != nil {
		return err
	}
	defer model.Close()

	if err := model.Ping(ctx); err != nil {
		return fmt.Errorf("%s chart model: %w", config.Provider, err)
	}
	return nil
}
