// Package gemini provides chart description and digitisation using a
// Gemini multimodal model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/vision"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Service implements the chart ports.
var (
	_ driven.ChartDescriber = (*Service)(nil)
	_ driven.ChartDigitiser = (*Service)(nil)
)

// DefaultModel is the vision model used when none is configured.
const DefaultModel = "gemini-1.5-flash"

// Config holds configuration for the Gemini vision service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the model to use (default: gemini-1.5-flash).
	Model string

	// Prompts supplies the prompt templates; nil uses built-in fallbacks.
	Prompts driven.PromptStore

	// ClientOptions are passed through to the Gemini client.
	ClientOptions []option.ClientOption
}

// Service describes and digitises charts with a Gemini model.
type Service struct {
	client    *genai.Client
	modelName string
	prompts   vision.Prompts
}

// NewService creates a Gemini vision service.
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Service{
		client:    client,
		modelName: cfg.Model,
		prompts:   vision.Prompts{Store: cfg.Prompts},
	}, nil
}

// DescribeChart returns a short prose summary of the chart.
func (s *Service) DescribeChart(ctx context.Context, png []byte, axisText string) (string, error) {
	return s.generate(ctx, s.prompts.Describe(axisText), png, 300)
}

// DigitiseChart returns the chart's data as a "|"-separated table.
func (s *Service) DigitiseChart(ctx context.Context, png []byte) (string, error) {
	return s.generate(ctx, s.prompts.Digitise(), png, 1024)
}

func (s *Service) generate(ctx context.Context, prompt string, png []byte, maxTokens int32) (string, error) {
	if len(png) == 0 {
		return "", errors.New("gemini: empty image")
	}

	m := s.client.GenerativeModel(s.modelName)
	m.SetTemperature(0)
	m.SetMaxOutputTokens(maxTokens)

	resp, err := m.GenerateContent(ctx, genai.ImageData("png", png), genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return vision.CleanAnswer(responseText(resp)), nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

// ModelName returns the vision model being used.
func (s *Service) ModelName() string {
	return s.modelName
}

// Ping fetches the model's metadata to check the key and model name.
func (s *Service) Ping(ctx context.Context) error {
	if _, err := s.client.GenerativeModel(s.modelName).Info(ctx); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
