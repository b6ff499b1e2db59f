// Package ollama provides chart description and digitisation using a
// vision model served by Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	embedollama "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/vision"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Service implements the chart ports.
var (
	_ driven.ChartDescriber = (*Service)(nil)
	_ driven.ChartDigitiser = (*Service)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llava"
	DefaultTimeout = 180 * time.Second
)

// Config holds configuration for the Ollama vision service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the vision model to use (default: llava).
	Model string

	// Timeout is the request timeout (default: 180s).
	Timeout time.Duration

	// Prompts supplies the prompt templates; nil uses built-in fallbacks.
	Prompts driven.PromptStore
}

// Service describes and digitises charts with an Ollama vision model.
type Service struct {
	client  *http.Client
	baseURL string
	model   string
	prompts vision.Prompts
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Images  []string `json:"images"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

// options holds generation parameters.
type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

// generateResponse is the Ollama /api/generate response format.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewService creates a new Ollama vision service.
func NewService(cfg Config) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Service{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		prompts: vision.Prompts{Store: cfg.Prompts},
	}
}

// DescribeChart returns a short prose summary of the chart.
func (s *Service) DescribeChart(ctx context.Context, png []byte, axisText string) (string, error) {
	return s.generate(ctx, s.prompts.Describe(axisText), png, 300)
}

// DigitiseChart returns the chart's data as a "|"-separated table.
func (s *Service) DigitiseChart(ctx context.Context, png []byte) (string, error) {
	return s.generate(ctx, s.prompts.Digitise(), png, 1024)
}

func (s *Service) generate(ctx context.Context, prompt string, png []byte, maxTokens int) (string, error) {
	if len(png) == 0 {
		return "", errors.New("ollama: empty image")
	}

	reqBody := generateRequest{
		Model:   s.model,
		Prompt:  prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(png)},
		Stream:  false,
		Options: &options{NumPredict: maxTokens, Temperature: 0},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/api/generate",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", genResp.Error)
	}

	return vision.CleanAnswer(genResp.Response), nil
}

// ModelName returns the vision model being used.
func (s *Service) ModelName() string {
	return s.model
}

// Ping validates the server is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return embedollama.Ping(ctx, s.client, s.baseURL)
}

// Close releases resources.
func (s *Service) Close() error {
	return nil
}
