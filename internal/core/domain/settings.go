package domain

import (
	"errors"
	"fmt"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or chart models.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderNone disables the capability.
	AIProviderNone AIProvider = "none"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	case AIProviderNone:
		return "Disabled"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI and Gemini).
	APIKey string

	// BatchSize is the number of texts sent per embedding call.
	BatchSize int

	// Rate caps embedding calls per second; zero means unlimited.
	Rate float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ChartSettings holds the chart description and digitisation model configuration.
type ChartSettings struct {
	// Provider is the vision model provider; AIProviderNone disables chart models.
	Provider AIProvider

	// Model is the vision model name.
	Model string

	BaseURL string
	APIKey  string

	// Digitise enables series recovery for classified charts.
	Digitise bool

	// Rate caps chart model calls per second; zero means unlimited.
	Rate float64
}

// IsConfigured returns true if a chart model is set up.
func (c ChartSettings) IsConfigured() bool {
	if !c.Provider.IsValid() {
		return false
	}
	return !c.Provider.RequiresAPIKey() || c.APIKey != ""
}

// OCRSettings configures the OCR engine and its fallback filter.
type OCRSettings struct {
	// Accelerator lets the engine use all available cores.
	Accelerator bool

	// Languages is the engine language list, e.g. "eng+deu".
	Languages string

	// Confidence is the minimum box confidence kept on text pages.
	Confidence float64

	// ChartConfidence is the minimum box confidence kept on figure crops.
	ChartConfidence float64

	// Rate caps OCR invocations per second; zero means unlimited.
	Rate float64
}

// ChunkSettings configures the chunker.
type ChunkSettings struct {
	// Size is the text window length in characters.
	Size int

	// Overlap is the number of characters shared by consecutive windows.
	Overlap int

	// PageSummary enables one summary chunk per page.
	PageSummary bool
}

// QualitySettings configures the quality gate.
type QualitySettings struct {
	MinLength int
	MaxLength int

	// MinAlnumRatio rejects chunks dominated by non-alphanumeric noise.
	MinAlnumRatio float64

	// MinUniqueWordRatio rejects chunks that repeat the same few words.
	MinUniqueWordRatio float64

	// NearDuplicate is the word-set Jaccard similarity at which a chunk is a repeat.
	NearDuplicate float64
}

// FigureSettings configures figure detection and caption linking.
type FigureSettings struct {
	// MinAreaRatio skips figures smaller than this fraction of the page.
	MinAreaRatio float64

	// CaptionMaxDistance is the caption linking radius in points.
	CaptionMaxDistance float64
}

// TableSettings configures table acceptance.
type TableSettings struct {
	MinRows int
	MinCols int
}

// IngestSettings configures the orchestrator and parser.
type IngestSettings struct {
	// DPI is the page render resolution.
	DPI int

	// MaxPages caps pages per document; zero means unlimited.
	MaxPages int

	// Workers is the number of documents processed concurrently.
	Workers int
}

// StorageSettings locates on-disk state.
type StorageSettings struct {
	// Root holds the registry, the sqlite index and persisted figures.
	Root string

	// InputDir is the default folder for the ingest command.
	InputDir string
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	VectorBackendSQLite   VectorBackend = "sqlite"
	VectorBackendPGVector VectorBackend = "pgvector"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	return b == VectorBackendSQLite || b == VectorBackendPGVector
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// VectorSettings configures the vector index.
type VectorSettings struct {
	Backend VectorBackend

	// DSN is the PostgreSQL connection string for the pgvector backend.
	DSN string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Ingest    IngestSettings
	OCR       OCRSettings
	Chunk     ChunkSettings
	Quality   QualitySettings
	Figure    FigureSettings
	Table     TableSettings
	Embedding EmbeddingSettings
	Chart     ChartSettings
	Storage   StorageSettings
	Vector    VectorSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Storage.Root is left empty and resolved by the config loader.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Ingest: IngestSettings{
			DPI:      100,
			MaxPages: 0,
			Workers:  1,
		},
		OCR: OCRSettings{
			Languages:       "eng",
			Confidence:      0.40,
			ChartConfidence: 0.30,
		},
		Chunk: ChunkSettings{
			Size:        450,
			Overlap:     50,
			PageSummary: true,
		},
		Quality: QualitySettings{
			MinLength:          30,
			MaxLength:          8000,
			MinAlnumRatio:      0.30,
			MinUniqueWordRatio: 0.5,
			NearDuplicate:      0.95,
		},
		Figure: FigureSettings{
			MinAreaRatio:       0.02,
			CaptionMaxDistance: 150,
		},
		Table: TableSettings{
			MinRows: 2,
			MinCols: 2,
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultEmbeddingModels()[AIProviderOllama],
			BaseURL:   "http://localhost:11434",
			BatchSize: 64,
		},
		Chart: ChartSettings{
			Provider: AIProviderNone,
			Digitise: true,
		},
		Vector: VectorSettings{
			Backend: VectorBackendSQLite,
		},
	}
}

// Validate checks cross-field constraints.
func (s AppSettings) Validate() error {
	var errs []error
	if s.Ingest.DPI <= 0 {
		errs = append(errs, fmt.Errorf("ingest.dpi must be positive, got %d", s.Ingest.DPI))
	}
	if s.Ingest.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("ingest.max_pages must not be negative, got %d", s.Ingest.MaxPages))
	}
	if s.Chunk.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk.size must be positive, got %d", s.Chunk.Size))
	}
	if s.Chunk.Overlap < 0 || s.Chunk.Overlap >= s.Chunk.Size {
		errs = append(errs, fmt.Errorf("chunk.overlap must be in [0, chunk.size), got %d", s.Chunk.Overlap))
	}
	if s.Quality.MinLength < 0 || s.Quality.MaxLength < s.Quality.MinLength {
		errs = append(errs, fmt.Errorf("quality length bounds invalid: [%d, %d]", s.Quality.MinLength, s.Quality.MaxLength))
	}
	if s.OCR.Confidence < 0 || s.OCR.Confidence > 1 {
		errs = append(errs, fmt.Errorf("ocr.confidence must be in [0,1], got %g", s.OCR.Confidence))
	}
	if s.Embedding.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedding.batch_size must be positive, got %d", s.Embedding.BatchSize))
	}
	if !s.Vector.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("unknown vector.backend %q", s.Vector.Backend))
	}
	if s.Vector.Backend == VectorBackendPGVector && s.Vector.DSN == "" {
		errs = append(errs, errors.New("vector.dsn is required for the pgvector backend"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllChartProviders returns providers with a vision model.
func AllChartProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultChartModels returns default vision models for each chart provider.
func DefaultChartModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "llava",
		AIProviderOpenAI: "gpt-4o-mini",
		AIProviderGemini: "gemini-1.5-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
		"embedding-001":      768,
	}
}
