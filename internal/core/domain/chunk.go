package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ChunkKind is the chunk variant; it doubles as the type tag in the content hash.
type ChunkKind string

// Chunk variants.
const (
	ChunkText        ChunkKind = "text"
	ChunkTable       ChunkKind = "table"
	ChunkFigure      ChunkKind = "figure"
	ChunkPageSummary ChunkKind = "page_summary"
)

// Collection returns the vector index collection chunks of this kind are stored in.
// Page summaries share the text collection.
func (k ChunkKind) Collection() Collection {
	switch k {
	case ChunkTable:
		return CollectionTables
	case ChunkFigure:
		return CollectionFigures
	default:
		return CollectionText
	}
}

// String returns the string representation.
func (k ChunkKind) String() string {
	return string(k)
}

// Collection names a vector index collection.
type Collection string

// Vector index collections, one per chunk family.
const (
	CollectionText    Collection = "ingest_text"
	CollectionTables  Collection = "ingest_tables"
	CollectionFigures Collection = "ingest_figures"
)

// AllCollections returns every collection in display order.
func AllCollections() []Collection {
	return []Collection{CollectionText, CollectionTables, CollectionFigures}
}

// ParseCollection accepts a collection name or its short alias (text, tables, figures).
func ParseCollection(s string) (Collection, error) {
	switch s {
	case string(CollectionText), "text":
		return CollectionText, nil
	case string(CollectionTables), "tables", "table":
		return CollectionTables, nil
	case string(CollectionFigures), "figures", "figure":
		return CollectionFigures, nil
	default:
		return "", fmt.Errorf("%w: unknown collection %q", ErrInvalidInput, s)
	}
}

// ChunkMetadata is the provenance stored alongside every chunk.
type ChunkMetadata struct {
	DocHash     string    `json:"doc_hash"`
	SourceFile  string    `json:"source_file"`
	Page        int       `json:"page"`
	BlockType   ChunkKind `json:"block_type"`
	Section     string    `json:"section,omitempty"`
	ExhibitID   string    `json:"exhibit_id,omitempty"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`

	// Kind-specific payload.
	CSV       string    `json:"csv,omitempty"`
	ImagePath string    `json:"image_path,omitempty"`
	ChartType ChartType `json:"chart_type,omitempty"`
	Series    *Series   `json:"series,omitempty"`
	Method    string    `json:"method,omitempty"`
}

// Chunk is the unit of indexing.
// ID equals Metadata.ContentHash, so identical content always lands on the same key.
type Chunk struct {
	ID       string
	Kind     ChunkKind
	Text     string
	Metadata ChunkMetadata
	Citation string

	// Embedding is filled by the indexer just before upsert.
	Embedding []float32
}

// ContentHash is a pure function of the normalized text and the kind tag.
func ContentHash(kind ChunkKind, text string) string {
	sum := sha256.Sum256([]byte(string(kind) + "\x00" + NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// NewChunk builds a chunk, stamping its content hash and citation.
func NewChunk(kind ChunkKind, text string, meta ChunkMetadata) Chunk {
	meta.BlockType = kind
	meta.ContentHash = ContentHash(kind, text)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	return Chunk{
		ID:       meta.ContentHash,
		Kind:     kind,
		Text:     text,
		Metadata: meta,
		Citation: FormatCitation(meta.SourceFile, meta.Page, meta.ExhibitID),
	}
}

// Collection returns the collection this chunk is stored in.
func (c Chunk) Collection() Collection {
	return c.Kind.Collection()
}

// FormatCitation renders "file, p.N" with an optional " – exhibit" suffix.
func FormatCitation(file string, page int, exhibit string) string {
	s := fmt.Sprintf("%s, p.%d", file, page)
	if exhibit != "" {
		s += " – " + exhibit
	}
	return s
}

// TableExhibitID names the k-th table on a page.
func TableExhibitID(k, page int) string {
	return fmt.Sprintf("Table %d (p.%d)", k, page)
}

// FigureExhibitID names the k-th figure on a page.
func FigureExhibitID(k, page int) string {
	return fmt.Sprintf("Figure %d (p.%d)", k, page)
}
