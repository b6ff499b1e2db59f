package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrDocumentOpen indicates a source document is unreadable or not a valid PDF.
	// Match it with errors.Is; the concrete error is a *DocumentOpenError.
	ErrDocumentOpen = errors.New("document open failed")

	// ErrNoDocuments indicates a folder contained no candidate documents.
	ErrNoDocuments = errors.New("no documents found")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Ingestion cannot commit chunks without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured or unreachable.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrOCRUnavailable indicates the OCR engine is not installed or not configured.
	// Scanned pages and raster tables yield no text without it.
	ErrOCRUnavailable = errors.New("OCR engine unavailable")

	// ErrChartModelUnavailable indicates the chart description or digitisation model
	// is not configured. Figures are still emitted without descriptions.
	ErrChartModelUnavailable = errors.New("chart model unavailable")

	// ErrRendererUnavailable indicates pages cannot be rasterised.
	ErrRendererUnavailable = errors.New("page renderer unavailable")

	// ErrDimensionMismatch indicates an embedding has a different size than the index expects.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DocumentOpenError reports a document that could not be opened or parsed.
// It is fatal for that document only; batch ingestion continues.
type DocumentOpenError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *DocumentOpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DocumentOpenError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDocumentOpen.
func (e *DocumentOpenError) Is(target error) bool {
	return target == ErrDocumentOpen
}
