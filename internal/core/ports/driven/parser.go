package driven

import (
	"context"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// PageParser turns a PDF on disk into page records.
type PageParser interface {
	// Parse opens the document and extracts every page.
	// workDir receives rendered page images; ParsedDocument.Cleanup removes them.
	// An unreadable or invalid document yields a *domain.DocumentOpenError.
	// A page that fails to parse is returned without native text rather than failing the document.
	Parse(ctx context.Context, doc domain.SourceDocument, workDir string) (*domain.ParsedDocument, error)
}

// PageRenderer rasterises PDF pages to PNG files.
type PageRenderer interface {
	// Render writes pages [first, last] of the PDF at the given DPI into outDir
	// and returns the image path for each rendered 1-based page number.
	Render(ctx context.Context, pdfPath, outDir string, dpi, first, last int) (map[int]string, error)
}
