// Package pdftoppm renders PDF pages to PNG with poppler's pdftoppm.
package pdftoppm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/command"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Renderer implements the interface.
var _ driven.PageRenderer = (*Renderer)(nil)

// Binary is the default executable name.
const Binary = "pdftoppm"

// Renderer implements driven.PageRenderer.
type Renderer struct {
	runner command.Runner
	binary string
}

// New creates a renderer after checking the binary is installed.
func New(runner command.Runner) (*Renderer, error) {
	path, err := command.Require(Binary, domain.ErrRendererUnavailable)
	if err != nil {
		return nil, err
	}
	return NewWithBinary(runner, path), nil
}

// NewWithBinary creates a renderer for an explicit binary path without checking it.
func NewWithBinary(runner command.Runner, binary string) *Renderer {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	return &Renderer{runner: runner, binary: binary}
}

// Render writes prefix-N.png files into outDir and maps them back to page numbers.
func (r *Renderer) Render(ctx context.Context, pdfPath, outDir string, dpi, first, last int) (map[int]string, error) {
	if err := os.MkdirAll(outDir, 0700); err != nil {
		return nil, fmt.Errorf("creating render dir: %w", err)
	}
	prefix := filepath.Join(outDir, "page")

	// pdftoppm -r 100 -png -f 1 -l N <in.pdf> <dir/page>
	args := []string{"-r", strconv.Itoa(dpi), "-png", "-f", strconv.Itoa(first), "-l", strconv.Itoa(last), pdfPath, prefix}
	if _, stderr, err := r.runner.Run(ctx, nil, r.binary, args...); err != nil {
		return nil, fmt.Errorf("rendering %s: %w: %s", filepath.Base(pdfPath), err, command.Truncate(string(stderr), 512))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	pages := make(map[int]string, len(matches))
	for _, m := range matches {
		// pdftoppm zero-pads the page number to the width of the last page
		num := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "page-"), ".png")
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		pages[n] = m
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no images", domain.ErrRendererUnavailable)
	}
	return pages, nil
}
