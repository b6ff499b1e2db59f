// Package tesseract recognises text with the tesseract CLI in TSV mode.
package tesseract

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/command"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.OCREngine = (*Engine)(nil)

// Binary is the default executable name.
const Binary = "tesseract"

// wordLevel is the TSV level of individual words.
const wordLevel = 5

// Config configures the engine.
type Config struct {
	// Languages is passed to -l, e.g. "eng+deu".
	Languages string

	// PageSegMode is passed to --psm. Zero uses tesseract's default.
	PageSegMode int

	// Accelerator lets tesseract use all cores. When false it runs single-threaded,
	// which is faster when several documents are processed concurrently.
	Accelerator bool

	// TempDir receives intermediate PNG files; empty uses the OS default.
	TempDir string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Languages: "eng"}
}

// Engine implements driven.OCREngine.
type Engine struct {
	runner command.Runner
	binary string
	cfg    Config
}

// New creates an engine after checking the binary is installed.
func New(runner command.Runner, cfg Config) (*Engine, error) {
	path, err := command.Require(Binary, domain.ErrOCRUnavailable)
	if err != nil {
		return nil, err
	}
	return NewWithBinary(runner, path, cfg), nil
}

// NewWithBinary creates an engine for an explicit binary path without checking it.
func NewWithBinary(runner command.Runner, binary string, cfg Config) *Engine {
	if runner == nil {
		runner = command.ExecRunner{}
	}
	if cfg.Languages == "" {
		cfg.Languages = DefaultConfig().Languages
	}
	return &Engine{runner: runner, binary: binary, cfg: cfg}
}

// Recognize writes img to a temporary PNG and parses tesseract's TSV output.
// Boxes are shifted by img.Bounds().Min so sub-images report parent coordinates.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]domain.OCRBox, error) {
	f, err := os.CreateTemp(e.cfg.TempDir, "ocr-*.png")
	if err != nil {
		return nil, fmt.Errorf("creating ocr input: %w", err)
	}
	defer os.Remove(f.Name())

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return nil, fmt.Errorf("encoding ocr input: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	args := []string{f.Name(), "stdout", "-l", e.cfg.Languages}
	if e.cfg.PageSegMode > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PageSegMode))
	}
	args = append(args, "tsv")

	var env []string
	if !e.cfg.Accelerator {
		env = []string{"OMP_THREAD_LIMIT=1"}
	}

	stdout, stderr, err := e.runner.Run(ctx, env, e.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %s", domain.ErrOCRUnavailable, err, command.Truncate(string(stderr), 512))
	}

	origin := img.Bounds().Min
	return ParseTSV(stdout, float64(origin.X), float64(origin.Y))
}

// ParseTSV converts tesseract TSV output into word boxes offset by (dx, dy).
// Non-word rows and rows with negative confidence are dropped.
func ParseTSV(data []byte, dx, dy float64) ([]domain.OCRBox, error) {
	var boxes []domain.OCRBox
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	header := true
	for sc.Scan() {
		line := sc.Text()
		if header {
			header = false
			if strings.HasPrefix(line, "level") {
				continue
			}
		}
		// level page block par line word left top width height conf text
		cols := strings.SplitN(line, "\t", 12)
		if len(cols) < 12 {
			continue
		}
		level, err := strconv.Atoi(cols[0])
		if err != nil || level != wordLevel {
			continue
		}
		text := strings.TrimSpace(cols[11])
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 || text == "" {
			continue
		}
		left, _ := strconv.ParseFloat(cols[6], 64)
		top, _ := strconv.ParseFloat(cols[7], 64)
		width, _ := strconv.ParseFloat(cols[8], 64)
		height, _ := strconv.ParseFloat(cols[9], 64)
		boxes = append(boxes, domain.OCRBox{
			Text:       text,
			BBox:       domain.BBox{X0: left + dx, Y0: top + dy, X1: left + width + dx, Y1: top + height + dy},
			Confidence: conf / 100,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading tesseract output: %w", err)
	}
	return boxes, nil
}
