// Package resources stores the binary resources extracted from documents,
// currently figure crops, under <root>/resources/<document hash>/.
package resources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure FigureStore implements the interfaces.
var (
	_ driven.FigureStore     = (*FigureStore)(nil)
	_ driven.FigureCommitter = (*FigureStore)(nil)
)

// stagingDir holds figures of documents that are not yet indexed.
// The leading dot keeps it apart from document hashes.
const stagingDir = ".staging"

// FigureStore writes figure crops to <root>/resources/<document hash>/page_<n>_fig_<k>.png.
// Crops are staged under <root>/resources/.staging/<document hash>/ and only
// moved into place by Commit, so a document that fails to index leaves no files.
type FigureStore struct {
	dir string
}

// NewFigureStore creates a figure store under root.
func NewFigureStore(root string) (*FigureStore, error) {
	if root == "" {
		return nil, errors.New("figure store root is required")
	}
	return &FigureStore{dir: filepath.Join(root, "resources")}, nil
}

// Path returns where figure k of a page lives once committed.
func (s *FigureStore) Path(docHash string, page, k int) string {
	return filepath.Join(s.dir, docHash, figureName(page, k))
}

func (s *FigureStore) staged(docHash string) string {
	return filepath.Join(s.dir, stagingDir, docHash)
}

func figureName(page, k int) string {
	return fmt.Sprintf("page_%d_fig_%d.png", page, k)
}

func checkHash(docHash string) error {
	if docHash == "" || docHash == stagingDir || filepath.Base(docHash) != docHash {
		return fmt.Errorf("invalid document hash %q", docHash)
	}
	return nil
}

// Save stages the PNG. The staged file appears atomically.
func (s *FigureStore) Save(ctx context.Context, docHash string, page, k int, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkHash(docHash); err != nil {
		return "", err
	}

	dir := s.staged(docHash)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, figureName(page, k)), png); err != nil {
		return "", err
	}
	return s.Path(docHash, page, k), nil
}

// Commit moves the staged figures into the document's directory. Figures of
// an earlier run that this run did not produce are removed. Committing with
// nothing staged leaves the directory untouched.
func (s *FigureStore) Commit(ctx context.Context, docHash string) error {
	if err := checkHash(docHash); err != nil {
		return err
	}
	src := s.staged(docHash)
	entries, err := os.ReadDir(src)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read staged figures: %w", err)
	}

	dst := filepath.Join(s.dir, docHash)
	if err := os.MkdirAll(dst, 0750); err != nil {
		return fmt.Errorf("create figure directory: %w", err)
	}

	keep := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Rename(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return fmt.Errorf("commit figure %s: %w", e.Name(), err)
		}
		keep[e.Name()] = true
	}

	old, err := os.ReadDir(dst)
	if err != nil {
		return fmt.Errorf("read figure directory: %w", err)
	}
	for _, e := range old {
		if !e.IsDir() && !keep[e.Name()] {
			os.Remove(filepath.Join(dst, e.Name())) //nolint:errcheck // stale figure, best effort
		}
	}
	return os.RemoveAll(src)
}

// Discard drops the staged figures of a document.
func (s *FigureStore) Discard(docHash string) error {
	if err := checkHash(docHash); err != nil {
		return err
	}
	return os.RemoveAll(s.staged(docHash))
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fig-*")
	if err != nil {
		return fmt.Errorf("create figure file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write figure: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close figure: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store figure: %w", err)
	}
	return nil
}
