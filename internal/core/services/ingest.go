package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Ensure IngestOrchestrator implements the interface.
var _ driving.Ingestor = (*IngestOrchestrator)(nil)

// DocumentProcessor runs the per-document pipeline.
type DocumentProcessor interface {
	Run(ctx context.Context, doc domain.SourceDocument) (domain.DocumentStats, error)
}

// IngestOrchestrator discovers documents, skips the ones already ingested
// and drives the per-document pipeline for the rest.
type IngestOrchestrator struct {
	pipeline DocumentProcessor
	registry driven.ProcessedFileRegistry
	workers  int
	now      func() time.Time
}

// IngestOption configures the orchestrator.
type IngestOption func(*IngestOrchestrator)

// WithWorkers sets how many documents run concurrently.
func WithWorkers(n int) IngestOption {
	return func(o *IngestOrchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// NewIngestOrchestrator creates an orchestrator that processes one document at a time
// unless WithWorkers says otherwise.
func NewIngestOrchestrator(pipeline DocumentProcessor, registry driven.ProcessedFileRegistry, opts ...IngestOption) *IngestOrchestrator {
	o := &IngestOrchestrator{
		pipeline: pipeline,
		registry: registry,
		workers:  1,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IngestFolder ingests every PDF under path.
// Per-document failures are recorded in the report; the returned error is
// reserved for failures of the run itself.
func (o *IngestOrchestrator) IngestFolder(ctx context.Context, path string, force bool) (*domain.IngestReport, error) {
	if err := o.check(); err != nil {
		return nil, err
	}

	files, err := discover(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", domain.ErrNoDocuments, path)
	}
	logger.Info("Found %d PDF files in %s", len(files), path)

	return o.run(ctx, files, force)
}

// IngestFile ingests exactly one document.
func (o *IngestOrchestrator) IngestFile(ctx context.Context, path string, force bool) (*domain.IngestReport, error) {
	if err := o.check(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}

	return o.run(ctx, []string{path}, force)
}

func (o *IngestOrchestrator) check() error {
	if o.pipeline == nil || o.registry == nil {
		return errors.New("ingest orchestrator not configured")
	}
	return nil
}

func (o *IngestOrchestrator) run(ctx context.Context, files []string, force bool) (*domain.IngestReport, error) {
	start := o.now()
	report := &domain.IngestReport{RunID: uuid.NewString()}

	docs, hashErrs := hashFiles(ctx, files)

	results := make([]domain.DocumentResult, len(docs))
	launched := make([]bool, len(docs))
	firstPath := make(map[string]string, len(docs))
	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i, doc := range docs {
		if hashErrs[i] != nil {
			results[i] = domain.DocumentResult{Path: doc.Path, Status: domain.DocumentFailed, Err: hashErrs[i]}
			launched[i] = true
			logger.Error("%s: %v", doc.Path, hashErrs[i])
			continue
		}
		// Copies share an identity; only the first path in discovery order runs,
		// so concurrent workers never ingest the same content twice.
		if first, dup := firstPath[doc.Hash]; dup {
			results[i] = domain.DocumentResult{Path: doc.Path, Hash: doc.Hash, Status: domain.DocumentSkipped}
			launched[i] = true
			logger.Debug("Skipping %s: same content as %s", doc.FileName(), first)
			continue
		}
		firstPath[doc.Hash] = doc.Path
		// A cancelled run stops launching documents; running ones finish.
		if ctx.Err() != nil {
			break
		}
		launched[i] = true
		g.Go(func() error {
			results[i] = o.processOne(ctx, doc, force, report.RunID)
			return nil
		})
	}
	_ = g.Wait()

	for i, res := range results {
		if launched[i] {
			report.Record(res)
		}
	}
	report.Stats.Elapsed = o.now().Sub(start)

	logger.Info("Ingest complete: %d ingested, %d skipped, %d failed, %d chunks stored",
		report.Stats.FilesProcessed, report.Stats.FilesSkipped, report.Stats.FilesFailed, report.Stats.Stored)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// processOne never returns an error: failures are part of the result.
func (o *IngestOrchestrator) processOne(ctx context.Context, doc domain.SourceDocument, force bool, runID string) domain.DocumentResult {
	res := domain.DocumentResult{Path: doc.Path, Hash: doc.Hash}

	if !force {
		entry, err := o.registry.Get(ctx, doc.Hash)
		switch {
		case err == nil && entry.Done():
			logger.Debug("Skipping %s: already ingested (%s)", doc.FileName(), doc.ShortHash())
			res.Status = domain.DocumentSkipped
			return res
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			res.Status = domain.DocumentFailed
			res.Err = fmt.Errorf("%s: read registry: %w", doc.FileName(), err)
			logger.Error("%v", res.Err)
			return res
		}
	}

	logger.Info("Ingesting %s (%s)", doc.FileName(), doc.ShortHash())
	stats, err := o.pipeline.Run(ctx, doc)
	res.Stats = stats

	entry := domain.ProcessedFile{
		Hash:       doc.Hash,
		Path:       doc.Path,
		Status:     domain.FileStatusIngested,
		ChunkCount: stats.Stored,
		RunID:      runID,
		UpdatedAt:  o.now().UTC(),
	}
	if err != nil {
		entry.Status = domain.FileStatusFailed
		entry.ChunkCount = 0
		entry.Error = err.Error()
	}

	if putErr := o.registry.Put(ctx, entry); putErr != nil {
		err = errors.Join(err, fmt.Errorf("record in registry: %w", putErr))
	}

	if err != nil {
		res.Status = domain.DocumentFailed
		res.Err = fmt.Errorf("%s: %w", doc.FileName(), err)
		logger.Error("%v", res.Err)
		return res
	}

	res.Status = domain.DocumentIngested
	logger.Info("%s: %d chunks stored (%d rejected)", doc.FileName(), stats.Stored, stats.Rejected)
	return res
}

// discover returns the PDFs under root in lexical order, skipping hidden entries.
func discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walk %s: %v", path, err)
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsPDF(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// IsPDF reports whether path has a .pdf extension, in any case.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// hashFiles computes document identities concurrently. Errors are returned
// per file so an unreadable file fails alone.
func hashFiles(ctx context.Context, files []string) ([]domain.SourceDocument, []error) {
	docs := make([]domain.SourceDocument, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range files {
		docs[i].Path = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			docs[i].Hash, errs[i] = HashFile(path)
			return nil
		})
	}
	_ = g.Wait()
	return docs, errs
}

// HashFile returns the hex SHA-256 of a file's bytes.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &domain.DocumentOpenError{Path: path, Err: err}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", &domain.DocumentOpenError{Path: path, Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
