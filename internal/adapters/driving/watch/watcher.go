// Package watch ingests PDFs as they appear in a folder.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
// Copies of large PDFs emit many write events.
const DefaultDebounce = 2 * time.Second

// Reporter receives the outcome of every ingest the watcher triggers.
type Reporter func(path string, report *domain.IngestReport, err error)

// Watcher ingests new and modified PDFs under a root folder.
// Subfolders are watched as they are created; hidden entries are ignored.
type Watcher struct {
	root     string
	ingestor driving.Ingestor
	debounce time.Duration
	initial  bool
	reporter Reporter

	mu      sync.Mutex
	closed  bool
	fsw     *fsnotify.Watcher
	pending map[string]time.Time
	now     func() time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithInitialScan ingests the whole folder once before watching.
func WithInitialScan() Option {
	return func(w *Watcher) { w.initial = true }
}

// WithReporter sets the callback for ingest outcomes.
func WithReporter(r Reporter) Option {
	return func(w *Watcher) { w.reporter = r }
}

// New creates a watcher for root.
func New(root string, ingestor driving.Ingestor, opts ...Option) *Watcher {
	w := &Watcher{
		root:     root,
		ingestor: ingestor,
		debounce: DefaultDebounce,
		pending:  make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if w.ingestor == nil {
		return errors.New("watch: ingestor not configured")
	}
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.root)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("watch: watcher is closed")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create watcher: %w", err)
	}
	w.fsw = fsw
	w.mu.Unlock()
	defer w.Close() //nolint:errcheck // closing on exit

	if _, err := w.addTree(w.root); err != nil {
		return err
	}

	if w.initial {
		report, err := w.ingestor.IngestFolder(ctx, w.root, false)
		if errors.Is(err, domain.ErrNoDocuments) {
			err = nil
		}
		w.report(w.root, report, err)
	}

	logger.Info("Watching %s for PDFs", w.root)

	tick := time.NewTicker(w.debounce / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			for _, path := range w.handleFsEvent(event) {
				w.schedule(path)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch %s: %v", w.root, err)
		case <-tick.C:
			for _, path := range w.due() {
				if ctx.Err() != nil {
					return nil
				}
				report, err := w.ingestor.IngestFile(ctx, path, false)
				w.report(path, report, err)
			}
		}
	}
}

// Close stops the underlying watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// handleFsEvent returns the PDFs an event makes ready for ingestion.
// A new directory is added to the watch list and its PDFs are returned.
func (w *Watcher) handleFsEvent(event fsnotify.Event) []string {
	if isHidden(relativeTo(w.root, event.Name)) {
		return nil
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		// Removals are not propagated; stored chunks stay until re-ingested.
		return nil
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		if !event.Has(fsnotify.Create) {
			return nil
		}
		found, err := w.addTree(event.Name)
		if err != nil {
			logger.Warn("watch %s: %v", event.Name, err)
		}
		return found
	}
	if !info.Mode().IsRegular() || !services.IsPDF(event.Name) {
		return nil
	}
	return []string{event.Name}
}

// addTree watches dir and every non-hidden subfolder, and returns the PDFs
// already present in them.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walk %s: %v", path, err)
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if w.fsw != nil {
				if err := w.fsw.Add(path); err != nil {
					return fmt.Errorf("watch %s: %w", path, err)
				}
			}
			return nil
		}
		if services.IsPDF(path) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

// schedule (re)starts the quiet period for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = w.now().Add(w.debounce)
}

// due removes and returns the pending paths whose quiet period has passed,
// in lexical order.
func (w *Watcher) due() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var ready []string
	for path, at := range w.pending {
		if !now.Before(at) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func (w *Watcher) report(path string, report *domain.IngestReport, err error) {
	if err != nil {
		logger.Error("%s: %v", path, err)
	}
	if w.reporter != nil {
		w.reporter(path, report, err)
	}
}

// relativeTo strips root so the root's own name never counts as hidden.
func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "." || part == ".." || part == "" {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
