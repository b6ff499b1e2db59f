package domain

import (
	"errors"
	"time"
)

// DocumentStatus is the outcome of one document in a run.
type DocumentStatus string

// Document outcomes.
const (
	DocumentIngested DocumentStatus = "ingested"
	DocumentSkipped  DocumentStatus = "skipped"
	DocumentFailed   DocumentStatus = "failed"
)

// DocumentStats counts what the pipeline produced for one document.
// The per-kind chunk counts are taken before the quality gate; Rejected
// is what the gate dropped and Stored what reached the index.
type DocumentStats struct {
	Pages         int
	OCRPages      int
	TextChunks    int
	TableChunks   int
	FigureChunks  int
	SummaryChunks int
	Rejected      int
	Duplicates    int
	Stored        int
}

// Extracted is the number of chunks produced before the quality gate.
func (s DocumentStats) Extracted() int {
	return s.TextChunks + s.TableChunks + s.FigureChunks + s.SummaryChunks
}

// Add accumulates o into s.
func (s *DocumentStats) Add(o DocumentStats) {
	s.Pages += o.Pages
	s.OCRPages += o.OCRPages
	s.TextChunks += o.TextChunks
	s.TableChunks += o.TableChunks
	s.FigureChunks += o.FigureChunks
	s.SummaryChunks += o.SummaryChunks
	s.Rejected += o.Rejected
	s.Duplicates += o.Duplicates
	s.Stored += o.Stored
}

// DocumentResult is the per-document line of an ingest report.
type DocumentResult struct {
	Path   string
	Hash   string
	Status DocumentStatus
	Err    error
	Stats  DocumentStats
}

// IngestionStats aggregates a run.
type IngestionStats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesFailed    int
	DocumentStats
	Elapsed time.Duration
}

// IngestReport is the result of IngestFolder or IngestFile.
type IngestReport struct {
	RunID     string
	Documents []DocumentResult
	Stats     IngestionStats
}

// Record appends a document result and updates the aggregate counters.
func (r *IngestReport) Record(res DocumentResult) {
	r.Documents = append(r.Documents, res)
	switch res.Status {
	case DocumentIngested:
		r.Stats.FilesProcessed++
	case DocumentSkipped:
		r.Stats.FilesSkipped++
	case DocumentFailed:
		r.Stats.FilesFailed++
	}
	r.Stats.Add(res.Stats)
}

// HasFailures reports whether any document failed.
func (r *IngestReport) HasFailures() bool {
	return r.Stats.FilesFailed > 0
}

// Failed returns the failed documents in the order they were recorded.
func (r *IngestReport) Failed() []DocumentResult {
	var out []DocumentResult
	for _, d := range r.Documents {
		if d.Status == DocumentFailed {
			out = append(out, d)
		}
	}
	return out
}

// Err joins every per-document failure, or returns nil.
func (r *IngestReport) Err() error {
	var errs []error
	for _, d := range r.Failed() {
		errs = append(errs, d.Err)
	}
	return errors.Join(errs...)
}
