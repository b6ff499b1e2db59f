package domain

import "time"

// FileStatus is the registry state of a source document.
type FileStatus string

// Registry states.
const (
	// FileStatusIngested means every quality-gated chunk was committed.
	FileStatusIngested FileStatus = "ingested"

	// FileStatusFailed means the document was not committed and is retried on the next run.
	FileStatusFailed FileStatus = "failed"
)

// ProcessedFile is a ProcessedFileRegistry entry keyed by document hash.
// Entries are never deleted implicitly.
type ProcessedFile struct {
	Hash       string
	Path       string
	Status     FileStatus
	ChunkCount int
	Error      string
	RunID      string
	UpdatedAt  time.Time
}

// Done reports whether the document can be skipped by a non-forced run.
func (p ProcessedFile) Done() bool {
	return p.Status == FileStatusIngested
}
