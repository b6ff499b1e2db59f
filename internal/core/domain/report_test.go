package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestReport_Record(t *testing.T) {
	var r IngestReport
	boom := errors.New("boom")

	r.Record(DocumentResult{Path: "a.pdf", Status: DocumentIngested, Stats: DocumentStats{Pages: 2, Stored: 5}})
	r.Record(DocumentResult{Path: "b.pdf", Status: DocumentSkipped})
	r.Record(DocumentResult{Path: "c.pdf", Status: DocumentFailed, Err: boom, Stats: DocumentStats{Pages: 1}})

	assert.Equal(t, 1, r.Stats.FilesProcessed)
	assert.Equal(t, 1, r.Stats.FilesSkipped)
	assert.Equal(t, 1, r.Stats.FilesFailed)
	assert.Equal(t, 3, r.Stats.Pages)
	assert.Equal(t, 5, r.Stats.Stored)
	assert.True(t, r.HasFailures())
	assert.Len(t, r.Failed(), 1)
	assert.Equal(t, "c.pdf", r.Failed()[0].Path)
	assert.ErrorIs(t, r.Err(), boom)
}

func TestIngestReport_NoFailures(t *testing.T) {
	var r IngestReport
	r.Record(DocumentResult{Path: "a.pdf", Status: DocumentIngested})

	assert.False(t, r.HasFailures())
	assert.Empty(t, r.Failed())
	assert.NoError(t, r.Err())
}

func TestProcessedFile_Done(t *testing.T) {
	assert.True(t, ProcessedFile{Status: FileStatusIngested}.Done())
	assert.False(t, ProcessedFile{Status: FileStatusFailed}.Done())
	assert.False(t, ProcessedFile{}.Done())
}

func TestDocumentStats_Extracted(t *testing.T) {
	s := DocumentStats{TextChunks: 7, TableChunks: 1, FigureChunks: 2, SummaryChunks: 3, Rejected: 4, Stored: 9}

	assert.Equal(t, 13, s.Extracted())
	assert.Equal(t, s.Extracted()-s.Rejected, s.Stored)
}
