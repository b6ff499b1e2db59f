package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [folder]", ingestCmd.Use)
}

func TestIngestCmd_Flags(t *testing.T) {
	f := ingestCmd.Flags().Lookup("file")
	require.NotNil(t, f)
	assert.Equal(t, "f", f.Shorthand)

	force := ingestCmd.Flags().Lookup("force")
	require.NotNil(t, force)
	assert.Equal(t, "false", force.DefValue)
}

func TestIngestCmd_Folder(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	ts.ingestor.report.Record(domain.DocumentResult{
		Path:   "/docs/report.pdf",
		Status: domain.DocumentIngested,
		Stats:  domain.DocumentStats{Pages: 3, TextChunks: 7, TableChunks: 1, Stored: 6, Rejected: 2},
	})
	ts.ingestor.report.Record(domain.DocumentResult{Path: "/docs/old.pdf", Status: domain.DocumentSkipped})

	out, err := execute("ingest", "/docs")

	require.NoError(t, err)
	assert.Equal(t, "/docs", ts.ingestor.folder)
	assert.False(t, ts.ingestor.force)
	assert.Contains(t, out, "Ingesting PDFs in /docs")
	assert.Contains(t, out, "report.pdf: 6 chunks stored; extracted 8 (7 text, 1 table, 0 figure, 0 summary), 2 rejected")
	assert.Contains(t, out, "skipped  old.pdf")
	assert.Contains(t, out, "Ingested: 1")
	assert.Contains(t, out, "Skipped:  1")
	assert.Contains(t, out, "Run ID:   run-test")
}

func TestIngestCmd_Force(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	_, err := execute("ingest", "/docs", "--force")

	require.NoError(t, err)
	assert.True(t, ts.ingestor.force)
}

func TestIngestCmd_File(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	out, err := execute("ingest", "--file", "/docs/a.pdf")

	require.NoError(t, err)
	assert.Equal(t, "/docs/a.pdf", ts.ingestor.file)
	assert.Empty(t, ts.ingestor.folder)
	assert.Contains(t, out, "Ingesting /docs/a.pdf")
}

func TestIngestCmd_FileAndFolder(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	_, err := execute("ingest", "/docs", "--file", "/docs/a.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestIngestCmd_DefaultsToInputDir(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	require.NoError(t, ts.settings.Set("storage.input_dir", "/srv/inbox"))

	_, err := execute("ingest")

	require.NoError(t, err)
	assert.Equal(t, "/srv/inbox", ts.ingestor.folder)
}

func TestIngestCmd_NoFolder(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()

	_, err := execute("ingest")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.input_dir")
}

func TestIngestCmd_DocumentFailures(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	ts.ingestor.report.Record(domain.DocumentResult{Path: "/docs/a.pdf", Status: domain.DocumentIngested})
	ts.ingestor.report.Record(domain.DocumentResult{
		Path:   "/docs/b.pdf",
		Status: domain.DocumentFailed,
		Err:    errors.New("b.pdf: open document: encrypted"),
	})

	out, err := execute("ingest", "/docs")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
	assert.Contains(t, out, "failed   b.pdf: b.pdf: open document: encrypted")
	assert.Contains(t, out, "Failed:   1")
}

func TestIngestCmd_RunError(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()

	ts.ingestor.report = nil
	ts.ingestor.err = domain.ErrNoDocuments

	_, err := execute("ingest", "/empty")

	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestIngestCmd_NotConfigured(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()
	ingestor = nil

	_, err := execute("ingest", "/docs")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
