package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// registry implements driven.ProcessedFileRegistry.
type registry struct {
	store *Store
}

var _ driven.ProcessedFileRegistry = (*registry)(nil)

// Get returns the entry for a document hash.
func (r *registry) Get(ctx context.Context, hash string) (*domain.ProcessedFile, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT hash, path, status, chunk_count, error, run_id, updated_at
		FROM processed_files WHERE hash = ?
	`, hash)

	entry, err := scanProcessedFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put inserts or replaces the entry for file.Hash.
func (r *registry) Put(ctx context.Context, file domain.ProcessedFile) error {
	if file.Hash == "" {
		return fmt.Errorf("%w: registry entry without hash", domain.ErrInvalidInput)
	}
	if file.UpdatedAt.IsZero() {
		file.UpdatedAt = time.Now().UTC()
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO processed_files (hash, path, status, chunk_count, error, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			path = excluded.path,
			status = excluded.status,
			chunk_count = excluded.chunk_count,
			error = excluded.error,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`, file.Hash, file.Path, string(file.Status), file.ChunkCount, file.Error, file.RunID,
		file.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving registry entry: %w", err)
	}
	return nil
}

// List returns every entry, most recently updated first.
func (r *registry) List(ctx context.Context) ([]domain.ProcessedFile, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT hash, path, status, chunk_count, error, run_id, updated_at
		FROM processed_files ORDER BY updated_at DESC, hash
	`)
	if err != nil {
		return nil, fmt.Errorf("querying registry: %w", err)
	}
	defer rows.Close()

	var entries []domain.ProcessedFile
	for rows.Next() {
		entry, err := scanProcessedFile(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProcessedFile(row scanner) (*domain.ProcessedFile, error) {
	var (
		entry     domain.ProcessedFile
		status    string
		updatedAt string
	)
	if err := row.Scan(&entry.Hash, &entry.Path, &status, &entry.ChunkCount,
		&entry.Error, &entry.RunID, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning registry entry: %w", err)
	}
	entry.Status = domain.FileStatus(status)

	t, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at %q: %w", updatedAt, err)
	}
	entry.UpdatedAt = t
	return &entry, nil
}
