package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// vectorIndex implements driven.VectorIndex with brute-force cosine search.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Upsert writes all records in one transaction.
// Every vector must have the dimensionality of the vectors already stored.
func (v *vectorIndex) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	dims, err := storedDims(ctx, tx)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, collection, text, citation, metadata, dims, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			collection = excluded.collection,
			text = excluded.text,
			citation = excluded.citation,
			metadata = excluded.metadata,
			dims = excluded.dims,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.ID == "" || len(rec.Vector) == 0 {
			return fmt.Errorf("%w: record %q has no id or vector", domain.ErrInvalidInput, rec.ID)
		}
		if dims == 0 {
			dims = len(rec.Vector)
		}
		if len(rec.Vector) != dims {
			return fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), dims)
		}

		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, string(rec.Collection), rec.Text, rec.Citation,
			string(metadataJSON), len(rec.Vector), float32SliceToBytes(rec.Vector)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func storedDims(ctx context.Context, tx *sql.Tx) (int, error) {
	var dims int
	err := tx.QueryRowContext(ctx, "SELECT dims FROM chunks LIMIT 1").Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading index dimensions: %w", err)
	}
	return dims, nil
}

// Query scores every record in the requested collections and returns the top k.
func (v *vectorIndex) Query(ctx context.Context, vector []float32, opts domain.QueryOptions) ([]domain.QueryHit, error) {
	opts = opts.Normalised()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opts.Collections)), ",")
	args := make([]any, len(opts.Collections))
	for i, c := range opts.Collections {
		args[i] = string(c)
	}

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, collection, text, citation, metadata, embedding
		FROM chunks WHERE collection IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var hits []domain.QueryHit
	for rows.Next() {
		var (
			rec          domain.VectorRecord
			collection   string
			metadataJSON string
			blob         []byte
		)
		if err := rows.Scan(&rec.ID, &collection, &rec.Text, &rec.Citation, &metadataJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		rec.Collection = domain.Collection(collection)
		rec.Vector = bytesToFloat32Slice(blob)
		if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
		hits = append(hits, domain.QueryHit{Record: rec, Score: domain.CosineSimilarity(vector, rec.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.TopHits(hits, opts.K), nil
}

// Count returns the number of records per collection.
func (v *vectorIndex) Count(ctx context.Context) (map[domain.Collection]int, error) {
	rows, err := v.store.db.QueryContext(ctx, "SELECT collection, COUNT(*) FROM chunks GROUP BY collection")
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Collection]int)
	for rows.Next() {
		var (
			collection string
			n          int
		)
		if err := rows.Scan(&collection, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[domain.Collection(collection)] = n
	}
	return counts, rows.Err()
}

// Close closes the underlying store.
func (v *vectorIndex) Close() error {
	return v.store.Close()
}
