// Package pgvector provides a PostgreSQL vector index using the pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS ingest_chunks (
    id         TEXT PRIMARY KEY,
    collection TEXT NOT NULL,
    text       TEXT NOT NULL,
    citation   TEXT NOT NULL,
    metadata   JSONB NOT NULL,
    embedding  vector NOT NULL
);

CREATE INDEX IF NOT EXISTS ingest_chunks_collection_idx ON ingest_chunks (collection);
`

// Index stores chunks in one table with a collection column and ranks them
// with the pgvector cosine distance operator.
type Index struct {
	db *sql.DB
}

// NewIndex connects to dsn and creates the schema if needed.
func NewIndex(ctx context.Context, dsn string) (*Index, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: pgvector backend needs vector.dsn", domain.ErrVectorIndexUnavailable)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping db: %w", domain.ErrVectorIndexUnavailable, err)
	}
	if _, err := db.ExecContext(pingCtx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Upsert writes all records in one transaction.
func (x *Index) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkDimensions(records); err != nil {
		return err
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const q = `
		INSERT INTO ingest_chunks (id, collection, text, citation, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			collection = EXCLUDED.collection,
			text = EXCLUDED.text,
			citation = EXCLUDED.citation,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, string(rec.Collection), rec.Text, rec.Citation,
			string(meta), pgvector.NewVector(rec.Vector)); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

// checkDimensions rejects empty ids and mixed vector lengths within one batch.
func checkDimensions(records []domain.VectorRecord) error {
	dims := len(records[0].Vector)
	for _, rec := range records {
		if rec.ID == "" || len(rec.Vector) == 0 {
			return fmt.Errorf("%w: record %q has no id or vector", domain.ErrInvalidInput, rec.ID)
		}
		if len(rec.Vector) != dims {
			return fmt.Errorf("%w: record %s has %d dimensions, batch has %d",
				domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), dims)
		}
	}
	return nil
}

// Query returns the k nearest records by cosine distance.
func (x *Index) Query(ctx context.Context, vector []float32, opts domain.QueryOptions) ([]domain.QueryHit, error) {
	opts = opts.Normalised()
	collections := make([]string, len(opts.Collections))
	for i, c := range opts.Collections {
		collections[i] = string(c)
	}

	const q = `
		SELECT id, collection, text, citation, metadata, embedding, 1 - (embedding <=> $1) AS score
		FROM ingest_chunks
		WHERE collection = ANY($2)
		ORDER BY embedding <=> $1, id
		LIMIT $3
	`
	rows, err := x.db.QueryContext(ctx, q, pgvector.NewVector(vector), collections, opts.K)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var hits []domain.QueryHit
	for rows.Next() {
		var (
			hit        domain.QueryHit
			collection string
			meta       []byte
			emb        pgvector.Vector
		)
		if err := rows.Scan(&hit.Record.ID, &collection, &hit.Record.Text, &hit.Record.Citation,
			&meta, &emb, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		hit.Record.Collection = domain.Collection(collection)
		hit.Record.Vector = emb.Slice()
		if err := json.Unmarshal(meta, &hit.Record.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Count returns the number of records per collection.
func (x *Index) Count(ctx context.Context) (map[domain.Collection]int, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT collection, COUNT(*) FROM ingest_chunks GROUP BY collection`)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Collection]int)
	for rows.Next() {
		var (
			c string
			n int
		)
		if err := rows.Scan(&c, &n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		counts[domain.Collection(c)] = n
	}
	return counts, rows.Err()
}

// Close closes the connection pool.
func (x *Index) Close() error {
	if x.db == nil {
		return errors.New("pgvector index not open")
	}
	return x.db.Close()
}
