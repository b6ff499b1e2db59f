package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func record(id string, c domain.Collection, vec ...float32) domain.VectorRecord {
	return domain.VectorRecord{ID: id, Collection: c, Text: "text " + id, Vector: vec}
}

func TestVectorIndex_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewVectorIndex(2)

	require.NoError(t, idx.Upsert(ctx, []domain.VectorRecord{record("a", domain.CollectionText, 1, 0)}))
	require.NoError(t, idx.Upsert(ctx, []domain.VectorRecord{record("a", domain.CollectionText, 1, 0)}))

	counts, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.CollectionText])
}

func TestVectorIndex_UpsertAllOrNothing(t *testing.T) {
	ctx := context.Background()
	idx := NewVectorIndex(2)

	err := idx.Upsert(ctx, []domain.VectorRecord{
		record("a", domain.CollectionText, 1, 0),
		record("b", domain.CollectionText, 1, 0, 0),
	})
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	counts, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[domain.CollectionText])
}

func TestVectorIndex_Query(t *testing.T) {
	ctx := context.Background()
	idx := NewVectorIndex(0)
	require.NoError(t, idx.Upsert(ctx, []domain.VectorRecord{
		record("near", domain.CollectionText, 1, 0.1),
		record("far", domain.CollectionText, 0, 1),
		record("table", domain.CollectionTables, 1, 0),
	}))

	hits, err := idx.Query(ctx, []float32{1, 0}, domain.QueryOptions{K: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "table", hits[0].Record.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "near", hits[1].Record.ID)

	hits, err = idx.Query(ctx, []float32{1, 0}, domain.QueryOptions{Collections: []domain.Collection{domain.CollectionText}})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Record.ID)
	assert.Equal(t, "far", hits[1].Record.ID)
}

func TestVectorIndex_RejectsEmptyID(t *testing.T) {
	err := NewVectorIndex(0).Upsert(context.Background(), []domain.VectorRecord{{Collection: domain.CollectionText}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorIndex_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := NewVectorIndex(0)
	assert.ErrorIs(t, idx.Upsert(ctx, []domain.VectorRecord{record("a", domain.CollectionText, 1)}), context.Canceled)
	_, err := idx.Query(ctx, []float32{1}, domain.QueryOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
