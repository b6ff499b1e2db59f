package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_PutAndGet(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	entry := domain.ProcessedFile{Hash: "h1", Path: "/in/a.pdf", Status: domain.FileStatusIngested, ChunkCount: 4}
	require.NoError(t, r.Put(ctx, entry))

	got, err := r.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, entry, *got)
	assert.True(t, got.Done())
}

func TestRegistry_PutReplaces(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	require.NoError(t, r.Put(ctx, domain.ProcessedFile{Hash: "h1", Status: domain.FileStatusFailed, Error: "boom"}))
	require.NoError(t, r.Put(ctx, domain.ProcessedFile{Hash: "h1", Status: domain.FileStatusIngested}))

	got, err := r.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusIngested, got.Status)
	assert.Empty(t, got.Error)
}

func TestRegistry_PutRequiresHash(t *testing.T) {
	assert.ErrorIs(t, NewRegistry().Put(context.Background(), domain.ProcessedFile{}), domain.ErrInvalidInput)
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Put(ctx, domain.ProcessedFile{Hash: "old", UpdatedAt: base}))
	require.NoError(t, r.Put(ctx, domain.ProcessedFile{Hash: "new", UpdatedAt: base.Add(time.Hour)}))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Hash)
	assert.Equal(t, "old", list[1].Hash)
}

func TestRegistry_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Put(ctx, domain.ProcessedFile{Hash: string(rune('A' + i))})
		}()
	}
	wg.Wait()

	list, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 50)
}
