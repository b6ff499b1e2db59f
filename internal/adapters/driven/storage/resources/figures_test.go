package resources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*FigureStore, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewFigureStore(root)
	require.NoError(t, err)
	return store, root
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNewFigureStore_RequiresRoot(t *testing.T) {
	_, err := NewFigureStore("")
	assert.Error(t, err)
}

// ==================== Save Tests ====================

func TestFigureStore_SaveStages(t *testing.T) {
	store, root := newStore(t)

	path, err := store.Save(context.Background(), "abc123", 3, 2, []byte("png-1"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "resources", "abc123", "page_3_fig_2.png"), path)
	assert.NoFileExists(t, path, "nothing is visible before commit")
	assert.Equal(t, "png-1", readFile(t, filepath.Join(root, "resources", ".staging", "abc123", "page_3_fig_2.png")))
}

func TestFigureStore_SaveReplacesStaged(t *testing.T) {
	store, root := newStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "abc", 1, 1, []byte("old"))
	require.NoError(t, err)
	_, err = store.Save(ctx, "abc", 1, 1, []byte("new"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "resources", ".staging", "abc"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestFigureStore_RejectsBadHash(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	for _, hash := range []string{"", "../escape", ".staging"} {
		_, err := store.Save(ctx, hash, 1, 1, []byte("x"))
		assert.Error(t, err, hash)
		assert.Error(t, store.Commit(ctx, hash), hash)
		assert.Error(t, store.Discard(hash), hash)
	}
}

func TestFigureStore_CancelledContext(t *testing.T) {
	store, _ := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Save(ctx, "abc", 1, 1, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

// ==================== Commit Tests ====================

func TestFigureStore_Commit(t *testing.T) {
	store, root := newStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, "abc", 1, 1, []byte("one"))
	require.NoError(t, err)
	second, err := store.Save(ctx, "abc", 2, 1, []byte("two"))
	require.NoError(t, err)

	require.NoError(t, store.Commit(ctx, "abc"))

	assert.Equal(t, "one", readFile(t, first))
	assert.Equal(t, "two", readFile(t, second))
	assert.NoDirExists(t, filepath.Join(root, "resources", ".staging", "abc"))
}

func TestFigureStore_CommitReplacesEarlierRun(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	kept, err := store.Save(ctx, "abc", 1, 1, []byte("v1"))
	require.NoError(t, err)
	stale, err := store.Save(ctx, "abc", 1, 2, []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, "abc"))

	_, err = store.Save(ctx, "abc", 1, 1, []byte("v2"))
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, "abc"))

	assert.Equal(t, "v2", readFile(t, kept))
	assert.NoFileExists(t, stale)
}

func TestFigureStore_CommitNothingStaged(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	path, err := store.Save(ctx, "abc", 1, 1, []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, "abc"))

	require.NoError(t, store.Commit(ctx, "abc"))
	require.NoError(t, store.Commit(ctx, "never-saved"))
	assert.Equal(t, "v1", readFile(t, path))
}

// ==================== Discard Tests ====================

func TestFigureStore_Discard(t *testing.T) {
	store, root := newStore(t)
	ctx := context.Background()

	committed, err := store.Save(ctx, "abc", 1, 1, []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, "abc"))

	_, err = store.Save(ctx, "abc", 1, 1, []byte("v2"))
	require.NoError(t, err)
	require.NoError(t, store.Discard("abc"))

	assert.Equal(t, "v1", readFile(t, committed), "committed figures survive a discard")
	assert.NoDirExists(t, filepath.Join(root, "resources", ".staging", "abc"))
	assert.NoError(t, store.Discard("abc"))
}
