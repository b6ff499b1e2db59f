package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-3, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 1}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestTopHits(t *testing.T) {
	hits := []QueryHit{
		{Record: VectorRecord{ID: "c"}, Score: 0.5},
		{Record: VectorRecord{ID: "a"}, Score: 0.9},
		{Record: VectorRecord{ID: "b"}, Score: 0.5},
	}

	top := TopHits(hits, 2)

	assert.Len(t, top, 2)
	assert.Equal(t, "a", top[0].Record.ID)
	assert.Equal(t, "b", top[1].Record.ID, "ties break by id")
}

func TestIndexStats_TotalChunks(t *testing.T) {
	s := IndexStats{Chunks: map[Collection]int{CollectionText: 3, CollectionTables: 2}}
	assert.Equal(t, 5, s.TotalChunks())
}
