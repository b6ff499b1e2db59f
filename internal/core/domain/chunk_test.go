package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash_Deterministic(t *testing.T) {
	a := ContentHash(ChunkText, "Inflation  eased\tin the second quarter.")
	b := ContentHash(ChunkText, " Inflation eased in the second\nquarter. ")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestContentHash_TypeTagMatters(t *testing.T) {
	text := "| A | B |\n| --- | --- |\n| 1 | 2 |"

	assert.NotEqual(t, ContentHash(ChunkText, text), ContentHash(ChunkTable, text))
	assert.NotEqual(t, ContentHash(ChunkText, "abc"), ContentHash(ChunkPageSummary, "abc"))
}

func TestNewChunk_IgnoresSourceForHash(t *testing.T) {
	text := "Output gap closed faster than expected across advanced economies."

	a := NewChunk(ChunkText, text, ChunkMetadata{SourceFile: "q1.pdf", DocHash: "aaa", Page: 1})
	b := NewChunk(ChunkText, text, ChunkMetadata{SourceFile: "renamed.pdf", DocHash: "bbb", Page: 9})

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.ID, a.Metadata.ContentHash)
	assert.Equal(t, ChunkText, a.Metadata.BlockType)
	assert.False(t, a.Metadata.CreatedAt.IsZero())
}

func TestNewChunk_Citation(t *testing.T) {
	c := NewChunk(ChunkTable, "| A |", ChunkMetadata{SourceFile: "outlook.pdf", Page: 4, ExhibitID: TableExhibitID(2, 4)})

	assert.Equal(t, "outlook.pdf, p.4 – Table 2 (p.4)", c.Citation)
	assert.Equal(t, "outlook.pdf, p.7", FormatCitation("outlook.pdf", 7, ""))
	assert.Equal(t, "Figure 1 (p.3)", FigureExhibitID(1, 3))
}

func TestChunkKind_Collection(t *testing.T) {
	tests := []struct {
		kind ChunkKind
		want Collection
	}{
		{ChunkText, CollectionText},
		{ChunkPageSummary, CollectionText},
		{ChunkTable, CollectionTables},
		{ChunkFigure, CollectionFigures},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Collection())
		})
	}
}

func TestParseCollection(t *testing.T) {
	c, err := ParseCollection("tables")
	require.NoError(t, err)
	assert.Equal(t, CollectionTables, c)

	c, err = ParseCollection("ingest_figures")
	require.NoError(t, err)
	assert.Equal(t, CollectionFigures, c)

	_, err = ParseCollection("images")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestQueryOptions_Normalised(t *testing.T) {
	o := QueryOptions{}.Normalised()

	assert.Equal(t, DefaultQueryK, o.K)
	assert.Equal(t, AllCollections(), o.Collections)

	o = QueryOptions{K: 2, Collections: []Collection{CollectionTables}}.Normalised()
	assert.Equal(t, 2, o.K)
	assert.Equal(t, []Collection{CollectionTables}, o.Collections)
}
