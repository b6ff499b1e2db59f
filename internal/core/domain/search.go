package domain

import (
	"math"
	"sort"
)

// QueryOptions configures an ad hoc retrieval query.
type QueryOptions struct {
	// Collections restricts the search; empty means all collections.
	Collections []Collection

	// K is the number of hits to return.
	K int
}

// DefaultQueryK is used when QueryOptions.K is not positive.
const DefaultQueryK = 5

// Normalised returns a copy with defaults applied.
func (o QueryOptions) Normalised() QueryOptions {
	if o.K <= 0 {
		o.K = DefaultQueryK
	}
	if len(o.Collections) == 0 {
		o.Collections = AllCollections()
	}
	return o
}

// VectorRecord is what the vector index stores per chunk.
type VectorRecord struct {
	// ID is the chunk content hash.
	ID         string
	Collection Collection
	Text       string
	Citation   string
	Metadata   ChunkMetadata
	Vector     []float32
}

// RecordFromChunk converts an embedded chunk into an index record.
func RecordFromChunk(c Chunk) VectorRecord {
	return VectorRecord{
		ID:         c.ID,
		Collection: c.Collection(),
		Text:       c.Text,
		Citation:   c.Citation,
		Metadata:   c.Metadata,
		Vector:     c.Embedding,
	}
}

// QueryHit is a single nearest-neighbour result.
type QueryHit struct {
	Record VectorRecord

	// Score is the cosine similarity in [-1, 1].
	Score float64
}

// IndexStats summarises the index and the registry.
type IndexStats struct {
	// Chunks is the record count per collection.
	Chunks map[Collection]int

	// Files is the registry entry count per status.
	Files map[FileStatus]int
}

// TotalChunks sums the per-collection counts.
func (s IndexStats) TotalChunks() int {
	total := 0
	for _, n := range s.Chunks {
		total += n
	}
	return total
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopHits sorts hits by descending score, ties by ID, and keeps the first k.
func TopHits(hits []QueryHit, k int) []QueryHit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
