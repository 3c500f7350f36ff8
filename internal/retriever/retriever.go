package retriever

import (
	"context"
	"fmt"

	"learnly/internal/domain"
)

// Retriever answers queries against a vector index using the same embedder
// the index was built with.
type Retriever struct {
	embedder domain.Embedder
	index    domain.VectorIndex
	floor    float64
}

// New creates a retriever. floor is the similarity post-filter: hits scoring
// below it are discarded. The floor is per-retriever policy, not a property
// of the index, so different callers can layer different floors over the
// same index.
func New(embedder domain.Embedder, index domain.VectorIndex, floor float64) *Retriever {
	return &Retriever{embedder: embedder, index: index, floor: floor}
}

// Similarity maps a distance to a similarity in (0, 1]. Monotonically
// decreasing in distance: closer vectors score strictly higher.
func Similarity(distance float32) float64 {
	return 1 / (1 + float64(distance))
}

// Retrieve embeds the query, searches the index for the top-k nearest
// chunks and returns them ranked by similarity, floor applied. An empty
// index yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	hits, err := r.index.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	out := make([]domain.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		sim := Similarity(h.Distance)
		if sim < r.floor {
			continue
		}
		out = append(out, domain.RetrievedChunk{
			Rank:       len(out) + 1,
			Similarity: sim,
			File:       h.Meta.File,
			ChunkID:    h.Meta.ChunkID,
			Text:       h.Meta.Text,
			Collection: h.Meta.Collection,
		})
	}
	return out, nil
}
