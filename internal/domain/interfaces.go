package domain

import "context"

// ChunkMeta is the metadata record stored alongside each indexed vector.
// Records are append-only; a record's position in the metadata log always
// matches its vector's position in the index.
type ChunkMeta struct {
	ID         string `json:"id"`
	File       string `json:"file"`
	ChunkID    int    `json:"chunk_id"`
	FileHash   string `json:"file_hash"`
	Text       string `json:"text"`
	Collection string `json:"collection,omitempty"`
}

// ScoredChunk is a search hit: a stored chunk with its raw distance to the
// query vector. Smaller distance means a closer match.
type ScoredChunk struct {
	Meta     ChunkMeta
	Distance float32
}

// RetrievedChunk is a ranked retrieval result exposed to callers, with the
// distance already mapped to a similarity in (0, 1].
type RetrievedChunk struct {
	Rank       int
	Similarity float64
	File       string
	ChunkID    int
	Text       string
	Collection string
}

// SearchHit is the result of a live web or encyclopedia lookup.
type SearchHit struct {
	Query   string
	Title   string
	URL     string
	Content string
}

// Embedder converts text into fixed-dimension vectors. Implementations must
// be deterministic for identical input and identical model configuration;
// Name and Dimension together form the index schema identity.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits extracted text into bounded, overlapping chunks.
type Chunker interface {
	Chunk(text string) []string
}

// VectorIndex stores vectors and metadata in lockstep and supports
// nearest-neighbour search. Implementations serialize Add and Persist;
// concurrent Search calls are safe.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32, meta []ChunkMeta) error
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)
	Count() int
	HasFile(ctx context.Context, hash string) (bool, error)
	Persist() error
}

// Searcher performs a live lookup against an external source.
type Searcher interface {
	Search(ctx context.Context, query string) (*SearchHit, error)
}

// Completer is a generative text-completion collaborator. Implementations
// must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
