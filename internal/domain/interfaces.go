package domain

import "context"

// Chunker splits raw manual text into ordered heading-scoped chunks.
type Chunker interface {
	Split(raw string) []PendingChunk
}

// Embedder converts texts into fixed-length vectors, one per input,
// order-preserving, in a single batched provider call.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists documents with their chunks and supports
// nearest-neighbor search with a minimum-similarity cutoff over the
// active document.
type VectorStore interface {
	// PublishDocument allocates the next version for the title lineage
	// and stores all chunks. When setActive is true, every other
	// document is deactivated in the same atomic unit; a failure leaves
	// the previous active document in place.
	PublishDocument(ctx context.Context, title string, setActive bool, chunks []PendingChunk) (Document, error)

	// Search returns up to k snippets with similarity >= minSimilarity,
	// ordered by descending similarity, ties broken by chunk index.
	Search(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]Snippet, error)

	Ping(ctx context.Context) error
	Close()
}

// Retriever answers a free-text query with ranked snippets plus an
// assembled context block.
type Retriever interface {
	Search(ctx context.Context, query string, k int, minSimilarity float64) (SearchResult, error)
}
