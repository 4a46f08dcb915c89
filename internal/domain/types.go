package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document is one published version of a manual. At most one document
// is active at any time; activating a new version deactivates the rest
// in the same transaction.
type Document struct {
	ID        uuid.UUID
	Title     string
	Version   int
	IsActive  bool
	CreatedAt time.Time
}

// Chunk is a bounded, heading-labeled unit of manual text. Index is
// dense and 0-based within its document, in reading order.
type Chunk struct {
	DocumentID uuid.UUID
	Heading    string
	Index      int
	Text       string
	Embedding  []float32
}

// PendingChunk is a chunk before it has been assigned to a document.
// The splitter produces these; the ingestion service attaches
// embeddings and hands them to the store.
type PendingChunk struct {
	Heading   string
	Index     int
	Text      string
	Embedding []float32
}

// Snippet is a scored retrieval hit. Ephemeral: computed per request,
// never persisted.
type Snippet struct {
	Ref        string
	Heading    string
	Text       string
	Similarity float64
	Source     string
}

// IngestResult reports a successful document publication.
type IngestResult struct {
	DocID      uuid.UUID
	Version    int
	ChunkCount int
}

// SearchResult is the outcome of a retrieval query. An empty snippet
// set with a nil error means nothing cleared the similarity floor,
// which is a valid outcome, not a failure.
type SearchResult struct {
	Snippets []Snippet
	Context  string
}
