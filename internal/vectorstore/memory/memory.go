package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"opsvoice/internal/domain"
)

// Store is an in-memory vector store using brute-force cosine
// similarity. It mirrors the Postgres store's document lineage
// semantics and is used for development and tests.
type Store struct {
	mu     sync.RWMutex
	docs   map[uuid.UUID]domain.Document
	chunks []domain.Chunk
}

func NewStore() *Store {
	return &Store{docs: make(map[uuid.UUID]domain.Document)}
}

// PublishDocument stages everything and applies it under one lock
// acquisition, so a caller never observes a half-published version.
func (s *Store) PublishDocument(_ context.Context, title string, setActive bool, chunks []domain.PendingChunk) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := 1
	for _, d := range s.docs {
		if d.Title == title && d.Version >= version {
			version = d.Version + 1
		}
	}
	doc := domain.Document{
		ID:        uuid.New(),
		Title:     title,
		Version:   version,
		IsActive:  setActive,
		CreatedAt: time.Now().UTC(),
	}

	stored := make([]domain.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) == 0 {
			return domain.Document{}, &domain.StoreError{Op: "insert chunks", Err: fmt.Errorf("chunk %d has no embedding", ch.Index)}
		}
		stored = append(stored, domain.Chunk{
			DocumentID: doc.ID,
			Heading:    ch.Heading,
			Index:      ch.Index,
			Text:       ch.Text,
			Embedding:  ch.Embedding,
		})
	}

	if setActive {
		for id, d := range s.docs {
			if d.IsActive {
				d.IsActive = false
				s.docs[id] = d
			}
		}
	}
	s.docs[doc.ID] = doc
	s.chunks = append(s.chunks, stored...)
	return doc, nil
}

func (s *Store) Search(_ context.Context, vector []float32, k int, minSimilarity float64) ([]domain.Snippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k <= 0 {
		k = 5
	}

	type scored struct {
		chunk domain.Chunk
		score float64
	}
	var hits []scored
	for _, ch := range s.chunks {
		doc, ok := s.docs[ch.DocumentID]
		if !ok || !doc.IsActive {
			continue
		}
		score := cosine(ch.Embedding, vector)
		if score < minSimilarity {
			continue
		}
		hits = append(hits, scored{chunk: ch, score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].chunk.Index < hits[j].chunk.Index
	})
	if k > len(hits) {
		k = len(hits)
	}

	snippets := make([]domain.Snippet, 0, k)
	for _, h := range hits[:k] {
		doc := s.docs[h.chunk.DocumentID]
		snippets = append(snippets, domain.Snippet{
			Ref:        fmt.Sprintf("%s:%d", h.chunk.DocumentID, h.chunk.Index),
			Heading:    h.chunk.Heading,
			Text:       h.chunk.Text,
			Similarity: h.score,
			Source:     doc.Title,
		})
	}
	return snippets, nil
}

// ActiveDocuments returns the currently active documents. Test helper.
func (s *Store) ActiveDocuments() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Document
	for _, d := range s.docs {
		if d.IsActive {
			out = append(out, d)
		}
	}
	return out
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
