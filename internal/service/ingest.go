package service

import (
	"context"
	"fmt"
	"strings"

	"opsvoice/internal/domain"
	"opsvoice/internal/logger"
)

// IngestionService publishes a manual version: split, embed in one
// batched call, store atomically. All-or-nothing: nothing is written
// when chunking or embedding fails, and the store commits activation
// together with the chunks.
type IngestionService struct {
	chunker     domain.Chunker
	embedder    domain.Embedder
	store       domain.VectorStore
	minRawChars int
	log         *logger.Logger
}

func NewIngestionService(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, minRawChars int, log *logger.Logger) *IngestionService {
	if minRawChars <= 0 {
		minRawChars = 50
	}
	return &IngestionService{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		minRawChars: minRawChars,
		log:         log.With("service", "IngestionService"),
	}
}

func (s *IngestionService) Ingest(ctx context.Context, title, rawText string, setActive bool) (domain.IngestResult, error) {
	var res domain.IngestResult
	if strings.TrimSpace(title) == "" {
		return res, &domain.ValidationError{Msg: "title is required"}
	}
	if len(strings.TrimSpace(rawText)) < s.minRawChars {
		return res, &domain.ValidationError{Msg: fmt.Sprintf("markdown must be at least %d characters", s.minRawChars)}
	}

	chunks := s.chunker.Split(rawText)
	if len(chunks) == 0 {
		return res, &domain.ValidationError{Msg: "document produced no indexable content"}
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	// Embedding happens before any store transaction is opened.
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return res, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return res, &domain.ProviderError{Msg: fmt.Sprintf("expected %d vectors, got %d", len(chunks), len(vectors))}
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	doc, err := s.store.PublishDocument(ctx, title, setActive, chunks)
	if err != nil {
		return res, fmt.Errorf("publish document: %w", err)
	}
	s.log.Info("manual ingested", "title", title, "version", doc.Version, "chunks", len(chunks))
	return domain.IngestResult{DocID: doc.ID, Version: doc.Version, ChunkCount: len(chunks)}, nil
}
