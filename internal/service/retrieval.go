package service

import (
	"context"
	"fmt"
	"strings"

	"opsvoice/internal/domain"
	"opsvoice/internal/logger"
)

const (
	DefaultTopK          = 6
	DefaultMinSimilarity = 0.6
)

// RetrievalService answers a free-text query with ranked snippets plus
// an assembled context block. An empty result is a valid outcome, not
// an error.
type RetrievalService struct {
	embedder domain.Embedder
	store    domain.VectorStore
	log      *logger.Logger
}

func NewRetrievalService(embedder domain.Embedder, store domain.VectorStore, log *logger.Logger) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		store:    store,
		log:      log.With("service", "RetrievalService"),
	}
}

func (s *RetrievalService) Search(ctx context.Context, query string, k int, minSimilarity float64) (domain.SearchResult, error) {
	var res domain.SearchResult
	if strings.TrimSpace(query) == "" {
		return res, &domain.ValidationError{Msg: "query must not be empty"}
	}
	if k <= 0 {
		k = DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return res, fmt.Errorf("embed query: %w", err)
	}

	snippets, err := s.store.Search(ctx, vectors[0], k, minSimilarity)
	if err != nil {
		return res, fmt.Errorf("vector search: %w", err)
	}
	res.Snippets = snippets
	res.Context = BuildContext(snippets)
	s.log.Debug("retrieval complete", "k", k, "min_similarity", minSimilarity, "hits", len(snippets))
	return res, nil
}

// BuildContext concatenates snippets in ranked order into a
// human-readable evidence block, each labeled with rank, heading,
// source and score rounded to 3 decimals.
func BuildContext(snippets []domain.Snippet) string {
	if len(snippets) == 0 {
		return ""
	}
	var b strings.Builder
	for i, sn := range snippets {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s - %s (score %.3f)\n%s", i+1, sn.Heading, sn.Source, sn.Similarity, sn.Text)
	}
	return b.String()
}
