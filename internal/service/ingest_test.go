package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsvoice/internal/chunker"
	"opsvoice/internal/domain"
	"opsvoice/internal/logger"
	"opsvoice/internal/vectorstore/memory"
)

// stubEmbedder returns a deterministic unit vector per text so cosine
// similarity behaves predictably in tests.
type stubEmbedder struct {
	calls int
	fail  error
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 4)
		for j, r := range text {
			v[j%4] += float32(r % 13)
		}
		out[i] = v
	}
	return out, nil
}

// countingStore wraps the memory store and counts write attempts.
type countingStore struct {
	*memory.Store
	publishes int
}

func (s *countingStore) PublishDocument(ctx context.Context, title string, setActive bool, chunks []domain.PendingChunk) (domain.Document, error) {
	s.publishes++
	return s.Store.PublishDocument(ctx, title, setActive, chunks)
}

const sampleManual = "## Start\nHello world. This is enough text to pass the length gate for ingestion testing purposes."

func newIngestFixture() (*IngestionService, *stubEmbedder, *countingStore) {
	emb := &stubEmbedder{}
	store := &countingStore{Store: memory.NewStore()}
	svc := NewIngestionService(chunker.NewHeadingChunker(1200, 40), emb, store, 50, logger.NewNop())
	return svc, emb, store
}

func TestIngest_SingleChunkScenario(t *testing.T) {
	svc, emb, _ := newIngestFixture()

	res, err := svc.Ingest(context.Background(), "press manual", sampleManual, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, 1, res.Version)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", res.DocID.String())
	assert.Equal(t, 1, emb.calls, "all chunks embed in one batched call")
}

func TestIngest_RejectsShortMarkdown(t *testing.T) {
	svc, emb, store := newIngestFixture()

	_, err := svc.Ingest(context.Background(), "press manual", "too short", true)
	assert.True(t, domain.IsValidation(err))
	assert.Zero(t, emb.calls)
	assert.Zero(t, store.publishes)
}

func TestIngest_RejectsEmptyTitle(t *testing.T) {
	svc, _, _ := newIngestFixture()

	_, err := svc.Ingest(context.Background(), "  ", sampleManual, true)
	assert.True(t, domain.IsValidation(err))
}

func TestIngest_ProviderFailureWritesNothing(t *testing.T) {
	svc, emb, store := newIngestFixture()
	emb.fail = &domain.ProviderError{Status: 500, Msg: "boom"}

	_, err := svc.Ingest(context.Background(), "press manual", sampleManual, true)
	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Zero(t, store.publishes)
	assert.Empty(t, store.ActiveDocuments())
}

func TestIngest_ReingestingKeepsOneActiveWithIncreasingVersions(t *testing.T) {
	svc, _, store := newIngestFixture()
	ctx := context.Background()

	first, err := svc.Ingest(ctx, "press manual", sampleManual, true)
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, "press manual", sampleManual, true)
	require.NoError(t, err)

	assert.Greater(t, second.Version, first.Version)
	active := store.ActiveDocuments()
	require.Len(t, active, 1)
	assert.Equal(t, second.DocID, active[0].ID)
}

func TestIngest_VectorCountMismatchIsProviderError(t *testing.T) {
	emb := &shortEmbedder{}
	store := &countingStore{Store: memory.NewStore()}
	svc := NewIngestionService(chunker.NewHeadingChunker(1200, 10), emb, store, 50, logger.NewNop())

	raw := "## One\nFirst section body with enough characters to survive.\n\n## Two\nSecond section body with enough characters to survive."
	_, err := svc.Ingest(context.Background(), "press manual", raw, true)
	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Zero(t, store.publishes)
}

// shortEmbedder drops the last vector to simulate a misbehaving
// provider.
type shortEmbedder struct{}

func (e *shortEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) < 2 {
		return nil, errors.New("need at least two texts")
	}
	out := make([][]float32, len(texts)-1)
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}
