package pgvector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opsvoice/internal/domain"
	"opsvoice/internal/logger"
)

// Store persists documents and chunks in Postgres and searches them
// with pgvector's native cosine operator.
type Store struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// Config carries connection details for the Postgres store.
type Config struct {
	DatabaseURL string
	VectorDim   int
	MaxConns    int
	Migrate     bool
}

// New connects the pool and optionally creates the schema.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: pool, log: log.With("service", "VectorStore")}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if cfg.Migrate {
		if err := s.migrate(ctx, cfg.VectorDim); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context, dim int) error {
	if dim <= 0 {
		dim = 1536
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			version INT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (title, version)
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS manual_chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			heading TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			UNIQUE (document_id, chunk_index)
		)`, dim),
		`CREATE INDEX IF NOT EXISTS idx_documents_active ON documents (is_active) WHERE is_active`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &domain.StoreError{Op: "migrate", Err: err}
		}
	}
	return nil
}

// PublishDocument runs deactivation, version allocation, document
// creation and chunk insertion as one transaction. A per-title advisory
// lock serializes concurrent ingestions of the same lineage so two
// callers can never allocate the same version.
func (s *Store) PublishDocument(ctx context.Context, title string, setActive bool, chunks []domain.PendingChunk) (domain.Document, error) {
	var doc domain.Document
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return doc, &domain.StoreError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, title); err != nil {
		return doc, &domain.StoreError{Op: "lock lineage", Err: err}
	}

	var version int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM documents WHERE title = $1`, title,
	).Scan(&version); err != nil {
		return doc, &domain.StoreError{Op: "allocate version", Err: err}
	}

	if setActive {
		if _, err := tx.Exec(ctx, `UPDATE documents SET is_active = FALSE WHERE is_active`); err != nil {
			return doc, &domain.StoreError{Op: "deactivate", Err: err}
		}
	}

	doc = domain.Document{
		ID:        uuid.New(),
		Title:     title,
		Version:   version,
		IsActive:  setActive,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (id, title, version, is_active, created_at) VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Title, doc.Version, doc.IsActive, doc.CreatedAt,
	); err != nil {
		return domain.Document{}, &domain.StoreError{Op: "insert document", Err: err}
	}

	batch := &pgx.Batch{}
	for _, ch := range chunks {
		batch.Queue(
			`INSERT INTO manual_chunks (id, document_id, heading, chunk_index, content, embedding) VALUES ($1, $2, $3, $4, $5, $6::vector)`,
			uuid.New(), doc.ID, ch.Heading, ch.Index, ch.Text, VectorLiteral(ch.Embedding),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return domain.Document{}, &domain.StoreError{Op: "insert chunks", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Document{}, &domain.StoreError{Op: "commit", Err: err}
	}
	s.log.Info("document published", "title", title, "version", version, "chunks", len(chunks), "active", setActive)
	return doc, nil
}

// Search delegates ranking to pgvector's cosine operator over the
// active document only. Similarity is 1 - cosine distance, so the
// score is bounded and monotonic.
func (s *Store) Search(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]domain.Snippet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.heading, c.content, d.title,
		       1 - (c.embedding <=> $1::vector) AS similarity
		FROM manual_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.is_active
		  AND 1 - (c.embedding <=> $1::vector) >= $2
		ORDER BY similarity DESC, c.chunk_index ASC
		LIMIT $3`,
		VectorLiteral(vector), minSimilarity, k,
	)
	if err != nil {
		return nil, &domain.StoreError{Op: "search", Err: err}
	}
	defer rows.Close()

	var snippets []domain.Snippet
	for rows.Next() {
		var (
			id uuid.UUID
			sn domain.Snippet
		)
		if err := rows.Scan(&id, &sn.Heading, &sn.Text, &sn.Source, &sn.Similarity); err != nil {
			return nil, &domain.StoreError{Op: "scan snippet", Err: err}
		}
		sn.Ref = id.String()
		snippets = append(snippets, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "search", Err: err}
	}
	return snippets, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &domain.StoreError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) Close() { s.pool.Close() }

// VectorLiteral renders the store's native vector literal with each
// component at fixed 6-decimal precision.
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', 6, 32))
	}
	b.WriteByte(']')
	return b.String()
}
