package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// psql builds every query with Postgres dollar placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NewPool opens a pgx connection pool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// InitSchema creates the staging and knowledge tables plus the vector index.
// Idempotent; runs on startup.
func InitSchema(ctx context.Context, pool *pgxpool.Pool, vectorDim int) error {
	if vectorDim <= 0 {
		return fmt.Errorf("vector dimensionality must be positive, got %d", vectorDim)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS raw_content (
			id UUID PRIMARY KEY,
			source_type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			source_url TEXT NOT NULL,
			fetched_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			failure_reason TEXT NOT NULL DEFAULT '',
			retry_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS raw_content_source_url_idx ON raw_content (source_url)`,
		`CREATE INDEX IF NOT EXISTS raw_content_status_idx ON raw_content (status, fetched_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_records (
			id UUID PRIMARY KEY,
			raw_item_id UUID NOT NULL,
			source_type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			source_url TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, vectorDim),
		`CREATE INDEX IF NOT EXISTS knowledge_records_embedding_idx
			ON knowledge_records
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
		`CREATE INDEX IF NOT EXISTS knowledge_records_recent_idx ON knowledge_records (source_type, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}
