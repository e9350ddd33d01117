package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/ports"
)

const knowledgeTable = "knowledge_records"

// PostgresKnowledge is the append-only knowledge store backed by pgvector.
// Similarity is cosine (the ivfflat index uses vector_cosine_ops), reported
// as 1 - cosine distance.
type PostgresKnowledge struct {
	pool       *pgxpool.Pool
	dimensions int
}

var _ ports.KnowledgeStore = (*PostgresKnowledge)(nil)

// NewPostgresKnowledge wires the pool with the fixed vector dimensionality.
func NewPostgresKnowledge(pool *pgxpool.Pool, dimensions int) *PostgresKnowledge {
	return &PostgresKnowledge{pool: pool, dimensions: dimensions}
}

// Insert appends one record. The embedding length must match the schema.
func (s *PostgresKnowledge) Insert(ctx context.Context, record domain.KnowledgeRecord) error {
	if len(record.Embedding) != s.dimensions {
		return fmt.Errorf("record embedding has %d dimensions, want %d", len(record.Embedding), s.dimensions)
	}

	query, args, err := psql.Insert(knowledgeTable).
		Columns("id", "raw_item_id", "source_type", "title", "body", "source_url", "embedding", "created_at").
		Values(
			record.ID, record.RawItemID, string(record.SourceType), record.Title,
			record.Text, record.SourceURL, pgvector.NewVector(record.Embedding), record.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

// SearchSimilar returns the top-k records ranked by descending cosine
// similarity to the query embedding.
func (s *PostgresKnowledge) SearchSimilar(ctx context.Context, embedding []float32, k int) ([]domain.ScoredRecord, error) {
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("query embedding has %d dimensions, want %d", len(embedding), s.dimensions)
	}
	if k <= 0 {
		k = 3
	}

	query, args, err := searchSimilarSQL(pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	defer rows.Close()

	var results []domain.ScoredRecord
	for rows.Next() {
		var (
			record     domain.KnowledgeRecord
			sourceType string
			vec        pgvector.Vector
			similarity float64
		)
		err := rows.Scan(
			&record.ID, &record.RawItemID, &sourceType, &record.Title,
			&record.Text, &record.SourceURL, &vec, &record.CreatedAt, &similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		record.SourceType = domain.SourceType(sourceType)
		record.Embedding = vec.Slice()
		results = append(results, domain.ScoredRecord{Record: record, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return results, nil
}

func searchSimilarSQL(vec pgvector.Vector, k int) (string, []interface{}, error) {
	return psql.Select("id", "raw_item_id", "source_type", "title", "body", "source_url", "embedding", "created_at").
		Column(sq.Expr("1 - (embedding <=> ?) AS similarity", vec)).
		From(knowledgeTable).
		OrderByClause("embedding <=> ?", vec).
		Limit(uint64(k)).
		ToSql()
}

// Recent lists the newest records of a source type, newest first.
func (s *PostgresKnowledge) Recent(ctx context.Context, sourceType domain.SourceType, n int) ([]domain.KnowledgeRecord, error) {
	if n <= 0 {
		n = 5
	}

	query, args, err := psql.Select("id", "raw_item_id", "source_type", "title", "body", "source_url", "created_at").
		From(knowledgeTable).
		Where(sq.Eq{"source_type": string(sourceType)}).
		OrderBy("created_at DESC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()

	var records []domain.KnowledgeRecord
	for rows.Next() {
		var (
			record  domain.KnowledgeRecord
			srcType string
		)
		err := rows.Scan(
			&record.ID, &record.RawItemID, &srcType, &record.Title,
			&record.Text, &record.SourceURL, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		record.SourceType = domain.SourceType(srcType)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}

// Count returns the total number of stored records.
func (s *PostgresKnowledge) Count(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From(knowledgeTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}

	return count, nil
}
