package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/ports"
)

const rawContentTable = "raw_content"

var rawContentColumns = []string{
	"id", "source_type", "title", "body", "source_url",
	"fetched_at", "status", "failure_reason", "retry_count",
}

// PostgresStaging is the durable staging queue backed by the raw_content
// table. The single-flight claim relies on FOR UPDATE SKIP LOCKED, so the
// store stays correct even if several processors ever run concurrently.
type PostgresStaging struct {
	pool            *pgxpool.Pool
	retryCeiling    int
	freshnessWindow time.Duration
}

var _ ports.StagingStore = (*PostgresStaging)(nil)

// NewPostgresStaging wires the pool with the staging policy knobs.
func NewPostgresStaging(pool *pgxpool.Pool, retryCeiling int, freshnessWindow time.Duration) *PostgresStaging {
	if retryCeiling <= 0 {
		retryCeiling = 3
	}
	return &PostgresStaging{
		pool:            pool,
		retryCeiling:    retryCeiling,
		freshnessWindow: freshnessWindow,
	}
}

// Enqueue inserts a pending item. A source URL already staged within the
// freshness window is absorbed as ErrDuplicateContent; a stale finished row
// for the same URL is restaged as a fresh pending generation.
func (s *PostgresStaging) Enqueue(ctx context.Context, item domain.RawContentItem) error {
	query, args, err := enqueueSQL(item, item.FetchedAt.Add(-s.freshnessWindow))
	if err != nil {
		return fmt.Errorf("build enqueue: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("enqueue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrDuplicateContent
	}

	return nil
}

func enqueueSQL(item domain.RawContentItem, staleBefore time.Time) (string, []interface{}, error) {
	return psql.Insert(rawContentTable).
		Columns(rawContentColumns...).
		Values(
			item.ID, string(item.SourceType), item.Title, item.Body, item.SourceURL,
			item.FetchedAt, string(domain.StatusPending), "", 0,
		).
		Suffix(`ON CONFLICT (source_url) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			fetched_at = EXCLUDED.fetched_at,
			status = EXCLUDED.status,
			failure_reason = '',
			retry_count = 0
		WHERE raw_content.fetched_at < ?
			AND raw_content.status IN ('processed','dead')`, staleBefore).
		ToSql()
}

// ClaimNext atomically flips the oldest pending row to processing and
// returns it. SKIP LOCKED guarantees at most one claimant per row.
func (s *PostgresStaging) ClaimNext(ctx context.Context) (domain.RawContentItem, error) {
	query, args, err := claimNextSQL()
	if err != nil {
		return domain.RawContentItem{}, fmt.Errorf("build claim: %w", err)
	}

	item, err := scanRawItem(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RawContentItem{}, ports.ErrNoPendingContent
	}
	if err != nil {
		return domain.RawContentItem{}, fmt.Errorf("claim next: %w", err)
	}

	return item, nil
}

func claimNextSQL() (string, []interface{}, error) {
	return psql.Update(rawContentTable).
		Set("status", string(domain.StatusProcessing)).
		Where(sq.Expr(`id = (
			SELECT id FROM raw_content
			WHERE status = 'pending'
			ORDER BY fetched_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)`)).
		Suffix("RETURNING id, source_type, title, body, source_url, fetched_at, status, failure_reason, retry_count").
		ToSql()
}

// MarkProcessed performs the terminal processing→processed transition.
func (s *PostgresStaging) MarkProcessed(ctx context.Context, id string) error {
	query, args, err := psql.Update(rawContentTable).
		Set("status", string(domain.StatusProcessed)).
		Where(sq.Eq{"id": id, "status": string(domain.StatusProcessing)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark processed: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s is not in processing state", id)
	}

	return nil
}

// MarkFailed bumps the retry count and either requeues the item or retires
// it to dead once the ceiling is hit, in a single conditional update.
func (s *PostgresStaging) MarkFailed(ctx context.Context, id, reason string) (domain.ContentStatus, error) {
	query, args, err := markFailedSQL(id, reason, s.retryCeiling)
	if err != nil {
		return "", fmt.Errorf("build mark failed: %w", err)
	}

	var status string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("item %s is not in processing state", id)
		}
		return "", fmt.Errorf("mark failed: %w", err)
	}

	return domain.ContentStatus(status), nil
}

func markFailedSQL(id, reason string, ceiling int) (string, []interface{}, error) {
	return psql.Update(rawContentTable).
		Set("retry_count", sq.Expr("retry_count + 1")).
		Set("failure_reason", reason).
		Set("status", sq.Expr("CASE WHEN retry_count + 1 >= ? THEN 'dead' ELSE 'pending' END", ceiling)).
		Where(sq.Eq{"id": id, "status": string(domain.StatusProcessing)}).
		Suffix("RETURNING status").
		ToSql()
}

func scanRawItem(row pgx.Row) (domain.RawContentItem, error) {
	var (
		item       domain.RawContentItem
		sourceType string
		status     string
	)
	err := row.Scan(
		&item.ID, &sourceType, &item.Title, &item.Body, &item.SourceURL,
		&item.FetchedAt, &status, &item.FailureReason, &item.RetryCount,
	)
	if err != nil {
		return domain.RawContentItem{}, err
	}
	item.SourceType = domain.SourceType(sourceType)
	item.Status = domain.ContentStatus(status)
	return item, nil
}
