package domain

import "time"

// SourceType distinguishes timely news from evergreen educational articles.
type SourceType string

const (
	SourceNews    SourceType = "news"
	SourceArticle SourceType = "article"
	SourceOther   SourceType = "other"
)

// ContentStatus enumerates the staging lifecycle of a raw item.
type ContentStatus string

const (
	StatusPending    ContentStatus = "pending"
	StatusProcessing ContentStatus = "processing"
	StatusProcessed  ContentStatus = "processed"
	StatusFailed     ContentStatus = "failed"
	StatusDead       ContentStatus = "dead"
)

// CanTransition reports whether moving from the current status to next is a
// legal lifecycle step: pending→processing→{processed|failed}, and a failed
// item may requeue to pending or be retired to dead.
func (s ContentStatus) CanTransition(next ContentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusProcessed || next == StatusFailed
	case StatusFailed:
		return next == StatusPending || next == StatusDead
	default:
		return false
	}
}

// RawContentItem is a staged, unprocessed unit of fetched content. It is
// created by a content source, mutated only by the processor, and never
// deleted; dead and processed rows remain as an audit trail.
type RawContentItem struct {
	ID            string
	SourceType    SourceType
	Title         string
	Body          string
	SourceURL     string
	FetchedAt     time.Time
	Status        ContentStatus
	FailureReason string
	RetryCount    int
}

// KnowledgeRecord is a finalized, queryable piece of knowledge. Records are
// immutable once created; corrections create a new record.
type KnowledgeRecord struct {
	ID         string
	RawItemID  string
	SourceType SourceType
	Title      string
	Text       string
	SourceURL  string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredRecord pairs a knowledge record with its similarity to a query.
type ScoredRecord struct {
	Record     KnowledgeRecord
	Similarity float64
}

// QueryContext is the ordered set of records selected for one retrieval,
// ranked by descending similarity. Transient, never persisted.
type QueryContext struct {
	Records []ScoredRecord
}

// Empty reports whether retrieval produced no usable grounding.
func (qc QueryContext) Empty() bool {
	return len(qc.Records) == 0
}
