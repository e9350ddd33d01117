package ports

import (
	"context"
	"errors"
	"time"

	"KnowledgeAgent/internal/domain"
)

// ErrNoPendingContent is returned by ClaimNext when the staging queue holds
// nothing claimable; an idle tick is not a failure.
var ErrNoPendingContent = errors.New("no pending content")

// ErrDuplicateContent marks an enqueue that was absorbed as an idempotent
// no-op because the source URL was already staged within the freshness window.
var ErrDuplicateContent = errors.New("duplicate content")

// ContentSource pulls raw items from an upstream provider (news API poll,
// site scrape). Implementations own their transport and rate limiting.
type ContentSource interface {
	Name() string
	Fetch(ctx context.Context, now time.Time) ([]domain.RawContentItem, error)
}

// StagingStore is the durable queue of raw content awaiting processing.
type StagingStore interface {
	// Enqueue inserts an item in pending state. A duplicate source URL inside
	// the freshness window returns ErrDuplicateContent and changes nothing.
	Enqueue(ctx context.Context, item domain.RawContentItem) error

	// ClaimNext atomically transitions exactly one pending item to processing
	// and returns it. At most one caller can claim a given item. Returns
	// ErrNoPendingContent when the queue is idle.
	ClaimNext(ctx context.Context) (domain.RawContentItem, error)

	// MarkProcessed performs the terminal processing→processed transition.
	MarkProcessed(ctx context.Context, id string) error

	// MarkFailed records the failure reason and increments the retry count.
	// Under the retry ceiling the item requeues to pending; at the ceiling it
	// is retired to dead and excluded from future claims. The resulting
	// status is returned so callers can react to the retirement.
	MarkFailed(ctx context.Context, id, reason string) (domain.ContentStatus, error)
}

// KnowledgeStore persists finalized records and serves similarity search.
// Writes are append-only; reads must be safe under concurrent callers.
type KnowledgeStore interface {
	Insert(ctx context.Context, record domain.KnowledgeRecord) error
	SearchSimilar(ctx context.Context, embedding []float32, k int) ([]domain.ScoredRecord, error)
	Recent(ctx context.Context, sourceType domain.SourceType, n int) ([]domain.KnowledgeRecord, error)
	Count(ctx context.Context) (int, error)
}

// Completer is the language-model capability: prompt in, text out. Callers
// bound every invocation with a context deadline.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder is the embedding capability. Vectors have the fixed deployment
// dimensionality; the pipeline and the query path must share one Embedder
// configuration.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Notifier delivers operator alerts, e.g. when an item is retired as poison.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// TickDriver invokes a job on a fixed cadence. The core holds no wall-clock
// knowledge; any scheduler satisfying this interface can drive the entry
// points.
type TickDriver interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
