package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/ports"
)

// MemoryStaging is an in-memory staging queue with the same contract as the
// Postgres store. Used by tests and by local runs without a database.
type MemoryStaging struct {
	mu              sync.Mutex
	items           map[string]*domain.RawContentItem
	byURL           map[string]string
	retryCeiling    int
	freshnessWindow time.Duration
}

var _ ports.StagingStore = (*MemoryStaging)(nil)

// NewMemoryStaging builds an empty queue with the given staging policy.
func NewMemoryStaging(retryCeiling int, freshnessWindow time.Duration) *MemoryStaging {
	if retryCeiling <= 0 {
		retryCeiling = 3
	}
	return &MemoryStaging{
		items:           map[string]*domain.RawContentItem{},
		byURL:           map[string]string{},
		retryCeiling:    retryCeiling,
		freshnessWindow: freshnessWindow,
	}
}

// Enqueue inserts a pending item, absorbing duplicates inside the freshness
// window. A stale finished row for the same URL is restaged in place.
func (s *MemoryStaging) Enqueue(ctx context.Context, item domain.RawContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byURL[item.SourceURL]; ok {
		existing := s.items[existingID]
		finished := existing.Status == domain.StatusProcessed || existing.Status == domain.StatusDead
		fresh := item.FetchedAt.Sub(existing.FetchedAt) < s.freshnessWindow
		if fresh || !finished {
			return ports.ErrDuplicateContent
		}

		existing.Title = item.Title
		existing.Body = item.Body
		existing.FetchedAt = item.FetchedAt
		existing.Status = domain.StatusPending
		existing.FailureReason = ""
		existing.RetryCount = 0
		return nil
	}

	staged := item
	staged.Status = domain.StatusPending
	staged.FailureReason = ""
	staged.RetryCount = 0
	s.items[staged.ID] = &staged
	s.byURL[staged.SourceURL] = staged.ID

	return nil
}

// ClaimNext flips the oldest pending item to processing under the lock, so
// concurrent claimants never receive the same item.
func (s *MemoryStaging) ClaimNext(ctx context.Context) (domain.RawContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *domain.RawContentItem
	for _, item := range s.items {
		if item.Status != domain.StatusPending {
			continue
		}
		if oldest == nil || item.FetchedAt.Before(oldest.FetchedAt) {
			oldest = item
		}
	}
	if oldest == nil {
		return domain.RawContentItem{}, ports.ErrNoPendingContent
	}

	oldest.Status = domain.StatusProcessing
	return *oldest, nil
}

// MarkProcessed performs the terminal processing→processed transition.
func (s *MemoryStaging) MarkProcessed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("unknown item %s", id)
	}
	if !item.Status.CanTransition(domain.StatusProcessed) {
		return fmt.Errorf("item %s is not in processing state", id)
	}

	item.Status = domain.StatusProcessed
	return nil
}

// MarkFailed bumps the retry count and requeues or retires the item.
func (s *MemoryStaging) MarkFailed(ctx context.Context, id, reason string) (domain.ContentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return "", fmt.Errorf("unknown item %s", id)
	}
	if !item.Status.CanTransition(domain.StatusFailed) {
		return "", fmt.Errorf("item %s is not in processing state", id)
	}

	item.RetryCount++
	item.FailureReason = reason
	if item.RetryCount >= s.retryCeiling {
		item.Status = domain.StatusDead
	} else {
		item.Status = domain.StatusPending
	}

	return item.Status, nil
}

// Get returns a snapshot of one staged item; test helper.
func (s *MemoryStaging) Get(id string) (domain.RawContentItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.RawContentItem{}, false
	}
	return *item, true
}

// Len returns the number of staged rows; test helper.
func (s *MemoryStaging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// MemoryKnowledge is an in-memory knowledge store ranking by cosine
// similarity, mirroring the pgvector store's ordering semantics.
type MemoryKnowledge struct {
	mu         sync.RWMutex
	records    []domain.KnowledgeRecord
	dimensions int
}

var _ ports.KnowledgeStore = (*MemoryKnowledge)(nil)

// NewMemoryKnowledge builds an empty store with a fixed dimensionality.
func NewMemoryKnowledge(dimensions int) *MemoryKnowledge {
	return &MemoryKnowledge{dimensions: dimensions}
}

// Insert appends one record; the embedding length must match.
func (s *MemoryKnowledge) Insert(ctx context.Context, record domain.KnowledgeRecord) error {
	if len(record.Embedding) != s.dimensions {
		return fmt.Errorf("record embedding has %d dimensions, want %d", len(record.Embedding), s.dimensions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// SearchSimilar returns the top-k records by descending cosine similarity.
func (s *MemoryKnowledge) SearchSimilar(ctx context.Context, embedding []float32, k int) ([]domain.ScoredRecord, error) {
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("query embedding has %d dimensions, want %d", len(embedding), s.dimensions)
	}
	if k <= 0 {
		k = 3
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]domain.ScoredRecord, 0, len(s.records))
	for _, record := range s.records {
		scored = append(scored, domain.ScoredRecord{
			Record:     record,
			Similarity: cosineSimilarity(embedding, record.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Recent lists the newest records of a source type, newest first.
func (s *MemoryKnowledge) Recent(ctx context.Context, sourceType domain.SourceType, n int) ([]domain.KnowledgeRecord, error) {
	if n <= 0 {
		n = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []domain.KnowledgeRecord
	for _, record := range s.records {
		if record.SourceType == sourceType {
			filtered = append(filtered, record)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if len(filtered) > n {
		filtered = filtered[:n]
	}
	return filtered, nil
}

// Count returns the total number of stored records.
func (s *MemoryKnowledge) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
