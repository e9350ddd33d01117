package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/ports"
)

// Retrieval turns a question into a similarity-ranked context bundle. It
// degrades to an empty context on any capability failure so the query path
// can still produce an answer.
type Retrieval struct {
	knowledge     ports.KnowledgeStore
	embedder      ports.Embedder
	topK          int
	contextBudget int
	logger        *slog.Logger
}

// NewRetrieval constructs the retrieval engine.
func NewRetrieval(knowledge ports.KnowledgeStore, embedder ports.Embedder, topK, contextBudget int, logger *slog.Logger) *Retrieval {
	if topK <= 0 {
		topK = 3
	}
	if contextBudget <= 0 {
		contextBudget = 8000
	}
	return &Retrieval{
		knowledge:     knowledge,
		embedder:      embedder,
		topK:          topK,
		contextBudget: contextBudget,
		logger:        logger,
	}
}

// Retrieve embeds the query and returns the best matches that fit the
// context budget, highest similarity first. Failures and an empty store
// both yield an empty context, never an error.
func (r *Retrieval) Retrieve(ctx context.Context, query string) domain.QueryContext {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Error("embed query", "error", err)
		return domain.QueryContext{}
	}

	scored, err := r.knowledge.SearchSimilar(ctx, embedding, r.topK)
	if err != nil {
		r.logger.Error("similarity search", "error", err)
		return domain.QueryContext{}
	}

	// Matches arrive sorted by similarity, so trimming from the tail
	// drops the weakest records first.
	var kept []domain.ScoredRecord
	used := 0
	for _, match := range scored {
		size := len(renderBlock(match.Record))
		if used+size > r.contextBudget {
			break
		}
		kept = append(kept, match)
		used += size
	}

	return domain.QueryContext{Records: kept}
}

// LatestNews lists the newest stored news records.
func (r *Retrieval) LatestNews(ctx context.Context, n int) ([]domain.KnowledgeRecord, error) {
	records, err := r.knowledge.Recent(ctx, domain.SourceNews, n)
	if err != nil {
		return nil, fmt.Errorf("recent news: %w", err)
	}
	return records, nil
}

func renderBlock(record domain.KnowledgeRecord) string {
	return fmt.Sprintf("--- %s ---\n%s\n", record.Title, record.Text)
}

func renderContext(qctx domain.QueryContext) string {
	var b strings.Builder
	for _, match := range qctx.Records {
		b.WriteString(renderBlock(match.Record))
	}
	return b.String()
}
