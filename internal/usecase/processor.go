package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/ports"
)

// Raw bodies are capped before the cleaning call to keep the prompt inside
// the model's context window.
const maxCleanInput = 8000

// Processor drains the staging queue one item per invocation. Keeping the
// unit of work this small bounds rate-limit pressure and confines a poison
// item to its own tick.
type Processor struct {
	staging   ports.StagingStore
	knowledge ports.KnowledgeStore
	completer ports.Completer
	embedder  ports.Embedder
	notifier  ports.Notifier
	logger    *slog.Logger
}

// NewProcessor constructs the processing-side entry point. The notifier is
// optional; when present it is pinged whenever an item is retired as dead.
func NewProcessor(
	staging ports.StagingStore,
	knowledge ports.KnowledgeStore,
	completer ports.Completer,
	embedder ports.Embedder,
	notifier ports.Notifier,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		staging:   staging,
		knowledge: knowledge,
		completer: completer,
		embedder:  embedder,
		notifier:  notifier,
		logger:    logger,
	}
}

// ProcessNext claims the oldest pending item and runs it through cleaning,
// embedding, and knowledge insertion. An empty queue is a successful no-op.
// Any stage failure marks the item failed and ends the tick; the error is
// returned for logging only, never rethrown into the scheduler.
func (p *Processor) ProcessNext(ctx context.Context) error {
	item, err := p.staging.ClaimNext(ctx)
	if errors.Is(err, ports.ErrNoPendingContent) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim next: %w", err)
	}

	body := item.Body
	if len(body) > maxCleanInput {
		body = body[:maxCleanInput]
	}

	prompt := fmt.Sprintf(cleaningPromptTemplate, contentTypeLabel(item.SourceType), body)
	cleaned, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return p.fail(ctx, item, fmt.Errorf("clean content: %w", err))
	}
	if cleaned == "" {
		cleaned = body
	}

	embedding, err := p.embedder.Embed(ctx, cleaned)
	if err != nil {
		return p.fail(ctx, item, fmt.Errorf("embed content: %w", err))
	}

	record := domain.KnowledgeRecord{
		ID:         uuid.NewString(),
		RawItemID:  item.ID,
		SourceType: item.SourceType,
		Title:      item.Title,
		Text:       cleaned,
		SourceURL:  item.SourceURL,
		Embedding:  embedding,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.knowledge.Insert(ctx, record); err != nil {
		return p.fail(ctx, item, fmt.Errorf("insert record: %w", err))
	}

	if err := p.staging.MarkProcessed(ctx, item.ID); err != nil {
		return fmt.Errorf("mark processed %s: %w", item.ID, err)
	}

	p.logger.Info("item processed", "id", item.ID, "source_type", item.SourceType, "url", item.SourceURL)
	return nil
}

func (p *Processor) fail(ctx context.Context, item domain.RawContentItem, cause error) error {
	status, err := p.staging.MarkFailed(ctx, item.ID, cause.Error())
	if err != nil {
		return fmt.Errorf("mark failed %s after %v: %w", item.ID, cause, err)
	}

	if status == domain.StatusDead {
		p.logger.Error("item retired", "id", item.ID, "url", item.SourceURL, "reason", cause)
		if p.notifier != nil {
			msg := fmt.Sprintf("knowledge agent: item %s (%s) retired after repeated failures: %v",
				item.ID, item.SourceURL, cause)
			if nErr := p.notifier.Notify(ctx, msg); nErr != nil {
				p.logger.Error("notify retirement", "id", item.ID, "error", nErr)
			}
		}
	}

	return fmt.Errorf("process item %s: %w", item.ID, cause)
}

func contentTypeLabel(t domain.SourceType) string {
	switch t {
	case domain.SourceNews:
		return "financial news briefing"
	case domain.SourceArticle:
		return "educational article"
	default:
		return "financial article"
	}
}
