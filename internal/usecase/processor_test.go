package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/infrastructure/storage"
	"KnowledgeAgent/internal/logging"
)

type stubCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	failFor string
	prompts []string
}

func (c *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	if c.failFor != "" && strings.Contains(prompt, c.failFor) {
		return "", errors.New("model rejected input")
	}
	return c.reply, nil
}

func (c *stubCompleter) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

func (e *stubEmbedder) Dimensions() int {
	return len(e.vec)
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *stubNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *stubNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func newItem(id, url, body string, fetchedAt time.Time) domain.RawContentItem {
	return domain.RawContentItem{
		ID:         id,
		SourceType: domain.SourceArticle,
		Title:      "Title " + id,
		Body:       body,
		SourceURL:  url,
		FetchedAt:  fetchedAt,
		Status:     domain.StatusPending,
	}
}

func TestProcessNextHappyPath(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	staging := storage.NewMemoryStaging(3, 72*time.Hour)
	knowledge := storage.NewMemoryKnowledge(3)
	completer := &stubCompleter{reply: "cleaned text"}
	embedder := &stubEmbedder{vec: []float32{0.1, 0.2, 0.3}}

	processor := NewProcessor(staging, knowledge, completer, embedder, nil, logging.Discard())

	require.NoError(t, staging.Enqueue(ctx, newItem("a", "https://example.com/a", "raw body", time.Now())))
	require.NoError(t, processor.ProcessNext(ctx))

	count, err := knowledge.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	records, err := knowledge.Recent(ctx, domain.SourceArticle, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "cleaned text", records[0].Text)
	assert.Equal(t, "Title a", records[0].Title)
	assert.Equal(t, "https://example.com/a", records[0].SourceURL)
	assert.Equal(t, "a", records[0].RawItemID)

	item, ok := staging.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.StatusProcessed, item.Status)

	// The cleaning prompt carries the raw body.
	assert.Contains(t, completer.lastPrompt(), "raw body")
}

func TestProcessNextIdleQueueIsSuccess(t *testing.T) {
	t.Parallel()

	staging := storage.NewMemoryStaging(3, 72*time.Hour)
	knowledge := storage.NewMemoryKnowledge(3)
	processor := NewProcessor(staging, knowledge, &stubCompleter{}, &stubEmbedder{vec: []float32{1, 0, 0}}, nil, logging.Discard())

	require.NoError(t, processor.ProcessNext(context.Background()))
}

func TestProcessNextFailureRequeues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	staging := storage.NewMemoryStaging(3, 72*time.Hour)
	knowledge := storage.NewMemoryKnowledge(3)
	completer := &stubCompleter{err: errors.New("model down")}

	processor := NewProcessor(staging, knowledge, completer, &stubEmbedder{vec: []float32{1, 0, 0}}, nil, logging.Discard())

	require.NoError(t, staging.Enqueue(ctx, newItem("a", "https://example.com/a", "raw body", time.Now())))
	require.Error(t, processor.ProcessNext(ctx))

	item, ok := staging.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, item.Status)
	assert.Equal(t, 1, item.RetryCount)
	assert.Contains(t, item.FailureReason, "model down")

	count, err := knowledge.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProcessNextEmbeddingFailureRequeues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	staging := storage.NewMemoryStaging(3, 72*time.Hour)
	knowledge := storage.NewMemoryKnowledge(3)
	embedder := &stubEmbedder{err: errors.New("embedding service down")}

	processor := NewProcessor(staging, knowledge, &stubCompleter{reply: "cleaned"}, embedder, nil, logging.Discard())

	require.NoError(t, staging.Enqueue(ctx, newItem("a", "https://example.com/a", "raw body", time.Now())))
	require.Error(t, processor.ProcessNext(ctx))

	item, ok := staging.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, item.Status)
	assert.Contains(t, item.FailureReason, "embedding service down")
}

func TestProcessNextDimensionMismatchIsFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	staging := storage.NewMemoryStaging(3, 72*time.Hour)
	knowledge := storage.NewMemoryKnowledge(3)
	embedder := &stubEmbedder{vec: []float32{1, 0}} // store expects 3

	processor := NewProcessor(staging, knowledge, &stubCompleter{reply: "cleaned"}, embedder, nil, logging.Discard())

	require.NoError(t, staging.Enqueue(ctx, newItem("a", "https://example.com/a", "raw body", time.Now())))
	require.Error(t, processor.ProcessNext(ctx))

	item, ok := staging.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, item.Status)
	assert.Contains(t, item.FailureReason, "dimensions")
}

func TestPoisonItemIsIsolatedAndRetired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	staging := storage.NewMemoryStaging(2, 72*time.Hour)
	knowledge := storage.NewMemoryKnowledge(3)
	completer := &stubCompleter{reply: "cleaned", failFor: "poison payload"}
	notifier := &stubNotifier{}

	processor := NewProcessor(staging, knowledge, completer, &stubEmbedder{vec: []float32{1, 0, 0}}, notifier, logging.Discard())

	now := time.Now()
	require.NoError(t, staging.Enqueue(ctx, newItem("poison", "https://example.com/p", "poison payload", now)))
	require.NoError(t, staging.Enqueue(ctx, newItem("good", "https://example.com/g", "good body", now.Add(time.Second))))

	// Two ticks burn the poison item's retries, each failing in isolation.
	require.Error(t, processor.ProcessNext(ctx))
	require.Error(t, processor.ProcessNext(ctx))

	poisoned, ok := staging.Get("poison")
	require.True(t, ok)
	assert.Equal(t, domain.StatusDead, poisoned.Status)

	messages := notifier.sent()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "https://example.com/p")

	// The healthy item still flows through on the next tick.
	require.NoError(t, processor.ProcessNext(ctx))

	good, ok := staging.Get("good")
	require.True(t, ok)
	assert.Equal(t, domain.StatusProcessed, good.Status)

	count, err := knowledge.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessNextTruncatesOversizedBody(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	staging := storage.NewMemoryStaging(3, 72*time.Hour)
	knowledge := storage.NewMemoryKnowledge(3)
	completer := &stubCompleter{reply: "cleaned"}

	processor := NewProcessor(staging, knowledge, completer, &stubEmbedder{vec: []float32{1, 0, 0}}, nil, logging.Discard())

	huge := strings.Repeat("x", maxCleanInput+500)
	require.NoError(t, staging.Enqueue(ctx, newItem("a", "https://example.com/a", huge, time.Now())))
	require.NoError(t, processor.ProcessNext(ctx))

	assert.LessOrEqual(t, len(completer.lastPrompt()), maxCleanInput+len(cleaningPromptTemplate)+100)
}
