package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/source"
)

const defaultMaxItems = 10

// NewsAPIFetcher polls a JSON news feed (Finnhub-style schema) and stages
// each headline as raw news content.
type NewsAPIFetcher struct {
	client *http.Client
}

var _ source.Strategy = (*NewsAPIFetcher)(nil)

// NewNewsAPIFetcher wires an HTTP client; a nil client gets a sane timeout.
func NewNewsAPIFetcher(client *http.Client) *NewsAPIFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &NewsAPIFetcher{client: client}
}

// Kind identifies the strategy inside the registry.
func (f *NewsAPIFetcher) Kind() string {
	return "newsapi"
}

type newsFeedItem struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Datetime int64  `json:"datetime"`
}

// Fetch polls the feed once and converts the freshest entries into raw
// content items. The per-source rate limit throttles the request so several
// sources polled in one tick stay under provider quotas.
func (f *NewsAPIFetcher) Fetch(ctx context.Context, req source.Request) ([]domain.RawContentItem, error) {
	limiter := rate.NewLimiter(rateOrDefault(req.RateLimit), 1)
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate wait: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", "KnowledgeAgent/1.0")
	if key := req.Options["apiKeyHeader"]; key != "" {
		httpReq.Header.Set(key, req.Options["apiKey"])
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news feed returned %s", resp.Status)
	}

	var feed []newsFeedItem
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	maxItems := intOption(req.Options, "maxItems", defaultMaxItems)
	items := make([]domain.RawContentItem, 0, maxItems)
	for _, entry := range feed {
		if len(items) >= maxItems {
			break
		}
		if entry.URL == "" || entry.Headline == "" || entry.Summary == "" {
			continue
		}

		items = append(items, domain.RawContentItem{
			ID:         uuid.NewString(),
			SourceType: domain.SourceNews,
			Title:      entry.Headline,
			Body:       entry.Summary,
			SourceURL:  entry.URL,
			FetchedAt:  req.Now,
			Status:     domain.StatusPending,
		})
	}

	return items, nil
}

func rateOrDefault(limit float64) rate.Limit {
	if limit <= 0 {
		return rate.Limit(1)
	}
	return rate.Limit(limit)
}

func intOption(options map[string]string, key string, fallback int) int {
	raw, ok := options[key]
	if !ok {
		return fallback
	}
	var value int
	if _, err := fmt.Sscanf(raw, "%d", &value); err != nil || value <= 0 {
		return fallback
	}
	return value
}
