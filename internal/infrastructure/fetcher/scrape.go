package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/source"
)

const (
	defaultLinkSelector    = "a[href]"
	defaultContentSelector = "article"
	defaultMaxPages        = 5
)

// ScrapeFetcher walks an index page of an educational site, follows article
// links, and stages each article body as raw content.
type ScrapeFetcher struct {
	client *http.Client
}

var _ source.Strategy = (*ScrapeFetcher)(nil)

// NewScrapeFetcher wires an HTTP client; a nil client gets a sane timeout.
func NewScrapeFetcher(client *http.Client) *ScrapeFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ScrapeFetcher{client: client}
}

// Kind identifies the strategy inside the registry.
func (f *ScrapeFetcher) Kind() string {
	return "scrape"
}

// Fetch loads the index page, resolves article links via the configured CSS
// selector, and scrapes up to maxPages article pages. Page requests share
// one rate limiter so the target site is never hammered within a tick.
func (f *ScrapeFetcher) Fetch(ctx context.Context, req source.Request) ([]domain.RawContentItem, error) {
	limiter := rate.NewLimiter(rateOrDefault(req.RateLimit), 1)

	indexDoc, err := f.fetchDocument(ctx, limiter, req.URL)
	if err != nil {
		return nil, fmt.Errorf("index page: %w", err)
	}

	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %s: %w", req.URL, err)
	}

	linkSelector := stringOption(req.Options, "linkSelector", defaultLinkSelector)
	maxPages := intOption(req.Options, "maxPages", defaultMaxPages)

	links := collectLinks(indexDoc, linkSelector, base, maxPages)

	contentSelector := stringOption(req.Options, "contentSelector", defaultContentSelector)
	items := make([]domain.RawContentItem, 0, len(links))
	for _, link := range links {
		item, err := f.scrapePage(ctx, limiter, link, contentSelector, req)
		if err != nil {
			// A single broken page must not sink the whole fetch.
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func (f *ScrapeFetcher) scrapePage(ctx context.Context, limiter *rate.Limiter, pageURL, contentSelector string, req source.Request) (domain.RawContentItem, error) {
	doc, err := f.fetchDocument(ctx, limiter, pageURL)
	if err != nil {
		return domain.RawContentItem{}, err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = "Untitled"
	}

	body := strings.TrimSpace(doc.Find(contentSelector).First().Text())
	if body == "" {
		return domain.RawContentItem{}, fmt.Errorf("no content found at %s", pageURL)
	}

	return domain.RawContentItem{
		ID:         uuid.NewString(),
		SourceType: domain.SourceArticle,
		Title:      title,
		Body:       body,
		SourceURL:  pageURL,
		FetchedAt:  req.Now,
		Status:     domain.StatusPending,
	}, nil
}

func (f *ScrapeFetcher) fetchDocument(ctx context.Context, limiter *rate.Limiter, pageURL string) (*goquery.Document, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "KnowledgeAgent/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("site returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func collectLinks(doc *goquery.Document, selector string, base *url.URL, limit int) []string {
	var links []string
	seen := map[string]struct{}{}

	doc.Find(selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		href, exists := sel.Attr("href")
		if !exists || href == "" {
			return true
		}

		resolved := resolveLink(base, href)
		if resolved == "" {
			return true
		}
		if _, ok := seen[resolved]; ok {
			return true
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)

		return len(links) < limit
	})

	return links
}

func resolveLink(base *url.URL, href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func stringOption(options map[string]string, key, fallback string) string {
	if v, ok := options[key]; ok && v != "" {
		return v
	}
	return fallback
}
