package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/source"
)

func TestScrapeFetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/learn", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<div class="course">
				<a href="/learn/pips">Pips</a>
				<a href="/learn/pips">Pips duplicate</a>
				<a href="/learn/leverage">Leverage</a>
				<a href="/learn/broken">Broken</a>
			</div>
			<a href="/outside">Outside the selector</a>
		</body></html>`))
	})
	mux.HandleFunc("/learn/pips", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<h1>What is a Pip?</h1>
			<article>A pip is the smallest price move in forex.</article>
		</body></html>`))
	})
	mux.HandleFunc("/learn/leverage", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<h1>Leverage</h1>
			<article>Leverage lets you control a large position.</article>
		</body></html>`))
	})
	mux.HandleFunc("/learn/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	now := time.Now()
	fetcher := NewScrapeFetcher(srv.Client())
	items, err := fetcher.Fetch(context.Background(), source.Request{
		Now:       now,
		URL:       srv.URL + "/learn",
		RateLimit: 100,
		Options: map[string]string{
			"linkSelector": "div.course a[href]",
			"maxPages":     "5",
		},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// Duplicate link deduped, broken page skipped, out-of-selector link ignored.
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "What is a Pip?" {
		t.Fatalf("unexpected title: %s", first.Title)
	}
	if !strings.Contains(first.Body, "smallest price move") {
		t.Fatalf("unexpected body: %s", first.Body)
	}
	if first.SourceType != domain.SourceArticle {
		t.Fatalf("unexpected source type: %s", first.SourceType)
	}
	if first.SourceURL != srv.URL+"/learn/pips" {
		t.Fatalf("unexpected url: %s", first.SourceURL)
	}
	if first.Status != domain.StatusPending {
		t.Fatalf("unexpected status: %s", first.Status)
	}
}

func TestScrapeFetchRespectsMaxPages(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/learn", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/learn/a">A</a>
			<a href="/learn/b">B</a>
			<a href="/learn/c">C</a>
		</body></html>`))
	})
	mux.HandleFunc("/learn/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Page</h1><article>Body text.</article></body></html>`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := NewScrapeFetcher(srv.Client())
	items, err := fetcher.Fetch(context.Background(), source.Request{
		Now:       time.Now(),
		URL:       srv.URL + "/learn",
		RateLimit: 100,
		Options:   map[string]string{"maxPages": "2"},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected maxPages cap of 2, got %d", len(items))
	}
}

func TestCollectLinks(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a href="/relative">Relative</a>
		<a href="https://other.example.com/abs">Absolute</a>
		<a href="mailto:someone@example.com">Mail</a>
		<a href="">Empty</a>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	base, _ := url.Parse("https://site.example.com/learn")
	links := collectLinks(doc, "a[href]", base, 10)

	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %v", len(links), links)
	}
	if links[0] != "https://site.example.com/relative" {
		t.Fatalf("relative link not resolved: %s", links[0])
	}
	if links[1] != "https://other.example.com/abs" {
		t.Fatalf("absolute link mangled: %s", links[1])
	}
}

func TestScrapePageWithoutContentFails(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/learn", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/learn/empty">Empty</a></body></html>`))
	})
	mux.HandleFunc("/learn/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Title only</h1></body></html>`))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := NewScrapeFetcher(srv.Client())
	items, err := fetcher.Fetch(context.Background(), source.Request{
		Now:       time.Now(),
		URL:       srv.URL + "/learn",
		RateLimit: 100,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("pages without article content must be skipped, got %d items", len(items))
	}
}
