package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"KnowledgeAgent/internal/ports"
)

// Ingest pulls content from every configured source and stages it for the
// processor. Fetching and processing run on independent cadences.
type Ingest struct {
	sources []ports.ContentSource
	staging ports.StagingStore
	logger  *slog.Logger
}

// NewIngest constructs the fetch-side entry point.
func NewIngest(sources []ports.ContentSource, staging ports.StagingStore, logger *slog.Logger) *Ingest {
	return &Ingest{sources: sources, staging: staging, logger: logger}
}

// RunFetchTick fetches from every source once and enqueues the results.
// A broken source is logged and skipped so the others still land; duplicate
// URLs inside the freshness window are absorbed silently.
func (i *Ingest) RunFetchTick(ctx context.Context, now time.Time) {
	for _, source := range i.sources {
		items, err := source.Fetch(ctx, now)
		if err != nil {
			i.logger.Error("fetch source", "source", source.Name(), "error", err)
			continue
		}

		staged, duplicates := 0, 0
		for _, item := range items {
			err := i.staging.Enqueue(ctx, item)
			switch {
			case errors.Is(err, ports.ErrDuplicateContent):
				duplicates++
			case err != nil:
				i.logger.Error("enqueue item", "source", source.Name(), "url", item.SourceURL, "error", err)
			default:
				staged++
			}
		}

		i.logger.Info("fetch tick",
			"source", source.Name(), "fetched", len(items), "staged", staged, "duplicates", duplicates)
	}
}
