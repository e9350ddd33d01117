package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"KnowledgeAgent/internal/config"
	"KnowledgeAgent/internal/domain"
	"KnowledgeAgent/internal/ports"
)

// Request carries all parameters required to execute one fetch.
type Request struct {
	Now        time.Time
	SourceName string
	URL        string
	RateLimit  float64
	Options    map[string]string
}

// Strategy captures a single fetch implementation (news API poll, site
// scrape, etc.). Strategies are stateless; per-source tuning arrives in the
// request.
type Strategy interface {
	Kind() string
	Fetch(ctx context.Context, req Request) ([]domain.RawContentItem, error)
}

// Registry keeps a mapping from strategy kinds to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[strategy.Kind()] = strategy
}

// Resolve returns a strategy by kind or an error if it is absent.
func (r *Registry) Resolve(kind string) (Strategy, error) {
	if strategy, ok := r.strategies[kind]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("source strategy %s is not registered", kind)
}

// FromConfig binds each configured source to its registered strategy.
func FromConfig(reg *Registry, cfgs []config.SourceConfig, logger *slog.Logger) ([]ports.ContentSource, error) {
	if reg == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}

	sources := make([]ports.ContentSource, 0, len(cfgs))
	for _, cfg := range cfgs {
		strategy, err := reg.Resolve(cfg.Kind)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
		}
		sources = append(sources, &configured{
			strategy: strategy,
			cfg:      cfg,
			logger:   logger,
		})
	}

	return sources, nil
}

// configured adapts a (strategy, config) pair to ports.ContentSource.
type configured struct {
	strategy Strategy
	cfg      config.SourceConfig
	logger   *slog.Logger
}

var _ ports.ContentSource = (*configured)(nil)

func (c *configured) Name() string {
	return c.cfg.Name
}

func (c *configured) Fetch(ctx context.Context, now time.Time) ([]domain.RawContentItem, error) {
	req := Request{
		Now:        now,
		SourceName: c.cfg.Name,
		URL:        c.cfg.URL,
		RateLimit:  c.cfg.RateLimit,
		Options:    c.cfg.Options,
	}

	items, err := c.strategy.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch source %s: %w", c.cfg.Name, err)
	}

	if c.logger != nil {
		c.logger.Debug("source produced items", "source", c.cfg.Name, "count", len(items))
	}
	return items, nil
}
