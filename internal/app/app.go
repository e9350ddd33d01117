package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"KnowledgeAgent/internal/capability"
	"KnowledgeAgent/internal/config"
	"KnowledgeAgent/internal/infrastructure/embedding"
	"KnowledgeAgent/internal/infrastructure/fetcher"
	"KnowledgeAgent/internal/infrastructure/llm"
	"KnowledgeAgent/internal/infrastructure/scheduler"
	"KnowledgeAgent/internal/infrastructure/storage"
	"KnowledgeAgent/internal/infrastructure/telegram"
	"KnowledgeAgent/internal/logging"
	"KnowledgeAgent/internal/ports"
	"KnowledgeAgent/internal/server"
	"KnowledgeAgent/internal/source"
	"KnowledgeAgent/internal/usecase"
)

// Application wires configuration to adapters, use cases, and lifecycle.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pool      *pgxpool.Pool
	scheduler *usecase.Scheduler
	handler   http.Handler
}

// New builds the full runnable application. Without a reachable database it
// falls back to in-memory stores so local runs and demos still work.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	llmPolicy := capability.Policy{
		MaxRetries: uint64(cfg.LLM.MaxRetries),
		BaseDelay:  cfg.LLM.BackoffBase.Std(),
		Timeout:    cfg.LLM.Timeout.Std(),
	}
	embedPolicy := capability.Policy{
		MaxRetries: uint64(cfg.Embedding.MaxRetries),
		BaseDelay:  cfg.Embedding.BackoffBase.Std(),
		Timeout:    cfg.Embedding.Timeout.Std(),
	}

	completer, err := newCompleter(cfg.LLM, llmPolicy)
	if err != nil {
		return nil, fmt.Errorf("init completer: %w", err)
	}

	embedder, err := embedding.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimensions, embedPolicy)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	var (
		pool      *pgxpool.Pool
		staging   ports.StagingStore
		knowledge ports.KnowledgeStore
	)
	pool, err = storage.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		baseLogger.Warn("database unreachable, using in-memory stores", "error", err)
		staging = storage.NewMemoryStaging(cfg.Pipeline.RetryCeiling, cfg.Pipeline.FreshnessWindow.Std())
		knowledge = storage.NewMemoryKnowledge(cfg.Embedding.Dimensions)
	} else {
		if err := storage.InitSchema(ctx, pool, cfg.Embedding.Dimensions); err != nil {
			pool.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
		staging = storage.NewPostgresStaging(pool, cfg.Pipeline.RetryCeiling, cfg.Pipeline.FreshnessWindow.Std())
		knowledge = storage.NewPostgresKnowledge(pool, cfg.Embedding.Dimensions)
	}

	registry := source.NewRegistry()
	registry.Register(fetcher.NewNewsAPIFetcher(nil))
	registry.Register(fetcher.NewScrapeFetcher(nil))

	sources, err := source.FromConfig(registry, cfg.Sources, baseLogger.With("component", "source"))
	if err != nil {
		return nil, fmt.Errorf("bind sources: %w", err)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	ingest := usecase.NewIngest(sources, staging, baseLogger.With("component", "ingest"))
	processor := usecase.NewProcessor(staging, knowledge, completer, embedder, notifier,
		baseLogger.With("component", "processor"))
	retrieval := usecase.NewRetrieval(knowledge, embedder, cfg.Retrieval.TopK, cfg.Retrieval.ContextBudget,
		baseLogger.With("component", "retrieval"))
	synthesis := usecase.NewSynthesis(completer, cfg.Safety.AdvicePhrases,
		baseLogger.With("component", "synthesis"))
	direct := usecase.NewDirect(completer, synthesis, baseLogger.With("component", "direct"))

	sched := usecase.NewScheduler(
		scheduler.NewIntervalDriver(cfg.Pipeline.FetchInterval.Std(), true),
		scheduler.NewIntervalDriver(cfg.Pipeline.ProcessInterval.Std(), false),
		ingest, processor,
		baseLogger.With("component", "scheduler"),
	)

	srv := server.New(retrieval, synthesis, direct, cfg.Server.MaxInFlight,
		baseLogger.With("component", "server"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pool:      pool,
		scheduler: sched,
		handler:   srv.Handler(),
	}, nil
}

func newCompleter(cfg config.LLMConfig, policy capability.Policy) (ports.Completer, error) {
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAICompleter(cfg.BaseURL, cfg.Model, cfg.APIKey, policy), nil
	default:
		return llm.NewOllamaCompleter(cfg.BaseURL, cfg.Model, policy)
	}
}

// Run starts the pipeline cadences and serves HTTP until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.scheduler.Stop(stopCtx); err != nil {
			a.logger.Error("stop scheduler", "error", err)
		}
		if a.pool != nil {
			a.pool.Close()
		}
	}()

	return server.Run(ctx, a.cfg.Server.Addr, a.handler, a.logger.With("component", "http"))
}
