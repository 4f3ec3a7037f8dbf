package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/config"
	"github.com/kailas-cloud/assessdex/internal/db"
	"github.com/kailas-cloud/assessdex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/assessdex/internal/db/redis"
	"github.com/kailas-cloud/assessdex/internal/db/sqlite"
	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/chunk"
	"github.com/kailas-cloud/assessdex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/assessdex/internal/repository/budget"
	documentrepo "github.com/kailas-cloud/assessdex/internal/repository/document"
	"github.com/kailas-cloud/assessdex/internal/repository/embcache"
	"github.com/kailas-cloud/assessdex/internal/transport/local"
	openaiEmb "github.com/kailas-cloud/assessdex/internal/transport/openai"
	documentuc "github.com/kailas-cloud/assessdex/internal/usecase/document"
	embeddinguc "github.com/kailas-cloud/assessdex/internal/usecase/embedding"
	enhanceuc "github.com/kailas-cloud/assessdex/internal/usecase/enhance"
	healthuc "github.com/kailas-cloud/assessdex/internal/usecase/health"
	insightuc "github.com/kailas-cloud/assessdex/internal/usecase/insight"
	searchuc "github.com/kailas-cloud/assessdex/internal/usecase/search"
)

const (
	budgetDailyTTL   = 48 * time.Hour
	budgetMonthlyTTL = 62 * 24 * time.Hour
)

// app is the composition root shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  db.Store

	documents *documentuc.Service
	search    *searchuc.Service
	insights  *insightuc.Service
	enhance   *enhanceuc.Service
	health    *healthuc.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := openStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("store not ready: %w", err)
	}
	logger.Info("Connected to store", zap.String("driver", cfg.Database.Driver))

	metrics.Register()

	// Pass a nil interface, not a typed nil pointer, when no budget is configured.
	var budgetChecker embeddinguc.BudgetChecker
	budget := newBudget(ctx, cfg, store, logger)
	if budget != nil {
		budgetChecker = budget
	}

	base, model := newProvider(cfg.Embedding, logger)
	shared := buildEmbedder(cfg, base, model, store, budgetChecker, logger)
	docEmbedder := withInstruction(shared, cfg.Embedding.DocumentInstruction)
	queryEmbedder := withInstruction(shared, cfg.Embedding.QueryInstruction)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	splitter, err := chunk.NewSplitter(cfg.Chunking.MaxChunkSize, cfg.Chunking.Overlap,
		chunk.WithBoundaryWindow(cfg.Chunking.BoundaryWindow))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("chunking: %w", err)
	}

	repo := documentrepo.New(store, cfg.Storage.KeyPrefix)
	gen := embeddinguc.NewGenerator(docEmbedder,
		embeddinguc.WithTimeout(cfg.EmbeddingTimeout()),
		embeddinguc.WithConcurrency(cfg.Embedding.Concurrency),
	)

	documents := documentuc.New(repo, gen, splitter).
		WithMaxUploadBytes(cfg.Ingest.MaxUploadBytes).
		WithRebuildConcurrency(cfg.Rebuild.Concurrency).
		WithProvider(documentuc.ProviderInfo{
			Provider:   cfg.Embedding.Provider,
			Model:      model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	if budget != nil {
		documents.WithBudget(budget)
	}
	search := searchuc.New(repo, queryEmbedder).WithPreviewLength(cfg.Search.PreviewLength)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		documents: documents,
		search:    search,
		insights: insightuc.New(repo, insightuc.Config{
			Threshold:       cfg.Insights.Threshold,
			PerChunkTopK:    cfg.Insights.PerChunkTopK,
			BandWidth:       cfg.Insights.BandWidth,
			DefaultMax:      cfg.Insights.DefaultMax,
			MaxSourceChunks: cfg.Insights.MaxSourceChunks,
		}).WithPreviewLength(cfg.Search.PreviewLength),
		enhance: enhanceuc.New(search),
		health:  healthuc.New(store, embeddingHealthChecker{embedder: queryEmbedder}),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverRedis, config.DriverValkey:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Driver, err)
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, nil
	case config.DriverMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// newBudget returns nil when no token limit is configured.
func newBudget(ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger) *embeddinguc.BudgetTracker {
	b := cfg.Embedding.Budget
	if b.DailyTokenLimit <= 0 && b.MonthlyTokenLimit <= 0 {
		return nil
	}
	action := embeddinguc.BudgetActionWarn
	if b.Action == string(embeddinguc.BudgetActionReject) {
		action = embeddinguc.BudgetActionReject
	}
	return embeddinguc.NewBudgetTracker(cfg.Embedding.Provider, b.DailyTokenLimit, b.MonthlyTokenLimit, action, logger).
		WithKeyPrefix(cfg.Storage.KeyPrefix).
		WithStore(ctx, budgetrepo.New(store, budgetDailyTTL, budgetMonthlyTTL))
}

func newProvider(cfg config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, string) {
	if cfg.Provider == config.ProviderOpenAI {
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		}), cfg.Model
	}
	e := local.NewEmbedder(local.Config{Dimensions: cfg.Dimensions, Logger: logger})
	return e, e.Model()
}

// buildEmbedder assembles provider -> rate limit -> cache -> metered.
// Instructions are applied outside so cache keys include them.
func buildEmbedder(
	cfg config.Config,
	base domain.Embedder,
	model string,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	e := cfg.Embedding
	limited := embeddinguc.NewRateLimitedEmbedder(base, embeddinguc.RateLimitConfig{
		RequestsPerSecond: e.RateLimit.RequestsPerSecond,
		Burst:             e.RateLimit.Burst,
		Backoff:           time.Duration(e.RateLimit.BackoffSec) * time.Second,
	})

	var cacheStore db.KVStore
	if e.Cache.Persistent {
		cacheStore = store
	}
	cached := embcache.New(limited, cacheStore, embcache.Options{
		Namespace: fmt.Sprintf("%s:%s:%d", e.Provider, model, e.Dimensions),
		KeyPrefix: cfg.Storage.KeyPrefix,
		LRUSize:   e.Cache.LRUSize,
		LRUTTL:    time.Duration(e.Cache.LRUTTLSec) * time.Second,
		StoreTTL:  time.Duration(e.Cache.StoreTTLH) * time.Hour,
	}, metrics.EmbeddingCacheTotal, logger)

	return embeddinguc.NewMeteredEmbedder(cached, e.Provider, model, budget, logger).
		WithMaxBatchSize(e.BatchSize)
}

// embeddingHealthChecker probes the chain when it supports health checks.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func (h embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if err := domain.CheckHealth(ctx, h.embedder); err != nil {
		return fmt.Errorf("embedding health check: %w", err)
	}
	return nil
}

func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}
