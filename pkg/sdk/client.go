package assessdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/assessdex/internal/db"
	"github.com/kailas-cloud/assessdex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/assessdex/internal/db/redis"
	"github.com/kailas-cloud/assessdex/internal/db/sqlite"
	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	dominsight "github.com/kailas-cloud/assessdex/internal/domain/insight"
	"github.com/kailas-cloud/assessdex/internal/domain/search/request"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
	documentrepo "github.com/kailas-cloud/assessdex/internal/repository/document"
	"github.com/kailas-cloud/assessdex/internal/transport/local"
	documentuc "github.com/kailas-cloud/assessdex/internal/usecase/document"
	embeddinguc "github.com/kailas-cloud/assessdex/internal/usecase/embedding"
	enhanceuc "github.com/kailas-cloud/assessdex/internal/usecase/enhance"
	healthuc "github.com/kailas-cloud/assessdex/internal/usecase/health"
	insightuc "github.com/kailas-cloud/assessdex/internal/usecase/insight"
	searchuc "github.com/kailas-cloud/assessdex/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, replaced in tests.
type documentUseCase interface {
	Ingest(ctx context.Context, req documentuc.IngestRequest) (documentuc.IngestResult, error)
	Get(ctx context.Context, documentID string) ([]domdoc.Embedding, error)
	Delete(ctx context.Context, documentID string) (bool, error)
	Stats(ctx context.Context) (documentuc.Stats, error)
	Rebuild(ctx context.Context) (documentuc.RebuildReport, error)
	TestEmbedding(ctx context.Context, text string) (documentuc.TestEmbeddingResult, error)
}

type searchUseCase interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
	Similar(ctx context.Context, req *request.SimilarRequest) ([]result.Result, error)
}

type insightUseCase interface {
	FindInsights(ctx context.Context, assessmentID int64, moduleType string, maxInsights int) ([]dominsight.Insight, error)
}

type enhanceUseCase interface {
	Enhance(ctx context.Context, req enhanceuc.Request) (enhanceuc.Result, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the assessdex SDK entry point. Safe for concurrent use.
type Client struct {
	store     db.Store
	documents documentUseCase
	search    searchUseCase
	insights  insightUseCase
	enhance   enhanceUseCase
	health    healthUseCase
	obs       *observer
}

// New creates a Client and connects to the store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: driverMemory}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("assessdex: store not ready: %w", err)
	}

	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case driverMemory:
		return memory.NewStore(), nil
	case driverSQLite:
		s, err := sqlite.NewStore(cfg.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("assessdex: open sqlite store: %w", err)
		}
		return s, nil
	case driverValkey, driverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("assessdex: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("assessdex: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	prefix := cfg.keyPrefix
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	maxChunk, overlap := cfg.maxChunkSize, cfg.overlap
	if maxChunk <= 0 {
		maxChunk = chunk.DefaultMaxChunkSize
	}
	if overlap <= 0 {
		overlap = chunk.DefaultOverlapSize
	}
	splitter, err := chunk.NewSplitter(maxChunk, overlap)
	if err != nil {
		return nil, fmt.Errorf("assessdex: chunking: %w", err)
	}

	emb := wrapEmbedder(cfg)
	repo := documentrepo.New(store, prefix)

	docSvc := documentuc.New(repo, embeddinguc.NewGenerator(emb), splitter)
	if cfg.maxUploadBytes > 0 {
		docSvc = docSvc.WithMaxUploadBytes(cfg.maxUploadBytes)
	}
	searchSvc := searchuc.New(repo, emb)

	var checker healthuc.ProviderChecker
	if hc, ok := emb.(domain.HealthChecker); ok {
		checker = hc
	}

	return &Client{
		store:     store,
		documents: docSvc,
		search:    searchSvc,
		insights:  insightuc.New(repo, insightuc.Config{}),
		enhance:   enhanceuc.New(searchSvc),
		health:    healthuc.New(store, checker),
		obs:       obs,
	}, nil
}

// wrapEmbedder adapts the public embedder, keeping batch and health support visible.
func wrapEmbedder(cfg *clientConfig) domain.Embedder {
	if cfg.embedder == nil {
		return local.NewEmbedder(local.Config{Dimensions: cfg.vectorDimensions})
	}
	base := &embedderAdapter{inner: cfg.embedder}
	if _, ok := cfg.embedder.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: base}
	}
	return base
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(opPing, start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// embedderAdapter wraps the public Embedder to satisfy domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", asProviderError(err))
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// HealthCheck probes the wrapped embedder when it exposes HealthCheck(ctx) error.
func (a *embedderAdapter) HealthCheck(ctx context.Context) error {
	if hc, ok := a.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent adapter
	}
	return nil
}

type batchEmbedderAdapter struct {
	*embedderAdapter
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.inner.(BatchEmbedder).BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", asProviderError(err))
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// asProviderError marks foreign errors as provider failures unless they already carry a sentinel.
func asProviderError(err error) error {
	for _, sentinel := range []error{
		domain.ErrEmbeddingProviderError,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrRateLimited,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
}
