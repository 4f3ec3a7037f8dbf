package embcache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
)

// store is the persistent layer, usually the document store's KV side.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures the cache layers. LRUSize 0 disables the in-process layer
// and a nil store disables the persistent one.
type Options struct {
	// Namespace separates vectors of different provider, model and dimension
	// combinations, e.g. "openai:text-embedding-3-small:1536".
	Namespace string
	// KeyPrefix prefixes persistent keys; empty means domain.KeyPrefix.
	KeyPrefix string
	LRUSize   int
	LRUTTL    time.Duration
	// StoreTTL bounds persistent entries; zero keeps them forever.
	StoreTTL time.Duration
}

// CachedEmbedder serves repeated texts (re-uploaded reports, rebuilds, common
// queries) from cache. Hits report zero tokens.
type CachedEmbedder struct {
	inner      domain.Embedder
	lru        *expirable.LRU[string, []float32]
	store      store
	opts       Options
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New wraps inner. cacheTotal may be nil; otherwise it needs "layer" and "result" labels.
func New(
	inner domain.Embedder,
	s store,
	opts Options,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = domain.KeyPrefix
	}
	c := &CachedEmbedder{
		inner:      inner,
		store:      s,
		opts:       opts,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
	if opts.LRUSize > 0 {
		c.lru = expirable.NewLRU[string, []float32](opts.LRUSize, nil, opts.LRUTTL)
	}
	return c
}

// Embed implements domain.Embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)
	if vec, ok := c.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.remember(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed answers cached texts locally and sends each distinct miss to the
// inner embedder once, so repeated chunks in one document cost a single embedding.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := make([][]float32, len(texts))
	waiting := make(map[string][]int)
	var missKeys, missTexts []string
	for i, text := range texts {
		key := c.cacheKey(text)
		if pos, dup := waiting[key]; dup {
			waiting[key] = append(pos, i)
			continue
		}
		if vec, ok := c.lookup(ctx, key); ok {
			out[i] = vec
			continue
		}
		waiting[key] = []int{i}
		missKeys = append(missKeys, key)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: out}, nil
	}

	res, err := c.embedMisses(ctx, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	for j, key := range missKeys {
		for _, i := range waiting[key] {
			out[i] = res.Embeddings[j]
		}
		c.remember(ctx, key, res.Embeddings[j])
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

func (c *CachedEmbedder) embedMisses(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := domain.EmbedBatch(ctx, c.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d uncached texts: %w", len(texts), err)
	}
	if len(res.Embeddings) != len(texts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("got %d embeddings for %d texts: %w",
			len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}
	return res, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	return domain.CheckHealth(ctx, c.inner) //nolint:wrapcheck // transparent decorator
}
