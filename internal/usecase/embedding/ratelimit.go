package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/metrics"
)

// DefaultRateLimitBackoff is how long requests pause after the provider answered 429.
const DefaultRateLimitBackoff = 5 * time.Second

// RateLimitConfig holds the token bucket settings. RequestsPerSecond <= 0 disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	Backoff           time.Duration
}

// RateLimitedEmbedder throttles provider calls with a token bucket. One provider
// request (single or batch) takes one token. After the provider reports a rate
// limit, all callers pause for the backoff period.
type RateLimitedEmbedder struct {
	inner   domain.Embedder
	limiter *rate.Limiter
	backoff time.Duration

	mu      sync.Mutex
	retryAt time.Time
	now     func() time.Time
}

// NewRateLimitedEmbedder wraps inner with a token bucket.
func NewRateLimitedEmbedder(inner domain.Embedder, cfg RateLimitConfig) *RateLimitedEmbedder {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultRateLimitBackoff
	}
	return &RateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		backoff: backoff,
		now:     time.Now,
	}
}

// Embed waits for a token and delegates.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := r.wait(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}
	res, err := r.inner.Embed(ctx, text)
	if err != nil {
		r.observe(err)
		return domain.EmbeddingResult{}, fmt.Errorf("rate limited embed: %w", err)
	}
	return res, nil
}

// BatchEmbed waits for a single token and delegates the whole batch.
func (r *RateLimitedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if err := r.wait(ctx); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	res, err := domain.EmbedBatch(ctx, r.inner, texts)
	if err != nil {
		r.observe(err)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("rate limited batch embed: %w", err)
	}
	return res, nil
}

// HealthCheck bypasses the limiter.
func (r *RateLimitedEmbedder) HealthCheck(ctx context.Context) error {
	return domain.CheckHealth(ctx, r.inner) //nolint:wrapcheck // transparent decorator
}

func (r *RateLimitedEmbedder) wait(ctx context.Context) error {
	start := r.now()
	defer func() {
		metrics.EmbeddingRateLimitWaitSeconds.Observe(r.now().Sub(start).Seconds())
	}()

	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := retryAt.Sub(r.now()); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: backoff interrupted: %w", domain.ErrRateLimited, ctx.Err())
		case <-t.C:
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return nil
}

func (r *RateLimitedEmbedder) observe(err error) {
	if !errors.Is(err, domain.ErrRateLimited) {
		return
	}
	r.mu.Lock()
	r.retryAt = r.now().Add(r.backoff)
	r.mu.Unlock()
}
