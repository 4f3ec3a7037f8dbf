package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/metrics"
)

// DefaultMaxAPIBatchSize caps the texts sent in one provider request.
const DefaultMaxAPIBatchSize = 256

// BudgetChecker is the slice of BudgetTracker the metered embedder needs.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// MeteredEmbedder is the outer layer of the chain: it admits calls against the
// token budget, charges what they spent and splits batches into provider-sized requests.
// Request, latency and token metrics belong to the provider transport.
type MeteredEmbedder struct {
	inner    domain.Embedder
	budget   BudgetChecker
	provider string
	model    string
	maxBatch int
	logger   *zap.Logger
}

// NewMeteredEmbedder wraps inner. budget may be nil.
func NewMeteredEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, logger *zap.Logger,
) *MeteredEmbedder {
	return &MeteredEmbedder{
		inner:    inner,
		budget:   budget,
		provider: provider,
		model:    model,
		maxBatch: DefaultMaxAPIBatchSize,
		logger:   logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// WithMaxBatchSize ignores n <= 0.
func (m *MeteredEmbedder) WithMaxBatchSize(n int) *MeteredEmbedder {
	if n > 0 {
		m.maxBatch = n
	}
	return m
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (m *MeteredEmbedder) HealthCheck(ctx context.Context) error {
	return domain.CheckHealth(ctx, m.inner) //nolint:wrapcheck // transparent decorator
}

// Embed vectorizes one text, typically a search query.
func (m *MeteredEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := m.admit(ctx, 1, 0); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	res, err := m.inner.Embed(ctx, text)
	if err != nil {
		m.logger.Error("Embedding failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	m.charge(res.TotalTokens)

	m.logger.Debug("Embedded text",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed vectorizes the chunks of a document in slices of at most maxBatch texts.
// The budget is checked and charged per slice, so a long document stops at the
// slice that crosses the cap.
func (m *MeteredEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for offset := 0; offset < len(texts); offset += m.maxBatch {
		slice := texts[offset:min(offset+m.maxBatch, len(texts))]
		if err := m.admit(ctx, len(slice), offset); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}

		res, err := domain.EmbedBatch(ctx, m.inner, slice)
		if err != nil {
			m.logger.Error("Batch embedding failed",
				zap.Int("offset", offset), zap.Int("size", len(slice)), zap.Error(err))
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed at %d: %w", offset, err)
		}
		m.charge(res.TotalTokens)

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	m.logger.Debug("Embedded batch",
		zap.Duration("duration", time.Since(start)),
		zap.Int("texts", len(texts)),
		zap.Int("requests", (len(texts)+m.maxBatch-1)/m.maxBatch),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// admit rejects the call when the budget is spent.
func (m *MeteredEmbedder) admit(ctx context.Context, texts, offset int) error {
	if m.budget == nil {
		return nil
	}
	if err := m.budget.Check(ctx); err != nil {
		m.logger.Warn("Embedding refused by budget",
			zap.Int("texts", texts), zap.Int("offset", offset), zap.Error(err))
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

// charge records spent tokens and refreshes the remaining-budget gauges.
func (m *MeteredEmbedder) charge(tokens int) {
	if m.budget == nil || tokens <= 0 {
		return
	}
	m.budget.Record(int64(tokens))
	gauge := metrics.EmbeddingBudgetTokensRemaining
	gauge.WithLabelValues(m.provider, "daily").Set(float64(m.budget.RemainingDaily()))
	gauge.WithLabelValues(m.provider, "monthly").Set(float64(m.budget.RemainingMonthly()))
}
