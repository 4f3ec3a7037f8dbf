package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/logger"
)

// Generator defaults.
const (
	DefaultGenerateTimeout     = 30 * time.Second
	DefaultGenerateConcurrency = 4
)

// Generator turns texts into GenerationResults. Provider failures never escape
// as errors: they become Success=false results so callers can keep going.
type Generator struct {
	embedder    domain.Embedder
	timeout     time.Duration
	concurrency int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithTimeout bounds every provider call.
func WithTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithConcurrency bounds parallel per-text calls when a batch has to be split up.
func WithConcurrency(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// NewGenerator creates a soft-failure generator over an embedder chain.
func NewGenerator(embedder domain.Embedder, opts ...GeneratorOption) *Generator {
	g := &Generator{
		embedder:    embedder,
		timeout:     DefaultGenerateTimeout,
		concurrency: DefaultGenerateConcurrency,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate embeds one text.
func (g *Generator) Generate(ctx context.Context, text string) domain.GenerationResult {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	res, err := g.embedder.Embed(ctx, text)
	elapsed := time.Since(start)

	if err == nil && len(res.Embedding) == 0 {
		err = fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingProviderError)
	}
	if err != nil {
		return failure(err, elapsed)
	}
	return domain.GenerationResult{
		Success:        true,
		Vector:         res.Embedding,
		TokenCount:     res.TotalTokens,
		ProcessingTime: elapsed,
	}
}

// GenerateBatch embeds texts, preserving order. A single batch request is tried
// first; if it fails as a whole, every text is retried on its own so one bad
// input cannot sink its siblings.
func (g *Generator) GenerateBatch(ctx context.Context, texts []string) []domain.GenerationResult {
	if len(texts) == 0 {
		return nil
	}

	if be, ok := g.embedder.(domain.BatchEmbedder); ok && len(texts) > 1 {
		results, err := g.batch(ctx, be, texts)
		if err == nil {
			return results
		}
		if ctx.Err() != nil {
			out := make([]domain.GenerationResult, len(texts))
			for i := range out {
				out[i] = failure(ctx.Err(), 0)
			}
			return out
		}
		logger.FromContext(ctx).Warn("Batch embedding failed, retrying per text",
			zap.Int("batch_size", len(texts)),
			zap.Error(err),
		)
	}

	return g.each(ctx, texts)
}

func (g *Generator) batch(ctx context.Context, be domain.BatchEmbedder, texts []string) ([]domain.GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	res, err := be.BatchEmbed(ctx, texts)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("batch embed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("batch returned %d vectors for %d texts: %w",
			len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
	}

	tokens := splitTokens(res.TotalTokens, texts)
	out := make([]domain.GenerationResult, len(texts))
	for i, vec := range res.Embeddings {
		if len(vec) == 0 {
			out[i] = failure(fmt.Errorf("empty embedding: %w", domain.ErrEmbeddingProviderError), elapsed)
			continue
		}
		out[i] = domain.GenerationResult{
			Success:        true,
			Vector:         vec,
			TokenCount:     tokens[i],
			ProcessingTime: elapsed,
		}
	}
	return out, nil
}

func (g *Generator) each(ctx context.Context, texts []string) []domain.GenerationResult {
	out := make([]domain.GenerationResult, len(texts))

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, text := range texts {
		eg.Go(func() error {
			out[i] = g.Generate(ctx, text)
			return nil
		})
	}
	_ = eg.Wait()

	return out
}

// splitTokens spreads a batch token total over texts proportionally to their length.
func splitTokens(total int, texts []string) []int {
	out := make([]int, len(texts))
	if total <= 0 {
		return out
	}
	lengths := make([]int, len(texts))
	sum := 0
	for i, t := range texts {
		lengths[i] = utf8.RuneCountInString(t)
		sum += lengths[i]
	}
	if sum == 0 {
		out[len(out)-1] = total
		return out
	}
	assigned := 0
	for i := range texts {
		out[i] = total * lengths[i] / sum
		assigned += out[i]
	}
	out[len(out)-1] += total - assigned
	return out
}

func failure(err error, elapsed time.Duration) domain.GenerationResult {
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "embedding timed out: " + msg
	}
	return domain.GenerationResult{
		Success:        false,
		ProcessingTime: elapsed,
		ErrorMessage:   msg,
		Err:            err,
	}
}
