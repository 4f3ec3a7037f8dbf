package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Embedder turns text into a vector. Every layer of the embedding chain
// (provider, rate limit, cache, budget) implements it.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes many texts per call. Embeddings come back in input order.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can probe their provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the tokens the provider billed for it.
// Cache hits report zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds one vector per input text and the summed usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// GenerationResult is the soft-failure outcome of embedding one text.
// Success=false always comes with an empty Vector and a populated ErrorMessage.
type GenerationResult struct {
	Success        bool
	Vector         []float32
	TokenCount     int
	ProcessingTime time.Duration
	ErrorMessage   string
	// Err is the underlying cause, kept for classification (quota, rate limit).
	Err error
}

// Cause returns an error for a failed generation that matches
// ErrEmbeddingProviderError and, when known, the underlying cause.
func (g GenerationResult) Cause() error {
	if g.Err == nil {
		return fmt.Errorf("%s: %w", g.ErrorMessage, ErrEmbeddingProviderError)
	}
	if errors.Is(g.Err, ErrEmbeddingProviderError) {
		return g.Err
	}
	return fmt.Errorf("%w: %w", ErrEmbeddingProviderError, g.Err)
}

// EmbedBatch sends texts through e's batch endpoint when it has one and falls
// back to one Embed call per text otherwise.
func EmbedBatch(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if be, ok := e.(BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts) //nolint:wrapcheck // callers add context
	}
	return BatchFallback(ctx, e, texts)
}

// BatchFallback calls Embed once per text, stopping at the first failure.
func BatchFallback(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("text %d of %d: %w", i+1, len(texts), err)
		}
		out.Embeddings = append(out.Embeddings, res.Embedding)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// CheckHealth runs e's health check, treating embedders without one as healthy.
func CheckHealth(ctx context.Context, e Embedder) error {
	if hc, ok := e.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // decorators stay transparent
	}
	return nil
}
