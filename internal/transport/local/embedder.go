// Package local is an offline embedding provider based on feature hashing.
// Vectors are deterministic for a given text and dimension count, so it serves
// air-gapped deployments and tests without network calls.
package local

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/vector"
	"github.com/kailas-cloud/assessdex/internal/metrics"
)

// DefaultDimensions is used when Config.Dimensions is zero.
const DefaultDimensions = 384

const (
	providerName = "local"
	modelName    = "feature-hash-v1"

	wordWeight    = 1.0
	trigramWeight = 0.5
)

// Config for the local embedder.
type Config struct {
	Dimensions int
	Logger     *zap.Logger
}

// Embedder hashes word and character-trigram features into a fixed-size vector.
// Safe for concurrent use.
type Embedder struct {
	dims   int
	logger *zap.Logger
}

// NewEmbedder creates a local embedder.
func NewEmbedder(cfg Config) *Embedder {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{dims: dims, logger: logger}
}

// Embed implements domain.Embedder. Token usage is the word count.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // caller context
	}

	start := time.Now()
	vec, tokens := e.vectorize(text)
	e.observe(start, tokens)

	return domain.EmbeddingResult{Embedding: vec, PromptTokens: tokens, TotalTokens: tokens}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return domain.BatchEmbeddingResult{}, err //nolint:wrapcheck // caller context
		}
		vec, tokens := e.vectorize(text)
		out.Embeddings[i] = vec
		out.PromptTokens += tokens
		out.TotalTokens += tokens
	}
	e.observe(start, out.TotalTokens)

	return out, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

// Model returns the feature hashing scheme name.
func (e *Embedder) Model() string { return modelName }

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int { return e.dims }

func (e *Embedder) vectorize(text string) ([]float32, int) {
	vec := make([]float32, e.dims)
	words := tokenize(text)
	for _, w := range words {
		e.add(vec, "w:"+w, wordWeight)
		padded := []rune("_" + w + "_")
		for i := 0; i+3 <= len(padded); i++ {
			e.add(vec, "t:"+string(padded[i:i+3]), trigramWeight)
		}
	}
	vector.Normalize(vec)
	return vec, len(words)
}

// add folds one feature into vec. The top hash bit picks the sign so that
// collisions cancel out on average instead of accumulating.
func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	idx := h % uint64(e.dims)
	if h>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func (e *Embedder) observe(start time.Time, tokens int) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, modelName, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, modelName).Observe(time.Since(start).Seconds())
	if tokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(providerName, modelName, "total").Add(float64(tokens))
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
