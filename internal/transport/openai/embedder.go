package openai

import (
	"context"
	"fmt"
	"slices"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/metrics"
)

// Config selects an OpenAI-compatible embeddings endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is both requested from the API and enforced on every returned vector.
	// Zero accepts whatever the model returns.
	Dimensions int
	User       string
	Provider   string
	Logger     *zap.Logger
}

// Embedder vectorizes findings and queries through /embeddings of OpenAI or a
// compatible gateway. It owns the request, latency and token metrics.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	logger     *zap.Logger
}

// NewEmbedder builds the API client. An empty BaseURL targets api.openai.com.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cfg.Provider,
		logger:     logger,
	}
}

// Model is the configured model name.
func (e *Embedder) Model() string { return string(e.model) }

// Dimensions is the enforced vector size, 0 when unchecked.
func (e *Embedder) Dimensions() int { return e.dimensions }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vectors, usage, err := e.call(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    vectors[0],
		PromptTokens: usage.PromptTokens,
		TotalTokens:  usage.TotalTokens,
	}, nil
}

// BatchEmbed sends all texts in one request and returns vectors in input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	vectors, usage, err := e.call(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   vectors,
		PromptTokens: usage.PromptTokens,
		TotalTokens:  usage.TotalTokens,
	}, nil
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%s health: %w", e.provider, classify(err))
	}
	return nil
}

// call performs one /embeddings request and validates the reply against input.
func (e *Embedder) call(ctx context.Context, input []string) ([][]float32, openai.Usage, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
		Dimensions:     e.dimensions,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		e.failed("api_error")
		e.logger.Debug("Embeddings request failed",
			zap.String("provider", e.provider),
			zap.Int("inputs", len(input)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, openai.Usage{}, classify(err)
	}

	vectors, kind, err := e.unpack(resp, len(input))
	if err != nil {
		e.failed(kind)
		return nil, openai.Usage{}, err
	}

	labels := []string{e.provider, string(e.model)}
	metrics.EmbeddingRequestsTotal.WithLabelValues(append(labels, "success")...).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(labels...).Observe(elapsed.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(append(labels, "prompt")...).Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(append(labels, "total")...).Add(float64(resp.Usage.TotalTokens))
	}
	return vectors, resp.Usage, nil
}

// unpack orders vectors by index and checks count and size. kind labels the failure metric.
func (e *Embedder) unpack(resp openai.EmbeddingResponse, want int) ([][]float32, string, error) {
	switch {
	case len(resp.Data) == 0:
		return nil, "empty_response", fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	case len(resp.Data) != want:
		return nil, "count_mismatch", fmt.Errorf("embedding response has %d vectors for %d texts: %w",
			len(resp.Data), want, domain.ErrEmbeddingProviderError)
	}

	data := slices.Clone(resp.Data)
	slices.SortFunc(data, func(a, b openai.Embedding) int { return a.Index - b.Index })
	vectors := make([][]float32, len(data))
	for i, d := range data {
		if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
			return nil, "dimension_mismatch", fmt.Errorf("vector %d has %d dimensions, want %d: %w",
				d.Index, len(d.Embedding), e.dimensions, domain.ErrEmbeddingProviderError)
		}
		vectors[i] = d.Embedding
	}
	return vectors, "", nil
}

func (e *Embedder) failed(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, string(e.model), kind).Inc()
}
