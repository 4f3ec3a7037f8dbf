package assessdex

import "context"

// Embedder turns finding text into a vector. Supply one with WithEmbedder to
// use a provider other than the built-in local and OpenAI-compatible ones.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder is optional. When the Embedder also implements it, ingest and
// rebuild send all chunks of a document in one call instead of one call per chunk.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker is optional. When implemented, Health reports the embedder's state.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the tokens the provider billed for it.
// Leave the token counts at zero for providers that do not bill per token.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds one vector per input text, in input order.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}
