package domain

import (
	"context"
	"fmt"
)

// InstructionEmbedder prefixes every text with a fixed instruction, for models
// that embed queries and passages differently ("query: ", "passage: ").
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder wraps inner. An empty instruction passes texts through unchanged.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed with instruction: %w", err)
	}
	return res, nil
}

func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	if e.instruction != "" {
		prefixed := make([]string, len(texts))
		for i, t := range texts {
			prefixed[i] = e.instruction + t
		}
		texts = prefixed
	}
	res, err := EmbedBatch(ctx, e.inner, texts)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("batch embed with instruction: %w", err)
	}
	return res, nil
}

func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	return CheckHealth(ctx, e.inner)
}
