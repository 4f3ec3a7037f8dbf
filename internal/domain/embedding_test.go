package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// --- Mocks ---

type stubEmbedder struct {
	result    EmbeddingResult
	err       error
	got       []string
	healthErr error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batchResult BatchEmbeddingResult
	batchErr    error
	batchTexts  []string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batchTexts = texts
	return s.batchResult, s.batchErr
}

type stubHealthEmbedder struct {
	stubEmbedder
}

func (s *stubHealthEmbedder) HealthCheck(_ context.Context) error { return s.healthErr }

// --- Tests ---

func TestBatchFallback(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2}, PromptTokens: 5, TotalTokens: 5}}
	res, err := BatchFallback(context.Background(), inner, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 || res.TotalTokens != 15 || res.PromptTokens != 15 {
		t.Errorf("unexpected result: %+v", res)
	}

	empty, err := BatchFallback(context.Background(), inner, nil)
	if err != nil || len(empty.Embeddings) != 0 {
		t.Errorf("expected empty result, got %+v, %v", empty, err)
	}

	failing := &stubEmbedder{err: errors.New("fail")}
	if _, err := BatchFallback(context.Background(), failing, []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("topK", "must be positive")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("expected ErrInvalidInput in chain")
	}
	if err.Error() != "invalid input: topK: must be positive" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestGenerationResult_Cause(t *testing.T) {
	quota := fmt.Errorf("daily: %w", ErrEmbeddingQuotaExceeded)
	provider := fmt.Errorf("502: %w", ErrEmbeddingProviderError)

	tests := []struct {
		name string
		g    GenerationResult
		want []error
	}{
		{"message only", GenerationResult{ErrorMessage: "boom"}, []error{ErrEmbeddingProviderError}},
		{"quota cause", GenerationResult{ErrorMessage: "x", Err: quota}, []error{ErrEmbeddingProviderError, ErrEmbeddingQuotaExceeded}},
		{"provider cause", GenerationResult{ErrorMessage: "x", Err: provider}, []error{ErrEmbeddingProviderError}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.g.Cause()
			for _, want := range tc.want {
				if !errors.Is(err, want) {
					t.Errorf("expected %v in chain of %v", want, err)
				}
			}
		})
	}
}

func TestEmbedBatch_Dispatch(t *testing.T) {
	native := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{Embeddings: [][]float32{{1}, {2}}, TotalTokens: 4}}
	res, err := EmbedBatch(context.Background(), native, []string{"a", "b"})
	if err != nil || res.TotalTokens != 4 || len(native.got) != 0 {
		t.Errorf("native batch not used: %+v, %v, single calls %v", res, err, native.got)
	}

	single := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, TotalTokens: 3}}
	res, err = EmbedBatch(context.Background(), single, []string{"a", "b"})
	if err != nil || res.TotalTokens != 6 || len(single.got) != 2 {
		t.Errorf("fallback not used: %+v, %v", res, err)
	}
}

func TestCheckHealth(t *testing.T) {
	down := errors.New("down")
	if err := CheckHealth(context.Background(), &stubHealthEmbedder{stubEmbedder{healthErr: down}}); !errors.Is(err, down) {
		t.Errorf("CheckHealth = %v, want %v", err, down)
	}
	if err := CheckHealth(context.Background(), &stubEmbedder{}); err != nil {
		t.Errorf("CheckHealth without support = %v, want nil", err)
	}
}
