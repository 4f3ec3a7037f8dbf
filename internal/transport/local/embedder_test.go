package local

import (
	"context"
	"math"
	"testing"

	"github.com/kailas-cloud/assessdex/internal/domain/vector"
)

func TestEmbedder_Deterministic(t *testing.T) {
	emb := NewEmbedder(Config{Dimensions: 64})

	a, err := emb.Embed(context.Background(), "Firewall rules allow SSH from anywhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := emb.Embed(context.Background(), "Firewall rules allow SSH from anywhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a.Embedding) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(a.Embedding))
	}
	for i := range a.Embedding {
		if a.Embedding[i] != b.Embedding[i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}
	if a.TotalTokens != 6 {
		t.Errorf("expected 6 tokens, got %d", a.TotalTokens)
	}
}

func TestEmbedder_UnitLength(t *testing.T) {
	emb := NewEmbedder(Config{})
	res, _ := emb.Embed(context.Background(), "database backups are not encrypted")

	if len(res.Embedding) != DefaultDimensions {
		t.Fatalf("expected default dims %d, got %d", DefaultDimensions, len(res.Embedding))
	}
	if m := vector.Magnitude(res.Embedding); math.Abs(m-1) > 1e-5 {
		t.Errorf("expected unit vector, magnitude %f", m)
	}
}

func TestEmbedder_SimilarTextScoresHigher(t *testing.T) {
	emb := NewEmbedder(Config{Dimensions: 256})
	ctx := context.Background()

	q, _ := emb.Embed(ctx, "encrypt database backups")
	near, _ := emb.Embed(ctx, "database backups must be encrypted at rest")
	far, _ := emb.Embed(ctx, "quarterly revenue grew in the retail segment")

	simNear := vector.Cosine(q.Embedding, near.Embedding)
	simFar := vector.Cosine(q.Embedding, far.Embedding)
	if simNear <= simFar {
		t.Errorf("expected related text to score higher: near=%f far=%f", simNear, simFar)
	}
}

func TestEmbedder_CaseAndPunctuationInsensitive(t *testing.T) {
	emb := NewEmbedder(Config{Dimensions: 128})
	a, _ := emb.Embed(context.Background(), "Critical: MFA disabled!")
	b, _ := emb.Embed(context.Background(), "critical mfa disabled")

	if sim := vector.Cosine(a.Embedding, b.Embedding); math.Abs(sim-1) > 1e-6 {
		t.Errorf("expected identical vectors, similarity %f", sim)
	}
}

func TestEmbedder_EmptyText(t *testing.T) {
	emb := NewEmbedder(Config{Dimensions: 16})
	res, err := emb.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vector.Magnitude(res.Embedding) != 0 || res.TotalTokens != 0 {
		t.Errorf("expected zero vector and no tokens, got %+v", res)
	}
}

func TestEmbedder_BatchEmbed(t *testing.T) {
	emb := NewEmbedder(Config{Dimensions: 32})
	ctx := context.Background()

	batch, err := emb.BatchEmbed(ctx, []string{"one two", "three"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Embeddings) != 2 || batch.TotalTokens != 3 {
		t.Fatalf("unexpected batch: %+v", batch)
	}

	single, _ := emb.Embed(ctx, "three")
	for i := range single.Embedding {
		if single.Embedding[i] != batch.Embeddings[1][i] {
			t.Fatal("batch vector differs from single embed")
		}
	}

	empty, err := emb.BatchEmbed(ctx, nil)
	if err != nil || len(empty.Embeddings) != 0 {
		t.Errorf("expected empty result, got %+v, %v", empty, err)
	}
}

func TestEmbedder_CanceledContext(t *testing.T) {
	emb := NewEmbedder(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := emb.Embed(ctx, "x"); err == nil {
		t.Error("expected error for canceled context")
	}
	if _, err := emb.BatchEmbed(ctx, []string{"x"}); err == nil {
		t.Error("expected error for canceled context")
	}
}
