package document

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
)

func TestStats(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{})
	svc.WithProvider(ProviderInfo{Provider: "local", Model: "feature-hash-v1", Dimensions: 384}).
		WithBudget(fakeBudget{})

	a := ingest(t, svc, longText, 1, "security")
	ingest(t, svc, "short text", 2, "data")

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalDocuments != 2 || st.TotalEmbeddings != a.ChunksEmbedded+1 {
		t.Errorf("unexpected totals: docs=%d embeddings=%d", st.TotalDocuments, st.TotalEmbeddings)
	}
	if st.ByModuleType[module.Security] != a.ChunksEmbedded || st.ByModuleType[module.Data] != 1 {
		t.Errorf("unexpected module counts: %v", st.ByModuleType)
	}
	if ids := st.AssessmentIDs(); len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("AssessmentIDs() = %v", ids)
	}
	if st.VectorDimensions != 3 {
		t.Errorf("dimensions should come from stored vectors, got %d", st.VectorDimensions)
	}
	if st.LastRebuildAt != nil {
		t.Error("no rebuild has run yet")
	}
	if st.Budget == nil || st.Budget.DailyUsed != 42 {
		t.Errorf("unexpected budget: %+v", st.Budget)
	}
	if st.Provider.Model != "feature-hash-v1" {
		t.Errorf("unexpected provider: %+v", st.Provider)
	}
}

func TestStats_EmptyStoreUsesConfiguredDimensions(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{})
	svc.WithProvider(ProviderInfo{Dimensions: 1536})

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalEmbeddings != 0 || st.VectorDimensions != 1536 || st.Budget != nil {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestTestEmbedding(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{dims: 8})

	res, err := svc.TestEmbedding(context.Background(), "probe text")
	if err != nil {
		t.Fatalf("TestEmbedding: %v", err)
	}
	if res.Dimensions != 8 || len(res.Sample) != 5 || res.TokenCount != 2 {
		t.Errorf("unexpected result: %+v", res)
	}

	if _, err := svc.TestEmbedding(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.TestEmbedding(context.Background(), "FAIL"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
}
