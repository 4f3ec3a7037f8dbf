package search

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/assessdex/internal/domain"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
	"github.com/kailas-cloud/assessdex/internal/domain/search/request"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
)

// --- Mocks ---

type mockRepo struct {
	embeddings []domdoc.Embedding
	listErr    error
	listCalls  int
	skipped    int
}

func (m *mockRepo) List(_ context.Context, f filter.Filter) ([]domdoc.Embedding, int, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []domdoc.Embedding
	for i := range m.embeddings {
		if f.Matches(&m.embeddings[i]) {
			out = append(out, m.embeddings[i])
		}
	}
	return out, m.skipped, nil
}

func (m *mockRepo) GetChunk(_ context.Context, documentID string, chunkIndex int) (domdoc.Embedding, error) {
	for _, e := range m.embeddings {
		if e.DocumentID() == documentID && e.ChunkIndex() == chunkIndex {
			return e, nil
		}
	}
	return domdoc.Embedding{}, domain.ErrDocumentNotFound
}

type mockEmbedder struct {
	vec    []float32
	tokens int
	err    error
	got    string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.got = text
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: m.tokens}, nil
}

// --- Helpers ---

var base = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func emb(t *testing.T, docID string, idx, total int, assessment int64, mt module.Type, vec []float32, age time.Duration) domdoc.Embedding {
	t.Helper()
	e, err := domdoc.New(domdoc.Params{
		DocumentID:    docID,
		FileName:      docID + ".txt",
		ExtractedText: "text of " + docID,
		Vector:        vec,
		AssessmentID:  assessment,
		ModuleType:    mt,
		ChunkIndex:    idx,
		TotalChunks:   total,
		Metadata:      map[string]any{"wordCount": 3},
		CreatedAt:     base.Add(-age),
	})
	if err != nil {
		t.Fatalf("domdoc.New: %v", err)
	}
	return e
}

// unit returns a 2-d unit vector whose cosine with (1, 0) is sim.
func unit(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func mustRequest(t *testing.T, query string, f filter.Filter, topK int, threshold float64) *request.Request {
	t.Helper()
	r, err := request.New(query, f, topK, &threshold, false)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &r
}

func scores(rs []result.Result) []float64 {
	out := make([]float64, len(rs))
	for i := range rs {
		out[i] = rs[i].SimilarityScore()
	}
	return out
}

func corpus(t *testing.T) []domdoc.Embedding {
	return []domdoc.Embedding{
		emb(t, "a", 0, 1, 1, module.Security, unit(0.95), 0),
		emb(t, "b", 0, 2, 1, module.Security, unit(0.80), 0),
		emb(t, "b", 1, 2, 1, module.Security, unit(0.60), 0),
		emb(t, "c", 0, 1, 2, module.Security, unit(0.90), 0),
		emb(t, "d", 0, 1, 2, module.Cloud, unit(0.99), 0),
		emb(t, "e", 0, 1, 3, module.Data, []float32{0, 0}, 0),
	}
}

// --- Tests ---

func TestSearch_RanksAndThresholds(t *testing.T) {
	repo := &mockRepo{embeddings: corpus(t)}
	embed := &mockEmbedder{vec: []float32{1, 0}, tokens: 4}
	svc := New(repo, embed)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	got, err := svc.Search(ctx, mustRequest(t, "  mfa gaps  ", filter.Filter{}, 10, 0.7))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := []string{"d", "a", "c", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %d results %v, want %d", len(got), scores(got), len(want))
	}
	for i, id := range want {
		if got[i].DocumentID() != id {
			t.Errorf("result %d = %s, want %s", i, got[i].DocumentID(), id)
		}
	}
	if embed.got != "mfa gaps" {
		t.Errorf("query should be trimmed, got %q", embed.got)
	}
	if !usage.Used || usage.TotalTokens != 4 {
		t.Errorf("usage not recorded: %+v", usage)
	}
	if got[0].Metadata() != nil {
		t.Error("metadata must be omitted unless requested")
	}
}

func TestSearch_Filters(t *testing.T) {
	tests := []struct {
		name   string
		filter filter.Filter
		want   []string
	}{
		{"assessment only", filter.New(2, nil), []string{"d", "c"}},
		{"module only", filter.New(0, []module.Type{module.Security}), []string{"a", "c", "b"}},
		{"assessment and module", filter.New(1, []module.Type{module.Security, module.Cloud}), []string{"a", "b"}},
		{"no match", filter.New(99, nil), []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&mockRepo{embeddings: corpus(t)}, &mockEmbedder{vec: []float32{1, 0}})
			got, err := svc.Search(context.Background(), mustRequest(t, "q", tc.filter, 10, 0.7))
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", scores(got), tc.want)
			}
			for i := range tc.want {
				if got[i].DocumentID() != tc.want[i] {
					t.Errorf("result %d = %s, want %s", i, got[i].DocumentID(), tc.want[i])
				}
			}
		})
	}
}

func TestSearch_HighThresholdReturnsEmpty(t *testing.T) {
	repo := &mockRepo{embeddings: []domdoc.Embedding{
		emb(t, "x", 0, 1, 5, module.Data, unit(0.8), 0),
	}}
	svc := New(repo, &mockEmbedder{vec: []float32{1, 0}})

	got, err := svc.Search(context.Background(), mustRequest(t, "x", filter.New(5, nil), 3, 0.99))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %v", got)
	}
}

func TestSearch_ThresholdMonotonic(t *testing.T) {
	svc := New(&mockRepo{embeddings: corpus(t)}, &mockEmbedder{vec: []float32{1, 0}})

	prev := math.MaxInt
	for _, th := range []float64{-1, 0, 0.5, 0.7, 0.85, 0.92, 0.97, 1} {
		got, err := svc.Search(context.Background(), mustRequest(t, "q", filter.Filter{}, 100, th))
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) > prev {
			t.Errorf("threshold %.2f returned %d results, more than %d at a lower threshold", th, len(got), prev)
		}
		prev = len(got)
		for i := 1; i < len(got); i++ {
			if got[i].SimilarityScore() > got[i-1].SimilarityScore() {
				t.Errorf("results not sorted: %v", scores(got))
			}
		}
	}
}

func TestSearch_TopK(t *testing.T) {
	svc := New(&mockRepo{embeddings: corpus(t)}, &mockEmbedder{vec: []float32{1, 0}})

	got, err := svc.Search(context.Background(), mustRequest(t, "q", filter.Filter{}, 2, 0))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].DocumentID() != "d" || got[1].DocumentID() != "a" {
		t.Errorf("unexpected top 2: %v", scores(got))
	}
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	repo := &mockRepo{embeddings: corpus(t)}
	svc := New(repo, &mockEmbedder{err: domain.ErrEmbeddingProviderError})

	_, err := svc.Search(context.Background(), mustRequest(t, "q", filter.Filter{}, 5, 0.7))
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if repo.listCalls != 0 {
		t.Error("store must not be read without a query vector")
	}
}

func TestSearch_RepoError(t *testing.T) {
	svc := New(&mockRepo{listErr: errors.New("store down")}, &mockEmbedder{vec: []float32{1, 0}})
	if _, err := svc.Search(context.Background(), mustRequest(t, "q", filter.Filter{}, 5, 0.7)); err == nil {
		t.Fatal("expected error")
	}
}

func TestRank_TieBreaksByNewestThenID(t *testing.T) {
	candidates := []domdoc.Embedding{
		emb(t, "old", 0, 1, 1, module.Data, unit(0.9), 2*time.Hour),
		emb(t, "new-b", 0, 1, 1, module.Data, unit(0.9), 0),
		emb(t, "new-a", 0, 1, 1, module.Data, unit(0.9), 0),
	}

	got := Rank([]float32{1, 0}, candidates, 5, 0.5, 500, true)
	want := []string{"new-a", "new-b", "old"}
	for i := range want {
		if got[i].DocumentID() != want[i] {
			t.Fatalf("order = %s,%s,%s; want %v", got[0].DocumentID(), got[1].DocumentID(), got[2].DocumentID(), want)
		}
	}
	if got[0].Metadata()["wordCount"] != 3 {
		t.Error("metadata should be included when requested")
	}
}

func TestRank_ZeroVectorScoresZero(t *testing.T) {
	candidates := []domdoc.Embedding{emb(t, "z", 0, 1, 1, module.Data, []float32{0, 0}, 0)}

	if got := Rank([]float32{1, 0}, candidates, 5, 0.01, 0, false); len(got) != 0 {
		t.Errorf("zero vector must not match a positive threshold, got %v", scores(got))
	}
	got := Rank([]float32{1, 0}, candidates, 5, 0, 0, false)
	if len(got) != 1 || got[0].SimilarityScore() != 0 {
		t.Errorf("expected a single zero score, got %v", scores(got))
	}
}

func TestSearch_PreviewTruncation(t *testing.T) {
	long := strings.Repeat("x", 40)
	e, _ := domdoc.New(domdoc.Params{
		DocumentID: "long", FileName: "l.txt", ExtractedText: long, Vector: []float32{1, 0},
		AssessmentID: 1, ModuleType: module.Data, TotalChunks: 1, CreatedAt: base,
	})
	svc := New(&mockRepo{embeddings: []domdoc.Embedding{e}}, &mockEmbedder{vec: []float32{1, 0}}).WithPreviewLength(10)

	got, err := svc.Search(context.Background(), mustRequest(t, "q", filter.Filter{}, 5, 0.5))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got[0].RelevantText() != "xxxxxxx..." {
		t.Errorf("unexpected preview %q", got[0].RelevantText())
	}
}

func TestSimilar_ExcludesSourceDocument(t *testing.T) {
	repo := &mockRepo{embeddings: []domdoc.Embedding{
		emb(t, "src", 0, 2, 1, module.Security, []float32{1, 0}, 0),
		emb(t, "src", 1, 2, 1, module.Security, []float32{1, 0}, 0),
		emb(t, "twin", 0, 1, 2, module.Security, []float32{1, 0}, 0),
		emb(t, "far", 0, 1, 3, module.Security, []float32{0, 1}, 0),
	}}
	svc := New(repo, &mockEmbedder{})

	for _, id := range []string{"src", "src:1"} {
		r, err := request.NewSimilar(id, 5, nil)
		if err != nil {
			t.Fatalf("NewSimilar: %v", err)
		}
		got, err := svc.Similar(context.Background(), &r)
		if err != nil {
			t.Fatalf("Similar(%s): %v", id, err)
		}
		if len(got) != 1 || got[0].DocumentID() != "twin" {
			t.Errorf("Similar(%s) = %v", id, got)
		}
	}
}

func TestSimilar_UnknownSourceReturnsEmpty(t *testing.T) {
	svc := New(&mockRepo{}, &mockEmbedder{})
	r, _ := request.NewSimilar("ghost:3", 5, nil)

	got, err := svc.Similar(context.Background(), &r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}
