package document

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/assessdex/internal/db/memory"
	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/chunk"
	docrepo "github.com/kailas-cloud/assessdex/internal/repository/document"
	"github.com/kailas-cloud/assessdex/internal/usecase/embedding"
)

// --- Mocks ---

// fakeGenerator returns a vector derived from the text length. Texts containing
// "FAIL" and batch positions listed in failAt fail softly. A non-nil gate blocks
// GenerateBatch until closed.
type fakeGenerator struct {
	mu      sync.Mutex
	batches int
	dims    int
	gate    chan struct{}
	started chan struct{}
	failAll bool
	failErr error
	failAt  map[int]bool
	dimsAt  map[int]int
}

func (f *fakeGenerator) Generate(_ context.Context, text string) domain.GenerationResult {
	if f.failErr != nil {
		return domain.GenerationResult{ErrorMessage: f.failErr.Error(), Err: f.failErr}
	}
	if f.failAll || strings.Contains(text, "FAIL") {
		return domain.GenerationResult{ErrorMessage: "provider rejected input"}
	}
	dims := f.dims
	if dims == 0 {
		dims = 3
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32(len(text) + i + 1)
	}
	return domain.GenerationResult{Success: true, Vector: v, TokenCount: len(strings.Fields(text)), ProcessingTime: time.Millisecond}
}

func (f *fakeGenerator) GenerateBatch(ctx context.Context, texts []string) []domain.GenerationResult {
	f.mu.Lock()
	f.batches++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	out := make([]domain.GenerationResult, len(texts))
	for i, t := range texts {
		if f.failAt[i] {
			out[i] = domain.GenerationResult{ErrorMessage: "provider rejected input"}
			continue
		}
		out[i] = f.Generate(ctx, t)
		if d, ok := f.dimsAt[i]; ok {
			out[i].Vector = make([]float32, d)
			out[i].Vector[0] = 1
		}
	}
	return out
}

type fakeBudget struct{}

func (fakeBudget) Usage() embedding.BudgetUsage {
	return embedding.BudgetUsage{Provider: "local", DailyUsed: 42, DailyLimit: 1000}
}

// --- Helpers ---

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, gen *fakeGenerator) (*Service, *docrepo.Repo) {
	t.Helper()
	splitter, err := chunk.NewSplitter(120, 20)
	if err != nil {
		t.Fatalf("NewSplitter: %v", err)
	}
	repo := docrepo.New(memory.NewStore(), "test:")
	svc := New(repo, gen, splitter)
	svc.now = func() time.Time { return testNow }
	n := 0
	svc.newID = func() string {
		n++
		return "doc-" + string(rune('a'+n-1))
	}
	return svc, repo
}

func ingest(t *testing.T, svc *Service, body string, assessment int64, mt string) IngestResult {
	t.Helper()
	res, err := svc.Ingest(context.Background(), IngestRequest{
		Data:           []byte(body),
		FileName:       "notes.txt",
		ContentType:    "text/plain",
		AssessmentID:   assessment,
		AssessmentName: "Acme Review",
		ModuleType:     mt,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return res
}

const longText = "Key finding: the legacy billing cluster has no disaster recovery plan. " +
	"Backups are copied nightly to the same data center. " +
	"Critical: production database credentials are stored in plain text configuration files. " +
	"The team plans to adopt a secrets manager next quarter."
