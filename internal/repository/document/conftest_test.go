package document

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/assessdex/internal/db"
	"github.com/kailas-cloud/assessdex/internal/db/memory"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
)

// mockStore wraps a memory store and lets tests override single operations.
type mockStore struct {
	*memory.Store
	scanFn     func(ctx context.Context, pattern string) ([]string, error)
	hreplaceFn func(ctx context.Context, delKeys []string, items []db.HashSetItem) error
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return m.Store.Scan(ctx, pattern)
}

func (m *mockStore) HReplace(ctx context.Context, delKeys []string, items []db.HashSetItem) error {
	if m.hreplaceFn != nil {
		return m.hreplaceFn(ctx, delKeys, items)
	}
	return m.Store.HReplace(ctx, delKeys, items)
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{Store: memory.NewStore()}
	return New(ms, "test:"), ms
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testEmbedding(t *testing.T, docID string, assessmentID int64, mt module.Type, idx, total int) domdoc.Embedding {
	t.Helper()
	e, err := domdoc.New(domdoc.Params{
		DocumentID:     docID,
		FileName:       docID + ".txt",
		ContentType:    "text/plain",
		ExtractedText:  "chunk text " + docID,
		Vector:         []float32{1, 0.5, float32(idx)},
		AssessmentID:   assessmentID,
		AssessmentName: "Acme Review",
		ModuleType:     mt,
		KeyFindings:    []string{"legacy database without backups"},
		ChunkIndex:     idx,
		TotalChunks:    total,
		Metadata:       map[string]any{"startPosition": 0, "source": "upload"},
		CreatedAt:      testTime,
	})
	if err != nil {
		t.Fatalf("build embedding: %v", err)
	}
	return e
}
