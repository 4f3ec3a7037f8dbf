package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kailas-cloud/assessdex/internal/domain"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/extract"
	docrepo "github.com/kailas-cloud/assessdex/internal/repository/document"
)

func TestIngest_Success(t *testing.T) {
	gen := &fakeGenerator{}
	svc, repo := newTestService(t, gen)

	res := ingest(t, svc, longText, 7, "Security")

	wantChunks := len(svc.splitter.Split(longText, nil))
	if wantChunks < 2 {
		t.Fatalf("test text must produce several chunks, got %d", wantChunks)
	}
	if res.DocumentID != "doc-a" || res.Format != extract.FormatPlain {
		t.Errorf("unexpected result header: %+v", res)
	}
	if res.ChunksTotal != wantChunks || res.ChunksEmbedded != wantChunks || res.ChunksFailed != 0 {
		t.Errorf("unexpected counts: total=%d embedded=%d failed=%d", res.ChunksTotal, res.ChunksEmbedded, res.ChunksFailed)
	}
	if res.TotalTokens == 0 {
		t.Error("expected token usage")
	}
	if gen.batches != 1 {
		t.Errorf("expected one batch call, got %d", gen.batches)
	}

	stored, err := repo.GetByDocument(context.Background(), "doc-a")
	if err != nil {
		t.Fatalf("GetByDocument: %v", err)
	}
	if len(stored) != wantChunks {
		t.Fatalf("expected %d stored chunks, got %d", wantChunks, len(stored))
	}
	for i := range stored {
		e := &stored[i]
		if e.ChunkIndex() != i || e.TotalChunks() != wantChunks {
			t.Errorf("chunk %d: index=%d total=%d", i, e.ChunkIndex(), e.TotalChunks())
		}
		if e.ModuleType() != module.Security || e.AssessmentID() != 7 || e.AssessmentName() != "Acme Review" {
			t.Errorf("chunk %d: wrong ownership %+v", i, e.Params())
		}
		if !e.CreatedAt().Equal(testNow) {
			t.Errorf("chunk %d: createdAt %v", i, e.CreatedAt())
		}
		for _, k := range []string{"startPosition", "endPosition", "sourceChunkIndex", "wordCount", "charCount", "fileSize"} {
			if _, ok := e.Metadata()[k]; !ok {
				t.Errorf("chunk %d: missing metadata %q", i, k)
			}
		}
	}
	if len(stored[0].KeyFindings()) == 0 {
		t.Error("expected key findings on the first chunk")
	}
}

func TestIngest_Validation(t *testing.T) {
	valid := IngestRequest{
		Data:         []byte("hello world"),
		FileName:     "a.txt",
		AssessmentID: 1,
		ModuleType:   "data",
	}
	tests := []struct {
		name    string
		mutate  func(r *IngestRequest)
		wantErr error
	}{
		{"unknown module", func(r *IngestRequest) { r.ModuleType = "finance" }, domain.ErrInvalidModuleType},
		{"empty module", func(r *IngestRequest) { r.ModuleType = "" }, domain.ErrInvalidModuleType},
		{"zero assessment", func(r *IngestRequest) { r.AssessmentID = 0 }, domain.ErrInvalidInput},
		{"missing file name", func(r *IngestRequest) { r.FileName = " " }, domain.ErrInvalidInput},
		{"empty body", func(r *IngestRequest) { r.Data = nil }, domain.ErrEmptyDocument},
		{"too large", func(r *IngestRequest) { r.Data = make([]byte, 33) }, domain.ErrFileTooLarge},
		{"whitespace only", func(r *IngestRequest) { r.Data = []byte(" \n\t ") }, domain.ErrEmptyDocument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			svc, _ := newTestService(t, gen)
			svc.WithMaxUploadBytes(32)

			req := valid
			tc.mutate(&req)
			_, err := svc.Ingest(context.Background(), req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if gen.batches != 0 {
				t.Error("provider must not be called for rejected input")
			}
		})
	}
}

func TestIngest_QuotaExceededKeepsCause(t *testing.T) {
	gen := &fakeGenerator{failErr: fmt.Errorf("daily budget: %w", domain.ErrEmbeddingQuotaExceeded)}
	svc, _ := newTestService(t, gen)

	_, err := svc.Ingest(context.Background(), IngestRequest{
		Data: []byte("short text"), FileName: "a.txt", AssessmentID: 1, ModuleType: "data",
	})
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected ErrEmbeddingQuotaExceeded, got %v", err)
	}
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError too, got %v", err)
	}
}

func TestIngest_RecordsUsage(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{})
	ctx, usage := domain.NewContextWithUsage(context.Background())

	res, err := svc.Ingest(ctx, IngestRequest{
		Data: []byte("three word text"), FileName: "a.txt", AssessmentID: 1, ModuleType: "data",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !usage.Used || usage.TotalTokens != res.TotalTokens || res.TotalTokens != 3 {
		t.Errorf("usage = %+v, result tokens = %d", usage, res.TotalTokens)
	}
}

func TestIngest_PartialFailureResequences(t *testing.T) {
	gen := &fakeGenerator{failAt: map[int]bool{1: true}}
	svc, repo := newTestService(t, gen)

	chunks := svc.splitter.Split(longText, nil)
	if len(chunks) < 3 {
		t.Fatalf("test text must produce at least 3 chunks, got %d", len(chunks))
	}
	res := ingest(t, svc, longText, 3, "cloud")

	if res.ChunksFailed != 1 || res.ChunksEmbedded != len(chunks)-1 {
		t.Fatalf("unexpected counts: %+v", res)
	}

	stored, err := repo.GetByDocument(context.Background(), res.DocumentID)
	if err != nil {
		t.Fatalf("GetByDocument: %v", err)
	}
	for i := range stored {
		if stored[i].ChunkIndex() != i || stored[i].TotalChunks() != len(stored) {
			t.Errorf("chunk %d: index=%d total=%d", i, stored[i].ChunkIndex(), stored[i].TotalChunks())
		}
	}
	if stored[1].ExtractedText() != chunks[2].Text {
		t.Error("expected the failed chunk to be skipped and later chunks shifted down")
	}
	if src := fmt.Sprint(stored[1].Metadata()["sourceChunkIndex"]); src != "2" {
		t.Errorf("sourceChunkIndex = %v, want 2", src)
	}
}

func TestIngest_AllChunksFail(t *testing.T) {
	gen := &fakeGenerator{failAll: true}
	svc, repo := newTestService(t, gen)

	res, err := svc.Ingest(context.Background(), IngestRequest{
		Data: []byte(longText), FileName: "a.txt", AssessmentID: 1, ModuleType: "devops",
	})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if !strings.Contains(err.Error(), "provider rejected input") {
		t.Errorf("expected provider message in error, got %v", err)
	}
	if res.ChunksFailed != res.ChunksTotal {
		t.Errorf("unexpected counts: %+v", res)
	}
	ids, _ := repo.DocumentIDs(context.Background())
	if len(ids) != 0 {
		t.Errorf("nothing must be stored, got %v", ids)
	}
}

func TestIngest_DimensionMismatch(t *testing.T) {
	gen := &fakeGenerator{dimsAt: map[int]int{1: 8}}
	svc, repo := newTestService(t, gen)

	_, err := svc.Ingest(context.Background(), IngestRequest{
		Data: []byte(longText), FileName: "a.txt", AssessmentID: 1, ModuleType: "data",
	})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	ids, _ := repo.DocumentIDs(context.Background())
	if len(ids) != 0 {
		t.Errorf("nothing must be stored, got %v", ids)
	}
}

func TestIngest_UnknownFormatUsesPlaceholder(t *testing.T) {
	svc, repo := newTestService(t, &fakeGenerator{})

	res, err := svc.Ingest(context.Background(), IngestRequest{
		Data: []byte{0x25, 0x50, 0x44, 0x46}, FileName: "scan.pdf", ContentType: "application/pdf",
		AssessmentID: 2, ModuleType: "business",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := repo.GetByDocument(context.Background(), res.DocumentID)
	if len(stored) != 1 || !strings.Contains(stored[0].ExtractedText(), "scan.pdf") {
		t.Errorf("expected placeholder chunk, got %+v", stored)
	}
	if stored[0].AssessmentName() != domain.UnknownAssessmentName {
		t.Errorf("expected fallback assessment name, got %q", stored[0].AssessmentName())
	}
}

func TestGet(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{})
	res := ingest(t, svc, "short text", 1, "data")

	chunks, err := svc.Get(context.Background(), res.DocumentID)
	if err != nil || len(chunks) != 1 {
		t.Fatalf("Get = %d chunks, %v", len(chunks), err)
	}

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, repo := newTestService(t, &fakeGenerator{})
	res := ingest(t, svc, longText, 1, "data")
	other := ingest(t, svc, "another document", 2, "data")

	deleted, err := svc.Delete(context.Background(), res.DocumentID)
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}

	again, err := svc.Delete(context.Background(), res.DocumentID)
	if err != nil || again {
		t.Errorf("second delete = %v, %v; want false, nil", again, err)
	}

	ids, _ := repo.DocumentIDs(context.Background())
	if len(ids) != 1 || ids[0] != other.DocumentID {
		t.Errorf("unrelated document must survive, got %v", ids)
	}
	if svc.locks.size() != 0 {
		t.Error("document locks leaked")
	}
}

func TestDelete_InvalidID(t *testing.T) {
	svc, _ := newTestService(t, &fakeGenerator{})
	if _, err := svc.Delete(context.Background(), "doc*"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

// lockCheckingRepo records whether a document lock was held during Save.
type lockCheckingRepo struct {
	*docrepo.Repo
	svc        *Service
	heldOnSave bool
}

func (r *lockCheckingRepo) Save(ctx context.Context, embeddings []domdoc.Embedding) error {
	r.heldOnSave = r.svc.locks.size() == 1
	return r.Repo.Save(ctx, embeddings)
}

func TestIngest_SavesUnderDocumentLock(t *testing.T) {
	svc, repo := newTestService(t, &fakeGenerator{})
	checking := &lockCheckingRepo{Repo: repo, svc: svc}
	svc.repo = checking

	ingest(t, svc, longText, 7, "Security")

	if !checking.heldOnSave {
		t.Error("Save must run while the document lock is held")
	}
	if n := svc.locks.size(); n != 0 {
		t.Errorf("%d locks left after ingest", n)
	}
}
