package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/finding"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/extract"
	"github.com/kailas-cloud/assessdex/internal/logger"
	"github.com/kailas-cloud/assessdex/internal/metrics"
)

// Defaults.
const (
	DefaultMaxUploadBytes     = 10 << 20
	DefaultRebuildConcurrency = 4
)

// ProviderInfo describes the configured embedding provider for stats.
type ProviderInfo struct {
	Provider   string
	Model      string
	Dimensions int
}

// Service ingests uploaded documents and manages their chunk embeddings.
type Service struct {
	repo      Repository
	gen       Generator
	splitter  Splitter
	budget    BudgetReporter
	provider  ProviderInfo
	maxUpload int64
	rebuildN  int
	locks     *keyedMutex
	running   atomic.Bool
	now       func() time.Time
	newID     func() string
}

// New creates a document service.
func New(repo Repository, gen Generator, splitter Splitter) *Service {
	return &Service{
		repo:      repo,
		gen:       gen,
		splitter:  splitter,
		maxUpload: DefaultMaxUploadBytes,
		rebuildN:  DefaultRebuildConcurrency,
		locks:     newKeyedMutex(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithMaxUploadBytes sets the upload size limit.
func (s *Service) WithMaxUploadBytes(n int64) *Service {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// WithRebuildConcurrency sets how many documents are regenerated in parallel.
func (s *Service) WithRebuildConcurrency(n int) *Service {
	if n > 0 {
		s.rebuildN = n
	}
	return s
}

// WithProvider records provider details reported by Stats.
func (s *Service) WithProvider(info ProviderInfo) *Service {
	s.provider = info
	return s
}

// WithBudget attaches the token budget reported by Stats.
func (s *Service) WithBudget(b BudgetReporter) *Service {
	s.budget = b
	return s
}

// IngestRequest is one uploaded file.
type IngestRequest struct {
	Data           []byte
	FileName       string
	ContentType    string
	AssessmentID   int64
	AssessmentName string
	ModuleType     string
}

// IngestResult summarizes an ingestion. Embeddings holds the persisted chunks in order.
type IngestResult struct {
	DocumentID     string
	Format         extract.Format
	ChunksTotal    int
	ChunksEmbedded int
	ChunksFailed   int
	TotalTokens    int
	ProcessingTime time.Duration
	Embeddings     []domdoc.Embedding
}

// Ingest validates, extracts, chunks and embeds an upload, then stores the chunks
// whose embeddings succeeded under a fresh document id. Chunk failures are
// tolerated as long as at least one chunk is embedded.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	mt, err := s.validate(req)
	if err != nil {
		return IngestResult{}, err
	}

	start := s.now()
	log := logger.FromContext(ctx).With(
		zap.String("file_name", req.FileName),
		zap.Int64("assessment_id", req.AssessmentID),
		zap.String("module_type", mt.String()),
	)

	text, format, err := extract.Text(req.Data, req.FileName, req.ContentType)
	if err != nil {
		return IngestResult{}, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return IngestResult{}, fmt.Errorf("%q has no extractable text: %w", req.FileName, domain.ErrEmptyDocument)
	}

	chunks := s.splitter.Split(text, nil)
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	generated := s.gen.GenerateBatch(ctx, texts)

	docID := s.newID()
	res := IngestResult{DocumentID: docID, Format: format, ChunksTotal: len(chunks)}

	type embedded struct {
		idx int
		vec []float32
	}
	ok := make([]embedded, 0, len(chunks))
	var firstErr error
	for i, g := range generated {
		if !g.Success {
			res.ChunksFailed++
			if firstErr == nil {
				firstErr = g.Cause()
			}
			log.Warn("Chunk embedding failed",
				zap.Int("chunk_index", i),
				zap.String("error", g.ErrorMessage),
			)
			continue
		}
		res.TotalTokens += g.TokenCount
		ok = append(ok, embedded{idx: i, vec: g.Vector})
	}
	metrics.IngestionChunksTotal.WithLabelValues("embedded").Add(float64(len(ok)))
	metrics.IngestionChunksTotal.WithLabelValues("failed").Add(float64(res.ChunksFailed))

	if len(ok) == 0 {
		metrics.IngestionDocumentsTotal.WithLabelValues(mt.String(), "failed").Inc()
		return res, fmt.Errorf("all %d chunks failed to embed: %w", len(chunks), firstErr)
	}

	dims := len(ok[0].vec)
	now := s.now().UTC()
	res.Embeddings = make([]domdoc.Embedding, 0, len(ok))
	for seq, item := range ok {
		if len(item.vec) != dims {
			return res, fmt.Errorf("chunk %d has %d dimensions, expected %d: %w",
				item.idx, len(item.vec), dims, domain.ErrVectorDimMismatch)
		}
		c := chunks[item.idx]
		e, err := domdoc.New(domdoc.Params{
			DocumentID:     docID,
			FileName:       req.FileName,
			ContentType:    req.ContentType,
			ExtractedText:  c.Text,
			Vector:         item.vec,
			AssessmentID:   req.AssessmentID,
			AssessmentName: strings.TrimSpace(req.AssessmentName),
			ModuleType:     mt,
			KeyFindings:    finding.Extract(c.Text),
			ChunkIndex:     seq,
			TotalChunks:    len(ok),
			Metadata: map[string]any{
				"startPosition":    c.StartPosition,
				"endPosition":      c.EndPosition,
				"sourceChunkIndex": c.Index,
				"wordCount":        len(strings.Fields(c.Text)),
				"charCount":        utf8.RuneCountInString(c.Text),
				"fileSize":         len(req.Data),
			},
			CreatedAt: now,
		})
		if err != nil {
			return res, fmt.Errorf("build chunk %d: %w", item.idx, err)
		}
		res.Embeddings = append(res.Embeddings, e)
	}
	res.ChunksEmbedded = len(res.Embeddings)

	if err := s.save(ctx, docID, res.Embeddings); err != nil {
		metrics.IngestionDocumentsTotal.WithLabelValues(mt.String(), "failed").Inc()
		return IngestResult{}, fmt.Errorf("save document %s: %w", docID, err)
	}
	metrics.IngestionDocumentsTotal.WithLabelValues(mt.String(), "ok").Inc()
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	res.ProcessingTime = s.now().Sub(start)
	log.Info("Document ingested",
		zap.String("document_id", docID),
		zap.String("format", string(format)),
		zap.Int("chunks_total", res.ChunksTotal),
		zap.Int("chunks_embedded", res.ChunksEmbedded),
		zap.Int("chunks_failed", res.ChunksFailed),
		zap.Int("tokens", res.TotalTokens),
		zap.Duration("duration", res.ProcessingTime),
	)
	return res, nil
}

// save writes a new document under its lock, so a rebuild that already sees
// the document id waits for the complete chunk set.
func (s *Service) save(ctx context.Context, docID string, embeddings []domdoc.Embedding) error {
	unlock := s.locks.Lock(docID)
	defer unlock()
	return s.repo.Save(ctx, embeddings) //nolint:wrapcheck // wrapped by Ingest
}

func (s *Service) validate(req IngestRequest) (module.Type, error) {
	mt, err := module.Parse(req.ModuleType)
	if err != nil {
		return "", err //nolint:wrapcheck // sentinel already wrapped
	}
	if req.AssessmentID <= 0 {
		return "", domain.NewValidationError("assessmentId", "must be positive")
	}
	if strings.TrimSpace(req.FileName) == "" {
		return "", domain.NewValidationError("fileName", "is required")
	}
	if len(req.Data) == 0 {
		return "", fmt.Errorf("%q is empty: %w", req.FileName, domain.ErrEmptyDocument)
	}
	if int64(len(req.Data)) > s.maxUpload {
		return "", fmt.Errorf("%d bytes exceeds the %d byte limit: %w", len(req.Data), s.maxUpload, domain.ErrFileTooLarge)
	}
	return mt, nil
}

// Get returns all chunks of a document in chunk order.
func (s *Service) Get(ctx context.Context, documentID string) ([]domdoc.Embedding, error) {
	chunks, err := s.repo.GetByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return chunks, nil
}

// Delete removes every chunk of a document. Returns false when the document does not exist.
func (s *Service) Delete(ctx context.Context, documentID string) (bool, error) {
	if err := domdoc.ValidateDocumentID(documentID); err != nil {
		return false, err //nolint:wrapcheck // validation error
	}
	unlock := s.locks.Lock(documentID)
	defer unlock()

	deleted, err := s.repo.Delete(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	if deleted {
		logger.FromContext(ctx).Info("Document deleted", zap.String("document_id", documentID))
	}
	return deleted, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrDocumentNotFound) || errors.Is(err, domain.ErrNotFound)
}
