package document

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/logger"
	"github.com/kailas-cloud/assessdex/internal/metrics"
)

// RebuildReport is the outcome of a full rebuild.
type RebuildReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []batch.Result
	Summary    batch.Summary
}

// Success reports whether every document was regenerated.
func (r RebuildReport) Success() bool { return r.Summary.Failed == 0 }

// Rebuild regenerates the vectors of every stored document and replaces each
// document's chunks atomically. A document whose regeneration fails keeps its
// previous embeddings. Overlapping calls fail with domain.ErrRebuildInProgress.
func (s *Service) Rebuild(ctx context.Context) (RebuildReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return RebuildReport{}, domain.ErrRebuildInProgress
	}
	defer s.running.Store(false)

	log := logger.FromContext(ctx)
	report := RebuildReport{StartedAt: s.now().UTC()}

	ids, err := s.repo.DocumentIDs(ctx)
	if err != nil {
		return RebuildReport{}, fmt.Errorf("list documents: %w", err)
	}
	log.Info("Rebuild started", zap.Int("documents", len(ids)))

	report.Results = make([]batch.Result, len(ids))
	var eg errgroup.Group
	eg.SetLimit(s.rebuildN)
	for i, id := range ids {
		eg.Go(func() error {
			report.Results[i] = s.rebuildDocument(ctx, id)
			return nil
		})
	}
	_ = eg.Wait()

	report.Summary = batch.Summarize(report.Results)
	report.FinishedAt = s.now().UTC()
	metrics.RebuildDocumentsTotal.WithLabelValues("rebuilt").Add(float64(report.Summary.Succeeded))
	metrics.RebuildDocumentsTotal.WithLabelValues("failed").Add(float64(report.Summary.Failed))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("rebuild interrupted: %w", err)
	}
	if err := s.repo.SetLastRebuild(ctx, report.FinishedAt); err != nil {
		return report, fmt.Errorf("record rebuild time: %w", err)
	}

	log.Info("Rebuild finished",
		zap.Int("documents", report.Summary.Total),
		zap.Int("rebuilt", report.Summary.Succeeded),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("skipped", report.Summary.Skipped),
		zap.Int("chunks", report.Summary.Chunks),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// InProgress reports whether a rebuild is running.
func (s *Service) InProgress() bool { return s.running.Load() }

func (s *Service) rebuildDocument(ctx context.Context, documentID string) batch.Result {
	unlock := s.locks.Lock(documentID)
	defer unlock()

	log := logger.FromContext(ctx).With(zap.String("document_id", documentID))

	chunks, err := s.repo.GetByDocument(ctx, documentID)
	if err != nil {
		if isNotFound(err) {
			return batch.NewSkipped(documentID)
		}
		log.Error("Rebuild load failed", zap.Error(err))
		return batch.NewError(documentID, fmt.Errorf("load chunks: %w", err))
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].ExtractedText()
	}
	generated := s.gen.GenerateBatch(ctx, texts)

	now := s.now().UTC()
	regenerated := make([]domdoc.Embedding, len(chunks))
	for i, g := range generated {
		if !g.Success {
			err := fmt.Errorf("chunk %d: %w", chunks[i].ChunkIndex(), g.Cause())
			log.Warn("Rebuild kept previous embeddings", zap.Error(err))
			return batch.NewError(documentID, err)
		}
		regenerated[i] = chunks[i].WithVector(g.Vector, now)
	}

	if err := s.repo.Replace(ctx, documentID, regenerated); err != nil {
		log.Error("Rebuild replace failed", zap.Error(err))
		return batch.NewError(documentID, fmt.Errorf("replace chunks: %w", err))
	}
	return batch.NewOK(documentID, len(regenerated))
}

// LastRebuild returns when the last rebuild finished.
func (s *Service) LastRebuild(ctx context.Context) (time.Time, bool, error) {
	t, ok, err := s.repo.LastRebuild(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last rebuild: %w", err)
	}
	return t, ok, nil
}
