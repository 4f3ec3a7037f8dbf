package job

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/logger"
	documentuc "github.com/kailas-cloud/assessdex/internal/usecase/document"
)

// Rebuilder regenerates every stored document's embeddings.
type Rebuilder interface {
	Rebuild(ctx context.Context) (documentuc.RebuildReport, error)
}

// RebuildJob runs a scheduled embedding rebuild.
type RebuildJob struct {
	rebuilder Rebuilder
}

// NewRebuildJob creates the job.
func NewRebuildJob(r Rebuilder) *RebuildJob {
	return &RebuildJob{rebuilder: r}
}

// Name identifies the job in logs and the scheduler.
func (j *RebuildJob) Name() string { return "embedding_rebuild" }

// Run rebuilds all documents. A manual rebuild already in progress is not an error.
func (j *RebuildJob) Run(ctx context.Context) error {
	rep, err := j.rebuilder.Rebuild(ctx)
	if errors.Is(err, domain.ErrRebuildInProgress) {
		logger.FromContext(ctx).Info("Scheduled rebuild skipped, another rebuild is running")
		return nil
	}
	if err != nil {
		return fmt.Errorf("scheduled rebuild: %w", err)
	}
	if !rep.Success() {
		return fmt.Errorf("scheduled rebuild: %d of %d documents failed", rep.Summary.Failed, rep.Summary.Total)
	}
	logger.FromContext(ctx).Info("Scheduled rebuild complete",
		zap.Int("documents", rep.Summary.Succeeded),
		zap.Int("chunks", rep.Summary.Chunks),
	)
	return nil
}
