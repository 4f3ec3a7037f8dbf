package assessdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/batch"
)

// Stats scans the store and returns aggregate counts.
func (c *Client) Stats(ctx context.Context) (st Stats, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opStats, start, err) }()

	s, err := c.documents.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	byModule := make(map[string]int, len(s.ByModuleType))
	for mt, n := range s.ByModuleType {
		byModule[mt.String()] = n
	}
	return Stats{
		TotalEmbeddings:  s.TotalEmbeddings,
		TotalDocuments:   s.TotalDocuments,
		ByModuleType:     byModule,
		ByAssessment:     s.ByAssessment,
		VectorDimensions: s.VectorDimensions,
		MalformedRecords: s.MalformedRecords,
		LastRebuildAt:    s.LastRebuildAt,
	}, nil
}

// Rebuild regenerates every stored embedding with the current embedder.
// Documents whose regeneration fails keep their previous embeddings.
func (c *Client) Rebuild(ctx context.Context) (rep RebuildReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opRebuild, start, err, "failed", rep.Failed) }()

	ctx, usage := domain.NewContextWithUsage(ctx)
	r, err := c.documents.Rebuild(ctx)
	c.obs.addTokens(usage.TotalTokens)
	if err != nil {
		return RebuildReport{}, fmt.Errorf("rebuild: %w", err)
	}

	docs := make([]BatchResult, len(r.Results))
	for i, res := range r.Results {
		docs[i] = BatchResult{
			ID:      res.ID(),
			OK:      res.Status() == batch.StatusOK,
			Skipped: res.Status() == batch.StatusSkipped,
			Chunks:  res.Chunks(),
			Err:     res.Err(),
		}
	}
	return RebuildReport{
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Succeeded:  r.Summary.Succeeded,
		Failed:     r.Summary.Failed,
		Skipped:    r.Summary.Skipped,
		Chunks:     r.Summary.Chunks,
		Documents:  docs,
	}, nil
}

// TestEmbedding embeds text once and reports the vector shape.
func (c *Client) TestEmbedding(ctx context.Context, text string) (res TestEmbeddingResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opTestEmb, start, err) }()

	ctx, usage := domain.NewContextWithUsage(ctx)
	r, err := c.documents.TestEmbedding(ctx, text)
	c.obs.addTokens(usage.TotalTokens)
	if err != nil {
		return TestEmbeddingResult{}, fmt.Errorf("test embedding: %w", err)
	}
	return TestEmbeddingResult{
		Dimensions:     r.Dimensions,
		TokenCount:     r.TokenCount,
		ProcessingTime: r.ProcessingTime,
		Sample:         r.Sample,
	}, nil
}
