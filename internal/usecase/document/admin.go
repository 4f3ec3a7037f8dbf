package document

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
	"github.com/kailas-cloud/assessdex/internal/usecase/embedding"
)

const sampleSize = 5

// Stats is an operational snapshot of the embedding store.
type Stats struct {
	TotalEmbeddings   int
	TotalDocuments    int
	ByModuleType      map[module.Type]int
	ByAssessment      map[int64]int
	VectorDimensions  int
	MalformedRecords  int
	LastRebuildAt     *time.Time
	RebuildInProgress bool
	Provider          ProviderInfo
	Budget            *embedding.BudgetUsage
}

// Stats scans the store and aggregates counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	all, skipped, err := s.repo.List(ctx, filter.Filter{})
	if err != nil {
		return Stats{}, fmt.Errorf("list embeddings: %w", err)
	}

	st := Stats{
		TotalEmbeddings:   len(all),
		ByModuleType:      make(map[module.Type]int),
		ByAssessment:      make(map[int64]int),
		VectorDimensions:  s.provider.Dimensions,
		MalformedRecords:  skipped,
		RebuildInProgress: s.InProgress(),
		Provider:          s.provider,
	}
	docs := make(map[string]struct{})
	for i := range all {
		e := &all[i]
		docs[e.DocumentID()] = struct{}{}
		st.ByModuleType[e.ModuleType()]++
		st.ByAssessment[e.AssessmentID()]++
	}
	st.TotalDocuments = len(docs)
	if len(all) > 0 {
		st.VectorDimensions = len(all[0].Vector())
	}

	at, ok, err := s.repo.LastRebuild(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("last rebuild: %w", err)
	}
	if ok {
		st.LastRebuildAt = &at
	}
	if s.budget != nil {
		u := s.budget.Usage()
		st.Budget = &u
	}
	return st, nil
}

// AssessmentIDs returns the assessments present in the stats, sorted.
func (st Stats) AssessmentIDs() []int64 {
	ids := make([]int64, 0, len(st.ByAssessment))
	for id := range st.ByAssessment {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TestEmbeddingResult is the diagnostic output of TestEmbedding.
type TestEmbeddingResult struct {
	Dimensions     int
	TokenCount     int
	ProcessingTime time.Duration
	Sample         []float32
}

// TestEmbedding embeds text once and reports the vector shape.
func (s *Service) TestEmbedding(ctx context.Context, text string) (TestEmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return TestEmbeddingResult{}, domain.NewValidationError("text", "is required")
	}

	g := s.gen.Generate(ctx, text)
	if !g.Success {
		return TestEmbeddingResult{}, fmt.Errorf("test embedding: %w", g.Cause())
	}
	domain.UsageFromContext(ctx).AddTokens(g.TokenCount)

	n := min(sampleSize, len(g.Vector))
	sample := make([]float32, n)
	copy(sample, g.Vector[:n])
	return TestEmbeddingResult{
		Dimensions:     len(g.Vector),
		TokenCount:     g.TokenCount,
		ProcessingTime: g.ProcessingTime,
		Sample:         sample,
	}, nil
}
