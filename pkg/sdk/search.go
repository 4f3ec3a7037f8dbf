package assessdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
	"github.com/kailas-cloud/assessdex/internal/domain/search/request"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
	enhanceuc "github.com/kailas-cloud/assessdex/internal/usecase/enhance"
)

// Search ranks stored chunks by similarity to q.Query.
func (c *Client) Search(ctx context.Context, q SearchQuery) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opSearch, start, err, "results", len(results)) }()

	if q.AssessmentID < 0 {
		return nil, fmt.Errorf("search: %w", domain.NewValidationError("assessmentId", "must not be negative"))
	}
	mts, err := module.ParseList(q.ModuleTypes)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	req, err := request.New(q.Query, filter.New(q.AssessmentID, mts), q.TopK, q.Threshold, q.IncludeMetadata)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	rs, err := c.search.Search(ctx, &req)
	c.obs.addTokens(usage.TotalTokens)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return fromInternalResults(rs), nil
}

// Similar finds chunks of other documents close to the given chunk. id is an
// embedding id ("{documentId}:{chunkIndex}") or a document id, meaning chunk 0.
// An unknown id yields no results.
func (c *Client) Similar(ctx context.Context, id string, topK int, threshold *float64) (results []SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opSimilar, start, err, "results", len(results)) }()

	req, err := request.NewSimilar(id, topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("similar: %w", err)
	}
	rs, err := c.search.Similar(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("similar: %w", err)
	}
	return fromInternalResults(rs), nil
}

// Insights mines patterns the assessment shares with other assessments in one module.
// maxInsights 0 means the default of 3.
func (c *Client) Insights(ctx context.Context, assessmentID int64, moduleType string, maxInsights int) (out []Insight, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opInsights, start, err, "insights", len(out)) }()

	found, err := c.insights.FindInsights(ctx, assessmentID, moduleType, maxInsights)
	if err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}
	out = make([]Insight, len(found))
	for i := range found {
		in := &found[i]
		out[i] = Insight{
			Pattern:        in.Pattern(),
			ModuleType:     in.ModuleType().String(),
			AssessmentIDs:  in.AssessmentIDs(),
			Confidence:     in.Confidence(),
			Recommendation: in.Recommendation(),
			Related:        fromInternalResults(in.RelatedDocuments()),
		}
	}
	return out, nil
}

// Enhance appends relevant document context to an analysis prompt.
func (c *Client) Enhance(ctx context.Context, req EnhanceRequest) (res EnhanceResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe(opEnhance, start, err) }()

	in := enhanceuc.Request{
		OriginalRequest: req.OriginalRequest,
		ModuleType:      req.ModuleType,
		AssessmentID:    req.AssessmentID,
	}
	if req.RelevantDocuments != nil {
		in.RelevantDocuments = toInternalResults(req.RelevantDocuments)
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	out, err := c.enhance.Enhance(ctx, in)
	c.obs.addTokens(usage.TotalTokens)
	if err != nil {
		return EnhanceResult{}, fmt.Errorf("enhance: %w", err)
	}
	return EnhanceResult{
		OriginalRequest:    out.OriginalRequest,
		EnhancedRequest:    out.EnhancedRequest,
		ContextDocuments:   len(out.ContextDocuments),
		EnhancementApplied: out.EnhancementApplied,
	}, nil
}

func fromInternalResults(rs []result.Result) []SearchResult {
	out := make([]SearchResult, len(rs))
	for i := range rs {
		r := &rs[i]
		out[i] = SearchResult{
			EmbeddingID:    r.EmbeddingID(),
			DocumentID:     r.DocumentID(),
			FileName:       r.FileName(),
			ChunkIndex:     r.ChunkIndex(),
			Text:           r.RelevantText(),
			Score:          r.SimilarityScore(),
			AssessmentID:   r.AssessmentID(),
			AssessmentName: r.AssessmentName(),
			ModuleType:     r.ModuleType().String(),
			KeyFindings:    r.KeyFindings(),
			Metadata:       r.Metadata(),
			CreatedAt:      r.CreatedAt(),
		}
	}
	return out
}

func toInternalResults(rs []SearchResult) []result.Result {
	out := make([]result.Result, len(rs))
	for i, r := range rs {
		out[i] = result.New(result.Params{
			EmbeddingID:     r.EmbeddingID,
			DocumentID:      r.DocumentID,
			FileName:        r.FileName,
			ChunkIndex:      r.ChunkIndex,
			RelevantText:    r.Text,
			SimilarityScore: r.Score,
			AssessmentID:    r.AssessmentID,
			AssessmentName:  r.AssessmentName,
			ModuleType:      module.Type(r.ModuleType),
			KeyFindings:     r.KeyFindings,
			Metadata:        r.Metadata,
			CreatedAt:       r.CreatedAt,
		})
	}
	return out
}
