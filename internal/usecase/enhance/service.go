// Package enhance grounds analysis prompts with context from uploaded documents.
package enhance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
	"github.com/kailas-cloud/assessdex/internal/domain/search/request"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
	"github.com/kailas-cloud/assessdex/internal/logger"
)

const (
	// ContextHeader opens the appended context block.
	ContextHeader = "\n\n=== RELEVANT CONTEXT FROM UPLOADED DOCUMENTS ===\n"

	maxContextDocs    = 3
	maxFindingsPerDoc = 3
	searchTopK        = 5
)

// Searcher runs semantic search.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
}

// Request is an analysis prompt to enhance. A nil RelevantDocuments triggers a
// search scoped to the assessment and module; an empty slice disables it.
type Request struct {
	OriginalRequest   string
	ModuleType        string
	AssessmentID      int64
	RelevantDocuments []result.Result
}

// Result is the enhanced prompt.
type Result struct {
	OriginalRequest    string
	EnhancedRequest    string
	ContextDocuments   []result.Result
	EnhancementApplied bool
}

// Service builds enhanced prompts.
type Service struct {
	search Searcher
}

// New creates an enhance service.
func New(search Searcher) *Service {
	return &Service{search: search}
}

// Enhance appends the most relevant document excerpts to the original request.
// A failed context search degrades to the unchanged request.
func (s *Service) Enhance(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.OriginalRequest) == "" {
		return Result{}, domain.NewValidationError("originalRequest", "is required")
	}
	if req.AssessmentID <= 0 {
		return Result{}, domain.NewValidationError("assessmentId", "must be positive")
	}
	mt, err := module.Parse(req.ModuleType)
	if err != nil {
		return Result{}, err //nolint:wrapcheck // domain sentinel
	}

	docs := req.RelevantDocuments
	if docs == nil {
		docs = s.lookup(ctx, req.OriginalRequest, req.AssessmentID, mt)
	}

	used := docs
	if len(used) > maxContextDocs {
		used = used[:maxContextDocs]
	}
	enhanced := Compose(req.OriginalRequest, used)
	return Result{
		OriginalRequest:    req.OriginalRequest,
		EnhancedRequest:    enhanced,
		ContextDocuments:   used,
		EnhancementApplied: enhanced != req.OriginalRequest,
	}, nil
}

func (s *Service) lookup(ctx context.Context, query string, assessmentID int64, mt module.Type) []result.Result {
	req, err := request.New(query, filter.New(assessmentID, []module.Type{mt}), searchTopK, nil, false)
	if err != nil {
		logger.FromContext(ctx).Warn("Context search skipped", zap.Error(err))
		return nil
	}
	docs, err := s.search.Search(ctx, &req)
	if err != nil {
		logger.FromContext(ctx).Warn("Context search failed, returning original request",
			zap.Int64("assessment_id", assessmentID),
			zap.String("module_type", mt.String()),
			zap.Error(err),
		)
		return nil
	}
	return docs
}

// Compose renders the context block for up to three documents and appends it
// to original. Without documents original is returned as is.
func Compose(original string, docs []result.Result) string {
	if len(docs) == 0 {
		return original
	}

	var b strings.Builder
	b.WriteString(original)
	b.WriteString(ContextHeader)
	for i := range docs {
		if i == maxContextDocs {
			break
		}
		d := &docs[i]
		fmt.Fprintf(&b, "\n--- From %s (Similarity: %.1f%%) ---\n", d.FileName(), d.SimilarityScore()*100)
		b.WriteString(d.RelevantText())
		b.WriteByte('\n')

		findings := d.KeyFindings()
		if len(findings) == 0 {
			continue
		}
		b.WriteString("\nKey Findings:\n")
		for j, f := range findings {
			if j == maxFindingsPerDoc {
				break
			}
			b.WriteString("• ")
			b.WriteString(f)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
