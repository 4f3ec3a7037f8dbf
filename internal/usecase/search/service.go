package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
	"github.com/kailas-cloud/assessdex/internal/domain/search/request"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
	"github.com/kailas-cloud/assessdex/internal/domain/vector"
	"github.com/kailas-cloud/assessdex/internal/logger"
	"github.com/kailas-cloud/assessdex/internal/metrics"
)

// Service runs exact (brute-force) cosine similarity search over stored chunks.
type Service struct {
	repo          Repository
	embed         Embedder
	previewLength int
}

// New creates a search service.
func New(repo Repository, embed Embedder) *Service {
	return &Service{repo: repo, embed: embed, previewLength: result.DefaultPreviewLength}
}

// WithPreviewLength bounds RelevantText in results. n <= 0 disables truncation.
func (s *Service) WithPreviewLength(n int) *Service {
	s.previewLength = n
	return s
}

// Query is a vector search over a filtered candidate set.
type Query struct {
	Vector          []float32
	Filter          filter.Filter
	TopK            int
	Threshold       float64
	IncludeMetadata bool
}

// Search embeds the query text and returns the best matching chunks.
// An embedding failure is returned as an error: there is nothing to search with.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Result, error) {
	start := time.Now()

	emb, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	results, err := s.SearchVector(ctx, Query{
		Vector:          emb.Embedding,
		Filter:          req.Filter(),
		TopK:            req.TopK(),
		Threshold:       req.Threshold(),
		IncludeMetadata: req.IncludeMetadata(),
	})
	if err != nil {
		return nil, err
	}

	observe(metrics.SearchKindQuery, start, len(results))
	return results, nil
}

// Similar finds chunks close to a stored chunk, excluding its whole document.
// The id is either an embedding id ("{documentId}:{chunkIndex}") or a bare
// document id, which uses the document's first chunk. An unknown id yields no results.
func (s *Service) Similar(ctx context.Context, req *request.SimilarRequest) ([]result.Result, error) {
	start := time.Now()

	docID, idx, _ := domdoc.ParseEmbeddingID(req.ID())
	source, err := s.repo.GetChunk(ctx, docID, idx)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			observe(metrics.SearchKindSimilar, start, 0)
			return []result.Result{}, nil
		}
		return nil, fmt.Errorf("get source chunk: %w", err)
	}

	results, err := s.SearchVector(ctx, Query{
		Vector:    source.Vector(),
		Filter:    filter.New(0, nil).ExcludingDocument(source.DocumentID()),
		TopK:      req.TopK(),
		Threshold: req.Threshold(),
	})
	if err != nil {
		return nil, err
	}

	observe(metrics.SearchKindSimilar, start, len(results))
	return results, nil
}

// SearchVector scores every candidate accepted by q.Filter against q.Vector.
func (s *Service) SearchVector(ctx context.Context, q Query) ([]result.Result, error) {
	candidates, skipped, err := s.repo.List(ctx, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if skipped > 0 {
		logger.FromContext(ctx).Warn("Skipped malformed embedding records", zap.Int("count", skipped))
	}

	return Rank(q.Vector, candidates, q.TopK, q.Threshold, s.previewLength, q.IncludeMetadata), nil
}

type scored struct {
	e     *domdoc.Embedding
	score float64
}

// Rank scores candidates by cosine similarity, drops those below threshold and
// returns the best topK. Order: score desc, newer createdAt first, then id.
func Rank(query []float32, candidates []domdoc.Embedding, topK int, threshold float64,
	previewLength int, includeMetadata bool,
) []result.Result {
	if topK <= 0 || len(candidates) == 0 {
		return []result.Result{}
	}

	hits := make([]scored, 0, len(candidates))
	for i := range candidates {
		score := vector.Cosine(query, candidates[i].Vector())
		if score < threshold {
			continue
		}
		hits = append(hits, scored{e: &candidates[i], score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.e.CreatedAt().Equal(b.e.CreatedAt()) {
			return a.e.CreatedAt().After(b.e.CreatedAt())
		}
		return a.e.ID() < b.e.ID()
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	out := make([]result.Result, len(hits))
	for i, h := range hits {
		out[i] = result.FromEmbedding(h.e, h.score, previewLength, includeMetadata)
	}
	return out
}

func observe(kind string, start time.Time, n int) {
	metrics.SearchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	metrics.SearchResults.WithLabelValues(kind).Observe(float64(n))
}
