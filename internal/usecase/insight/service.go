// Package insight mines patterns that recur across different assessments.
package insight

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/domain"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	dominsight "github.com/kailas-cloud/assessdex/internal/domain/insight"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
	"github.com/kailas-cloud/assessdex/internal/logger"
	"github.com/kailas-cloud/assessdex/internal/metrics"
	"github.com/kailas-cloud/assessdex/internal/usecase/search"
)

// Defaults for pattern mining.
const (
	DefaultThreshold       = 0.8
	DefaultPerChunkTopK    = 5
	DefaultBandWidth       = 0.05
	DefaultMaxInsights     = 3
	DefaultMaxSourceChunks = 50
	MaxInsights            = 20

	maxPatternTerms = 3
)

// Config tunes the miner. Zero values fall back to the defaults, except
// Threshold where only nil does.
type Config struct {
	Threshold       *float64
	PerChunkTopK    int
	BandWidth       float64
	DefaultMax      int
	MaxSourceChunks int
}

func (c Config) withDefaults() Config {
	if c.Threshold == nil {
		t := DefaultThreshold
		c.Threshold = &t
	}
	if c.PerChunkTopK <= 0 {
		c.PerChunkTopK = DefaultPerChunkTopK
	}
	if c.BandWidth <= 0 {
		c.BandWidth = DefaultBandWidth
	}
	if c.DefaultMax <= 0 {
		c.DefaultMax = DefaultMaxInsights
	}
	if c.MaxSourceChunks <= 0 {
		c.MaxSourceChunks = DefaultMaxSourceChunks
	}
	return c
}

// Service finds cross-assessment insights.
type Service struct {
	repo          Repository
	cfg           Config
	previewLength int
}

// New creates an insight service.
func New(repo Repository, cfg Config) *Service {
	return &Service{repo: repo, cfg: cfg.withDefaults(), previewLength: result.DefaultPreviewLength}
}

// WithPreviewLength bounds RelevantText of related documents.
func (s *Service) WithPreviewLength(n int) *Service {
	s.previewLength = n
	return s
}

// FindInsights returns up to maxInsights patterns shared between the target
// assessment's module chunks and chunks of other assessments in the same module.
// maxInsights <= 0 means the configured default.
func (s *Service) FindInsights(
	ctx context.Context, assessmentID int64, moduleType string, maxInsights int,
) ([]dominsight.Insight, error) {
	start := time.Now()

	if assessmentID <= 0 {
		return nil, domain.NewValidationError("assessmentId", "must be positive")
	}
	mt, err := module.Parse(moduleType)
	if err != nil {
		return nil, err //nolint:wrapcheck // domain sentinel
	}
	switch {
	case maxInsights <= 0:
		maxInsights = s.cfg.DefaultMax
	case maxInsights > MaxInsights:
		maxInsights = MaxInsights
	}

	pool, skipped, err := s.repo.List(ctx, filter.New(0, []module.Type{mt}))
	if err != nil {
		return nil, fmt.Errorf("load %s chunks: %w", mt, err)
	}
	if skipped > 0 {
		logger.FromContext(ctx).Warn("Skipped malformed embedding records", zap.Int("count", skipped))
	}

	targets := s.targets(pool, assessmentID)
	candidates := foreign(pool, assessmentID)
	byKey := make(map[string]dominsight.Insight)
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("find insights: %w", err)
		}

		matches := search.Rank(target.Vector(), candidates, s.cfg.PerChunkTopK, *s.cfg.Threshold, s.previewLength, false)

		for _, band := range Bands(matches, s.cfg.BandWidth) {
			in, ok := s.build(target, mt, band)
			if !ok {
				continue
			}
			key := in.MemberKey()
			if prev, seen := byKey[key]; !seen || in.Confidence() > prev.Confidence() {
				byKey[key] = in
			}
		}
	}

	out := make([]dominsight.Insight, 0, len(byKey))
	for _, in := range byKey {
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence() != out[j].Confidence() {
			return out[i].Confidence() > out[j].Confidence()
		}
		return out[i].MemberKey() < out[j].MemberKey()
	})
	if len(out) > maxInsights {
		out = out[:maxInsights]
	}

	metrics.SearchDuration.WithLabelValues(metrics.SearchKindInsight).Observe(time.Since(start).Seconds())
	metrics.SearchResults.WithLabelValues(metrics.SearchKindInsight).Observe(float64(len(out)))
	logger.FromContext(ctx).Debug("Insights mined",
		zap.Int64("assessment_id", assessmentID),
		zap.String("module_type", mt.String()),
		zap.Int("source_chunks", len(targets)),
		zap.Int("insights", len(out)),
	)
	return out, nil
}

// foreign returns the chunks of every other assessment. Chunks of the target
// assessment never count as matches, whichever document they come from.
func foreign(pool []domdoc.Embedding, assessmentID int64) []domdoc.Embedding {
	out := make([]domdoc.Embedding, 0, len(pool))
	for i := range pool {
		if pool[i].AssessmentID() != assessmentID {
			out = append(out, pool[i])
		}
	}
	return out
}

// targets returns the assessment's chunks in a stable order, capped at MaxSourceChunks.
func (s *Service) targets(pool []domdoc.Embedding, assessmentID int64) []*domdoc.Embedding {
	var out []*domdoc.Embedding
	for i := range pool {
		if pool[i].AssessmentID() == assessmentID {
			out = append(out, &pool[i])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID() != out[j].DocumentID() {
			return out[i].DocumentID() < out[j].DocumentID()
		}
		return out[i].ChunkIndex() < out[j].ChunkIndex()
	})
	if len(out) > s.cfg.MaxSourceChunks {
		out = out[:s.cfg.MaxSourceChunks]
	}
	return out
}

func (s *Service) build(target *domdoc.Embedding, mt module.Type, band []result.Result) (dominsight.Insight, bool) {
	ids := []int64{target.AssessmentID()}
	var sum float64
	for i := range band {
		ids = append(ids, band[i].AssessmentID())
		sum += band[i].SimilarityScore()
	}

	in := dominsight.New(mt, "", "", ids, sum/float64(len(band)))
	if len(in.AssessmentIDs()) < 2 {
		return dominsight.Insight{}, false
	}

	others := len(in.AssessmentIDs()) - 1
	pattern := fmt.Sprintf("Similar %s patterns found across %d other assessments", mt, others)
	findings := [][]string{target.KeyFindings()}
	for i := range band {
		findings = append(findings, band[i].KeyFindings())
	}
	if terms := CommonTerms(findings, maxPatternTerms); len(terms) > 0 {
		pattern += ": " + strings.Join(terms, ", ")
	}

	top := band[0]
	recommendation := fmt.Sprintf(
		"Consider applying insights from '%s' which had similar %s characteristics (similarity: %.1f%%)",
		top.AssessmentName(), mt, top.SimilarityScore()*100,
	)

	return dominsight.New(mt, pattern, recommendation, ids, in.Confidence()).WithRelated(band), true
}

// Bands groups score-sorted results into clusters. A band starts at its best
// score and takes every following result within width of it.
func Bands(sorted []result.Result, width float64) [][]result.Result {
	var bands [][]result.Result
	for i := 0; i < len(sorted); {
		head := sorted[i].SimilarityScore()
		j := i + 1
		for j < len(sorted) && head-sorted[j].SimilarityScore() <= width {
			j++
		}
		bands = append(bands, sorted[i:j])
		i = j
	}
	return bands
}

var stopwords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "were": {}, "been": {},
	"will": {}, "should": {}, "which": {}, "their": {}, "there": {}, "they": {}, "into": {},
	"more": {}, "must": {}, "also": {}, "than": {}, "when": {}, "where": {}, "some": {},
	"such": {}, "these": {}, "those": {}, "very": {}, "each": {}, "only": {}, "other": {},
}

// CommonTerms returns up to n lowercase words (length >= 4, stopwords dropped)
// found in the findings of at least two members, most frequent first.
func CommonTerms(members [][]string, n int) []string {
	counts := make(map[string]int)
	for _, findings := range members {
		seen := make(map[string]struct{})
		for _, f := range findings {
			for _, w := range strings.FieldsFunc(strings.ToLower(f), notWordRune) {
				if len([]rune(w)) < 4 {
					continue
				}
				if _, stop := stopwords[w]; stop {
					continue
				}
				seen[w] = struct{}{}
			}
		}
		for w := range seen {
			counts[w]++
		}
	}

	terms := make([]string, 0, len(counts))
	for w, c := range counts {
		if c >= 2 {
			terms = append(terms, w)
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
}
