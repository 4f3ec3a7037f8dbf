// Package insight models cross-assessment patterns mined from similar chunks.
package insight

import (
	"sort"
	"strconv"

	"github.com/kailas-cloud/assessdex/internal/domain/module"
	"github.com/kailas-cloud/assessdex/internal/domain/search/result"
)

// Insight is a pattern shared by chunks of at least two different assessments.
type Insight struct {
	pattern        string
	assessmentIDs  []int64
	confidence     float64
	recommendation string
	moduleType     module.Type
	related        []result.Result
}

// New creates an insight. Assessment ids are deduplicated and sorted.
func New(moduleType module.Type, pattern, recommendation string, assessmentIDs []int64, confidence float64) Insight {
	return Insight{
		pattern:        pattern,
		assessmentIDs:  normalizeIDs(assessmentIDs),
		confidence:     confidence,
		recommendation: recommendation,
		moduleType:     moduleType,
	}
}

func normalizeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WithRelated returns a copy carrying the chunks that make up the pattern.
func (i Insight) WithRelated(related []result.Result) Insight {
	i.related = make([]result.Result, len(related))
	copy(i.related, related)
	return i
}

// RelatedDocuments returns the pattern members, highest score first.
func (i Insight) RelatedDocuments() []result.Result { return i.related }

// Pattern returns the human readable pattern description.
func (i Insight) Pattern() string { return i.pattern }

// AssessmentIDs returns the sorted ids of the assessments sharing the pattern.
func (i Insight) AssessmentIDs() []int64 {
	out := make([]int64, len(i.assessmentIDs))
	copy(out, i.assessmentIDs)
	return out
}

// Confidence returns the mean similarity of the pattern members.
func (i Insight) Confidence() float64 { return i.confidence }

// Recommendation returns the suggested follow-up.
func (i Insight) Recommendation() string { return i.recommendation }

// ModuleType returns the module the pattern was found in.
func (i Insight) ModuleType() module.Type { return i.moduleType }

// MemberKey identifies the assessment set, used to drop duplicate patterns.
func (i Insight) MemberKey() string {
	b := make([]byte, 0, len(i.assessmentIDs)*8)
	for n, id := range i.assessmentIDs {
		if n > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, id, 10)
	}
	return string(b)
}
