package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length in characters.
	MaxQueryLength   = 8192
	DefaultTopK      = 5
	MaxTopK          = 100
	DefaultThreshold = 0.7
)

// Request is a validated semantic search query.
type Request struct {
	query           string
	filter          filter.Filter
	topK            int
	threshold       float64
	includeMetadata bool
}

// New validates and normalizes search parameters.
// topK 0 means DefaultTopK and is clamped to MaxTopK; a nil threshold means DefaultThreshold.
func New(
	query string,
	f filter.Filter,
	topK int,
	threshold *float64,
	includeMetadata bool,
) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, domain.ErrEmptyQuery
	}
	if len([]rune(query)) > MaxQueryLength {
		return Request{}, domain.NewValidationError("query", fmt.Sprintf("too long (max %d chars)", MaxQueryLength))
	}
	k, err := normalizeTopK(topK)
	if err != nil {
		return Request{}, err
	}
	th, err := normalizeThreshold(threshold)
	if err != nil {
		return Request{}, err
	}

	return Request{
		query:           query,
		filter:          f,
		topK:            k,
		threshold:       th,
		includeMetadata: includeMetadata,
	}, nil
}

func normalizeTopK(topK int) (int, error) {
	switch {
	case topK < 0:
		return 0, domain.NewValidationError("topK", "must not be negative")
	case topK == 0:
		return DefaultTopK, nil
	case topK > MaxTopK:
		return MaxTopK, nil
	default:
		return topK, nil
	}
}

func normalizeThreshold(threshold *float64) (float64, error) {
	if threshold == nil {
		return DefaultThreshold, nil
	}
	if *threshold < -1 || *threshold > 1 {
		return 0, domain.NewValidationError("similarityThreshold", "must be between -1 and 1")
	}
	return *threshold, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Filter returns the candidate restriction.
func (r *Request) Filter() filter.Filter { return r.filter }

// TopK returns the maximum number of results.
func (r *Request) TopK() int { return r.topK }

// Threshold returns the minimum similarity a result must reach.
func (r *Request) Threshold() float64 { return r.threshold }

// IncludeMetadata reports whether chunk metadata is returned.
func (r *Request) IncludeMetadata() bool { return r.includeMetadata }
