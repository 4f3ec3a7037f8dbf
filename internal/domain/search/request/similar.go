package request

import (
	"strings"

	"github.com/kailas-cloud/assessdex/internal/domain"
)

// SimilarRequest is a validated "find similar documents" query.
// ID is either an embedding id ("{documentId}:{chunkIndex}") or a bare document id.
type SimilarRequest struct {
	id        string
	topK      int
	threshold float64
}

// NewSimilar validates and normalizes similar request parameters.
func NewSimilar(id string, topK int, threshold *float64) (SimilarRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return SimilarRequest{}, domain.NewValidationError("documentId", "is required")
	}
	k, err := normalizeTopK(topK)
	if err != nil {
		return SimilarRequest{}, err
	}
	th, err := normalizeThreshold(threshold)
	if err != nil {
		return SimilarRequest{}, err
	}
	return SimilarRequest{id: id, topK: k, threshold: th}, nil
}

// ID returns the source embedding or document id.
func (r *SimilarRequest) ID() string { return r.id }

// TopK returns the maximum number of results.
func (r *SimilarRequest) TopK() int { return r.topK }

// Threshold returns the minimum similarity a result must reach.
func (r *SimilarRequest) Threshold() float64 { return r.threshold }
