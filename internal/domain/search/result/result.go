package result

import (
	"time"

	"github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
)

// DefaultPreviewLength bounds RelevantText in search results.
const DefaultPreviewLength = 500

const ellipsis = "..."

// Params carries every field of a Result.
type Params struct {
	EmbeddingID     string
	DocumentID      string
	FileName        string
	ChunkIndex      int
	RelevantText    string
	SimilarityScore float64
	AssessmentID    int64
	AssessmentName  string
	ModuleType      module.Type
	KeyFindings     []string
	Metadata        map[string]any
	CreatedAt       time.Time
}

// Result is a single semantic search hit. Never persisted.
type Result struct {
	p Params
}

// New creates a search result.
func New(p Params) Result { return Result{p: p} }

// FromEmbedding builds a result for a scored chunk, truncating the text to previewLength.
// Metadata is carried only when includeMetadata is set.
func FromEmbedding(e *document.Embedding, score float64, previewLength int, includeMetadata bool) Result {
	var meta map[string]any
	if includeMetadata {
		meta = e.Metadata()
	}
	return Result{p: Params{
		EmbeddingID:     e.ID(),
		DocumentID:      e.DocumentID(),
		FileName:        e.FileName(),
		ChunkIndex:      e.ChunkIndex(),
		RelevantText:    Preview(e.ExtractedText(), previewLength),
		SimilarityScore: score,
		AssessmentID:    e.AssessmentID(),
		AssessmentName:  e.AssessmentName(),
		ModuleType:      e.ModuleType(),
		KeyFindings:     e.KeyFindings(),
		Metadata:        meta,
		CreatedAt:       e.CreatedAt(),
	}}
}

// Preview shortens text to at most maxLen characters, replacing the tail with "...".
// maxLen <= 0 disables truncation.
func Preview(text string, maxLen int) string {
	if maxLen <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	if maxLen <= len(ellipsis) {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-len(ellipsis)]) + ellipsis
}

// EmbeddingID returns the matched chunk identifier.
func (r *Result) EmbeddingID() string { return r.p.EmbeddingID }

// DocumentID returns the parent document identifier.
func (r *Result) DocumentID() string { return r.p.DocumentID }

// FileName returns the source file name.
func (r *Result) FileName() string { return r.p.FileName }

// ChunkIndex returns the matched chunk position.
func (r *Result) ChunkIndex() int { return r.p.ChunkIndex }

// RelevantText returns the (possibly truncated) chunk text.
func (r *Result) RelevantText() string { return r.p.RelevantText }

// SimilarityScore returns the cosine similarity to the query.
func (r *Result) SimilarityScore() float64 { return r.p.SimilarityScore }

// AssessmentID returns the owning assessment.
func (r *Result) AssessmentID() int64 { return r.p.AssessmentID }

// AssessmentName returns the owning assessment's name.
func (r *Result) AssessmentName() string { return r.p.AssessmentName }

// ModuleType returns the module of the matched chunk.
func (r *Result) ModuleType() module.Type { return r.p.ModuleType }

// KeyFindings returns the chunk's key findings.
func (r *Result) KeyFindings() []string { return r.p.KeyFindings }

// Metadata returns chunk metadata (nil unless requested).
func (r *Result) Metadata() map[string]any { return r.p.Metadata }

// CreatedAt returns when the chunk was stored.
func (r *Result) CreatedAt() time.Time { return r.p.CreatedAt }
