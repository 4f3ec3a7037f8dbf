// Package document holds the persisted per-chunk embedding aggregate.
package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Params carries every field of an Embedding. Used by New and Reconstruct.
type Params struct {
	DocumentID     string
	FileName       string
	ContentType    string
	ExtractedText  string
	Vector         []float32
	AssessmentID   int64
	AssessmentName string
	ModuleType     module.Type
	KeyFindings    []string
	ChunkIndex     int
	TotalChunks    int
	Metadata       map[string]any
	CreatedAt      time.Time
	LastUpdated    time.Time
}

// Embedding is one chunk of an uploaded document together with its vector
// (immutable value object). All chunks of a document share DocumentID,
// FileName and TotalChunks.
type Embedding struct {
	id             string
	documentID     string
	fileName       string
	contentType    string
	extractedText  string
	vector         []float32
	assessmentID   int64
	assessmentName string
	moduleType     module.Type
	keyFindings    []string
	chunkIndex     int
	totalChunks    int
	metadata       map[string]any
	createdAt      time.Time
	lastUpdated    time.Time
}

// New validates and creates an Embedding.
func New(p Params) (Embedding, error) {
	if err := ValidateDocumentID(p.DocumentID); err != nil {
		return Embedding{}, err
	}
	if strings.TrimSpace(p.FileName) == "" {
		return Embedding{}, domain.NewValidationError("fileName", "is required")
	}
	if p.AssessmentID <= 0 {
		return Embedding{}, domain.NewValidationError("assessmentId", "must be positive")
	}
	if !p.ModuleType.IsValid() {
		return Embedding{}, fmt.Errorf("%w: %q", domain.ErrInvalidModuleType, p.ModuleType)
	}
	if p.TotalChunks <= 0 {
		return Embedding{}, domain.NewValidationError("totalChunks", "must be positive")
	}
	if p.ChunkIndex < 0 || p.ChunkIndex >= p.TotalChunks {
		return Embedding{}, domain.NewValidationError("chunkIndex",
			fmt.Sprintf("%d out of range [0, %d)", p.ChunkIndex, p.TotalChunks))
	}
	if len(p.Vector) == 0 {
		return Embedding{}, domain.NewValidationError("embeddingVector", "is required")
	}
	if p.AssessmentName == "" {
		p.AssessmentName = domain.UnknownAssessmentName
	}
	if p.LastUpdated.IsZero() {
		p.LastUpdated = p.CreatedAt
	}
	return Reconstruct(p), nil
}

// Reconstruct creates an Embedding without validation (storage hydration).
func Reconstruct(p Params) Embedding {
	return Embedding{
		id:             EmbeddingID(p.DocumentID, p.ChunkIndex),
		documentID:     p.DocumentID,
		fileName:       p.FileName,
		contentType:    p.ContentType,
		extractedText:  p.ExtractedText,
		vector:         p.Vector,
		assessmentID:   p.AssessmentID,
		assessmentName: p.AssessmentName,
		moduleType:     p.ModuleType,
		keyFindings:    cloneStrings(p.KeyFindings),
		chunkIndex:     p.ChunkIndex,
		totalChunks:    p.TotalChunks,
		metadata:       cloneMeta(p.Metadata),
		createdAt:      p.CreatedAt,
		lastUpdated:    p.LastUpdated,
	}
}

// ValidateDocumentID checks the document identifier format.
func ValidateDocumentID(id string) error {
	if id == "" {
		return domain.NewValidationError("documentId", "is required")
	}
	if len(id) > 128 || !idRegex.MatchString(id) {
		return domain.NewValidationError("documentId", "must be 1-128 alphanumeric, underscore or hyphen characters")
	}
	return nil
}

// EmbeddingID builds the identifier of one chunk: "{documentId}:{chunkIndex}".
func EmbeddingID(documentID string, chunkIndex int) string {
	return documentID + ":" + strconv.Itoa(chunkIndex)
}

// ParseEmbeddingID splits an embedding identifier. ok is false for a bare document id.
func ParseEmbeddingID(id string) (documentID string, chunkIndex int, ok bool) {
	docID, idx, found := strings.Cut(id, ":")
	if !found {
		return id, 0, false
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return id, 0, false
	}
	return docID, n, true
}

// ID returns the embedding identifier.
func (e *Embedding) ID() string { return e.id }

// DocumentID returns the parent document identifier.
func (e *Embedding) DocumentID() string { return e.documentID }

// FileName returns the uploaded file name.
func (e *Embedding) FileName() string { return e.fileName }

// ContentType returns the uploaded content type.
func (e *Embedding) ContentType() string { return e.contentType }

// ExtractedText returns the chunk text.
func (e *Embedding) ExtractedText() string { return e.extractedText }

// Vector returns the embedding vector.
func (e *Embedding) Vector() []float32 { return e.vector }

// AssessmentID returns the owning assessment.
func (e *Embedding) AssessmentID() int64 { return e.assessmentID }

// AssessmentName returns the owning assessment's display name.
func (e *Embedding) AssessmentName() string { return e.assessmentName }

// ModuleType returns the assessment module the document belongs to.
func (e *Embedding) ModuleType() module.Type { return e.moduleType }

// KeyFindings returns the extracted key phrases.
func (e *Embedding) KeyFindings() []string { return e.keyFindings }

// ChunkIndex returns the 0-based position among sibling chunks.
func (e *Embedding) ChunkIndex() int { return e.chunkIndex }

// TotalChunks returns the number of chunks in the parent document.
func (e *Embedding) TotalChunks() int { return e.totalChunks }

// Metadata returns the open key-value map.
func (e *Embedding) Metadata() map[string]any { return e.metadata }

// CreatedAt returns when the chunk was first stored.
func (e *Embedding) CreatedAt() time.Time { return e.createdAt }

// LastUpdated returns when the vector was last regenerated.
func (e *Embedding) LastUpdated() time.Time { return e.lastUpdated }

// Params returns all fields, e.g. for persistence.
func (e *Embedding) Params() Params {
	return Params{
		DocumentID:     e.documentID,
		FileName:       e.fileName,
		ContentType:    e.contentType,
		ExtractedText:  e.extractedText,
		Vector:         e.vector,
		AssessmentID:   e.assessmentID,
		AssessmentName: e.assessmentName,
		ModuleType:     e.moduleType,
		KeyFindings:    e.keyFindings,
		ChunkIndex:     e.chunkIndex,
		TotalChunks:    e.totalChunks,
		Metadata:       e.metadata,
		CreatedAt:      e.createdAt,
		LastUpdated:    e.lastUpdated,
	}
}

// WithVector returns a copy carrying a regenerated vector.
func (e *Embedding) WithVector(v []float32, updatedAt time.Time) Embedding {
	c := *e
	c.vector = v
	c.lastUpdated = updatedAt
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
