package filter

import (
	"github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/module"
)

// Filter restricts the candidate set of a similarity search.
// A zero Filter matches every stored embedding (cross-assessment search).
type Filter struct {
	assessmentID      int64
	moduleTypes       []module.Type
	excludeDocumentID string
}

// New creates a filter. assessmentID <= 0 means "any assessment";
// an empty moduleTypes list means "any module".
func New(assessmentID int64, moduleTypes []module.Type) Filter {
	if assessmentID < 0 {
		assessmentID = 0
	}
	var mt []module.Type
	if len(moduleTypes) > 0 {
		mt = make([]module.Type, len(moduleTypes))
		copy(mt, moduleTypes)
	}
	return Filter{assessmentID: assessmentID, moduleTypes: mt}
}

// ExcludingDocument returns a copy that also drops every chunk of documentID.
func (f Filter) ExcludingDocument(documentID string) Filter {
	f.excludeDocumentID = documentID
	return f
}

// AssessmentID returns the assessment restriction, if any.
func (f Filter) AssessmentID() (int64, bool) { return f.assessmentID, f.assessmentID > 0 }

// ModuleTypes returns the module restriction (empty = any).
func (f Filter) ModuleTypes() []module.Type { return f.moduleTypes }

// ExcludedDocument returns the excluded document id, if any.
func (f Filter) ExcludedDocument() string { return f.excludeDocumentID }

// Matches reports whether e belongs to the candidate set.
func (f Filter) Matches(e *document.Embedding) bool {
	if f.assessmentID > 0 && e.AssessmentID() != f.assessmentID {
		return false
	}
	if f.excludeDocumentID != "" && e.DocumentID() == f.excludeDocumentID {
		return false
	}
	if len(f.moduleTypes) == 0 {
		return true
	}
	for _, m := range f.moduleTypes {
		if e.ModuleType() == m {
			return true
		}
	}
	return false
}
