package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document or embedding.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidInput signals a malformed request parameter.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidModuleType signals a module type outside the recognized set.
	ErrInvalidModuleType = errors.New("invalid module type")
	// ErrEmptyQuery signals a blank search query.
	ErrEmptyQuery = errors.New("query is required")
	// ErrFileTooLarge signals an upload above the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrEmptyDocument signals an upload without extractable text.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRebuildInProgress signals an overlapping rebuild request.
	ErrRebuildInProgress = errors.New("rebuild already in progress")
)

// ValidationError carries the offending field together with ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a field-level validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
