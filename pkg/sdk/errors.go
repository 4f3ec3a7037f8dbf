package assessdex

import "github.com/kailas-cloud/assessdex/internal/domain"

// Errors returned by Client methods, wrapped with context. Match them with errors.Is.
var (
	// Caller mistakes.
	ErrInvalidInput      = domain.ErrInvalidInput
	ErrInvalidModuleType = domain.ErrInvalidModuleType
	ErrEmptyQuery        = domain.ErrEmptyQuery
	ErrEmptyDocument     = domain.ErrEmptyDocument
	ErrFileTooLarge      = domain.ErrFileTooLarge
	ErrDocumentNotFound  = domain.ErrDocumentNotFound

	// The embedder produced vectors of a different size than the stored ones.
	// Rebuild the store after switching models.
	ErrVectorDimMismatch = domain.ErrVectorDimMismatch

	// Embedding provider trouble. Retrying later may help.
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError

	ErrRebuildInProgress = domain.ErrRebuildInProgress
)
