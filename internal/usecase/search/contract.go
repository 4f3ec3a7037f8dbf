package search

import (
	"context"

	"github.com/kailas-cloud/assessdex/internal/domain"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
)

// Repository defines the storage contract for similarity search.
type Repository interface {
	List(ctx context.Context, f filter.Filter) ([]domdoc.Embedding, int, error)
	GetChunk(ctx context.Context, documentID string, chunkIndex int) (domdoc.Embedding, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
