package document

import (
	"context"
	"time"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
	"github.com/kailas-cloud/assessdex/internal/usecase/embedding"
)

// Repository defines the storage contract for chunk embeddings.
type Repository interface {
	Save(ctx context.Context, embeddings []domdoc.Embedding) error
	Replace(ctx context.Context, documentID string, embeddings []domdoc.Embedding) error
	GetByDocument(ctx context.Context, documentID string) ([]domdoc.Embedding, error)
	List(ctx context.Context, f filter.Filter) ([]domdoc.Embedding, int, error)
	DocumentIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, documentID string) (bool, error)
	SetLastRebuild(ctx context.Context, at time.Time) error
	LastRebuild(ctx context.Context) (time.Time, bool, error)
}

// Generator produces soft-failure embeddings.
type Generator interface {
	Generate(ctx context.Context, text string) domain.GenerationResult
	GenerateBatch(ctx context.Context, texts []string) []domain.GenerationResult
}

// Splitter cuts extracted text into chunks.
type Splitter interface {
	Split(text string, meta map[string]any) []chunk.Chunk
}

// BudgetReporter exposes token budget usage for stats.
type BudgetReporter interface {
	Usage() embedding.BudgetUsage
}
