package insight

import (
	"context"

	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
)

// Repository loads stored chunks for pattern mining.
type Repository interface {
	List(ctx context.Context, f filter.Filter) ([]domdoc.Embedding, int, error)
}
