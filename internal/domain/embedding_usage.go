package domain

import (
	"context"
	"sync"
)

type usageKey struct{}

// EmbeddingUsage accumulates the tokens one caller operation spent on embeddings.
// An operation is an API request, a CLI command or an SDK call. Rebuild workers
// share one collector, so AddTokens is safe for concurrent use. Read the fields
// only after the operation has returned.
type EmbeddingUsage struct {
	mu          sync.Mutex
	TotalTokens int
	// Used is set on every embedding call, including cache hits that cost 0 tokens.
	Used bool
}

// NewContextWithUsage attaches a fresh collector to ctx.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := new(EmbeddingUsage)
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext returns the collector attached to ctx, or nil.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	if u, ok := ctx.Value(usageKey{}).(*EmbeddingUsage); ok {
		return u
	}
	return nil
}

// AddTokens is a no-op on a nil collector.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.TotalTokens += n
	u.Used = true
	u.mu.Unlock()
}
