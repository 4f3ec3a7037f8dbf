package embcache

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/db"
	"github.com/kailas-cloud/assessdex/internal/domain"
)

// --- Mocks ---

// fakeProvider returns a one-element vector holding the text length and
// charges 10 tokens per text.
type fakeProvider struct {
	err     error
	short   bool // drop the last embedding of a batch
	singles []string
	batches [][]string
}

func vectorFor(text string) []float32 { return []float32{float32(len(text))} }

func (p *fakeProvider) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	p.singles = append(p.singles, text)
	if p.err != nil {
		return domain.EmbeddingResult{}, p.err
	}
	return domain.EmbeddingResult{Embedding: vectorFor(text), PromptTokens: 10, TotalTokens: 10}, nil
}

func (p *fakeProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	p.batches = append(p.batches, append([]string(nil), texts...))
	if p.err != nil {
		return domain.BatchEmbeddingResult{}, p.err
	}
	res := domain.BatchEmbeddingResult{PromptTokens: 10 * len(texts), TotalTokens: 10 * len(texts)}
	for _, t := range texts {
		res.Embeddings = append(res.Embeddings, vectorFor(t))
	}
	if p.short {
		res.Embeddings = res.Embeddings[:len(res.Embeddings)-1]
	}
	return res, nil
}

// fakeStore is an in-memory KV that counts reads and remembers TTLs.
type fakeStore struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	reads   int
	readErr error
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.reads++
	if s.readErr != nil {
		return nil, s.readErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *fakeStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

func (s *fakeStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

var errStoreDown = errors.New("store down")

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"layer", "result"})
}

func newCache(p *fakeProvider, s *fakeStore, opts Options) (*CachedEmbedder, *prometheus.CounterVec) {
	counter := newCounter()
	if opts.Namespace == "" {
		opts.Namespace = "test:model:1"
	}
	var st store
	if s != nil {
		st = s
	}
	return New(p, st, opts, counter, zap.NewNop()), counter
}
