package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/assessdex/internal/db"
	"github.com/kailas-cloud/assessdex/internal/domain"
	domdoc "github.com/kailas-cloud/assessdex/internal/domain/document"
	"github.com/kailas-cloud/assessdex/internal/domain/search/filter"
)

// fetchBatch bounds the number of hashes requested in one HGetAllMulti round-trip.
const fetchBatch = 256

const lastRebuildKey = "meta:last_rebuild_at"

// store is the consumer interface for embedding records (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	HReplace(ctx context.Context, delKeys []string, items []db.HashSetItem) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo stores one hash per chunk under {prefix}emb:{<documentId>}:<chunkIndex>.
// The braces form a hash tag so every chunk of a document lands in one cluster slot.
type Repo struct {
	store  store
	prefix string
}

// New creates an embedding repository. An empty prefix falls back to domain.KeyPrefix.
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = domain.KeyPrefix
	}
	return &Repo{store: s, prefix: prefix}
}

// Save writes embeddings as one transaction: either every chunk is stored or none is.
func (r *Repo) Save(ctx context.Context, embeddings []domdoc.Embedding) error {
	items, err := r.hashItems(embeddings)
	if err != nil {
		return err
	}
	if err := r.store.HReplace(ctx, nil, items); err != nil {
		return fmt.Errorf("save %d embeddings: %w", len(items), err)
	}
	return nil
}

// Replace atomically swaps every stored chunk of documentID for embeddings.
func (r *Repo) Replace(ctx context.Context, documentID string, embeddings []domdoc.Embedding) error {
	if err := domdoc.ValidateDocumentID(documentID); err != nil {
		return err
	}
	for i := range embeddings {
		if embeddings[i].DocumentID() != documentID {
			return fmt.Errorf("replace %s: embedding belongs to %s: %w",
				documentID, embeddings[i].DocumentID(), domain.ErrInvalidInput)
		}
	}
	existing, err := r.store.Scan(ctx, r.documentPattern(documentID))
	if err != nil {
		return fmt.Errorf("scan %s: %w", documentID, err)
	}
	items, err := r.hashItems(embeddings)
	if err != nil {
		return err
	}
	if err := r.store.HReplace(ctx, existing, items); err != nil {
		return fmt.Errorf("replace %s: %w", documentID, err)
	}
	return nil
}

// GetByDocument returns every chunk of a document ordered by chunk index.
func (r *Repo) GetByDocument(ctx context.Context, documentID string) ([]domdoc.Embedding, error) {
	if err := domdoc.ValidateDocumentID(documentID); err != nil {
		return nil, err
	}
	keys, err := r.store.Scan(ctx, r.documentPattern(documentID))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", documentID, err)
	}
	if len(keys) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	out, _, err := r.load(ctx, keys, filter.Filter{})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex() < out[j].ChunkIndex() })
	return out, nil
}

// GetChunk returns a single chunk.
func (r *Repo) GetChunk(ctx context.Context, documentID string, chunkIndex int) (domdoc.Embedding, error) {
	if err := domdoc.ValidateDocumentID(documentID); err != nil {
		return domdoc.Embedding{}, err
	}
	key := r.key(documentID, chunkIndex)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Embedding{}, domain.ErrDocumentNotFound
		}
		return domdoc.Embedding{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domdoc.Embedding{}, domain.ErrDocumentNotFound
	}
	e, err := parseHashFields(m)
	if err != nil {
		return domdoc.Embedding{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return e, nil
}

// List returns every stored embedding accepted by f. Malformed records are
// skipped and counted in the second return value.
func (r *Repo) List(ctx context.Context, f filter.Filter) ([]domdoc.Embedding, int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"emb:*")
	if err != nil {
		return nil, 0, fmt.Errorf("scan embeddings: %w", err)
	}
	if excluded := f.ExcludedDocument(); excluded != "" {
		own := r.prefix + "emb:{" + excluded + "}:"
		kept := keys[:0]
		for _, k := range keys {
			if !strings.HasPrefix(k, own) {
				kept = append(kept, k)
			}
		}
		keys = kept
	}
	return r.load(ctx, keys, f)
}

// DocumentIDs returns the distinct ids of stored documents, sorted.
func (r *Repo) DocumentIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"emb:*")
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, k := range keys {
		id, _, ok := r.parseKey(k)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes every chunk of a document. Returns false when nothing matched.
func (r *Repo) Delete(ctx context.Context, documentID string) (bool, error) {
	if err := domdoc.ValidateDocumentID(documentID); err != nil {
		return false, err
	}
	keys, err := r.store.Scan(ctx, r.documentPattern(documentID))
	if err != nil {
		return false, fmt.Errorf("scan %s: %w", documentID, err)
	}
	if len(keys) == 0 {
		return false, nil
	}
	n, err := r.store.Del(ctx, keys...)
	if err != nil {
		return false, fmt.Errorf("del %s: %w", documentID, err)
	}
	return n > 0, nil
}

// SetLastRebuild records when the last full rebuild finished.
func (r *Repo) SetLastRebuild(ctx context.Context, at time.Time) error {
	if err := r.store.Set(ctx, r.prefix+lastRebuildKey, []byte(at.UTC().Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("set last rebuild: %w", err)
	}
	return nil
}

// LastRebuild returns the time of the last full rebuild, if any.
func (r *Repo) LastRebuild(ctx context.Context) (time.Time, bool, error) {
	raw, err := r.store.Get(ctx, r.prefix+lastRebuildKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("get last rebuild: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last rebuild %q: %w", raw, err)
	}
	return t, true, nil
}

func (r *Repo) load(ctx context.Context, keys []string, f filter.Filter) ([]domdoc.Embedding, int, error) {
	out := make([]domdoc.Embedding, 0, len(keys))
	skipped := 0
	for start := 0; start < len(keys); start += fetchBatch {
		end := min(start+fetchBatch, len(keys))
		hashes, err := r.store.HGetAllMulti(ctx, keys[start:end])
		if err != nil {
			return nil, 0, fmt.Errorf("load embeddings: %w", err)
		}
		for _, m := range hashes {
			if len(m) == 0 {
				// Deleted between SCAN and HGETALL.
				continue
			}
			e, err := parseHashFields(m)
			if err != nil {
				skipped++
				continue
			}
			if f.Matches(&e) {
				out = append(out, e)
			}
		}
	}
	return out, skipped, nil
}

func (r *Repo) hashItems(embeddings []domdoc.Embedding) ([]db.HashSetItem, error) {
	items := make([]db.HashSetItem, len(embeddings))
	for i := range embeddings {
		fields, err := buildHashFields(&embeddings[i])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", embeddings[i].ID(), err)
		}
		items[i] = db.HashSetItem{
			Key:    r.key(embeddings[i].DocumentID(), embeddings[i].ChunkIndex()),
			Fields: fields,
		}
	}
	return items, nil
}

func (r *Repo) key(documentID string, chunkIndex int) string {
	return r.prefix + "emb:{" + documentID + "}:" + strconv.Itoa(chunkIndex)
}

func (r *Repo) documentPattern(documentID string) string {
	return r.prefix + "emb:{" + documentID + "}:*"
}

func (r *Repo) parseKey(key string) (documentID string, chunkIndex int, ok bool) {
	rest, found := strings.CutPrefix(key, r.prefix+"emb:{")
	if !found {
		return "", 0, false
	}
	documentID, idx, found := strings.Cut(rest, "}:")
	if !found || documentID == "" {
		return "", 0, false
	}
	n, err := strconv.Atoi(idx)
	if err != nil {
		return "", 0, false
	}
	return documentID, n, true
}
