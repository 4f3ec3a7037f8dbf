package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assessdex/internal/db"
)

// Cache layers, used as the "layer" metric label.
const (
	LayerLRU   = "lru"
	LayerStore = "store"
)

// cacheKey hashes namespace and text so vectors of different models never mix.
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.opts.Namespace + "\x00" + text))
	return c.opts.KeyPrefix + "emb_cache:" + hex.EncodeToString(sum[:])
}

// lookup consults the LRU, then the store. A store hit is promoted into the LRU.
func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	if c.lru != nil {
		vec, ok := c.lru.Get(key)
		c.count(LayerLRU, ok)
		if ok {
			return vec, true
		}
	}
	if c.store == nil {
		return nil, false
	}
	vec, ok := c.load(ctx, key)
	c.count(LayerStore, ok)
	if ok && c.lru != nil {
		c.lru.Add(key, vec)
	}
	return vec, ok
}

// remember writes vec to every enabled layer. Store failures only log.
func (c *CachedEmbedder) remember(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if c.lru != nil {
		c.lru.Add(key, vec)
	}
	if c.store == nil {
		return
	}
	data := encodeVector(vec)
	var err error
	if c.opts.StoreTTL > 0 {
		err = c.store.SetWithTTL(ctx, key, data, c.opts.StoreTTL)
	} else {
		err = c.store.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Embedding not cached", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) load(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Debug("Ignoring unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) count(layer string, hit bool) {
	if c.cacheTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheTotal.WithLabelValues(layer, result).Inc()
}
