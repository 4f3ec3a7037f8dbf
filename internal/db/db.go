// Package db defines the storage contracts shared by the redis, sqlite and
// memory backends. Chunk records live in hashes and counters in plain keys.
package db

import (
	"context"
	"fmt"
	"time"
)

// Store is what the application opens at startup. Repositories take the
// narrower interfaces below.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Store interface {
	Pinger
	HashStore
	KVStore
	Replacer
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one hash to write: a chunk key and its fields.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore reads chunk records. Missing hashes read as empty maps; writes go
// through Replacer so a document's chunks always change together.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
	// Scan lists keys matching a glob pattern, each once, in no particular order.
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Replacer is the only hash write path: new documents pass no delKeys,
// rebuilds pass the old chunk keys.
type Replacer interface {
	// HReplace deletes delKeys and writes items so that readers observe either
	// the old set or the new one, never a mix.
	HReplace(ctx context.Context, delKeys []string, items []HashSetItem) error
}

// KVStore holds cached vectors and budget counters. Get returns ErrKeyNotFound
// for missing keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	// Expire sets a TTL. With nx it leaves an existing TTL alone.
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

const (
	readyFirstDelay = 50 * time.Millisecond
	readyMaxDelay   = time.Second
)

// WaitForReady pings p with doubling delays until it answers or timeout passes.
// The returned error carries the last ping failure.
func WaitForReady(ctx context.Context, p Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := readyFirstDelay
	for attempt := 1; ; attempt++ {
		err := p.Ping(ctx)
		if err == nil {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("store not ready after %d attempts: %w (last error: %v)", attempt, ctx.Err(), err)
		case <-timer.C:
		}
		delay = min(delay*2, readyMaxDelay)
	}
}
