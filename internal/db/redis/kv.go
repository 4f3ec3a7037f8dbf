package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/assessdex/internal/db"
)

// Get returns db.ErrKeyNotFound for a missing key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	switch {
	case rueidis.IsRedisNil(err):
		return nil, db.ErrKeyNotFound
	case err != nil:
		return nil, fail(db.OpGet, err)
	}
	return data, nil
}

// Set writes value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.set(ctx, key, value, 0)
}

// SetWithTTL writes value with expiry ttl. Cached embeddings use it.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.set(ctx, key, value, ttl)
}

func (s *Store) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	base := s.b().Set().Key(key).Value(rueidis.BinaryString(value))
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = base.Ex(ttl).Build()
	} else {
		cmd = base.Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return fail(db.OpSet, err)
	}
	return nil
}

// IncrBy adds val to the counter at key, creating it at zero.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.do(ctx, s.b().Incrby().Key(key).Increment(val).Build()).Error(); err != nil {
		return fail(db.OpIncrBy, err)
	}
	return nil
}

// Expire sets a TTL in whole seconds. With nx an existing TTL is left untouched.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	secs := s.b().Expire().Key(key).Seconds(int64(ttl / time.Second))
	var cmd rueidis.Completed
	if nx {
		cmd = secs.Nx().Build()
	} else {
		cmd = secs.Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return fail(db.OpExpire, err)
	}
	return nil
}
