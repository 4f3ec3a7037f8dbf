package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/assessdex/internal/db"
)

// HGetAll returns an empty map for a missing key.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, fail(db.OpHGetAll, err)
	}
	return m, nil
}

// HGetAllMulti loads several hashes in one round-trip, in key order.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(key).Build()
	}
	results, err := s.pipeline(ctx, db.OpHGetAll, keys, cmds)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]string, len(results))
	for i, res := range results {
		if out[i], err = res.AsStrMap(); err != nil {
			return nil, fail(db.OpHGetAll, fmt.Errorf("key %s: %w", keys[i], err))
		}
	}
	return out, nil
}

// Del reports how many of keys existed.
func (s *Store) Del(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.do(ctx, s.b().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, fail(db.OpDel, err)
	}
	return int(n), nil
}

// Scan walks the keyspace with SCAN MATCH. A key returned on several pages is listed once.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	seen := make(map[string]struct{})
	cursor := uint64(0)
	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(s.scanCount).Build()
		page, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fail(db.OpScan, err)
		}
		for _, k := range page.Elements {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if cursor = page.Cursor; cursor == 0 {
			return keys, nil
		}
	}
}

// pipeline sends cmds in one DoMulti and fails on the first error reply.
func (s *Store) pipeline(
	ctx context.Context, op string, keys []string, cmds []rueidis.Completed,
) ([]rueidis.RedisResult, error) {
	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return nil, fail(op, fmt.Errorf("key %s: %w", keys[i], err))
		}
	}
	return results, nil
}

func (s *Store) hsetCmd(item db.HashSetItem) rueidis.Completed {
	cmd := s.b().Hset().Key(item.Key).FieldValue()
	for field, value := range item.Fields {
		cmd = cmd.FieldValue(field, value)
	}
	return cmd.Build()
}
