package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/assessdex/internal/db"
)

// counters is the part of db.KVStore the budget needs.
type counters interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store persists token budget counters as plain integer keys.
// Keys look like {prefix}budget:{provider}:{daily|monthly}:{date}; the period
// segment picks the TTL so old windows expire on their own.
type Store struct {
	kv       counters
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New keeps daily keys for dailyTTL and monthly keys for monthTTL.
// The TTLs should outlive their window (48h and 62 days work).
func New(kv counters, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{kv: kv, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

// IncrBy adds val and sets the TTL on first write. A repeated EXPIRE NX never extends it.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.kv.IncrBy(ctx, key, val); err != nil {
		return fmt.Errorf("budget incr %s: %w", key, err)
	}
	if err := s.kv.Expire(ctx, key, s.ttlForKey(key), true); err != nil {
		return fmt.Errorf("budget expire %s: %w", key, err)
	}
	return nil
}

// Get returns 0 for a counter that was never written or has expired.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("budget get %s: %w", key, err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget get %s: not a counter: %w", key, err)
	}
	return n, nil
}

// ttlForKey reads the period from the second to last key segment.
func (s *Store) ttlForKey(key string) time.Duration {
	parts := strings.Split(key, ":")
	if len(parts) >= 2 && parts[len(parts)-2] == "daily" {
		return s.dailyTTL
	}
	return s.monthTTL
}
