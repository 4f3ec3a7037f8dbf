package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/assessdex/internal/db"
)

var _ db.Store = (*Store)(nil)

// defaultScanCount is the COUNT hint sent with every SCAN page.
const defaultScanCount = 500

// Config addresses a Redis 6+ or Valkey deployment.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// ScanCount overrides the SCAN page hint. Zero keeps the default.
	ScanCount int64
}

// Store keeps chunk hashes, embedding cache entries and budget counters in Redis.
// Only core RESP commands are used, no search modules.
type Store struct {
	client    rueidis.Client
	scanCount int64
}

// NewStore connects with client-side caching disabled.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: connect %v: %w", cfg.Addrs, err)
	}

	s := newStore(client)
	if cfg.ScanCount > 0 {
		s.scanCount = cfg.ScanCount
	}
	return s, nil
}

func newStore(c rueidis.Client) *Store {
	return &Store{client: c, scanCount: defaultScanCount}
}

// Ping backs the store component of the health report.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fail(db.OpPing, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady blocks until PING succeeds or timeout passes.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, timeout)
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// fail tags err with the command that produced it.
func fail(op string, err error) error {
	return &db.Error{Op: op, Err: err}
}
