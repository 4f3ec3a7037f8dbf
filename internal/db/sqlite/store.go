// Package sqlite is a single-file db.Store on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/assessdex/internal/db"
)

//go:embed schema.sql
var schema string

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store keeps hashes as (key, field, value) rows and KV entries with an optional
// expiry. Values are stored as BLOBs so binary vectors round-trip unchanged.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (creating if needed) the database at path. ":memory:" is accepted.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: conn, now: time.Now}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForReady(ctx, s, timeout)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func hset(ctx context.Context, ex execer, key string, fields map[string]string) error {
	for f, v := range fields {
		_, err := ex.ExecContext(ctx, `
			INSERT INTO hashes (key, field, value) VALUES (?, ?, ?)
			ON CONFLICT(key, field) DO UPDATE SET value = excluded.value
		`, key, f, []byte(v))
		if err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", key, err)}
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// HGetAll returns all fields of a hash; a missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM hashes WHERE key = ?`, key)
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var (
			f string
			v []byte
		)
		if err := rows.Scan(&f, &v); err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: err}
		}
		out[f] = string(v)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return out, nil
}

// HGetAllMulti returns several hashes in key order.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		m, err := s.HGetAll(ctx, key)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// Del removes hashes and KV entries, returning how many keys existed.
func (s *Store) Del(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var n int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = s.del(ctx, tx, keys)
		return err
	})
	return n, err
}

func (s *Store) del(ctx context.Context, tx *sql.Tx, keys []string) (int, error) {
	n := 0
	now := s.now().UnixNano()
	for _, key := range keys {
		res, err := tx.ExecContext(ctx, `DELETE FROM hashes WHERE key = ?`, key)
		if err != nil {
			return 0, &db.Error{Op: db.OpDel, Err: err}
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			n++
			continue
		}
		res, err = tx.ExecContext(ctx,
			`DELETE FROM kv WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`, key, now)
		if err != nil {
			return 0, &db.Error{Op: db.OpDel, Err: err}
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			n++
		}
	}
	return n, nil
}

// Scan returns the sorted keys matching a glob pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT key FROM hashes WHERE key GLOB ?1
		UNION
		SELECT key FROM kv WHERE key GLOB ?1 AND (expires_at IS NULL OR expires_at > ?2)
		ORDER BY key
	`, pattern, s.now().UnixNano())
	if err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	return keys, nil
}

// HReplace deletes delKeys and writes items in one transaction.
func (s *Store) HReplace(ctx context.Context, delKeys []string, items []db.HashSetItem) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.del(ctx, tx, delKeys); err != nil {
			return err
		}
		for _, item := range items {
			if err := hset(ctx, tx, item.Key, item.Fields); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &db.Error{Op: db.OpReplace, Err: err}
	}
	return nil
}

// Get returns the value at key or db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, s.now().UnixNano()).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return v, nil
}

// Set stores value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.set(ctx, key, value, 0)
}

// SetWithTTL stores value expiring after ttl.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.set(ctx, key, value, ttl)
}

func (s *Store) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires any
	if ttl > 0 {
		expires = s.now().Add(ttl).UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expires)
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrBy adds val to the integer stored at key, keeping its expiry.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.now().UnixNano()
		var (
			raw     []byte
			expires sql.NullInt64
		)
		err := tx.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&raw, &expires)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		case expires.Valid && expires.Int64 <= now:
			raw, expires = nil, sql.NullInt64{}
		}

		var cur int64
		if len(raw) > 0 {
			cur, err = strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return err
			}
		}

		var exp any
		if expires.Valid {
			exp = expires.Int64
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		`, key, []byte(strconv.FormatInt(cur+val, 10)), exp)
		return err
	})
	if err != nil {
		return &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return nil
}

// Expire sets the TTL of an existing KV entry. With nx the TTL is only set when none exists.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	now := s.now()
	expires := now.Add(ttl).UnixNano()

	var err error
	if nx {
		_, err = s.db.ExecContext(ctx,
			`UPDATE kv SET expires_at = ? WHERE key = ? AND expires_at IS NULL`, expires, key)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE kv SET expires_at = ? WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
			expires, key, now.UnixNano())
	}
	if err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}
