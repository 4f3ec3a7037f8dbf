// Package memory is a process-local db.Store used for development, the CLI and tests.
package memory

import (
	"context"
	"maps"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kailas-cloud/assessdex/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e kvEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store keeps hashes and KV entries in maps guarded by one RWMutex.
type Store struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
	kv     map[string]kvEntry
	now    func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		hashes: make(map[string]map[string]string),
		kv:     make(map[string]kvEntry),
		now:    time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

func (s *Store) hsetLocked(key string, fields map[string]string) {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	maps.Copy(h, fields)
}

// HGetAll returns a copy of the hash; a missing key yields an empty map.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.hashes[key]), nil
}

// HGetAllMulti returns copies of several hashes in key order.
func (s *Store) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		if h, ok := s.hashes[key]; ok {
			out[i] = maps.Clone(h)
		} else {
			out[i] = map[string]string{}
		}
	}
	return out, nil
}

// Del removes hashes and KV entries, returning how many keys existed.
func (s *Store) Del(_ context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delLocked(keys), nil
}

func (s *Store) delLocked(keys []string) int {
	n := 0
	now := s.now()
	for _, key := range keys {
		if _, ok := s.hashes[key]; ok {
			delete(s.hashes, key)
			n++
			continue
		}
		if e, ok := s.kv[key]; ok {
			delete(s.kv, key)
			if !e.expired(now) {
				n++
			}
		}
	}
	return n
}

// Scan returns the sorted keys matching a glob pattern (* and ? wildcards).
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	now := s.now()
	for key := range s.hashes {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	for key, e := range s.kv {
		if e.expired(now) {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// HReplace deletes delKeys and writes items under a single lock.
func (s *Store) HReplace(_ context.Context, delKeys []string, items []db.HashSetItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delLocked(delKeys)
	for _, item := range items {
		s.hsetLocked(item.Key, item.Fields)
	}
	return nil
}

// Get returns the value at key or db.ErrKeyNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.kv[key]
	if !ok || e.expired(s.now()) {
		return nil, db.ErrKeyNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value without expiry.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	return s.set(key, value, 0)
}

// SetWithTTL stores value expiring after ttl.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return s.set(key, value, ttl)
}

func (s *Store) set(key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)
	e := kvEntry{value: v}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.kv[key] = e
	return nil
}

// IncrBy adds val to the integer stored at key, keeping its expiry.
func (s *Store) IncrBy(_ context.Context, key string, val int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.kv[key]
	if ok && e.expired(s.now()) {
		ok = false
		e = kvEntry{}
	}
	var cur int64
	if ok {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return &db.Error{Op: db.OpIncrBy, Err: err}
		}
		cur = n
	}
	e.value = []byte(strconv.FormatInt(cur+val, 10))
	s.kv[key] = e
	return nil
}

// Expire sets the TTL of an existing KV entry. With nx the TTL is only set when none exists.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.kv[key]
	if !ok || e.expired(s.now()) {
		return nil
	}
	if nx && !e.expiresAt.IsZero() {
		return nil
	}
	e.expiresAt = s.now().Add(ttl)
	s.kv[key] = e
	return nil
}
