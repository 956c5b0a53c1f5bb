package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value    []byte
	expireAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// MemoryStore is a concurrency-safe in-memory Store. Expired entries are
// dropped lazily on access.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces the clock used for expiry decisions.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) lookup(key string) (memoryEntry, bool) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(s.now()) {
		s.mu.Lock()
		if cur, ok := s.data[key]; ok && cur.expired(s.now()) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return memoryEntry{}, false
	}
	return e, true
}

// Get returns a copy of the stored value.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := s.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.lookup(key)
	return ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// TTL implements TTLReporter.
func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	e, ok := s.lookup(key)
	if !ok {
		return 0, ErrNotFound
	}
	if e.expireAt.IsZero() {
		return 0, ErrNoExpiry
	}
	return e.expireAt.Sub(s.now()), nil
}

// Incr implements Incrementer. The counter is stored as decimal text so that
// Get returns the same representation as a Redis counter.
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if ok && e.expired(now) {
		ok = false
	}

	var n int64
	if ok {
		cur, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, err
		}
		n = cur
	}

	n++
	e.expireAt = time.Time{}
	if ttl > 0 {
		e.expireAt = now.Add(ttl)
	}
	e.value = []byte(strconv.FormatInt(n, 10))
	s.data[key] = e
	return n, nil
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.data {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
