package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

func TestMemoryStore_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{cur: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(WithClock(clock.Now))

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	clock.Advance(time.Minute)

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	ok, _ = s.Exists(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_TTLWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "forever", []byte("v"), 0))

	_, err := s.TTL(ctx, "forever")
	assert.ErrorIs(t, err, ErrNoExpiry)

	_, err = s.TTL(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", []byte("abc"), 0))

	b, _ := s.Get(ctx, "k")
	b[0] = 'z'

	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_IncrRestartsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{cur: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(WithClock(clock.Now))

	for i := 1; i <= 3; i++ {
		n, err := s.Incr(ctx, "c", 2*time.Second)
		require.NoError(t, err)
		assert.EqualValues(t, i, n)
	}

	raw, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "3", string(raw))

	clock.Advance(2 * time.Second)

	n, err := s.Incr(ctx, "c", 2*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMemoryStore_IncrConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Incr(ctx, "c", time.Minute)
		}()
	}
	wg.Wait()

	raw, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "50", string(raw))
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, s.Delete(ctx, "a", "b", "missing"))
	assert.Equal(t, 0, s.Len())
}
