// Package cache implements cache-or-compute over a store.Store with per-key
// request coalescing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/store"
)

const defaultProduceTimeout = time.Minute

// Cache coalesces concurrent computations of the same key so that at most one
// producer runs per key at a time.
type Cache struct {
	store          store.Store
	group          singleflight.Group
	produceTimeout time.Duration
	log            *logger.Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithProduceTimeout bounds a single producer run, independent of the
// callers waiting on it.
func WithProduceTimeout(d time.Duration) Option {
	return func(c *Cache) { c.produceTimeout = d }
}

// New creates a Cache over s.
func New(s store.Store, opts ...Option) *Cache {
	c := &Cache{
		store:          s,
		produceTimeout: defaultProduceTimeout,
		log:            logger.WithComponent("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store.
func (c *Cache) Store() store.Store {
	return c.store
}

// Producer computes a fresh value for a cache miss.
type Producer[T any] func(ctx context.Context) (T, error)

// Fetch returns the cached value for key, or runs produce and stores its
// result for ttl. The returned flag reports whether the value came from the
// cache. With bypass set the cached value is ignored and always recomputed.
// Producer errors are returned as-is and nothing is stored.
//
// The producer runs detached from the cancellation of whichever caller
// started it; each caller stops waiting when its own ctx is done.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, bypass bool, produce Producer[T]) (T, bool, error) {
	var zero T

	if !bypass {
		if v, ok := lookup[T](ctx, c, key); ok {
			c.log.WithField("key", key).Debug("cache hit")
			return v, true, nil
		}
	}

	type outcome struct {
		value T
		hit   bool
	}

	// Forced refreshes never join a flight that may answer from the cache.
	flight := key
	if bypass {
		flight = key + "\x00refresh"
	}

	ch := c.group.DoChan(flight, func() (any, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.produceTimeout)
		defer cancel()

		// Another caller may have filled the key while we waited on the group.
		if !bypass {
			if v, ok := lookup[T](pctx, c, key); ok {
				return outcome{value: v, hit: true}, nil
			}
		}

		c.log.WithField("key", key).Debug("cache miss, computing")
		v, err := produce(pctx)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(pctx, key, raw, ttl); err != nil {
			c.log.WithError(err).WithField("key", key).Warn("cache write failed")
		}
		return outcome{value: v}, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		out := res.Val.(outcome)
		return out.value, out.hit, nil
	}
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.WithError(err).WithField("key", key).Warn("cache read failed")
		}
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		return v, false
	}
	return v, true
}
