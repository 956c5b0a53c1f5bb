package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent or has expired.
	ErrNotFound = errors.New("store: key not found")

	// ErrNoExpiry is returned by TTL when the key exists without an expiry.
	ErrNoExpiry = errors.New("store: key has no expiry")
)

// Store is a key/value cache with per-key expiry. It backs both the quota
// counters and the cached upstream results.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored bytes or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl <= 0 stores the value without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// TTLReporter is implemented by stores that can report the remaining lifetime of a key.
type TTLReporter interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Incrementer is implemented by stores with an atomic increment.
// Incr adds one to the counter at key and sets its expiry to ttl.
type Incrementer interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
