// Package quota tracks per-provider upstream usage across second, minute and
// month windows and decides whether another call is admissible.
package quota

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/store"
)

// ErrNotConfigured is returned by the non-admission helpers for unknown providers.
var ErrNotConfigured = errors.New("quota: provider not configured")

// OffsetFunc reports usage a provider has accrued outside the store. It is
// consulted on every check so operators can adjust it without a restart.
type OffsetFunc func(provider string) int64

const lockStripes = 64

// Manager owns provider limits and the usage counters kept in the store.
type Manager struct {
	store  store.Store
	offset OffsetFunc
	now    func() time.Time
	log    *logger.Entry

	mu        sync.RWMutex
	providers map[string]Limits

	// Serializes read-modify-write increments when the store has no Incr.
	stripes [lockStripes]sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock replaces the clock used to pick window buckets.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithOffsets sets the monthly offset source.
func WithOffsets(fn OffsetFunc) ManagerOption {
	return func(m *Manager) { m.offset = fn }
}

// NewManager creates a Manager with no providers configured.
func NewManager(s store.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     s,
		offset:    func(string) int64 { return 0 },
		now:       time.Now,
		log:       logger.WithComponent("quota"),
		providers: make(map[string]Limits),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configure registers or replaces the limits for provider. Options are
// applied over DefaultLimits.
func (m *Manager) Configure(provider string, opts ...Option) {
	l := DefaultLimits()
	for _, opt := range opts {
		opt(&l)
	}

	m.mu.Lock()
	m.providers[provider] = l
	m.mu.Unlock()
}

// Providers returns the configured provider names in sorted order.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) limits(provider string) (Limits, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.providers[provider]
	return l, ok
}

func (m *Manager) offsetFor(provider string) int64 {
	if m.offset == nil {
		return 0
	}
	if o := m.offset(provider); o > 0 {
		return o
	}
	return 0
}

// Check evaluates the configured ceilings in the order month, second, minute
// and reports the first one that rejects. The returned error is reserved for
// store failures.
func (m *Manager) Check(ctx context.Context, provider string) (Decision, error) {
	l, ok := m.limits(provider)
	if !ok {
		return Decision{Outcome: NotConfigured}, nil
	}

	now := m.now().UTC()
	usage, err := m.usage(ctx, provider, now)
	if err != nil {
		return Decision{}, err
	}
	offset := m.offsetFor(provider)
	usage.Month += offset

	d := Decision{Outcome: Allowed, Usage: usage, Offset: offset}
	switch {
	case l.PerMonth != nil && usage.Month >= *l.PerMonth:
		d.Outcome = QuotaExceeded
		d.Window = WindowMonth
	case l.PerSecond != nil && usage.Second >= *l.PerSecond:
		d.Outcome = RateLimited
		d.Window = WindowSecond
		d.RetryAfter = time.Second
	case l.PerMinute != nil && usage.Minute >= *l.PerMinute:
		d.Outcome = RateLimited
		d.Window = WindowMinute
		d.RetryAfter = time.Duration(60-now.Second()) * time.Second
	}
	return d, nil
}

// Request is the admission check. It returns nil when the next upstream call
// is within every configured ceiling, or an *Error describing the rejection.
func (m *Manager) Request(ctx context.Context, provider string) error {
	d, err := m.Check(ctx, provider)
	if err != nil {
		return fmt.Errorf("quota check for %s: %w", provider, err)
	}
	if d.Outcome != Allowed {
		m.log.WithFields(logger.Fields{
			"provider":    provider,
			"outcome":     d.Outcome.String(),
			"retry_after": d.RetryAfter.String(),
		}).Info("upstream call rejected")
	}
	return d.Err(provider)
}

// WithinLimits reports whether Request would succeed. It never fails.
func (m *Manager) WithinLimits(ctx context.Context, provider string) bool {
	d, err := m.Check(ctx, provider)
	return err == nil && d.Outcome == Allowed
}

// Track records one upstream call in all three windows. Call it only after
// the upstream call succeeded.
func (m *Manager) Track(ctx context.Context, provider string) error {
	if _, ok := m.limits(provider); !ok {
		return Decision{Outcome: NotConfigured}.Err(provider)
	}

	now := m.now().UTC()
	for _, b := range buckets(provider, now) {
		if err := m.incr(ctx, b.key, b.ttl); err != nil {
			return fmt.Errorf("track %s %s usage: %w", provider, b.window, err)
		}
	}
	return nil
}

// Status returns current usage and limits. WithinLimits is derived from the
// same check Request performs.
func (m *Manager) Status(ctx context.Context, provider string) (Status, error) {
	l, ok := m.limits(provider)
	if !ok {
		return Status{}, Decision{Outcome: NotConfigured}.Err(provider)
	}

	d, err := m.Check(ctx, provider)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Provider:     provider,
		Usage:        d.Usage,
		Limits:       l,
		WithinLimits: d.Outcome == Allowed,
		Offset:       d.Offset,
	}, nil
}

// BackoffDelay returns BackoffBase * 2^min(attempt, MaxRetries).
func (m *Manager) BackoffDelay(provider string, attempt int) (time.Duration, error) {
	l, ok := m.limits(provider)
	if !ok {
		return 0, ErrNotConfigured
	}
	if attempt < 0 {
		attempt = 0
	}
	exp := attempt
	if exp > l.MaxRetries {
		exp = l.MaxRetries
	}
	return time.Duration(float64(l.BackoffBase) * math.Pow(2, float64(exp))), nil
}

// CanRetry reports whether attempt is below the provider's MaxRetries.
// Unknown providers are never retried.
func (m *Manager) CanRetry(provider string, attempt int) bool {
	l, ok := m.limits(provider)
	return ok && attempt < l.MaxRetries
}

// Reset clears the provider's current counters. Limits are kept.
func (m *Manager) Reset(ctx context.Context, provider string) error {
	bs := buckets(provider, m.now().UTC())
	keys := make([]string, len(bs))
	for i, b := range bs {
		keys[i] = b.key
	}
	return m.store.Delete(ctx, keys...)
}

func (m *Manager) usage(ctx context.Context, provider string, now time.Time) (Usage, error) {
	var u Usage
	for _, b := range buckets(provider, now) {
		n, err := m.count(ctx, b.key)
		if err != nil {
			return Usage{}, fmt.Errorf("read %s %s usage: %w", provider, b.window, err)
		}
		switch b.window {
		case WindowSecond:
			u.Second = n
		case WindowMinute:
			u.Minute = n
		case WindowMonth:
			u.Month = n
		}
	}
	return u, nil
}

func (m *Manager) count(ctx context.Context, key string) (int64, error) {
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

func (m *Manager) incr(ctx context.Context, key string, ttl time.Duration) error {
	if inc, ok := m.store.(store.Incrementer); ok {
		_, err := inc.Incr(ctx, key, ttl)
		return err
	}

	mu := m.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	n, err := m.count(ctx, key)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, []byte(strconv.FormatInt(n+1, 10)), ttl)
}

func (m *Manager) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &m.stripes[h.Sum32()%lockStripes]
}
