package quota

import "time"

// Window identifies a counting bucket.
type Window string

const (
	WindowSecond Window = "second"
	WindowMinute Window = "minute"
	WindowMonth  Window = "month"
)

const (
	defaultBackoffBase = time.Second
	defaultMaxRetries  = 3
)

// Limits is a provider's ceiling configuration. A nil ceiling is not enforced.
type Limits struct {
	PerSecond   *int64        `json:"perSecond"`
	PerMinute   *int64        `json:"perMinute"`
	PerMonth    *int64        `json:"perMonth"`
	BackoffBase time.Duration `json:"backoffBase"`
	MaxRetries  int           `json:"maxRetries"`
}

// DefaultLimits has no ceilings, a one second backoff base and three retries.
func DefaultLimits() Limits {
	return Limits{
		BackoffBase: defaultBackoffBase,
		MaxRetries:  defaultMaxRetries,
	}
}

// Option overrides one field of the default limits.
type Option func(*Limits)

func PerSecond(n int64) Option {
	return func(l *Limits) { l.PerSecond = &n }
}

func PerMinute(n int64) Option {
	return func(l *Limits) { l.PerMinute = &n }
}

func PerMonth(n int64) Option {
	return func(l *Limits) { l.PerMonth = &n }
}

func BackoffBase(d time.Duration) Option {
	return func(l *Limits) { l.BackoffBase = d }
}

func MaxRetries(n int) Option {
	return func(l *Limits) { l.MaxRetries = n }
}
