package quota

import (
	"fmt"
	"time"

	"github.com/i474232898/weather-lookup/internal/apperror"
)

// Outcome is the result of an admission check.
type Outcome int

const (
	Allowed Outcome = iota
	QuotaExceeded
	RateLimited
	NotConfigured
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case QuotaExceeded:
		return "quota_exceeded"
	case RateLimited:
		return "rate_limited"
	case NotConfigured:
		return "not_configured"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Usage is the current count per window. Month includes the provider offset.
type Usage struct {
	Second int64 `json:"second"`
	Minute int64 `json:"minute"`
	Month  int64 `json:"month"`
}

// Decision is what Check returns. Window and RetryAfter are set only for
// rejections; RetryAfter only for RateLimited.
type Decision struct {
	Outcome    Outcome
	Window     Window
	RetryAfter time.Duration
	Usage      Usage
	// Offset is the monthly offset already included in Usage.Month.
	Offset int64
}

// Err converts a rejection into an *Error. It returns nil for Allowed.
func (d Decision) Err(provider string) error {
	switch d.Outcome {
	case Allowed:
		return nil
	case NotConfigured:
		return &Error{
			BaseError: apperror.BaseError{Code: apperror.CodeNotConfigured, Message: fmt.Sprintf("provider %q is not configured", provider)},
			Provider:  provider,
		}
	case QuotaExceeded:
		return &Error{
			BaseError: apperror.BaseError{Code: apperror.CodeQuotaExceeded, Message: fmt.Sprintf("%s monthly quota exceeded", provider)},
			Provider:  provider,
			Window:    d.Window,
		}
	default:
		return &Error{
			BaseError:  apperror.BaseError{Code: apperror.CodeRateLimited, Message: fmt.Sprintf("%s per-%s rate limit exceeded", provider, d.Window)},
			Provider:   provider,
			Window:     d.Window,
			RetryAfter: d.RetryAfter,
		}
	}
}

// Error is a quota rejection. Match it with errors.Is against the
// apperror sentinels or errors.As for the retry hint.
type Error struct {
	apperror.BaseError
	Provider   string
	Window     Window
	RetryAfter time.Duration
}

// Status is a read-only snapshot of a provider's accounting.
type Status struct {
	Provider     string `json:"provider"`
	Usage        Usage  `json:"usage"`
	Limits       Limits `json:"limits"`
	WithinLimits bool   `json:"withinLimits"`
	Offset       int64  `json:"offset"`
}
