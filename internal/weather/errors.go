package weather

import (
	"errors"
	"fmt"
	"time"

	"github.com/i474232898/weather-lookup/internal/apperror"
	"github.com/i474232898/weather-lookup/internal/quota"
	"github.com/i474232898/weather-lookup/internal/upstream"
)

// Error is the weather fetcher's failure type.
type Error struct {
	apperror.BaseError
	Resource   string // "current" or "forecast"
	StatusCode int
	RetryAfter time.Duration
}

func newError(code apperror.Code, resource, message string, cause error) *Error {
	return &Error{
		BaseError: apperror.BaseError{Code: code, Message: message, Cause: cause},
		Resource:  resource,
	}
}

func fromQuota(resource string, err error) error {
	var qe *quota.Error
	if !errors.As(err, &qe) {
		return newError(apperror.CodeUpstream, resource, "weather quota check failed", err)
	}

	var msg string
	switch qe.Code {
	case apperror.CodeQuotaExceeded:
		msg = fmt.Sprintf("%s monthly weather quota exhausted, try again next month", qe.Provider)
	case apperror.CodeRateLimited:
		msg = fmt.Sprintf("%s weather rate limit reached, retry in %ds", qe.Provider, int(qe.RetryAfter.Seconds()))
	default:
		msg = fmt.Sprintf("%s weather lookups are not configured", qe.Provider)
	}
	e := newError(qe.Code, resource, msg, err)
	e.RetryAfter = qe.RetryAfter
	return e
}

func fromUpstream(resource string, err error) error {
	if errors.Is(err, upstream.ErrMissingCredential) {
		return newError(apperror.CodeConfigMissing, resource, "weather credential is not configured", err)
	}

	var se *upstream.StatusError
	if errors.As(err, &se) {
		e := newError(apperror.CodeUpstream, resource, fmt.Sprintf("%s weather request failed (%d): %s", resource, se.StatusCode, se.Message), err)
		e.StatusCode = se.StatusCode
		return e
	}
	return newError(apperror.CodeUpstream, resource, resource+" weather request failed", err)
}
