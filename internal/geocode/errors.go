package geocode

import (
	"errors"
	"fmt"
	"time"

	"github.com/i474232898/weather-lookup/internal/apperror"
	"github.com/i474232898/weather-lookup/internal/quota"
	"github.com/i474232898/weather-lookup/internal/upstream"
)

// Error is the resolver's failure type. Its Code distinguishes not-found,
// upstream, credential and quota failures.
type Error struct {
	apperror.BaseError
	Address    string
	StatusCode int
	RetryAfter time.Duration
}

func newError(code apperror.Code, address, message string, cause error) *Error {
	return &Error{
		BaseError: apperror.BaseError{Code: code, Message: message, Cause: cause},
		Address:   address,
	}
}

// fromQuota rewraps a Quota Manager rejection.
func fromQuota(address string, err error) error {
	var qe *quota.Error
	if !errors.As(err, &qe) {
		return newError(apperror.CodeUpstream, address, "geocoding quota check failed", err)
	}

	var msg string
	switch qe.Code {
	case apperror.CodeQuotaExceeded:
		msg = fmt.Sprintf("%s monthly geocoding quota exhausted, try again next month", qe.Provider)
	case apperror.CodeRateLimited:
		msg = fmt.Sprintf("%s geocoding rate limit reached, retry in %ds", qe.Provider, int(qe.RetryAfter.Seconds()))
	default:
		msg = fmt.Sprintf("%s geocoding is not configured", qe.Provider)
	}
	e := newError(qe.Code, address, msg, err)
	e.RetryAfter = qe.RetryAfter
	return e
}

// fromUpstream rewraps a provider failure.
func fromUpstream(address string, err error) error {
	if errors.Is(err, upstream.ErrMissingCredential) {
		return newError(apperror.CodeConfigMissing, address, "geocoding credential is not configured", err)
	}

	var se *upstream.StatusError
	if errors.As(err, &se) {
		e := newError(apperror.CodeUpstream, address, fmt.Sprintf("geocoding failed (%d): %s", se.StatusCode, se.Message), err)
		e.StatusCode = se.StatusCode
		return e
	}
	return newError(apperror.CodeUpstream, address, "geocoding request failed", err)
}
