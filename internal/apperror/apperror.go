// Package apperror provides the coded base error embedded by the domain error
// types of the lookup pipeline.
package apperror

import "fmt"

// Code classifies a failure.
type Code string

const (
	CodeNotConfigured Code = "NOT_CONFIGURED"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED"
	CodeNotFound      Code = "NOT_FOUND"
	CodeUpstream      Code = "UPSTREAM_FAILURE"
	CodeConfigMissing Code = "CONFIG_MISSING"
)

// Sentinels for errors.Is matching by code.
var (
	ErrNotConfigured = &BaseError{Code: CodeNotConfigured}
	ErrRateLimited   = &BaseError{Code: CodeRateLimited}
	ErrQuotaExceeded = &BaseError{Code: CodeQuotaExceeded}
	ErrNotFound      = &BaseError{Code: CodeNotFound}
	ErrUpstream      = &BaseError{Code: CodeUpstream}
	ErrConfigMissing = &BaseError{Code: CodeConfigMissing}
)

// BaseError carries a code, a human-readable message and an optional cause.
type BaseError struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

// New creates a BaseError.
func New(code Code, message string) *BaseError {
	return &BaseError{Code: code, Message: message}
}

// Wrap creates a BaseError with a cause.
func Wrap(code Code, message string, cause error) *BaseError {
	return &BaseError{Code: code, Message: message, Cause: cause}
}

func (e *BaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BaseError) Unwrap() error {
	return e.Cause
}

// Is matches any *BaseError with the same code.
func (e *BaseError) Is(target error) bool {
	if t, ok := target.(*BaseError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext attaches a key/value pair to the error.
func (e *BaseError) WithContext(key string, value any) *BaseError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Base returns the first BaseError in err's chain, including one embedded in
// a domain error type.
func Base(err error) (*BaseError, bool) {
	for err != nil {
		if b, ok := err.(interface{ base() *BaseError }); ok {
			return b.base(), true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// CodeOf returns the code of the first BaseError found in err's chain.
func CodeOf(err error) (Code, bool) {
	b, ok := Base(err)
	if !ok {
		return "", false
	}
	return b.Code, true
}

func (e *BaseError) base() *BaseError { return e }
