// Package upstream is the outbound HTTP client shared by the geocoding and
// weather providers: bounded wait, circuit breaker and status classification.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const maxBodyBytes = 4 << 20

var (
	// ErrMissingCredential is returned before any request when the provider has no API key.
	ErrMissingCredential = errors.New("upstream: credential not configured")
	ErrTimeout           = errors.New("upstream: request timed out")
	ErrCircuitOpen       = errors.New("upstream: circuit breaker open")
	errNoHTTPClient      = errors.New("upstream: http client not configured")
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Config bundles the HTTP client and resilience settings for one provider.
type Config struct {
	Name    string
	Client  *http.Client
	Timeout time.Duration
	Breaker gobreaker.Settings
}

// Client performs each request at most once. Retry decisions belong to the caller.
type Client struct {
	name    string
	http    *http.Client
	timeout time.Duration
	circuit *gobreaker.CircuitBreaker
}

// New creates a Client. A zero Breaker gets the defaults used by every provider.
func New(cfg Config) *Client {
	settings := cfg.Breaker
	if settings.Name == "" {
		settings.Name = cfg.Name
	}
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 5
	}
	if settings.Interval == 0 {
		settings.Interval = time.Minute
	}
	if settings.Timeout == 0 {
		settings.Timeout = 2 * time.Minute
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		}
	}

	return &Client{
		name:    cfg.Name,
		http:    cfg.Client,
		timeout: cfg.Timeout,
		circuit: gobreaker.NewCircuitBreaker(settings),
	}
}

// Name returns the provider name the client reports in errors.
func (c *Client) Name() string {
	return c.name
}

// GetJSON issues a GET to rawURL and decodes a 2xx body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	if c.http == nil {
		return errNoHTTPClient
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{
				Provider:   c.name,
				StatusCode: resp.StatusCode,
				Message:    errorMessage(resp.StatusCode, body),
			}
		}
		return body, nil
	})
	if err != nil {
		return c.classify(err)
	}

	body, ok := result.([]byte)
	if !ok {
		return fmt.Errorf("%s: unexpected result type from circuit breaker", c.name)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

func (c *Client) classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %v", c.name, ErrCircuitOpen, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", c.name, ErrTimeout)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%s: %w: %v", c.name, ErrTimeout, err)
	}
	return err
}

// errorMessage extracts the "message" field both Mapbox and OpenWeather put
// in error bodies, falling back to the status text.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		return payload.Message
	}
	return http.StatusText(status)
}
