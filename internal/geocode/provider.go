package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/i474232898/weather-lookup/internal/upstream"
)

// Response is the subset of a Mapbox geocoding response the resolver consumes.
type Response struct {
	Features []Feature `json:"features"`
}

// Feature is one geocoding candidate. Center is [lng, lat].
type Feature struct {
	Text    string       `json:"text"`
	Center  []float64    `json:"center"`
	Context []ContextTag `json:"context"`
}

// ContextTag is a parent region of a feature, e.g. {"id":"region.123","text":"California","short_code":"US-CA"}.
type ContextTag struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	ShortCode string `json:"short_code,omitempty"`
}

// Type returns the tag type, the part of ID before the first dot.
func (c ContextTag) Type() string {
	t, _, _ := strings.Cut(c.ID, ".")
	return t
}

// Provider looks up address candidates.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (Response, error)
}

const defaultMapboxURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// MapboxProvider implements Provider against the Mapbox geocoding v5 API.
type MapboxProvider struct {
	token   string
	baseURL string
	client  *upstream.Client
}

// MapboxOption configures a MapboxProvider.
type MapboxOption func(*MapboxProvider)

// WithBaseURL points the provider at a different endpoint.
func WithBaseURL(u string) MapboxOption {
	return func(p *MapboxProvider) { p.baseURL = strings.TrimRight(u, "/") }
}

func NewMapboxProvider(client *upstream.Client, token string, opts ...MapboxOption) *MapboxProvider {
	p := &MapboxProvider{
		token:   token,
		baseURL: defaultMapboxURL,
		client:  client,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MapboxProvider) Name() string {
	return ProviderName
}

func (p *MapboxProvider) Geocode(ctx context.Context, address string) (Response, error) {
	if p.token == "" {
		return Response{}, fmt.Errorf("mapbox access token: %w", upstream.ErrMissingCredential)
	}

	values := url.Values{}
	values.Set("access_token", p.token)
	values.Set("limit", "1")
	values.Set("country", "us")
	u := fmt.Sprintf("%s/%s.json?%s", p.baseURL, url.PathEscape(address), values.Encode())

	var resp Response
	if err := p.client.GetJSON(ctx, u, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
