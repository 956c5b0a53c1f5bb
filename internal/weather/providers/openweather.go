package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/weather-lookup/internal/geocode"
	"github.com/i474232898/weather-lookup/internal/upstream"
	"github.com/i474232898/weather-lookup/internal/weather"
)

const defaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	client  *upstream.Client
}

// Option configures an OpenWeatherProvider.
type Option func(*OpenWeatherProvider)

// WithBaseURL points the provider at a different API root.
func WithBaseURL(u string) Option {
	return func(p *OpenWeatherProvider) { p.baseURL = strings.TrimRight(u, "/") }
}

func NewOpenWeatherProvider(client *upstream.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	p := &OpenWeatherProvider{
		apiKey:  apiKey,
		baseURL: defaultOpenWeatherURL,
		client:  client,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return weather.ProviderName
}

func (p *OpenWeatherProvider) Current(ctx context.Context, loc geocode.Location) (weather.CurrentPayload, error) {
	var payload weather.CurrentPayload
	if err := p.get(ctx, "weather", loc, &payload); err != nil {
		return weather.CurrentPayload{}, err
	}
	return payload, nil
}

func (p *OpenWeatherProvider) Forecast(ctx context.Context, loc geocode.Location) (weather.ForecastPayload, error) {
	var payload weather.ForecastPayload
	if err := p.get(ctx, "forecast", loc, &payload); err != nil {
		return weather.ForecastPayload{}, err
	}
	return payload, nil
}

func (p *OpenWeatherProvider) get(ctx context.Context, endpoint string, loc geocode.Location, out any) error {
	if p.apiKey == "" {
		return fmt.Errorf("openweather api key: %w", upstream.ErrMissingCredential)
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "imperial")
	if loc.HasZip() {
		// OpenWeather accepts only the five digit form.
		values.Set("zip", loc.Zip[:5]+",us")
	} else {
		values.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(loc.Lng, 'f', -1, 64))
	}

	u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, values.Encode())
	return p.client.GetJSON(ctx, u, out)
}
