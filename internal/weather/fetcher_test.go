package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/apperror"
	"github.com/i474232898/weather-lookup/internal/cache"
	"github.com/i474232898/weather-lookup/internal/geocode"
	"github.com/i474232898/weather-lookup/internal/quota"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/upstream"
)

type fakeProvider struct {
	mu            sync.Mutex
	currentCalls  int
	forecastCalls int
	current       CurrentPayload
	forecast      ForecastPayload
	currentErr    error
	forecastErr   error
}

func (p *fakeProvider) Name() string { return ProviderName }

func (p *fakeProvider) Current(context.Context, geocode.Location) (CurrentPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentCalls++
	return p.current, p.currentErr
}

func (p *fakeProvider) Forecast(context.Context, geocode.Location) (ForecastPayload, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forecastCalls++
	return p.forecast, p.forecastErr
}

func cupertinoPayloads() (CurrentPayload, ForecastPayload) {
	cur := CurrentPayload{
		Main:    MainBlock{Temp: 68.5, TempMin: 57.2, TempMax: 75.1, Humidity: 52},
		Weather: []Descriptor{{Main: "Clouds", Description: "partly cloudy"}},
	}
	fc := ForecastPayload{List: []ForecastEntry{
		entry("2024-06-01 12:00:00", 70.2, "clear sky"),
		entry("2024-06-02 12:00:00", 66.8, "few clouds"),
	}}
	return cur, fc
}

func newTestFetcher(t *testing.T, p Provider, opts ...quota.Option) (*Fetcher, *quota.Manager, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	m := quota.NewManager(s, quota.WithClock(func() time.Time { return fixedNow }))
	m.Configure(ProviderName, opts...)
	return NewFetcher(cache.New(s), m, p), m, s
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 30, 0, time.UTC)

var cupertino = geocode.Location{Zip: "95014", City: "Cupertino", State: "CA", Lat: 37.3349, Lng: -122.009}

func TestCacheKeys(t *testing.T) {
	cur, fc := CacheKeys(cupertino)
	assert.Equal(t, "weather:95014:current", cur)
	assert.Equal(t, "weather:95014:forecast", fc)

	plus4 := cupertino
	plus4.Zip = "95014-2083"
	cur, _ = CacheKeys(plus4)
	assert.Equal(t, "weather:95014-2083:current", cur)

	fallback := geocode.Location{Zip: "37.3349,-122.009", Lat: 37.3349, Lng: -122.009}
	cur, fc = CacheKeys(fallback)
	assert.Equal(t, "weather:37.3349,-122.009:current", cur)
	assert.Equal(t, "weather:37.3349,-122.009:forecast", fc)
}

func TestFetch_NormalizesAndCaches(t *testing.T) {
	ctx := context.Background()
	cur, fc := cupertinoPayloads()
	p := &fakeProvider{current: cur, forecast: fc}
	f, m, _ := newTestFetcher(t, p)

	report, err := f.Fetch(ctx, cupertino, false)
	require.NoError(t, err)
	assert.Equal(t, 69, report.Current.Temperature)
	assert.Equal(t, "Partly Cloudy", report.Current.Condition)
	assert.Equal(t, 75, report.Current.High)
	assert.Equal(t, 57, report.Current.Low)
	assert.Equal(t, 52, report.Current.Humidity)
	require.Len(t, report.Forecast, 2)
	assert.Equal(t, "Sat", report.Forecast[0].Day)

	st, err := m.Status(ctx, ProviderName)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Usage.Month, "two upstream calls consume two units")

	again, err := f.Fetch(ctx, cupertino, false)
	require.NoError(t, err)
	assert.Equal(t, report, again)
	assert.Equal(t, 1, p.currentCalls)
	assert.Equal(t, 1, p.forecastCalls)

	_, err = f.Fetch(ctx, cupertino, true)
	require.NoError(t, err)
	assert.Equal(t, 2, p.currentCalls)
	assert.Equal(t, 2, p.forecastCalls)
}

func TestFetch_FallbackKeyUsedForBothResources(t *testing.T) {
	ctx := context.Background()
	cur, fc := cupertinoPayloads()
	p := &fakeProvider{current: cur, forecast: fc}
	f, _, s := newTestFetcher(t, p)

	loc := geocode.Location{Zip: "37.3349,-122.009", Lat: 37.3349, Lng: -122.009}
	_, err := f.Fetch(ctx, loc, false)
	require.NoError(t, err)

	for _, k := range []string{"weather:37.3349,-122.009:current", "weather:37.3349,-122.009:forecast"} {
		ok, err := s.Exists(ctx, k)
		require.NoError(t, err)
		assert.True(t, ok, k)
	}
}

func TestFetch_ForecastFailureAbortsWholeFetch(t *testing.T) {
	ctx := context.Background()
	cur, _ := cupertinoPayloads()
	p := &fakeProvider{
		current:     cur,
		forecastErr: &upstream.StatusError{Provider: ProviderName, StatusCode: 503, Message: "Service Unavailable"},
	}
	f, m, _ := newTestFetcher(t, p)

	report, err := f.Fetch(ctx, cupertino, false)
	require.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, Report{}, report)

	var we *Error
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "forecast", we.Resource)
	assert.Equal(t, 503, we.StatusCode)

	st, err := m.Status(ctx, ProviderName)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Usage.Month, "only the successful call is tracked")
}

func TestFetch_MissingCredential(t *testing.T) {
	p := &fakeProvider{currentErr: upstream.ErrMissingCredential}
	f, _, _ := newTestFetcher(t, p)

	_, err := f.Fetch(context.Background(), cupertino, false)
	require.ErrorIs(t, err, apperror.ErrConfigMissing)
	assert.Equal(t, 0, p.forecastCalls)
}

func TestFetch_QuotaExhaustedBetweenCalls(t *testing.T) {
	ctx := context.Background()
	cur, fc := cupertinoPayloads()
	p := &fakeProvider{current: cur, forecast: fc}
	f, _, _ := newTestFetcher(t, p, quota.PerMonth(1))

	_, err := f.Fetch(ctx, cupertino, false)
	require.ErrorIs(t, err, apperror.ErrQuotaExceeded)

	var we *Error
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "forecast", we.Resource)
	assert.Contains(t, we.Message, ProviderName)
	assert.Equal(t, 1, p.currentCalls)
	assert.Equal(t, 0, p.forecastCalls)
}

func TestFetch_RateLimited(t *testing.T) {
	ctx := context.Background()
	cur, fc := cupertinoPayloads()
	p := &fakeProvider{current: cur, forecast: fc}
	f, m, _ := newTestFetcher(t, p, quota.PerMinute(1))
	require.NoError(t, m.Track(ctx, ProviderName))

	_, err := f.Fetch(ctx, cupertino, false)
	require.ErrorIs(t, err, apperror.ErrRateLimited)

	var we *Error
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "current", we.Resource)
	assert.Equal(t, 30*time.Second, we.RetryAfter)
	assert.Contains(t, we.Message, "retry in 30s")
}
