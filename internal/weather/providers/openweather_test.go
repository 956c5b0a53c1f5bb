package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/geocode"
	"github.com/i474232898/weather-lookup/internal/upstream"
)

func newTestProvider(t *testing.T, h http.HandlerFunc, key string) *OpenWeatherProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client := upstream.New(upstream.Config{Name: "openweather", Client: srv.Client(), Timeout: time.Second})
	return NewOpenWeatherProvider(client, key, WithBaseURL(srv.URL))
}

func TestOpenWeather_CurrentByZip(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "95014,us", q.Get("zip"))
		assert.Equal(t, "imperial", q.Get("units"))
		assert.Equal(t, "k", q.Get("appid"))
		assert.Empty(t, q.Get("lat"))
		_, _ = w.Write([]byte(`{"main":{"temp":68.5,"temp_min":55.2,"temp_max":74.6,"humidity":40},
			"weather":[{"main":"Clouds","description":"partly cloudy"}]}`))
	}, "k")

	got, err := p.Current(context.Background(), geocode.Location{Zip: "95014-1234", Lat: 37.33, Lng: -122.01})
	require.NoError(t, err)
	assert.Equal(t, 68.5, got.Main.Temp)
	assert.Equal(t, 74.6, got.Main.TempMax)
	require.Len(t, got.Weather, 1)
	assert.Equal(t, "partly cloudy", got.Weather[0].Description)
}

func TestOpenWeather_ForecastByCoordinates(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Empty(t, q.Get("zip"))
		assert.Equal(t, "39.8", q.Get("lat"))
		assert.Equal(t, "-89.65", q.Get("lon"))
		_, _ = w.Write([]byte(`{"list":[{"dt":1717243200,"dt_txt":"2024-06-01 12:00:00",
			"main":{"temp":70.1},"weather":[{"description":"clear sky"}]}]}`))
	}, "k")

	loc := geocode.Location{Zip: "39.8,-89.65", Lat: 39.8, Lng: -89.65}
	got, err := p.Forecast(context.Background(), loc)
	require.NoError(t, err)
	require.Len(t, got.List, 1)
	assert.Equal(t, "2024-06-01 12:00:00", got.List[0].DtTxt)
}

func TestOpenWeather_MissingKey(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a key")
	}, "")

	_, err := p.Current(context.Background(), geocode.Location{Zip: "95014"})
	assert.ErrorIs(t, err, upstream.ErrMissingCredential)
}
