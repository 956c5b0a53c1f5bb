// Package weather fetches and normalizes current conditions and the daily
// forecast for a resolved location.
package weather

import (
	"context"
	"time"

	"github.com/i474232898/weather-lookup/internal/cache"
	"github.com/i474232898/weather-lookup/internal/geocode"
	"github.com/i474232898/weather-lookup/internal/logger"
)

const (
	// ProviderName is the quota key for weather calls.
	ProviderName = "openweather"

	CurrentTTL  = 30 * time.Minute
	ForecastTTL = 3 * time.Hour

	resourceCurrent  = "current"
	resourceForecast = "forecast"
)

// QuotaGate admits and records upstream calls.
type QuotaGate interface {
	Request(ctx context.Context, provider string) error
	Track(ctx context.Context, provider string) error
}

// Fetcher resolves a Report from two independently cached upstream calls.
type Fetcher struct {
	cache    *cache.Cache
	quota    QuotaGate
	provider Provider
	log      *logger.Entry
}

func NewFetcher(c *cache.Cache, q QuotaGate, p Provider) *Fetcher {
	return &Fetcher{
		cache:    c,
		quota:    q,
		provider: p,
		log:      logger.WithComponent("weather"),
	}
}

// CacheKeys returns the current and forecast cache keys for loc.
func CacheKeys(loc geocode.Location) (current, forecast string) {
	base := "weather:" + loc.Key()
	return base + ":" + resourceCurrent, base + ":" + resourceForecast
}

// CacheKeys lets callers probe the cache without fetching.
func (f *Fetcher) CacheKeys(loc geocode.Location) (current, forecast string) {
	return CacheKeys(loc)
}

// Fetch returns the Report for loc. A failure of either upstream call fails
// the whole fetch.
func (f *Fetcher) Fetch(ctx context.Context, loc geocode.Location, bypass bool) (Report, error) {
	currentKey, forecastKey := f.CacheKeys(loc)

	cur, _, err := cache.Fetch(ctx, f.cache, currentKey, CurrentTTL, bypass, func(ctx context.Context) (Current, error) {
		var p CurrentPayload
		err := f.call(ctx, resourceCurrent, loc, func(ctx context.Context) error {
			var err error
			p, err = f.provider.Current(ctx, loc)
			return err
		})
		if err != nil {
			return Current{}, err
		}
		return NormalizeCurrent(p), nil
	})
	if err != nil {
		return Report{}, err
	}

	days, _, err := cache.Fetch(ctx, f.cache, forecastKey, ForecastTTL, bypass, func(ctx context.Context) ([]DailySummary, error) {
		var p ForecastPayload
		err := f.call(ctx, resourceForecast, loc, func(ctx context.Context) error {
			var err error
			p, err = f.provider.Forecast(ctx, loc)
			return err
		})
		if err != nil {
			return nil, err
		}
		return AggregateForecast(p), nil
	})
	if err != nil {
		return Report{}, err
	}

	return Report{Current: cur, Forecast: days}, nil
}

// call gates one upstream request with the quota manager.
func (f *Fetcher) call(ctx context.Context, resource string, loc geocode.Location, do func(context.Context) error) error {
	provider := f.provider.Name()
	if err := f.quota.Request(ctx, provider); err != nil {
		return fromQuota(resource, err)
	}

	start := time.Now()
	if err := do(ctx); err != nil {
		f.log.WithError(err).WithFields(logger.Fields{
			"resource": resource,
			"location": loc.Key(),
		}).Warn("weather call failed")
		return fromUpstream(resource, err)
	}
	if err := f.quota.Track(ctx, provider); err != nil {
		f.log.WithError(err).Warn("failed to record weather usage")
	}
	f.log.WithFields(logger.Fields{
		"resource": resource,
		"location": loc.Key(),
		"duration": time.Since(start).String(),
	}).Debug("fetched weather")
	return nil
}
