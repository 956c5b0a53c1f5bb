// Package lookup sequences address resolution and the weather fetch, and
// reports cache diagnostics for each key involved.
package lookup

import (
	"context"
	"errors"
	"time"

	"github.com/i474232898/weather-lookup/internal/geocode"
	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/store"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// Resolver turns an address into a Location.
type Resolver interface {
	CacheKey(address string) string
	Resolve(ctx context.Context, address string, bypass bool) (geocode.Location, error)
}

// WeatherFetcher returns the weather report for a Location.
type WeatherFetcher interface {
	CacheKeys(loc geocode.Location) (current, forecast string)
	Fetch(ctx context.Context, loc geocode.Location, bypass bool) (weather.Report, error)
}

// KeyStatus describes one cache key as probed before its fetch ran.
// TTLSeconds is nil when the key was absent, has no expiry, or the store
// cannot report it.
type KeyStatus struct {
	Key        string `json:"key"`
	Hit        bool   `json:"hit"`
	TTLSeconds *int64 `json:"ttlSeconds"`
}

type Diagnostics struct {
	Geocode  KeyStatus `json:"geocode"`
	Current  KeyStatus `json:"current"`
	Forecast KeyStatus `json:"forecast"`
}

// Result is the outcome of Produce. Cached is true only when both weather
// keys were hits; the geocode hit is reported in Diagnostics alone.
type Result struct {
	Weather     weather.Report   `json:"weather"`
	Location    geocode.Location `json:"location"`
	Cached      bool             `json:"cached"`
	Diagnostics Diagnostics      `json:"diagnostics"`
}

type Service struct {
	store    store.Store
	resolver Resolver
	fetcher  WeatherFetcher
	log      *logger.Entry
}

// NewService builds a Service. s must be the store backing the resolver and
// fetcher caches.
func NewService(s store.Store, r Resolver, f WeatherFetcher) *Service {
	return &Service{
		store:    s,
		resolver: r,
		fetcher:  f,
		log:      logger.WithComponent("lookup"),
	}
}

// Produce resolves address and fetches its weather. Fetcher errors are
// returned unchanged.
func (s *Service) Produce(ctx context.Context, address string, bypass bool) (*Result, error) {
	var diag Diagnostics

	diag.Geocode = s.probe(ctx, s.resolver.CacheKey(address))
	loc, err := s.resolver.Resolve(ctx, address, bypass)
	if err != nil {
		return nil, err
	}

	currentKey, forecastKey := s.fetcher.CacheKeys(loc)
	diag.Current = s.probe(ctx, currentKey)
	diag.Forecast = s.probe(ctx, forecastKey)
	report, err := s.fetcher.Fetch(ctx, loc, bypass)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Weather:     report,
		Location:    loc,
		Cached:      diag.Current.Hit && diag.Forecast.Hit,
		Diagnostics: diag,
	}
	s.log.WithFields(logger.Fields{
		"address":      address,
		"location":     loc.Key(),
		"cached":       res.Cached,
		"geocode_hit":  diag.Geocode.Hit,
		"current_hit":  diag.Current.Hit,
		"forecast_hit": diag.Forecast.Hit,
		"bypass":       bypass,
	}).Debug("lookup produced")
	return res, nil
}

// probe reads existence and remaining lifetime of key. Store failures
// degrade to a miss with unknown TTL.
func (s *Service) probe(ctx context.Context, key string) KeyStatus {
	ks := KeyStatus{Key: key}

	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Debug("cache probe failed")
		return ks
	}
	ks.Hit = ok
	if !ok {
		return ks
	}

	tr, ok := s.store.(store.TTLReporter)
	if !ok {
		return ks
	}
	ttl, err := tr.TTL(ctx, key)
	switch {
	case err == nil:
		secs := int64(ttl / time.Second)
		ks.TTLSeconds = &secs
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNoExpiry):
	default:
		s.log.WithError(err).WithField("key", key).Debug("ttl probe failed")
	}
	return ks
}
