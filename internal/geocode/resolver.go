// Package geocode resolves free-form addresses into locations, caching each
// resolution for a week.
package geocode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/weather-lookup/internal/apperror"
	"github.com/i474232898/weather-lookup/internal/cache"
	"github.com/i474232898/weather-lookup/internal/logger"
)

const (
	// ProviderName is the quota key for geocoding calls.
	ProviderName = "mapbox"

	// TTL is how long a resolved address stays fresh.
	TTL = 7 * 24 * time.Hour

	keyPrefix = "geocode:"
)

// QuotaGate admits and records upstream calls.
type QuotaGate interface {
	Request(ctx context.Context, provider string) error
	Track(ctx context.Context, provider string) error
}

// Resolver turns addresses into Locations through the cache.
type Resolver struct {
	cache    *cache.Cache
	quota    QuotaGate
	provider Provider
	log      *logger.Entry
}

func NewResolver(c *cache.Cache, q QuotaGate, p Provider) *Resolver {
	return &Resolver{
		cache:    c,
		quota:    q,
		provider: p,
		log:      logger.WithComponent("geocode"),
	}
}

// CacheKey returns the cache key Resolve uses for address.
func CacheKey(address string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(address))
}

// CacheKey lets callers probe the cache without resolving.
func (r *Resolver) CacheKey(address string) string {
	return CacheKey(address)
}

// Resolve returns the cached Location for address, or resolves it upstream.
// bypass forces an upstream lookup.
func (r *Resolver) Resolve(ctx context.Context, address string, bypass bool) (Location, error) {
	loc, _, err := cache.Fetch(ctx, r.cache, r.CacheKey(address), TTL, bypass, func(ctx context.Context) (Location, error) {
		return r.lookup(ctx, address)
	})
	return loc, err
}

func (r *Resolver) lookup(ctx context.Context, address string) (Location, error) {
	provider := r.provider.Name()
	if err := r.quota.Request(ctx, provider); err != nil {
		return Location{}, fromQuota(address, err)
	}

	start := time.Now()
	resp, err := r.provider.Geocode(ctx, address)
	if err != nil {
		r.log.WithError(err).WithField("address", address).Warn("geocoding call failed")
		return Location{}, fromUpstream(address, err)
	}

	// Only a usable candidate counts against the quota.
	loc, err := ParseResponse(address, resp)
	if err != nil {
		return Location{}, err
	}
	if err := r.quota.Track(ctx, provider); err != nil {
		r.log.WithError(err).Warn("failed to record geocoding usage")
	}
	r.log.WithFields(logger.Fields{
		"address":  address,
		"duration": time.Since(start).String(),
	}).Debug("geocoded address")
	return loc, nil
}

// ParseResponse picks the first candidate and extracts its location.
func ParseResponse(address string, resp Response) (Location, error) {
	if len(resp.Features) == 0 {
		return Location{}, newError(apperror.CodeNotFound, address, fmt.Sprintf("no location found for %q", address), nil)
	}
	f := resp.Features[0]
	if len(f.Center) < 2 {
		return Location{}, newError(apperror.CodeUpstream, address, "geocoding candidate has no coordinates", nil)
	}

	loc := Location{
		Lng: f.Center[0],
		Lat: f.Center[1],
	}

	var city, zip, state string
	for _, c := range f.Context {
		switch c.Type() {
		case "postcode":
			if zip == "" {
				zip = c.Text
			}
		case "place":
			if city == "" {
				city = c.Text
			}
		case "region":
			if state == "" {
				state = regionCode(c)
			}
		}
	}
	if city == "" {
		city = f.Text
	}
	if zip == "" {
		zip = loc.CoordinateKey()
	}

	loc.Zip = zip
	loc.City = city
	loc.State = state
	return loc, nil
}

// regionCode prefers the last segment of a short code such as "US-CA".
func regionCode(c ContextTag) string {
	if c.ShortCode != "" {
		parts := strings.Split(c.ShortCode, "-")
		if last := parts[len(parts)-1]; last != "" {
			return last
		}
	}
	return c.Text
}
