package weather

import (
	"context"

	"github.com/i474232898/weather-lookup/internal/geocode"
)

// Provider abstracts the weather upstream. Both calls accept a resolved
// location and query by postal code when it has one.
type Provider interface {
	Name() string
	Current(ctx context.Context, loc geocode.Location) (CurrentPayload, error)
	Forecast(ctx context.Context, loc geocode.Location) (ForecastPayload, error)
}
