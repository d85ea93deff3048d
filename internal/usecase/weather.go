package usecase

import (
	"context"
	"strings"

	"CropPulse/internal/domain/models"
	"CropPulse/pkg/cache"
)

// WeatherProvider fetches the current report for a location.
type WeatherProvider interface {
	Current(ctx context.Context, location string) (models.WeatherReport, error)
}

// WeatherReader serves weather reads through the cache's weather category.
type WeatherReader struct {
	provider WeatherProvider
	cache    *cache.ReadThrough
}

func NewWeatherReader(provider WeatherProvider, rt *cache.ReadThrough) *WeatherReader {
	return &WeatherReader{provider: provider, cache: rt}
}

// Current returns the cached report for the location, fetching upstream on
// expiry. Location matching is case-insensitive.
func (r *WeatherReader) Current(ctx context.Context, location string) (models.WeatherReport, error) {
	key := strings.ToLower(strings.TrimSpace(location))
	return cache.GetTyped[models.WeatherReport](ctx, r.cache, cache.CategoryWeather, key, func(ctx context.Context) (interface{}, error) {
		return r.provider.Current(ctx, location)
	})
}
