package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
	"github.com/carparkfinder/backend/pkg/geo"
	"github.com/rs/zerolog/log"
)

// DefaultGeocodeCacheTTL is how long geocoding answers are reused, in seconds.
const DefaultGeocodeCacheTTL = 60 * 60 * 24 * 30

// LocationService wraps the geolocation provider with a shared read-through
// cache and turns every failure into "no answer".
type LocationService struct {
	provider providers.GeolocationProvider
	cache    providers.CacheProvider
	ttl      int
}

// NewLocationService creates a location service. cache may be nil.
func NewLocationService(provider providers.GeolocationProvider, cache providers.CacheProvider, ttlSeconds int) *LocationService {
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultGeocodeCacheTTL
	}
	return &LocationService{provider: provider, cache: cache, ttl: ttlSeconds}
}

// Resolve returns the address and postal code at a position. It never fails:
// invalid coordinates or an unavailable provider yield both fields nil.
// Answers are cached per position rounded to 6 decimal places.
func (s *LocationService) Resolve(ctx context.Context, lat, lng float64) entities.ResolvedAddress {
	if !geo.ValidCoordinates(lat, lng) || s.provider == nil {
		return entities.ResolvedAddress{}
	}

	cacheKey := "geo:v1:reverse:" + geo.CacheKey(lat, lng)
	var cached entities.ResolvedAddress
	if s.readCache(ctx, cacheKey, &cached) {
		return cached
	}

	addr, err := s.provider.ReverseGeocode(ctx, lat, lng)
	if err != nil || addr == nil {
		log.Ctx(ctx).Warn().Err(err).Float64("lat", lat).Float64("lng", lng).Msg("Reverse geocoding unavailable")
		return entities.ResolvedAddress{}
	}

	resolved := entities.ResolvedAddress{}
	if addr.FormattedAddress != "" {
		formatted := addr.FormattedAddress
		resolved.Address = &formatted
	}
	if addr.PostalCode != "" {
		postal := addr.PostalCode
		resolved.PostalCode = &postal
	}

	s.writeCache(ctx, cacheKey, resolved)
	return resolved
}

// Locate geocodes a free-text address or postal code. The boolean is false
// when nothing usable came back.
func (s *LocationService) Locate(ctx context.Context, address string) (*providers.Coordinates, bool) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" || s.provider == nil {
		return nil, false
	}

	cacheKey := "geo:v1:geocode:" + hashKey(strings.ToLower(trimmed))
	var cached providers.Coordinates
	if s.readCache(ctx, cacheKey, &cached) && geo.ValidCoordinates(cached.Latitude, cached.Longitude) {
		return &cached, true
	}

	addr, err := s.provider.Geocode(ctx, trimmed)
	if err != nil || addr == nil {
		log.Ctx(ctx).Info().Err(err).Str("address", trimmed).Msg("Address could not be geocoded")
		return nil, false
	}
	coords := addr.Coordinates
	if !geo.ValidCoordinates(coords.Latitude, coords.Longitude) || (coords.Latitude == 0 && coords.Longitude == 0) {
		return nil, false
	}

	s.writeCache(ctx, cacheKey, coords)
	return &coords, true
}

func (s *LocationService) readCache(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil || len(data) == 0 {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *LocationService) writeCache(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("Geocode cache write failed")
	}
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
