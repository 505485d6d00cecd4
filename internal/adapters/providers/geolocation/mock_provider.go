package geolocation

import (
	"context"
	"fmt"
	"strings"

	"github.com/carparkfinder/backend/internal/domain/providers"
)

// MockGeolocationProvider implements a mock geolocation provider for local development and tests
type MockGeolocationProvider struct{}

// NewMockGeolocationProvider creates a new mock geolocation provider
func NewMockGeolocationProvider() providers.GeolocationProvider {
	return &MockGeolocationProvider{}
}

type mockPlace struct {
	match      string
	address    string
	postalCode string
	coords     providers.Coordinates
}

var mockPlaces = []mockPlace{
	{"orchard", "2 Orchard Turn, Singapore 238801", "238801", providers.Coordinates{Latitude: 1.3040, Longitude: 103.8318}},
	{"harbourfront", "1 HarbourFront Walk, Singapore 098585", "098585", providers.Coordinates{Latitude: 1.2644, Longitude: 103.8222}},
	{"ang mo kio", "253 Ang Mo Kio Street 21, Singapore 560253", "560253", providers.Coordinates{Latitude: 1.3686, Longitude: 103.8378}},
	{"raffles", "1 Raffles Place, Singapore 048616", "048616", providers.Coordinates{Latitude: 1.2840, Longitude: 103.8514}},
}

// Geocode converts an address to a location (mock implementation)
func (m *MockGeolocationProvider) Geocode(ctx context.Context, address string) (*providers.GeocodedAddress, error) {
	needle := strings.ToLower(strings.TrimSpace(address))
	if needle == "" {
		return nil, fmt.Errorf("address is required")
	}
	for _, p := range mockPlaces {
		if strings.Contains(needle, p.match) || needle == p.postalCode {
			return &providers.GeocodedAddress{
				FormattedAddress: p.address,
				PostalCode:       p.postalCode,
				Coordinates:      p.coords,
			}, nil
		}
	}
	return nil, fmt.Errorf("no results for address")
}

// ReverseGeocode converts coordinates to an address (mock implementation)
func (m *MockGeolocationProvider) ReverseGeocode(ctx context.Context, lat, lon float64) (*providers.GeocodedAddress, error) {
	return &providers.GeocodedAddress{
		FormattedAddress: fmt.Sprintf("%.6f, %.6f, Singapore", lat, lon),
		Coordinates: providers.Coordinates{
			Latitude:  lat,
			Longitude: lon,
		},
	}, nil
}
