package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
	"github.com/carparkfinder/backend/pkg/geo"
)

// AddressResolver geocodes in both directions without failing.
type AddressResolver interface {
	Resolve(ctx context.Context, lat, lng float64) entities.ResolvedAddress
	Locate(ctx context.Context, address string) (*providers.Coordinates, bool)
}

// GeolocationHandler handles geolocation endpoints.
type GeolocationHandler struct {
	resolver AddressResolver
}

// NewGeolocationHandler creates a new geolocation handler.
func NewGeolocationHandler(resolver AddressResolver) *GeolocationHandler {
	return &GeolocationHandler{resolver: resolver}
}

// Geocode handles GET /api/geocode?address=...
func (h *GeolocationHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		respondWithError(w, http.StatusBadRequest, "address parameter is required")
		return
	}

	coords, ok := h.resolver.Locate(r.Context(), address)
	if !ok {
		respondWithError(w, http.StatusNotFound, "address could not be located")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"lat":     coords.Latitude,
		"lng":     coords.Longitude,
	})
}

// ReverseGeocode handles GET /api/reverse-geocode?lat=...&lng=...
// An unavailable lookup is a 200 with both fields null.
func (h *GeolocationHandler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lngStr := strings.TrimSpace(q.Get("lng"))
	if lngStr == "" {
		lngStr = strings.TrimSpace(q.Get("lon"))
	}
	lat, lng, err := parseCoordinates(strings.TrimSpace(q.Get("lat")), lngStr)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if !geo.ValidCoordinates(lat, lng) {
		respondWithError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}

	respondWithJSON(w, http.StatusOK, h.resolver.Resolve(r.Context(), lat, lng))
}
