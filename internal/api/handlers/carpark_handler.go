package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/carparkfinder/backend/internal/application/services"
	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
	"github.com/carparkfinder/backend/internal/domain/repositories"
	apperrors "github.com/carparkfinder/backend/pkg/errors"
)

// DefaultDurationHours is used when a search names no duration.
const DefaultDurationHours = 2.0

// CarparkSearcher runs carpark searches.
type CarparkSearcher interface {
	Search(ctx context.Context, req services.SearchRequest) (*services.SearchResult, error)
}

// RateCatalog exposes the loaded rate catalog.
type RateCatalog interface {
	Catalog() []repositories.RateRecord
}

// CarparkHandler handles carpark search endpoints
type CarparkHandler struct {
	searcher CarparkSearcher
	rates    RateCatalog
}

// NewCarparkHandler creates a new carpark handler
func NewCarparkHandler(searcher CarparkSearcher, rates RateCatalog) *CarparkHandler {
	return &CarparkHandler{searcher: searcher, rates: rates}
}

// Search handles GET /api/carparks?search=&duration=&day_type=&lat=&lng=
func (h *CarparkHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.searcher.Search(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// LegacySearch handles GET /carparks and returns the ordered list only.
func (h *CarparkHandler) LegacySearch(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.searcher.Search(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result.Carparks)
}

// Rates handles GET /api/rates
func (h *CarparkHandler) Rates(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		respondWithError(w, http.StatusServiceUnavailable, "rate catalog not loaded")
		return
	}
	catalog := h.rates.Catalog()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"rates": catalog,
		"count": len(catalog),
	})
}

func parseSearchRequest(r *http.Request) (services.SearchRequest, error) {
	q := r.URL.Query()
	req := services.SearchRequest{
		ClientID:      clientID(r),
		Term:          strings.TrimSpace(q.Get("search")),
		DurationHours: DefaultDurationHours,
		DayType:       entities.ParseDayType(q.Get("day_type")),
	}

	if raw := strings.TrimSpace(q.Get("duration")); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, apperrors.NewValidationError("invalid duration parameter")
		}
		req.DurationHours = d
	}

	latStr, lngStr := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lng"))
	if lngStr == "" {
		lngStr = strings.TrimSpace(q.Get("lon"))
	}
	if latStr != "" || lngStr != "" {
		lat, lng, err := parseCoordinates(latStr, lngStr)
		if err != nil {
			return req, err
		}
		req.UserLocation = &providers.Coordinates{Latitude: lat, Longitude: lng}
		req.UseGPS = q.Get("gps") != "false"
	}
	return req, nil
}

func parseCoordinates(latStr, lngStr string) (float64, float64, error) {
	if latStr == "" || lngStr == "" {
		return 0, 0, apperrors.NewValidationError("lat and lng parameters are required together")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, apperrors.NewValidationError("invalid lat parameter")
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return 0, 0, apperrors.NewValidationError("invalid lng parameter")
	}
	return lat, lng, nil
}
