package services

import (
	"context"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
	"github.com/carparkfinder/backend/internal/domain/repositories"
	apperrors "github.com/carparkfinder/backend/pkg/errors"
	"github.com/carparkfinder/backend/pkg/geo"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxCarparksReturn caps keyword and browse result lists.
	DefaultMaxCarparksReturn = 500

	maxSearchTermLength = 200
)

var (
	postalCodePattern = regexp.MustCompile(`^\d{6}$`)
	digitPattern      = regexp.MustCompile(`\d`)
	streetKeywords    = []string{"road", "street", "avenue", "drive", "lane", "crescent", "way", "walk", "close", "rd", "st", "ave", "blk", "block"}
)

// CarparkSource supplies the current availability snapshot.
type CarparkSource interface {
	Carparks(ctx context.Context) ([]*entities.Carpark, error)
}

// SearchRequest is one carpark search.
type SearchRequest struct {
	ClientID      string
	Term          string
	DurationHours float64
	DayType       entities.DayType
	// UserLocation is the caller's position, when known.
	UserLocation *providers.Coordinates
	// UseGPS marks UserLocation as coming from the device rather than a typed address.
	UseGPS bool
}

// SearchResult is the ranked answer to a SearchRequest.
type SearchResult struct {
	RankedResult
	Term             string                 `json:"search_term"`
	DurationHours    float64                `json:"duration_hours"`
	DayType          entities.DayType       `json:"day_type"`
	SearchedLocation *providers.Coordinates `json:"searched_location,omitempty"`
	Total            int                    `json:"total"`
	AIEnabled        bool                   `json:"ai_enabled"`
}

// CarparkService runs a search end to end: source snapshot, keyword or
// location filtering, pricing, cost calculation and ranking.
type CarparkService struct {
	source      CarparkSource
	search      repositories.CarparkSearchRepository
	pricing     *PricingService
	costs       *CostCalculationService
	locations   *LocationService
	recommender *RecommendationService
	recents     *RecentSearchService
	maxReturn   int
}

// CarparkServiceDeps groups the collaborators of CarparkService. Only Source
// and Recommender are required.
type CarparkServiceDeps struct {
	Source      CarparkSource
	Search      repositories.CarparkSearchRepository
	Pricing     *PricingService
	Costs       *CostCalculationService
	Locations   *LocationService
	Recommender *RecommendationService
	Recents     *RecentSearchService
	MaxReturn   int
}

// NewCarparkService creates a carpark service.
func NewCarparkService(deps CarparkServiceDeps) *CarparkService {
	recommender := deps.Recommender
	if recommender == nil {
		recommender = NewRecommendationService(nil, DefaultTravelCostPerKm, DefaultNearMeLimit)
	}
	maxReturn := deps.MaxReturn
	if maxReturn <= 0 {
		maxReturn = DefaultMaxCarparksReturn
	}
	return &CarparkService{
		source:      deps.Source,
		search:      deps.Search,
		pricing:     deps.Pricing,
		costs:       deps.Costs,
		locations:   deps.Locations,
		recommender: recommender,
		recents:     deps.Recents,
		maxReturn:   maxReturn,
	}
}

// Search answers a SearchRequest. Upstream outages degrade to an empty
// result; only invalid input is an error.
func (s *CarparkService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	term := strings.TrimSpace(req.Term)
	if len(term) > maxSearchTermLength {
		return nil, apperrors.NewValidationError("search term is too long")
	}
	if math.IsNaN(req.DurationHours) || math.IsInf(req.DurationHours, 0) || req.DurationHours < 0 {
		return nil, apperrors.NewValidationError("duration must be a non-negative number of hours")
	}
	if req.UserLocation != nil && !geo.ValidCoordinates(req.UserLocation.Latitude, req.UserLocation.Longitude) {
		return nil, apperrors.NewValidationError("invalid user location")
	}
	day := req.DayType
	if day == "" {
		day = entities.DayTypeWeekday
	}

	start := time.Now()
	all, err := s.source.Carparks(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Carpark snapshot unavailable")
		all = nil
	}

	matches, ref, mode := s.filter(ctx, term, req.UserLocation, all)

	priced := matches
	if s.pricing != nil {
		priced = s.pricing.Attach(matches)
	}
	if s.costs != nil {
		priced = s.costs.Apply(ctx, priced, req.DurationHours, day)
	}

	// location mode is capped by the near-me limit inside Sort
	limit := s.maxReturn
	if mode == entities.SearchModeLocation {
		limit = 0
	}
	ranked := s.recommender.RankTop(priced, ref, req.DurationHours, mode, limit)

	if s.recents != nil && term != "" {
		if _, err := s.recents.Add(ctx, req.ClientID, term); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("Failed to record recent search")
		}
	}

	log.Ctx(ctx).Info().
		Str("term", term).
		Str("mode", string(mode)).
		Int("results", len(ranked.Carparks)).
		Dur("duration", time.Since(start)).
		Msg("Carpark search completed")

	return &SearchResult{
		RankedResult:     ranked,
		Term:             term,
		DurationHours:    req.DurationHours,
		DayType:          day,
		SearchedLocation: ref,
		Total:            len(ranked.Carparks),
		AIEnabled:        s.costs.Enabled(),
	}, nil
}

// filter narrows the snapshot for a term and decides the search mode and the
// reference point distances are measured from.
func (s *CarparkService) filter(ctx context.Context, term string, user *providers.Coordinates, all []*entities.Carpark) ([]*entities.Carpark, *providers.Coordinates, entities.SearchMode) {
	if strings.EqualFold(term, NearMeTerm) {
		if user == nil {
			return all, nil, entities.SearchModeBrowse
		}
		return all, user, entities.SearchModeLocation
	}

	if term == "" {
		return all, user, entities.SearchModeBrowse
	}

	var matches []*entities.Carpark
	if s.search != nil {
		found, err := s.search.Search(ctx, term, all)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("term", term).Msg("Keyword search failed")
		} else {
			matches = found
		}
	}

	if len(matches) == 0 && LooksLikeAddress(term) && s.locations != nil {
		if point, ok := s.locations.Locate(ctx, term); ok {
			return all, point, entities.SearchModeLocation
		}
	}

	return matches, user, entities.SearchModeKeyword
}

// LooksLikeAddress reports whether a term reads like a postal code or a
// street address rather than a place name.
func LooksLikeAddress(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if postalCodePattern.MatchString(term) {
		return true
	}
	if !strings.Contains(term, " ") {
		return false
	}
	if digitPattern.MatchString(term) {
		return true
	}
	for _, word := range strings.Fields(term) {
		for _, kw := range streetKeywords {
			if word == kw {
				return true
			}
		}
	}
	return false
}
