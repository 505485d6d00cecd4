package services

import (
	"sort"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
	"github.com/carparkfinder/backend/pkg/geo"
)

const (
	// DefaultTravelCostPerKm is the per-km, per-hour penalty used by best value.
	DefaultTravelCostPerKm = 0.50

	// DefaultNearMeLimit caps location-anchored result lists.
	DefaultNearMeLimit = 20
)

// RankedResult is the displayable view of one search.
type RankedResult struct {
	Mode            entities.SearchMode         `json:"mode"`
	HasLocation     bool                        `json:"has_location"`
	Carparks        []entities.AnnotatedCarpark `json:"carparks"`
	Recommendations []entities.Recommendation   `json:"recommendations"`
}

// RecommendationService annotates, orders and highlights carparks. It holds
// no mutable state and is safe for concurrent use.
type RecommendationService struct {
	estimator       *CostEstimator
	travelCostPerKm float64
	nearMeLimit     int
}

// NewRecommendationService creates a recommendation service. Non-positive
// limits and negative costs fall back to the defaults.
func NewRecommendationService(estimator *CostEstimator, travelCostPerKm float64, nearMeLimit int) *RecommendationService {
	if estimator == nil {
		estimator = NewCostEstimator(DefaultHourlyRate)
	}
	if travelCostPerKm < 0 {
		travelCostPerKm = DefaultTravelCostPerKm
	}
	if nearMeLimit <= 0 {
		nearMeLimit = DefaultNearMeLimit
	}
	return &RecommendationService{
		estimator:       estimator,
		travelCostPerKm: travelCostPerKm,
		nearMeLimit:     nearMeLimit,
	}
}

// Rank runs annotation, ordering and selection for one query. ref may be nil.
// Picks are taken from the ordered list, so they are always displayed.
func (s *RecommendationService) Rank(carparks []*entities.Carpark, ref *providers.Coordinates, durationHours float64, mode entities.SearchMode) RankedResult {
	return s.RankTop(carparks, ref, durationHours, mode, 0)
}

// RankTop is Rank with the ordered list cut to limit entries before picks are
// selected. A non-positive limit keeps everything Sort returns.
func (s *RecommendationService) RankTop(carparks []*entities.Carpark, ref *providers.Coordinates, durationHours float64, mode entities.SearchMode, limit int) RankedResult {
	hasLocation := ref != nil
	sorted := s.Sort(s.Annotate(carparks, ref, durationHours), mode)
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	return RankedResult{
		Mode:            mode,
		HasLocation:     hasLocation,
		Carparks:        sorted,
		Recommendations: s.Recommend(sorted, hasLocation, durationHours),
	}
}

// Annotate attaches a distance (when ref is set and the carpark is located)
// and an estimated cost to every carpark. The input records are not modified.
func (s *RecommendationService) Annotate(carparks []*entities.Carpark, ref *providers.Coordinates, durationHours float64) []entities.AnnotatedCarpark {
	out := make([]entities.AnnotatedCarpark, 0, len(carparks))
	for _, cp := range carparks {
		if cp == nil {
			continue
		}
		item := entities.AnnotatedCarpark{Carpark: cp}
		if ref != nil && cp.Located() {
			d := geo.Distance(ref.Latitude, ref.Longitude, cp.Latitude, cp.Longitude)
			item.DistanceKm = &d
		}
		item.EstimatedCost, item.CostSource = s.estimator.EstimateWithSource(cp, durationHours)
		out = append(out, item)
	}
	return out
}

// Select picks the cheapest, closest and best-value carparks. Each pick is a
// left-to-right fold, so the first item wins ties. Closest and BestValue are
// only set when hasLocation is true and at least one item carries a distance.
func (s *RecommendationService) Select(items []entities.AnnotatedCarpark, hasLocation bool, durationHours float64) entities.Picks {
	var picks entities.Picks
	if len(items) == 0 {
		return picks
	}

	cheapest := 0
	for i := 1; i < len(items); i++ {
		if items[i].EstimatedCost < items[cheapest].EstimatedCost {
			cheapest = i
		}
	}
	picks.Cheapest = &items[cheapest]

	if !hasLocation {
		return picks
	}

	closest := -1
	for i := range items {
		if items[i].DistanceKm == nil {
			continue
		}
		if closest < 0 || *items[i].DistanceKm < *items[closest].DistanceKm {
			closest = i
		}
	}
	if closest < 0 {
		return picks
	}
	picks.Closest = &items[closest]

	penalty := s.travelCostPerKm * sanitizeHours(durationHours)
	best := -1
	var bestScore float64
	for i := range items {
		if items[i].DistanceKm == nil {
			continue
		}
		score := items[i].EstimatedCost + *items[i].DistanceKm*penalty
		if best < 0 || score < bestScore {
			best = i
			bestScore = score
		}
	}
	picks.BestValue = &items[best]

	return picks
}

// Recommend returns the distinct highlighted carparks in display order: best
// value, then cheapest unless it is the best value, then closest unless it is
// either of the others.
func (s *RecommendationService) Recommend(items []entities.AnnotatedCarpark, hasLocation bool, durationHours float64) []entities.Recommendation {
	picks := s.Select(items, hasLocation, durationHours)
	out := make([]entities.Recommendation, 0, 3)

	if picks.BestValue != nil {
		out = append(out, entities.Recommendation{Category: entities.CategoryBestValue, Carpark: *picks.BestValue})
	}

	if picks.Cheapest != nil && !sameCarpark(picks.Cheapest, picks.BestValue) {
		rec := entities.Recommendation{Category: entities.CategoryCheapest, Carpark: *picks.Cheapest}
		if picks.BestValue != nil && picks.Cheapest.EstimatedCost < picks.BestValue.EstimatedCost {
			savings := picks.BestValue.EstimatedCost - picks.Cheapest.EstimatedCost
			rec.Savings = &savings
		}
		out = append(out, rec)
	}

	if picks.Closest != nil && !sameCarpark(picks.Closest, picks.BestValue) && !sameCarpark(picks.Closest, picks.Cheapest) {
		out = append(out, entities.Recommendation{Category: entities.CategoryClosest, Carpark: *picks.Closest})
	}

	return out
}

// Sort orders a result list for the search mode:
//   - location: ascending distance, truncated to the near-me limit
//   - browse: ascending cost for carparks with cost data, the rest after in input order
//   - keyword: input order, which is the upstream relevance order
//
// The input slice is left untouched.
func (s *RecommendationService) Sort(items []entities.AnnotatedCarpark, mode entities.SearchMode) []entities.AnnotatedCarpark {
	out := make([]entities.AnnotatedCarpark, len(items))
	copy(out, items)

	switch mode {
	case entities.SearchModeLocation:
		sort.SliceStable(out, func(i, j int) bool {
			di, dj := out[i].DistanceKm, out[j].DistanceKm
			switch {
			case di == nil:
				return false
			case dj == nil:
				return true
			default:
				return *di < *dj
			}
		})
		if len(out) > s.nearMeLimit {
			out = out[:s.nearMeLimit]
		}
	case entities.SearchModeBrowse:
		sort.SliceStable(out, func(i, j int) bool {
			ci, cj := out[i].HasCostData(), out[j].HasCostData()
			if ci && cj {
				return out[i].EstimatedCost < out[j].EstimatedCost
			}
			return ci && !cj
		})
	}

	return out
}

func sameCarpark(a, b *entities.AnnotatedCarpark) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID == b.ID
}
