package entities

// CostSource records which step of the estimator produced a cost.
type CostSource string

const (
	CostSourceCalculated CostSource = "calculated"
	CostSourceRate       CostSource = "rate"
	CostSourceDefault    CostSource = "default"
)

// AnnotatedCarpark is a carpark plus the values derived for one query.
// DistanceKm is nil when no reference location was supplied.
type AnnotatedCarpark struct {
	*Carpark
	DistanceKm    *float64   `json:"distance_km,omitempty"`
	EstimatedCost float64    `json:"estimated_cost"`
	CostSource    CostSource `json:"cost_source"`
}

// HasCostData reports whether the cost came from real pricing data rather
// than the default hourly rate.
func (a AnnotatedCarpark) HasCostData() bool {
	return a.CostSource == CostSourceCalculated || a.CostSource == CostSourceRate
}

// SearchMode decides how a result list is ordered.
type SearchMode string

const (
	// SearchModeLocation is a "near me" or geocoded address search.
	SearchModeLocation SearchMode = "location"
	// SearchModeBrowse is an empty query listing everything.
	SearchModeBrowse SearchMode = "browse"
	// SearchModeKeyword keeps the upstream relevance order.
	SearchModeKeyword SearchMode = "keyword"
)

// RecommendationCategory labels a highlighted carpark.
type RecommendationCategory string

const (
	CategoryBestValue RecommendationCategory = "best_value"
	CategoryCheapest  RecommendationCategory = "cheapest"
	CategoryClosest   RecommendationCategory = "closest"
)

// Recommendation is one highlighted carpark.
type Recommendation struct {
	Category RecommendationCategory `json:"category"`
	Carpark  AnnotatedCarpark       `json:"carpark"`
	// Savings is how much cheaper the pick is than the best-value pick, if any.
	Savings *float64 `json:"savings,omitempty"`
}

// Picks holds the raw selections before de-duplication.
type Picks struct {
	Cheapest  *AnnotatedCarpark
	Closest   *AnnotatedCarpark
	BestValue *AnnotatedCarpark
}
