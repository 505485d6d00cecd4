package services

import (
	"math"
	"regexp"
	"strconv"

	"github.com/carparkfinder/backend/internal/domain/entities"
)

// DefaultHourlyRate is charged when a carpark has no usable pricing.
const DefaultHourlyRate = 1.50

// rateAmountPattern finds the first currency amount in a rate string,
// e.g. "$0.60 per hour" -> 0.60.
var rateAmountPattern = regexp.MustCompile(`\$?(\d+\.?\d*)`)

// CostEstimator derives a parking cost from whatever pricing data a carpark
// carries. It never fails.
type CostEstimator struct {
	defaultHourlyRate float64
}

// NewCostEstimator creates an estimator; a negative rate falls back to DefaultHourlyRate.
func NewCostEstimator(defaultHourlyRate float64) *CostEstimator {
	if defaultHourlyRate < 0 || math.IsNaN(defaultHourlyRate) {
		defaultHourlyRate = DefaultHourlyRate
	}
	return &CostEstimator{defaultHourlyRate: defaultHourlyRate}
}

// Estimate returns the estimated cost of parking for durationHours.
func (e *CostEstimator) Estimate(carpark *entities.Carpark, durationHours float64) float64 {
	cost, _ := e.EstimateWithSource(carpark, durationHours)
	return cost
}

// EstimateWithSource is Estimate plus the fallback step that produced the value:
// an authoritative calculated cost, the first amount in the weekday rate, or
// the default hourly rate. A rate taken from the catalog's generic fallback
// table (HasPricing without HasSpecificPricing) is reported as default.
func (e *CostEstimator) EstimateWithSource(carpark *entities.Carpark, durationHours float64) (float64, entities.CostSource) {
	if carpark != nil && carpark.CalculatedCost != nil {
		return *carpark.CalculatedCost, entities.CostSourceCalculated
	}

	hours := sanitizeHours(durationHours)

	if carpark != nil && carpark.Pricing != nil && carpark.Pricing.WeekdayRate != "" {
		if hourly, ok := ParseHourlyRate(carpark.Pricing.WeekdayRate); ok {
			if carpark.HasPricing && !carpark.HasSpecificPricing {
				return hourly * hours, entities.CostSourceDefault
			}
			return hourly * hours, entities.CostSourceRate
		}
	}

	return e.defaultHourlyRate * hours, entities.CostSourceDefault
}

// ParseHourlyRate extracts the first decimal amount from a free-text rate.
func ParseHourlyRate(rate string) (float64, bool) {
	match := rateAmountPattern.FindStringSubmatch(rate)
	if len(match) < 2 {
		return 0, false
	}
	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

func sanitizeHours(hours float64) float64 {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return 0
	}
	return hours
}
