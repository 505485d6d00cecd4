package providers

import (
	"context"

	"github.com/carparkfinder/backend/internal/domain/entities"
)

// CostCalculator produces an authoritative parking cost for a free-text rate.
type CostCalculator interface {
	CalculateCost(ctx context.Context, carpark *entities.Carpark, rate string, durationHours float64, day entities.DayType) (*entities.CostQuote, error)
}
