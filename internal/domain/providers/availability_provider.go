package providers

import (
	"context"

	"github.com/carparkfinder/backend/internal/domain/entities"
)

// AvailabilityProvider is one upstream feed of live carpark availability.
type AvailabilityProvider interface {
	// Name identifies the feed in logs and metrics
	Name() string

	// FetchCarparks returns every carpark the feed knows about
	FetchCarparks(ctx context.Context) ([]*entities.Carpark, error)
}
