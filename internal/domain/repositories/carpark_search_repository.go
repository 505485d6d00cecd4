package repositories

import (
	"context"

	"github.com/carparkfinder/backend/internal/domain/entities"
)

// CarparkSearchRepository ranks carparks against a keyword. Implementations
// return matches only, most relevant first.
type CarparkSearchRepository interface {
	Search(ctx context.Context, term string, carparks []*entities.Carpark) ([]*entities.Carpark, error)
}

// CarparkIndexer keeps an external search index in sync with the snapshot.
type CarparkIndexer interface {
	Index(ctx context.Context, carparks []*entities.Carpark) error
}
