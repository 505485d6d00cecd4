package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/carparkfinder/backend/internal/domain/entities"
)

// RateRecord is one row of the carpark rate catalog. Key is the normalized
// carpark id or development name; "hdb" and "default" are reserved keys.
type RateRecord struct {
	Key       string           `json:"key" db:"key"`
	CarparkID string           `json:"carpark_id" db:"carpark_id"`
	Pricing   entities.Pricing `json:"pricing" db:"-"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// RateRepository defines the interface for the rate catalog
type RateRepository interface {
	// List returns every rate record
	List(ctx context.Context) ([]*RateRecord, error)

	// Upsert inserts or replaces records by key
	Upsert(ctx context.Context, records []*RateRecord) error
}

// NormalizeRateKey folds a carpark id or name for catalog matching,
// e.g. "313@Somerset" -> "313somerset".
func NormalizeRateKey(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("@", "", " ", "", "_", "").Replace(s)
	return strings.TrimSpace(s)
}
