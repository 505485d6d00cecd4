package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/repositories"
	"github.com/carparkfinder/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/carparkfinder/backend/pkg/errors"
)

const ratesTable = "carpark_rates"

// RateAdapter implements RateRepository on the carpark_rates table.
type RateAdapter struct {
	db   *sqlx.DB
	goqu *goqu.Database
	now  func() time.Time
}

// NewRateAdapter creates a new rate adapter
func NewRateAdapter(client *postgres.Client) repositories.RateRepository {
	return &RateAdapter{
		db:   sqlx.NewDb(client.DB(), "postgres"),
		goqu: goqu.New("postgres", client.DB()),
		now:  time.Now,
	}
}

type rateRow struct {
	Key                   string    `db:"key"`
	CarparkID             string    `db:"carpark_id"`
	Name                  string    `db:"name"`
	WeekdayRate           string    `db:"weekday_rate"`
	WeekdayRateAfterHours string    `db:"weekday_rate_after_hours"`
	SaturdayRate          string    `db:"saturday_rate"`
	SundayRate            string    `db:"sunday_rate"`
	Note                  string    `db:"note"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// List returns every rate record in insertion order.
func (a *RateAdapter) List(ctx context.Context) ([]*repositories.RateRecord, error) {
	query, args, err := a.goqu.From(ratesTable).Select(
		"key", "carpark_id", "name", "weekday_rate", "weekday_rate_after_hours",
		"saturday_rate", "sunday_rate", "note", "updated_at",
	).Order(goqu.C("position").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var rows []rateRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list carpark rates", err)
	}

	records := make([]*repositories.RateRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &repositories.RateRecord{
			Key:       row.Key,
			CarparkID: row.CarparkID,
			Pricing: entities.Pricing{
				Name:                  row.Name,
				WeekdayRate:           row.WeekdayRate,
				WeekdayRateAfterHours: row.WeekdayRateAfterHours,
				SaturdayRate:          row.SaturdayRate,
				SundayRate:            row.SundayRate,
				Note:                  row.Note,
			},
			UpdatedAt: row.UpdatedAt,
		})
	}
	return records, nil
}

// Upsert inserts records, replacing the rates of existing keys.
func (a *RateAdapter) Upsert(ctx context.Context, records []*repositories.RateRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := a.now().UTC()
	rows := make([]interface{}, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		key := r.Key
		if key == "" {
			key = repositories.NormalizeRateKey(r.CarparkID)
		}
		if key == "" {
			return apperrors.NewValidationError("rate record has no key")
		}
		// ON CONFLICT cannot touch the same row twice in one statement.
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, goqu.Record{
			"key":                      key,
			"carpark_id":               r.CarparkID,
			"name":                     r.Pricing.Name,
			"weekday_rate":             r.Pricing.WeekdayRate,
			"weekday_rate_after_hours": r.Pricing.WeekdayRateAfterHours,
			"saturday_rate":            r.Pricing.SaturdayRate,
			"sunday_rate":              r.Pricing.SundayRate,
			"note":                     r.Pricing.Note,
			"updated_at":               now,
		})
	}

	query, args, err := a.goqu.Insert(ratesTable).Rows(rows...).OnConflict(
		goqu.DoUpdate("key", goqu.Record{
			"carpark_id":               goqu.L("EXCLUDED.carpark_id"),
			"name":                     goqu.L("EXCLUDED.name"),
			"weekday_rate":             goqu.L("EXCLUDED.weekday_rate"),
			"weekday_rate_after_hours": goqu.L("EXCLUDED.weekday_rate_after_hours"),
			"saturday_rate":            goqu.L("EXCLUDED.saturday_rate"),
			"sunday_rate":              goqu.L("EXCLUDED.sunday_rate"),
			"note":                     goqu.L("EXCLUDED.note"),
			"updated_at":               goqu.L("EXCLUDED.updated_at"),
		}),
	).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert carpark rates", err)
	}
	return nil
}
