package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carparkfinder/backend/internal/adapters/filestore"
	"github.com/carparkfinder/backend/internal/domain/repositories"
)

const ratesFixture = `{
  "carparks": [
    {"carpark_id": "default", "name": "Standard Carpark", "weekday_rate": "$1.50 per hour", "saturday_rate": "$1.50 per hour", "sunday_rate": "$1.50 per hour"},
    {"carpark_id": "Funan", "name": "Funan", "weekday_rate": "TODO", "saturday_rate": "TODO", "sunday_rate": "TODO", "note": "Mall carpark - NEEDS RATE UPDATE"}
  ]
}`

func fixtureRepo(t *testing.T) repositories.RateRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.json")
	require.NoError(t, os.WriteFile(path, []byte(ratesFixture), 0o644))
	return filestore.NewRateFileAdapter(path)
}

func TestRun_MissingThenSet(t *testing.T) {
	ctx := context.Background()
	repo := fixtureRepo(t)

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"missing"}, repo, &out))
	assert.Contains(t, out.String(), "1 carparks need rate updates")
	assert.Contains(t, out.String(), "Funan (Funan)")

	out.Reset()
	require.NoError(t, run(ctx, []string{"set", "funan", "$2.00 per hour", "$2.50 per hour", "$2.50 per hour"}, repo, &out))
	assert.Contains(t, out.String(), "Updated Funan")

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "$2.00 per hour", records[1].Pricing.WeekdayRate)
	assert.Equal(t, "Mall carpark", records[1].Pricing.Note)

	out.Reset()
	require.NoError(t, run(ctx, []string{"missing"}, repo, &out))
	assert.Contains(t, out.String(), "up to date")
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	repo := fixtureRepo(t)

	assert.Error(t, run(ctx, nil, repo, &bytes.Buffer{}))
	assert.Error(t, run(ctx, []string{"bogus"}, repo, &bytes.Buffer{}))
	assert.Error(t, run(ctx, []string{"set", "funan"}, repo, &bytes.Buffer{}))
	assert.ErrorContains(t, run(ctx, []string{"set", "nowhere", "a", "b", "c"}, repo, &bytes.Buffer{}), "not found")
}

func TestSyncRates(t *testing.T) {
	ctx := context.Background()
	from := fixtureRepo(t)
	to := filestore.NewRateFileAdapter(filepath.Join(t.TempDir(), "copy.json"))

	var out bytes.Buffer
	require.NoError(t, syncRates(ctx, from, to, &out))
	assert.Contains(t, out.String(), "Synced 2 rate records")

	copied, err := to.List(ctx)
	require.NoError(t, err)
	assert.Len(t, copied, 2)
}
