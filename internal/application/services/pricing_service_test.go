package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/carparkfinder/backend/internal/application/services"
	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRateRepository struct {
	mock.Mock
}

func (m *MockRateRepository) List(ctx context.Context) ([]*repositories.RateRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repositories.RateRecord), args.Error(1)
}

func (m *MockRateRepository) Upsert(ctx context.Context, records []*repositories.RateRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func rate(id, name, weekday string) *repositories.RateRecord {
	return &repositories.RateRecord{
		Key:       repositories.NormalizeRateKey(id),
		CarparkID: id,
		Pricing:   entities.Pricing{Name: name, WeekdayRate: weekday},
	}
}

func loadedPricing(t *testing.T) *services.PricingService {
	repo := new(MockRateRepository)
	repo.On("List", mock.Anything).Return([]*repositories.RateRecord{
		rate("hdb", "HDB Carpark", "$0.60 per half-hour"),
		rate("default", "Standard Carpark", "$1.50 per hour"),
		rate("313@Somerset", "313@Somerset", "$2.46 for 1st hr"),
		rate("ION_Orchard", "ION Orchard", "$4.28 for 1st hr"),
		rate("VivoCity", "VivoCity", "$1.07 per hour"),
		rate("vivocity", "Duplicate", "$9.99 per hour"),
	}, nil)

	svc := services.NewPricingService(repo)
	require.NoError(t, svc.Load(context.Background()))
	repo.AssertExpectations(t)
	return svc
}

func TestPricingService_Lookup(t *testing.T) {
	svc := loadedPricing(t)
	assert.Equal(t, 5, svc.Count(), "duplicate keys keep the first entry")

	tests := []struct {
		name     string
		id       string
		dev      string
		expected string
		specific bool
	}{
		{"hdb block name", "AM14", "BLOCK 253 ANG MO KIO STREET 21", "HDB Carpark", true},
		{"hdb block inside name", "X", "CAR PARK BLK 98A", "HDB Carpark", true},
		{"exact id", "313@somerset", "", "313@Somerset", true},
		{"exact name", "Z99", "ion orchard", "ION Orchard", true},
		{"partial name", "Z98", "VivoCity Mall", "VivoCity", true},
		{"unknown falls back to default", "Z97", "Nowhere Plaza", "Standard Carpark", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pricing, specific := svc.Lookup(tt.id, tt.dev)
			require.NotNil(t, pricing)
			assert.Equal(t, tt.expected, pricing.Name)
			assert.Equal(t, tt.specific, specific)
		})
	}
}

func TestPricingService_EmptyCatalog(t *testing.T) {
	repo := new(MockRateRepository)
	repo.On("List", mock.Anything).Return([]*repositories.RateRecord{}, nil)
	svc := services.NewPricingService(repo)
	require.NoError(t, svc.Load(context.Background()))

	pricing, specific := svc.Lookup("A1", "Somewhere")
	assert.Nil(t, pricing)
	assert.False(t, specific)
}

func TestPricingService_LoadError(t *testing.T) {
	repo := new(MockRateRepository)
	repo.On("List", mock.Anything).Return(nil, errors.New("db down"))
	svc := services.NewPricingService(repo)

	err := svc.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestPricingService_Attach(t *testing.T) {
	svc := loadedPricing(t)
	original := &entities.Carpark{ID: "VivoCity", Name: "VivoCity"}
	unknown := &entities.Carpark{ID: "Q1", Name: "Unknown Tower"}

	out := svc.Attach([]*entities.Carpark{original, nil, unknown})
	require.Len(t, out, 2)

	assert.True(t, out[0].HasPricing)
	assert.True(t, out[0].HasSpecificPricing)
	assert.Equal(t, "$1.07 per hour", out[0].Pricing.WeekdayRate)

	assert.True(t, out[1].HasPricing)
	assert.False(t, out[1].HasSpecificPricing)

	assert.Nil(t, original.Pricing, "input records are not modified")
	assert.NotSame(t, original, out[0])
}

func TestIsHDBCarpark(t *testing.T) {
	assert.True(t, services.IsHDBCarpark("blk 270/271 albert centre"))
	assert.True(t, services.IsHDBCarpark("HDB HUB"))
	assert.True(t, services.IsHDBCarpark("BLOCK.12"))
	assert.False(t, services.IsHDBCarpark("Blkwood Towers"))
	assert.False(t, services.IsHDBCarpark("ION Orchard"))
}
