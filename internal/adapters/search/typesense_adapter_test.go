package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carparkfinder/backend/internal/domain/entities"
)

func TestTypesenseAdapter_Document(t *testing.T) {
	adapter := NewTypesenseAdapter(nil, testAliasSearch())
	cp := &entities.Carpark{
		ID:        "ION/1",
		Name:      "ION Orchard",
		Area:      "Orchard",
		Agency:    entities.AgencyLTA,
		Latitude:  1.304,
		Longitude: 103.832,
		UpdatedAt: time.Unix(1700000000, 0),
	}

	doc := adapter.document(cp)
	assert.Equal(t, "ION_1", doc["id"])
	assert.Equal(t, "ION/1", doc["carpark_num"])
	assert.Equal(t, []string{"ion"}, doc["aliases"])
	assert.Equal(t, true, doc["popular"])
	assert.Equal(t, []float64{1.304, 103.832}, doc["location"])
	assert.Equal(t, int64(1700000000), doc["updated_at"])
}

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) Search(ctx context.Context, term string, carparks []*entities.Carpark) ([]*entities.Carpark, error) {
	args := m.Called(ctx, term, carparks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Carpark), args.Error(1)
}

func TestFallbackSearch(t *testing.T) {
	carparks := []*entities.Carpark{{ID: "1", Name: "VivoCity"}}

	t.Run("primary succeeds", func(t *testing.T) {
		primary, secondary := new(mockSearch), new(mockSearch)
		primary.On("Search", mock.Anything, "vivo", carparks).Return(carparks, nil)

		out, err := NewFallbackSearch(primary, secondary).Search(context.Background(), "vivo", carparks)
		require.NoError(t, err)
		assert.Len(t, out, 1)
		secondary.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("primary fails", func(t *testing.T) {
		primary, secondary := new(mockSearch), new(mockSearch)
		primary.On("Search", mock.Anything, "vivo", carparks).Return(nil, errors.New("typesense down"))
		secondary.On("Search", mock.Anything, "vivo", carparks).Return(carparks, nil)

		out, err := NewFallbackSearch(primary, secondary).Search(context.Background(), "vivo", carparks)
		require.NoError(t, err)
		assert.Len(t, out, 1)
		secondary.AssertExpectations(t)
	})
}
