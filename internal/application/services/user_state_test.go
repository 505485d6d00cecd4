package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/carparkfinder/backend/internal/adapters/cache"
	"github.com/carparkfinder/backend/internal/application/services"
	"github.com/carparkfinder/backend/internal/domain/entities"
	apperrors "github.com/carparkfinder/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryCache(t *testing.T) *cache.MemoryAdapter {
	t.Helper()
	c, err := cache.NewMemoryAdapter(100)
	require.NoError(t, err)
	return c
}

// failingCache fails every operation.
type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (failingCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	return errors.New("connection refused")
}
func (failingCache) Delete(ctx context.Context, key string) error {
	return errors.New("connection refused")
}
func (failingCache) Exists(ctx context.Context, key string) (bool, error) {
	return false, errors.New("connection refused")
}

func terms(searches []entities.RecentSearch) []string {
	out := make([]string, 0, len(searches))
	for _, s := range searches {
		out = append(out, s.Term)
	}
	return out
}

func TestRecentSearchService_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("case-insensitive duplicate keeps latest spelling at the front", func(t *testing.T) {
		svc := services.NewRecentSearchService(newMemoryCache(t), "test", 5)

		_, err := svc.Add(ctx, "c1", "Vivo")
		require.NoError(t, err)
		_, err = svc.Add(ctx, "c1", "orchard")
		require.NoError(t, err)
		out, err := svc.Add(ctx, "c1", "vivo")
		require.NoError(t, err)

		assert.Equal(t, []string{"vivo", "orchard"}, terms(out))
		assert.Equal(t, []string{"vivo", "orchard"}, terms(svc.List(ctx, "c1")))
	})

	t.Run("keeps the five newest", func(t *testing.T) {
		svc := services.NewRecentSearchService(newMemoryCache(t), "test", 5)
		for i := 1; i <= 7; i++ {
			_, err := svc.Add(ctx, "c1", fmt.Sprintf("term %d", i))
			require.NoError(t, err)
		}
		assert.Equal(t, []string{"term 7", "term 6", "term 5", "term 4", "term 3"}, terms(svc.List(ctx, "c1")))
	})

	t.Run("skips blank and near me", func(t *testing.T) {
		svc := services.NewRecentSearchService(newMemoryCache(t), "test", 5)
		_, err := svc.Add(ctx, "c1", "marina")
		require.NoError(t, err)

		for _, term := range []string{"", "   ", "near me", " Near Me "} {
			out, err := svc.Add(ctx, "c1", term)
			require.NoError(t, err)
			assert.Equal(t, []string{"marina"}, terms(out))
		}
	})

	t.Run("clients are isolated", func(t *testing.T) {
		svc := services.NewRecentSearchService(newMemoryCache(t), "test", 5)
		_, err := svc.Add(ctx, "alice", "ion")
		require.NoError(t, err)
		_, err = svc.Add(ctx, "", "suntec")
		require.NoError(t, err)

		assert.Equal(t, []string{"ion"}, terms(svc.List(ctx, "alice")))
		assert.Equal(t, []string{"suntec"}, terms(svc.List(ctx, services.DefaultClientID)))
	})

	t.Run("clear", func(t *testing.T) {
		svc := services.NewRecentSearchService(newMemoryCache(t), "test", 5)
		_, err := svc.Add(ctx, "c1", "ion")
		require.NoError(t, err)
		require.NoError(t, svc.Clear(ctx, "c1"))
		assert.Empty(t, svc.List(ctx, "c1"))
	})

	t.Run("storage failure", func(t *testing.T) {
		svc := services.NewRecentSearchService(failingCache{}, "test", 5)
		assert.Empty(t, svc.List(ctx, "c1"))

		_, err := svc.Add(ctx, "c1", "ion")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})
}

func TestFavoritesService(t *testing.T) {
	ctx := context.Background()

	t.Run("add is idempotent and newest first", func(t *testing.T) {
		svc := services.NewFavoritesService(newMemoryCache(t), "test")

		_, err := svc.Add(ctx, "c1", entities.Favorite{CarparkID: "A1", Name: "First"})
		require.NoError(t, err)
		_, err = svc.Add(ctx, "c1", entities.Favorite{CarparkID: "B2", Name: "Second"})
		require.NoError(t, err)
		out, err := svc.Add(ctx, "c1", entities.Favorite{CarparkID: "A1", Name: "First again"})
		require.NoError(t, err)

		require.Len(t, out, 2)
		assert.Equal(t, "B2", out[0].CarparkID)
		assert.Equal(t, "A1", out[1].CarparkID)
		assert.Equal(t, "First", out[1].Name)
		assert.False(t, out[0].AddedAt.IsZero())

		assert.True(t, svc.IsFavorite(ctx, "c1", "A1"))
		assert.False(t, svc.IsFavorite(ctx, "c2", "A1"))
	})

	t.Run("remove", func(t *testing.T) {
		svc := services.NewFavoritesService(newMemoryCache(t), "test")
		_, err := svc.Add(ctx, "c1", entities.Favorite{CarparkID: "A1"})
		require.NoError(t, err)
		_, err = svc.Add(ctx, "c1", entities.Favorite{CarparkID: "B2"})
		require.NoError(t, err)

		out, err := svc.Remove(ctx, "c1", "A1")
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "B2", out[0].CarparkID)

		out, err = svc.Remove(ctx, "c1", "missing")
		require.NoError(t, err)
		assert.Len(t, out, 1)
		assert.Len(t, svc.List(ctx, "c1"), 1)
	})

	t.Run("missing id is a validation error", func(t *testing.T) {
		svc := services.NewFavoritesService(newMemoryCache(t), "test")
		_, err := svc.Add(ctx, "c1", entities.Favorite{CarparkID: "  "})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("read failure degrades to empty", func(t *testing.T) {
		svc := services.NewFavoritesService(failingCache{}, "test")
		assert.Empty(t, svc.List(ctx, "c1"))
		assert.False(t, svc.IsFavorite(ctx, "c1", "A1"))
	})
}
