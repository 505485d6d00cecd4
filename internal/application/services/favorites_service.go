package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
	apperrors "github.com/carparkfinder/backend/pkg/errors"
)

// FavoritesService manages each client's pinned carparks, newest first.
type FavoritesService struct {
	store userStateStore
	mu    sync.Mutex
	now   func() time.Time
}

// NewFavoritesService creates a favorites service
func NewFavoritesService(cache providers.CacheProvider, namespace string) *FavoritesService {
	return &FavoritesService{
		store: newUserStateStore(cache, namespace),
		now:   time.Now,
	}
}

// List returns the client's favorites. Storage failures yield an empty list.
func (s *FavoritesService) List(ctx context.Context, clientID string) []entities.Favorite {
	favorites := []entities.Favorite{}
	s.store.load(ctx, s.store.key("favorites", clientID), &favorites)
	return favorites
}

// Add pins a carpark at the front of the list. Adding an already pinned
// carpark leaves the list unchanged.
func (s *FavoritesService) Add(ctx context.Context, clientID string, fav entities.Favorite) ([]entities.Favorite, error) {
	fav.CarparkID = strings.TrimSpace(fav.CarparkID)
	if fav.CarparkID == "" {
		return nil, apperrors.NewValidationError("carpark_num is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.store.key("favorites", clientID)
	favorites := []entities.Favorite{}
	s.store.load(ctx, key, &favorites)

	for _, f := range favorites {
		if f.CarparkID == fav.CarparkID {
			return favorites, nil
		}
	}

	if fav.AddedAt.IsZero() {
		fav.AddedAt = s.now().UTC()
	}
	favorites = append([]entities.Favorite{fav}, favorites...)
	if err := s.store.save(ctx, key, favorites); err != nil {
		return nil, apperrors.NewInternalError("failed to save favorite", err)
	}
	return favorites, nil
}

// Remove unpins a carpark. Removing an unknown id is not an error.
func (s *FavoritesService) Remove(ctx context.Context, clientID, carparkID string) ([]entities.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.store.key("favorites", clientID)
	favorites := []entities.Favorite{}
	s.store.load(ctx, key, &favorites)

	kept := favorites[:0]
	for _, f := range favorites {
		if f.CarparkID != carparkID {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(favorites) {
		return kept, nil
	}

	if err := s.store.save(ctx, key, kept); err != nil {
		return nil, apperrors.NewInternalError("failed to remove favorite", err)
	}
	return kept, nil
}

// IsFavorite reports whether the client pinned the carpark.
func (s *FavoritesService) IsFavorite(ctx context.Context, clientID, carparkID string) bool {
	for _, f := range s.List(ctx, clientID) {
		if f.CarparkID == carparkID {
			return true
		}
	}
	return false
}
