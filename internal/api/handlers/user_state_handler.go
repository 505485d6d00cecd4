package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/carparkfinder/backend/internal/domain/entities"
)

// FavoritesStore keeps a client's favorite carparks.
type FavoritesStore interface {
	List(ctx context.Context, clientID string) []entities.Favorite
	Add(ctx context.Context, clientID string, fav entities.Favorite) ([]entities.Favorite, error)
	Remove(ctx context.Context, clientID, carparkID string) ([]entities.Favorite, error)
	IsFavorite(ctx context.Context, clientID, carparkID string) bool
}

// RecentSearchStore keeps a client's recent search terms.
type RecentSearchStore interface {
	List(ctx context.Context, clientID string) []entities.RecentSearch
	Add(ctx context.Context, clientID, term string) ([]entities.RecentSearch, error)
	Clear(ctx context.Context, clientID string) error
}

// UserStateHandler handles favorites and recent-search endpoints
type UserStateHandler struct {
	favorites FavoritesStore
	recents   RecentSearchStore
}

// NewUserStateHandler creates a new user state handler
func NewUserStateHandler(favorites FavoritesStore, recents RecentSearchStore) *UserStateHandler {
	return &UserStateHandler{favorites: favorites, recents: recents}
}

// ListFavorites handles GET /api/favorites
func (h *UserStateHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.favorites.List(r.Context(), clientID(r)))
}

// AddFavorite handles POST /api/favorites
func (h *UserStateHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var fav entities.Favorite
	if err := decodeJSON(r, &fav); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	favorites, err := h.favorites.Add(r.Context(), clientID(r), fav)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, favorites)
}

// GetFavorite handles GET /api/favorites/{id}
func (h *UserStateHandler) GetFavorite(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"carpark_num": id,
		"favorite":    h.favorites.IsFavorite(r.Context(), clientID(r), id),
	})
}

// RemoveFavorite handles DELETE /api/favorites/{id}
func (h *UserStateHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.favorites.Remove(r.Context(), clientID(r), strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, favorites)
}

// ListRecentSearches handles GET /api/recent-searches
func (h *UserStateHandler) ListRecentSearches(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.recents.List(r.Context(), clientID(r)))
}

type recentSearchRequest struct {
	Term string `json:"term"`
}

// AddRecentSearch handles POST /api/recent-searches
func (h *UserStateHandler) AddRecentSearch(w http.ResponseWriter, r *http.Request) {
	var body recentSearchRequest
	if err := decodeJSON(r, &body); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	searches, err := h.recents.Add(r.Context(), clientID(r), body.Term)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, searches)
}

// ClearRecentSearches handles DELETE /api/recent-searches
func (h *UserStateHandler) ClearRecentSearches(w http.ResponseWriter, r *http.Request) {
	if err := h.recents.Clear(r.Context(), clientID(r)); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
