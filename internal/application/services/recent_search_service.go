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

// DefaultRecentSearchLimit is how many terms are remembered per client.
const DefaultRecentSearchLimit = 5

// NearMeTerm is the search term that anchors results at the user's position.
const NearMeTerm = "near me"

// RecentSearchService remembers each client's last search terms, newest
// first. Terms are unique case-insensitively and the latest spelling wins.
type RecentSearchService struct {
	store userStateStore
	limit int
	mu    sync.Mutex
	now   func() time.Time
}

// NewRecentSearchService creates a recent search service
func NewRecentSearchService(cache providers.CacheProvider, namespace string, limit int) *RecentSearchService {
	if limit <= 0 {
		limit = DefaultRecentSearchLimit
	}
	return &RecentSearchService{
		store: newUserStateStore(cache, namespace),
		limit: limit,
		now:   time.Now,
	}
}

// List returns the client's recent searches. Storage failures yield an empty list.
func (s *RecentSearchService) List(ctx context.Context, clientID string) []entities.RecentSearch {
	searches := []entities.RecentSearch{}
	s.store.load(ctx, s.store.key("recent_searches", clientID), &searches)
	if len(searches) > s.limit {
		searches = searches[:s.limit]
	}
	return searches
}

// Add records a term. Blank terms and the "near me" shortcut are ignored.
func (s *RecentSearchService) Add(ctx context.Context, clientID, term string) ([]entities.RecentSearch, error) {
	term = strings.TrimSpace(term)
	if term == "" || strings.EqualFold(term, NearMeTerm) {
		return s.List(ctx, clientID), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.store.key("recent_searches", clientID)
	existing := []entities.RecentSearch{}
	s.store.load(ctx, key, &existing)

	searches := make([]entities.RecentSearch, 0, s.limit)
	searches = append(searches, entities.RecentSearch{Term: term, Timestamp: s.now().UTC()})
	for _, r := range existing {
		if len(searches) == s.limit {
			break
		}
		if strings.EqualFold(r.Term, term) {
			continue
		}
		searches = append(searches, r)
	}

	if err := s.store.save(ctx, key, searches); err != nil {
		return nil, apperrors.NewInternalError("failed to save recent search", err)
	}
	return searches, nil
}

// Clear forgets every recent search of the client.
func (s *RecentSearchService) Clear(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.cache.Delete(ctx, s.store.key("recent_searches", clientID)); err != nil {
		return apperrors.NewInternalError("failed to clear recent searches", err)
	}
	return nil
}
