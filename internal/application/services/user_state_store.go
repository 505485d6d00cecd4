package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/carparkfinder/backend/internal/domain/providers"
	"github.com/rs/zerolog/log"
)

// DefaultClientID is used when a request carries no client identifier.
const DefaultClientID = "anonymous"

// userStateStore persists small per-client JSON lists in the cache provider.
// Entries never expire.
type userStateStore struct {
	cache     providers.CacheProvider
	namespace string
}

func newUserStateStore(cache providers.CacheProvider, namespace string) userStateStore {
	if namespace == "" {
		namespace = "carpark"
	}
	return userStateStore{cache: cache, namespace: namespace}
}

func (s userStateStore) key(kind, clientID string) string {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		clientID = DefaultClientID
	}
	return fmt.Sprintf("%s:%s:%s", s.namespace, kind, clientID)
}

// load decodes the stored list into dst. Missing or unreadable state leaves
// dst empty; only a miss is silent.
func (s userStateStore) load(ctx context.Context, key string, dst any) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to read user state, using empty list")
		}
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Discarding corrupt user state")
	}
}

func (s userStateStore) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode user state: %w", err)
	}
	if err := s.cache.Set(ctx, key, data, 0); err != nil {
		return fmt.Errorf("failed to save user state: %w", err)
	}
	return nil
}
