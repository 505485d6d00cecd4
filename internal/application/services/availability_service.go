package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
	apperrors "github.com/carparkfinder/backend/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultSnapshotTTL is how long a merged availability snapshot is served.
const DefaultSnapshotTTL = 60 * time.Second

// DefaultRefreshTimeout bounds one coalesced upstream refresh.
const DefaultRefreshTimeout = 30 * time.Second

// AvailabilityService merges the upstream availability feeds into one
// snapshot, shared through the cache provider so every replica serves the
// same data.
type AvailabilityService struct {
	sources []providers.AvailabilityProvider
	cache   providers.CacheProvider
	ttl     time.Duration
	key     string

	group singleflight.Group

	mu          sync.RWMutex
	lastGood    []*entities.Carpark
	refreshedAt time.Time
	now         func() time.Time
}

// NewAvailabilityService creates an availability service. Sources are listed
// in precedence order: when two feeds report the same carpark id, the
// earlier feed wins.
func NewAvailabilityService(cache providers.CacheProvider, ttl time.Duration, namespace string, sources ...providers.AvailabilityProvider) *AvailabilityService {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if namespace == "" {
		namespace = "carpark"
	}
	return &AvailabilityService{
		sources: sources,
		cache:   cache,
		ttl:     ttl,
		key:     namespace + ":availability:snapshot",
		now:     time.Now,
	}
}

// Carparks returns the current snapshot, refreshing it when the cached copy
// has expired. Callers must treat the records as read-only.
func (s *AvailabilityService) Carparks(ctx context.Context) ([]*entities.Carpark, error) {
	if carparks, ok := s.fresh(); ok {
		return carparks, nil
	}
	if carparks, ok := s.cached(ctx); ok {
		return carparks, nil
	}

	// the refresh is shared by every waiter, so it must not die with the
	// first caller's request
	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultRefreshTimeout)
		defer cancel()
		return s.Refresh(refreshCtx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = singleflight.Result{Err: ctx.Err()}
	}
	v, err := res.Val, res.Err
	if err != nil {
		if stale := s.stale(); stale != nil {
			log.Ctx(ctx).Warn().Err(err).Int("carparks", len(stale)).Msg("Serving stale availability snapshot")
			return stale, nil
		}
		return nil, err
	}
	return v.([]*entities.Carpark), nil
}

// Refresh fetches every source concurrently and stores the merged snapshot.
// A failing source is logged and skipped; Refresh only fails when every
// source failed.
func (s *AvailabilityService) Refresh(ctx context.Context) ([]*entities.Carpark, error) {
	if len(s.sources) == 0 {
		return nil, apperrors.NewUnavailableError("no availability sources configured")
	}

	start := time.Now()
	results := make([][]*entities.Carpark, len(s.sources))
	failures := make([]error, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		g.Go(func() error {
			carparks, err := src.FetchCarparks(gctx)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("source", src.Name()).Msg("Availability source failed")
				failures[i] = err
				return nil
			}
			results[i] = carparks
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(failures...); err != nil && countNil(failures) == 0 {
		return nil, apperrors.NewExternalError("all availability sources failed", err)
	}

	merged := mergeSnapshots(results)
	s.mu.Lock()
	s.lastGood = merged
	s.refreshedAt = s.now()
	s.mu.Unlock()

	if s.cache != nil {
		if payload, err := json.Marshal(merged); err == nil {
			if err := s.cache.Set(ctx, s.key, payload, int(s.ttl.Seconds())); err != nil {
				log.Ctx(ctx).Debug().Err(err).Msg("Failed to cache availability snapshot")
			}
		}
	}

	log.Ctx(ctx).Info().
		Int("carparks", len(merged)).
		Dur("duration", time.Since(start)).
		Msg("Availability snapshot refreshed")
	return merged, nil
}

// StartPeriodicRefresh refreshes the snapshot immediately and then on every
// tick until ctx is cancelled.
func (s *AvailabilityService) StartPeriodicRefresh(ctx context.Context, interval time.Duration) {
	if _, err := s.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial availability refresh failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Stopping availability refresher")
				return
			case <-ticker.C:
				if _, err := s.Refresh(ctx); err != nil {
					log.Warn().Err(err).Msg("Periodic availability refresh failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("Started periodic availability refresh")
}

func (s *AvailabilityService) cached(ctx context.Context) ([]*entities.Carpark, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			log.Ctx(ctx).Debug().Err(err).Msg("Availability snapshot cache read failed")
		}
		return nil, false
	}
	var carparks []*entities.Carpark
	if err := json.Unmarshal(data, &carparks); err != nil {
		return nil, false
	}
	return carparks, true
}

func (s *AvailabilityService) fresh() ([]*entities.Carpark, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastGood == nil || s.now().Sub(s.refreshedAt) >= s.ttl {
		return nil, false
	}
	return s.lastGood, true
}

func (s *AvailabilityService) stale() []*entities.Carpark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastGood
}

// mergeSnapshots concatenates per-source results keeping the first record
// for each carpark id.
func mergeSnapshots(results [][]*entities.Carpark) []*entities.Carpark {
	seen := make(map[string]struct{})
	merged := make([]*entities.Carpark, 0)
	for _, carparks := range results {
		for _, cp := range carparks {
			if cp == nil || cp.ID == "" {
				continue
			}
			if _, dup := seen[cp.ID]; dup {
				continue
			}
			seen[cp.ID] = struct{}{}
			merged = append(merged, cp)
		}
	}
	return merged
}

func countNil(errs []error) int {
	n := 0
	for _, err := range errs {
		if err == nil {
			n++
		}
	}
	return n
}
