package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/repositories"
	"github.com/rs/zerolog/log"
)

const (
	// HDBRateKey and DefaultRateKey are reserved rate catalog keys.
	HDBRateKey     = "hdb"
	DefaultRateKey = "default"

	// defaultRateName marks the generic fallback rate table.
	defaultRateName = "Standard Carpark"
)

var hdbPrefixes = []string{"BLK ", "BLOCK ", "HDB ", "BLK.", "BLOCK."}

// PricingService matches carparks against the rate catalog.
type PricingService struct {
	repo repositories.RateRepository

	mu      sync.RWMutex
	ordered []*repositories.RateRecord
	byKey   map[string]*repositories.RateRecord
}

// NewPricingService creates a pricing service. Call Load before use.
func NewPricingService(repo repositories.RateRepository) *PricingService {
	return &PricingService{
		repo:  repo,
		byKey: make(map[string]*repositories.RateRecord),
	}
}

// Load replaces the in-memory catalog with the repository contents.
func (s *PricingService) Load(ctx context.Context) error {
	records, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rate catalog: %w", err)
	}

	byKey := make(map[string]*repositories.RateRecord, len(records))
	ordered := make([]*repositories.RateRecord, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		key := repositories.NormalizeRateKey(r.Key)
		if key == "" {
			key = repositories.NormalizeRateKey(r.CarparkID)
		}
		if key == "" {
			continue
		}
		if _, dup := byKey[key]; dup {
			continue
		}
		byKey[key] = r
		ordered = append(ordered, r)
	}

	s.mu.Lock()
	s.byKey = byKey
	s.ordered = ordered
	s.mu.Unlock()

	log.Info().Int("rates", len(ordered)).Msg("Rate catalog loaded")
	return nil
}

// Lookup resolves the rate table for a carpark. The boolean is false when
// the result is the generic default table or nothing matched at all.
func (s *PricingService) Lookup(carparkID, name string) (*entities.Pricing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if IsHDBCarpark(name) {
		if r, ok := s.byKey[HDBRateKey]; ok {
			p := r.Pricing
			return &p, true
		}
	}

	if r, ok := s.byKey[repositories.NormalizeRateKey(carparkID)]; ok {
		return s.resolved(r)
	}

	if normalized := repositories.NormalizeRateKey(name); normalized != "" {
		if r, ok := s.byKey[normalized]; ok {
			return s.resolved(r)
		}
		for _, r := range s.ordered {
			key := repositories.NormalizeRateKey(r.Key)
			if key == "" {
				key = repositories.NormalizeRateKey(r.CarparkID)
			}
			if key == HDBRateKey || key == DefaultRateKey {
				continue
			}
			if strings.Contains(key, normalized) || strings.Contains(normalized, key) {
				return s.resolved(r)
			}
		}
	}

	if r, ok := s.byKey[DefaultRateKey]; ok {
		p := r.Pricing
		return &p, false
	}
	return nil, false
}

func (s *PricingService) resolved(r *repositories.RateRecord) (*entities.Pricing, bool) {
	p := r.Pricing
	return &p, p.Name != defaultRateName
}

// Attach returns copies of the carparks with pricing resolved. The inputs
// are shared snapshot records and are never modified.
func (s *PricingService) Attach(carparks []*entities.Carpark) []*entities.Carpark {
	out := make([]*entities.Carpark, 0, len(carparks))
	for _, cp := range carparks {
		if cp == nil {
			continue
		}
		c := cp.Clone()
		pricing, specific := s.Lookup(c.ID, c.Name)
		c.Pricing = pricing
		c.HasPricing = pricing != nil
		c.HasSpecificPricing = specific
		out = append(out, c)
	}
	return out
}

// Catalog returns the loaded rate records in catalog order.
func (s *PricingService) Catalog() []repositories.RateRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repositories.RateRecord, 0, len(s.ordered))
	for _, r := range s.ordered {
		out = append(out, *r)
	}
	return out
}

// Count returns the number of catalog entries.
func (s *PricingService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// IsHDBCarpark detects HDB carparks by their block-style development names.
func IsHDBCarpark(name string) bool {
	upper := strings.ToUpper(name)
	for _, prefix := range hdbPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return strings.Contains(upper, "BLK ") || strings.Contains(upper, "BLOCK ")
}
