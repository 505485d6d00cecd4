package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxCalculate is how many priced carparks get an AI quote per search.
	DefaultMaxCalculate = 10
	// DefaultCalculateConcurrency bounds concurrent calculator calls.
	DefaultCalculateConcurrency = 5

	costQuoteTTL = int(24 * time.Hour / time.Second)
)

// Breakdown messages shown when no quote could be produced.
const (
	BreakdownPricingUnavailable = "Pricing data unavailable"
	BreakdownNotCalculated      = "Calculate top results only"
	BreakdownCalculationError   = "Calculation error"
	BreakdownNoRateForDay       = "No rate information for this day"
)

// CostCalculationService attaches authoritative costs to the first priced
// carparks of a result list.
type CostCalculationService struct {
	calculator   providers.CostCalculator
	cache        providers.CacheProvider
	maxCalculate int
	concurrency  int
}

// NewCostCalculationService creates the service. A nil calculator turns
// Apply into a pass-through; cache may be nil.
func NewCostCalculationService(calculator providers.CostCalculator, cache providers.CacheProvider, maxCalculate, concurrency int) *CostCalculationService {
	if maxCalculate < 0 {
		maxCalculate = DefaultMaxCalculate
	}
	if concurrency <= 0 {
		concurrency = DefaultCalculateConcurrency
	}
	return &CostCalculationService{
		calculator:   calculator,
		cache:        cache,
		maxCalculate: maxCalculate,
		concurrency:  concurrency,
	}
}

// Enabled reports whether a calculator is configured.
func (s *CostCalculationService) Enabled() bool {
	return s != nil && s.calculator != nil
}

// Apply returns copies of carparks with CalculatedCost set for up to
// maxCalculate carparks that carry specific pricing. Every other carpark keeps
// a nil cost and a breakdown saying why. Apply never fails.
func (s *CostCalculationService) Apply(ctx context.Context, carparks []*entities.Carpark, durationHours float64, day entities.DayType) []*entities.Carpark {
	out := make([]*entities.Carpark, len(carparks))
	for i, cp := range carparks {
		out[i] = cp.Clone()
	}
	if !s.Enabled() || durationHours <= 0 {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	calculated := 0
	for _, cp := range out {
		if cp == nil {
			continue
		}
		if !cp.HasSpecificPricing || cp.Pricing == nil {
			setBreakdown(cp, BreakdownPricingUnavailable)
			continue
		}
		if calculated >= s.maxCalculate {
			setBreakdown(cp, BreakdownNotCalculated)
			continue
		}
		rate := cp.Pricing.RateFor(day)
		if rate == "" {
			setBreakdown(cp, BreakdownNoRateForDay)
			continue
		}
		calculated++

		g.Go(func() error {
			quote, err := s.quote(gctx, cp, rate, durationHours, day)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("carpark", cp.ID).Msg("Cost calculation failed")
				setBreakdown(cp, BreakdownCalculationError)
				return nil
			}
			total := quote.TotalCost
			cp.CalculatedCost = &total
			breakdown, explanation := quote.Breakdown, quote.Explanation
			cp.CostBreakdown = &breakdown
			cp.AIExplanation = &explanation
			cp.AIConfidence = quote.Confidence
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (s *CostCalculationService) quote(ctx context.Context, cp *entities.Carpark, rate string, hours float64, day entities.DayType) (*entities.CostQuote, error) {
	key := costQuoteKey(cp.ID, rate, hours, day)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var cached entities.CostQuote
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, providers.ErrCacheMiss) {
			log.Ctx(ctx).Debug().Err(err).Msg("Cost quote cache read failed")
		}
	}

	quote, err := s.calculator.CalculateCost(ctx, cp, rate, hours, day)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, fmt.Errorf("calculator returned no quote for %s", cp.ID)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(quote); err == nil {
			if err := s.cache.Set(ctx, key, payload, costQuoteTTL); err != nil {
				log.Ctx(ctx).Debug().Err(err).Msg("Failed to cache cost quote")
			}
		}
	}
	return quote, nil
}

func costQuoteKey(id, rate string, hours float64, day entities.DayType) string {
	raw := id + "|" + rate + "|" + strconv.FormatFloat(hours, 'f', -1, 64) + "|" + string(day)
	return "cost:v1:" + hashKey(raw)
}

func setBreakdown(cp *entities.Carpark, msg string) {
	cp.CalculatedCost = nil
	cp.CostBreakdown = &msg
}
