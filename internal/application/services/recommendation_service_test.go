package services_test

import (
	"fmt"
	"testing"

	"github.com/carparkfinder/backend/internal/application/services"
	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecommender() *services.RecommendationService {
	return services.NewRecommendationService(
		services.NewCostEstimator(services.DefaultHourlyRate),
		services.DefaultTravelCostPerKm,
		services.DefaultNearMeLimit,
	)
}

func annotated(id string, cost float64, dist *float64, source entities.CostSource) entities.AnnotatedCarpark {
	return entities.AnnotatedCarpark{
		Carpark:       &entities.Carpark{ID: id, Name: "Carpark " + id},
		DistanceKm:    dist,
		EstimatedCost: cost,
		CostSource:    source,
	}
}

func categories(recs []entities.Recommendation) []entities.RecommendationCategory {
	out := make([]entities.RecommendationCategory, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Category)
	}
	return out
}

func TestRecommendationService_Annotate(t *testing.T) {
	svc := newRecommender()
	carparks := []*entities.Carpark{
		{ID: "HE12", Latitude: 1.2931, Longitude: 103.7764, Pricing: &entities.Pricing{WeekdayRate: "$0.60 per half-hour"}},
		{ID: "ACB", Latitude: 1.3521, Longitude: 103.8198},
		nil,
	}

	t.Run("with reference location", func(t *testing.T) {
		ref := &providers.Coordinates{Latitude: 1.3521, Longitude: 103.8198}
		out := svc.Annotate(carparks, ref, 2)

		require.Len(t, out, 2)
		require.NotNil(t, out[0].DistanceKm)
		assert.InDelta(t, 8.1435, *out[0].DistanceKm, 1e-3)
		assert.InDelta(t, 1.20, out[0].EstimatedCost, 1e-9)
		assert.Equal(t, entities.CostSourceRate, out[0].CostSource)

		require.NotNil(t, out[1].DistanceKm)
		assert.Equal(t, 0.0, *out[1].DistanceKm)
		assert.InDelta(t, 3.00, out[1].EstimatedCost, 1e-9)
		assert.Equal(t, entities.CostSourceDefault, out[1].CostSource)
	})

	t.Run("carpark without coordinates gets no distance", func(t *testing.T) {
		ref := &providers.Coordinates{Latitude: 1.3521, Longitude: 103.8198}
		unlocated := []*entities.Carpark{{ID: "X9"}, {ID: "ACB", Latitude: 1.3521, Longitude: 103.8198}}
		out := svc.Annotate(unlocated, ref, 1)

		require.Len(t, out, 2)
		assert.Nil(t, out[0].DistanceKm)
		require.NotNil(t, out[1].DistanceKm)

		picks := svc.Select(out, true, 1)
		require.NotNil(t, picks.Closest)
		assert.Equal(t, "ACB", picks.Closest.ID)
		require.NotNil(t, picks.BestValue)
		assert.Equal(t, "ACB", picks.BestValue.ID)
	})

	t.Run("without reference location", func(t *testing.T) {
		out := svc.Annotate(carparks, nil, 1)
		require.Len(t, out, 2)
		assert.Nil(t, out[0].DistanceKm)
		assert.Nil(t, out[1].DistanceKm)
	})
}

func TestRecommendationService_Select(t *testing.T) {
	svc := newRecommender()

	t.Run("empty input yields no picks", func(t *testing.T) {
		picks := svc.Select(nil, true, 2)
		assert.Nil(t, picks.Cheapest)
		assert.Nil(t, picks.Closest)
		assert.Nil(t, picks.BestValue)
		assert.Empty(t, svc.Recommend(nil, true, 2))
		assert.Empty(t, svc.Sort(nil, entities.SearchModeLocation))
	})

	t.Run("without location only cheapest is set", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{
			annotated("A", 3, nil, entities.CostSourceRate),
			annotated("B", 1, nil, entities.CostSourceRate),
		}
		picks := svc.Select(items, false, 2)
		require.NotNil(t, picks.Cheapest)
		assert.Equal(t, "B", picks.Cheapest.ID)
		assert.Nil(t, picks.Closest)
		assert.Nil(t, picks.BestValue)
	})

	t.Run("location flag without any distance leaves closest unset", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{annotated("A", 3, nil, entities.CostSourceRate)}
		picks := svc.Select(items, true, 2)
		assert.NotNil(t, picks.Cheapest)
		assert.Nil(t, picks.Closest)
		assert.Nil(t, picks.BestValue)
	})

	t.Run("ties go to the first item", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{
			annotated("A", 2, floatPtr(1), entities.CostSourceRate),
			annotated("B", 2, floatPtr(1), entities.CostSourceRate),
		}
		picks := svc.Select(items, true, 1)
		assert.Equal(t, "A", picks.Cheapest.ID)
		assert.Equal(t, "A", picks.Closest.ID)
		assert.Equal(t, "A", picks.BestValue.ID)
	})

	t.Run("best value weighs distance by duration", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{
			annotated("cheap-far", 1.0, floatPtr(10), entities.CostSourceRate),
			annotated("pricey-near", 4.0, floatPtr(0.5), entities.CostSourceRate),
			annotated("middle", 2.0, floatPtr(2), entities.CostSourceRate),
		}
		// scores at 2h: 1+10*1=11, 4+0.5=4.5, 2+2=4
		picks := svc.Select(items, true, 2)
		assert.Equal(t, "cheap-far", picks.Cheapest.ID)
		assert.Equal(t, "pricey-near", picks.Closest.ID)
		assert.Equal(t, "middle", picks.BestValue.ID)
	})
}

func TestRecommendationService_Recommend(t *testing.T) {
	svc := newRecommender()

	t.Run("distinct picks in priority order", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{
			annotated("cheap-far", 1.0, floatPtr(10), entities.CostSourceRate),
			annotated("pricey-near", 4.0, floatPtr(0.5), entities.CostSourceRate),
			annotated("middle", 2.0, floatPtr(2), entities.CostSourceRate),
		}
		recs := svc.Recommend(items, true, 2)
		require.Len(t, recs, 3)
		assert.Equal(t, []entities.RecommendationCategory{
			entities.CategoryBestValue, entities.CategoryCheapest, entities.CategoryClosest,
		}, categories(recs))
		assert.Equal(t, "middle", recs[0].Carpark.ID)
		assert.Equal(t, "cheap-far", recs[1].Carpark.ID)
		require.NotNil(t, recs[1].Savings)
		assert.InDelta(t, 1.0, *recs[1].Savings, 1e-9)
		assert.Equal(t, "pricey-near", recs[2].Carpark.ID)
		assert.Nil(t, recs[2].Savings)
	})

	t.Run("best value that is also cheapest hides cheapest", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{
			annotated("A", 1.0, floatPtr(1), entities.CostSourceRate),
			annotated("B", 5.0, floatPtr(0.2), entities.CostSourceRate),
		}
		recs := svc.Recommend(items, true, 1)
		assert.Equal(t, []entities.RecommendationCategory{entities.CategoryBestValue, entities.CategoryClosest}, categories(recs))
		assert.Equal(t, "A", recs[0].Carpark.ID)
		assert.Equal(t, "B", recs[1].Carpark.ID)
	})

	t.Run("single facility is returned once", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{annotated("only", 2.0, floatPtr(1), entities.CostSourceRate)}
		recs := svc.Recommend(items, true, 1)
		require.Len(t, recs, 1)
		assert.Equal(t, entities.CategoryBestValue, recs[0].Category)
	})

	t.Run("no location yields cheapest only", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{
			annotated("A", 3.0, nil, entities.CostSourceRate),
			annotated("B", 2.0, nil, entities.CostSourceDefault),
		}
		recs := svc.Recommend(items, false, 1)
		require.Len(t, recs, 1)
		assert.Equal(t, entities.CategoryCheapest, recs[0].Category)
		assert.Equal(t, "B", recs[0].Carpark.ID)
	})

	t.Run("five distinct facilities never collapse best value onto both others", func(t *testing.T) {
		costs := []float64{4.2, 1.1, 3.3, 2.8, 5.0}
		dists := []float64{0.3, 6.0, 1.7, 2.2, 0.9}
		for _, hours := range []float64{0.5, 1, 2, 4, 8, 24} {
			items := make([]entities.AnnotatedCarpark, 0, len(costs))
			for i := range costs {
				items = append(items, annotated(fmt.Sprintf("C%d", i), costs[i], floatPtr(dists[i]), entities.CostSourceRate))
			}
			picks := svc.Select(items, true, hours)
			require.NotNil(t, picks.BestValue)
			assert.False(t, picks.BestValue.ID == picks.Cheapest.ID && picks.BestValue.ID == picks.Closest.ID,
				"hours=%v", hours)

			recs := svc.Recommend(items, true, hours)
			seen := map[string]bool{}
			for _, r := range recs {
				assert.False(t, seen[r.Carpark.ID], "duplicate %s at hours=%v", r.Carpark.ID, hours)
				seen[r.Carpark.ID] = true
			}
		}
	})
}

func TestRecommendationService_Sort(t *testing.T) {
	svc := newRecommender()

	t.Run("browse puts priced carparks first by cost", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{
			annotated("u1", 1.5, nil, entities.CostSourceDefault),
			annotated("p1", 4.0, nil, entities.CostSourceRate),
			annotated("u2", 0.5, nil, entities.CostSourceDefault),
			annotated("p2", 2.0, nil, entities.CostSourceCalculated),
			annotated("p3", 2.0, nil, entities.CostSourceRate),
		}
		out := svc.Sort(items, entities.SearchModeBrowse)

		ids := make([]string, 0, len(out))
		for _, it := range out {
			ids = append(ids, it.ID)
		}
		assert.Equal(t, []string{"p2", "p3", "p1", "u1", "u2"}, ids)

		lastPriced := -1
		for i, it := range out {
			if it.HasCostData() {
				assert.Equal(t, lastPriced+1, i, "priced entries must be contiguous at the front")
				if lastPriced >= 0 {
					assert.LessOrEqual(t, out[lastPriced].EstimatedCost, it.EstimatedCost)
				}
				lastPriced = i
			}
		}
		assert.Equal(t, "u1", items[0].ID, "input left untouched")
	})

	t.Run("near me keeps the closest twenty", func(t *testing.T) {
		items := make([]entities.AnnotatedCarpark, 0, 25)
		for i := 0; i < 25; i++ {
			d := float64((i*7)%25) + 0.1
			items = append(items, annotated(fmt.Sprintf("N%02d", i), 1, floatPtr(d), entities.CostSourceRate))
		}
		out := svc.Sort(items, entities.SearchModeLocation)
		require.Len(t, out, 20)
		for i := 1; i < len(out); i++ {
			assert.Less(t, *out[i-1].DistanceKm, *out[i].DistanceKm)
		}
		assert.InDelta(t, 0.1, *out[0].DistanceKm, 1e-9)
		assert.InDelta(t, 19.1, *out[19].DistanceKm, 1e-9)
	})

	t.Run("location mode puts missing distances last", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{
			annotated("none", 1, nil, entities.CostSourceRate),
			annotated("far", 1, floatPtr(3), entities.CostSourceRate),
			annotated("near", 1, floatPtr(1), entities.CostSourceRate),
		}
		out := svc.Sort(items, entities.SearchModeLocation)
		assert.Equal(t, "near", out[0].ID)
		assert.Equal(t, "far", out[1].ID)
		assert.Equal(t, "none", out[2].ID)
	})

	t.Run("keyword keeps upstream order", func(t *testing.T) {
		items := []entities.AnnotatedCarpark{
			annotated("z", 9, floatPtr(9), entities.CostSourceRate),
			annotated("a", 1, floatPtr(1), entities.CostSourceRate),
		}
		out := svc.Sort(items, entities.SearchModeKeyword)
		assert.Equal(t, "z", out[0].ID)
		assert.Equal(t, "a", out[1].ID)
	})

	t.Run("near me limit is configurable", func(t *testing.T) {
		small := services.NewRecommendationService(nil, services.DefaultTravelCostPerKm, 2)
		items := []entities.AnnotatedCarpark{
			annotated("a", 1, floatPtr(3), entities.CostSourceRate),
			annotated("b", 1, floatPtr(2), entities.CostSourceRate),
			annotated("c", 1, floatPtr(1), entities.CostSourceRate),
		}
		out := small.Sort(items, entities.SearchModeLocation)
		require.Len(t, out, 2)
		assert.Equal(t, "c", out[0].ID)
	})
}

func TestRecommendationService_Rank(t *testing.T) {
	svc := newRecommender()
	carparks := []*entities.Carpark{
		{ID: "A", Latitude: 1.30, Longitude: 103.80, Pricing: &entities.Pricing{WeekdayRate: "$0.60 per hour"}},
		{ID: "B", Latitude: 1.35, Longitude: 103.82},
	}
	res := svc.Rank(carparks, &providers.Coordinates{Latitude: 1.351, Longitude: 103.82}, 2, entities.SearchModeLocation)

	assert.True(t, res.HasLocation)
	assert.Equal(t, entities.SearchModeLocation, res.Mode)
	require.Len(t, res.Carparks, 2)
	assert.Equal(t, "B", res.Carparks[0].ID)
	assert.NotEmpty(t, res.Recommendations)
}

func TestRecommendationService_RankPicksComeFromDisplayedList(t *testing.T) {
	svc := newRecommender()
	ref := &providers.Coordinates{Latitude: 1.30, Longitude: 103.80}

	// C00 is nearest; C24 is the farthest and by far the cheapest.
	carparks := make([]*entities.Carpark, 0, 25)
	for i := 0; i < 25; i++ {
		rate := "$3.00 per hour"
		if i == 24 {
			rate = "$0.10 per hour"
		}
		carparks = append(carparks, &entities.Carpark{
			ID:                 fmt.Sprintf("C%02d", i),
			Latitude:           1.30 + float64(i)*0.01,
			Longitude:          103.80,
			HasPricing:         true,
			HasSpecificPricing: true,
			Pricing:            &entities.Pricing{WeekdayRate: rate},
		})
	}

	res := svc.Rank(carparks, ref, 2, entities.SearchModeLocation)
	require.Len(t, res.Carparks, services.DefaultNearMeLimit)

	shown := map[string]bool{}
	for _, c := range res.Carparks {
		shown[c.ID] = true
	}
	require.NotEmpty(t, res.Recommendations)
	for _, r := range res.Recommendations {
		assert.True(t, shown[r.Carpark.ID], "%s pick %s is not in the result list", r.Category, r.Carpark.ID)
	}
	assert.False(t, shown["C24"])
}

func TestRecommendationService_BrowseWithAttachedPricing(t *testing.T) {
	pricing := loadedPricing(t)
	svc := newRecommender()

	carparks := pricing.Attach([]*entities.Carpark{
		{ID: "ZZ9", Name: "Unknown Lot"},
		{ID: "313@Somerset", Name: "313@Somerset"},
		{ID: "VivoCity", Name: "VivoCity"},
	})
	require.False(t, carparks[0].HasSpecificPricing)
	require.True(t, carparks[0].HasPricing)

	res := svc.Rank(carparks, nil, 2, entities.SearchModeBrowse)
	require.Len(t, res.Carparks, 3)

	ids := make([]string, 0, len(res.Carparks))
	for _, c := range res.Carparks {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"VivoCity", "313@Somerset", "ZZ9"}, ids)
	assert.False(t, res.Carparks[2].HasCostData())
	assert.Equal(t, entities.CostSourceDefault, res.Carparks[2].CostSource)
}
