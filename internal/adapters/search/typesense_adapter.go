package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/carparkfinder/backend/internal/domain/entities"
	"github.com/carparkfinder/backend/internal/domain/repositories"
	tsclient "github.com/carparkfinder/backend/internal/infrastructure/clients/typesense"
)

const maxHitsPerPage = 250

// TypesenseAdapter implements carpark keyword search using Typesense
type TypesenseAdapter struct {
	client  *tsclient.Client
	aliases *AliasSearch
}

var (
	_ repositories.CarparkSearchRepository = (*TypesenseAdapter)(nil)
	_ repositories.CarparkIndexer          = (*TypesenseAdapter)(nil)
)

// NewTypesenseAdapter creates a new Typesense adapter. aliases enriches
// indexed documents and may be nil.
func NewTypesenseAdapter(client *tsclient.Client, aliases *AliasSearch) *TypesenseAdapter {
	if aliases == nil {
		aliases = NewAliasSearch(nil)
	}
	return &TypesenseAdapter{client: client, aliases: aliases}
}

// Index upserts every carpark document
func (a *TypesenseAdapter) Index(ctx context.Context, carparks []*entities.Carpark) error {
	failed := 0
	for _, cp := range carparks {
		if cp == nil || cp.ID == "" {
			continue
		}
		if _, err := a.client.Client().Collection(tsclient.CarparksCollection).Documents().Upsert(ctx, a.document(cp)); err != nil {
			failed++
			log.Ctx(ctx).Warn().Err(err).Str("carpark_num", cp.ID).Msg("Failed to index carpark")
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to index %d of %d carparks", failed, len(carparks))
	}
	return nil
}

func (a *TypesenseAdapter) document(cp *entities.Carpark) map[string]interface{} {
	return map[string]interface{}{
		"id":          documentID(cp.ID),
		"carpark_num": cp.ID,
		"name":        cp.Name,
		"area":        cp.Area,
		"address":     cp.Address,
		"agency":      string(cp.Agency),
		"aliases":     a.aliases.AliasesFor(cp.Name),
		"location":    []float64{cp.Latitude, cp.Longitude},
		"popular":     a.aliases.IsPopular(cp.Name),
		"updated_at":  cp.UpdatedAt.Unix(),
	}
}

// Search queries the index and maps hits back onto the given carparks in
// relevance order. Hits for carparks outside the given set are dropped.
func (a *TypesenseAdapter) Search(ctx context.Context, term string, carparks []*entities.Carpark) ([]*entities.Carpark, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return carparks, nil
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(term),
		QueryBy: pointer.String("name,aliases,area,carpark_num"),
		Page:    pointer.Int(1),
		PerPage: pointer.Int(maxHitsPerPage),
	}

	result, err := a.client.Client().Collection(tsclient.CarparksCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search carparks: %w", err)
	}

	byID := make(map[string]*entities.Carpark, len(carparks))
	for _, cp := range carparks {
		if cp != nil {
			byID[cp.ID] = cp
		}
	}

	out := []*entities.Carpark{}
	if result.Hits == nil {
		return out, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		id, _ := doc["carpark_num"].(string)
		if cp, ok := byID[id]; ok {
			out = append(out, cp)
			delete(byID, id)
		}
	}
	return out, nil
}

// documentID makes a carpark number safe for use as a Typesense document id.
func documentID(carparkNum string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(carparkNum)
}

// FallbackSearch tries the primary search and falls back to the secondary
// one when the primary fails.
type FallbackSearch struct {
	primary   repositories.CarparkSearchRepository
	secondary repositories.CarparkSearchRepository
}

var _ repositories.CarparkSearchRepository = (*FallbackSearch)(nil)

// NewFallbackSearch creates a fallback search
func NewFallbackSearch(primary, secondary repositories.CarparkSearchRepository) *FallbackSearch {
	return &FallbackSearch{primary: primary, secondary: secondary}
}

// Search implements CarparkSearchRepository
func (f *FallbackSearch) Search(ctx context.Context, term string, carparks []*entities.Carpark) ([]*entities.Carpark, error) {
	out, err := f.primary.Search(ctx, term, carparks)
	if err == nil {
		return out, nil
	}
	log.Ctx(ctx).Warn().Err(err).Msg("Primary search failed, using fallback")
	return f.secondary.Search(ctx, term, carparks)
}
