package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carparkfinder/backend/internal/adapters/providers/availability"
	"github.com/carparkfinder/backend/internal/adapters/search"
	"github.com/carparkfinder/backend/internal/application/services"
	"github.com/carparkfinder/backend/internal/infrastructure/clients/typesense"
	"github.com/carparkfinder/backend/internal/infrastructure/observability"
	"github.com/carparkfinder/backend/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 10m, 1h)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Env, cfg.LogLevel)

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("Invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Fatal().Err(err).Msg("Typesense unavailable")
	}

	aliasConfig, err := search.LoadAliasConfig(cfg.Data.SearchAliasesFile)
	if err != nil {
		log.Warn().Err(err).Msg("Search aliases unavailable, indexing without aliases")
	}
	adapter := search.NewTypesenseAdapter(tsClient, search.NewAliasSearch(aliasConfig))

	// No shared cache: the indexer always fetches a fresh snapshot.
	source := services.NewAvailabilityService(nil, time.Second, cfg.Data.StorageNamespace,
		availability.NewLTAProvider(cfg.DataMall.URL, cfg.DataMall.AccountKey, cfg.DataMall.Timeout),
		availability.NewHDBProvider(cfg.Data.HDBInfoFile, cfg.DataGov.URL, cfg.DataGov.APIKey, cfg.DataGov.Timeout),
	)

	for {
		if err := indexOnce(ctx, tsClient, adapter, source, reset); err != nil {
			log.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_in", interval).Msg("Reindex complete")
		select {
		case <-ctx.Done():
			log.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, tsClient *typesense.Client, adapter *search.TypesenseAdapter, source *services.AvailabilityService, reset bool) error {
	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", typesense.CarparksCollection).Msg("Deleting Typesense collection")
		if _, err := tsClient.Client().Collection(typesense.CarparksCollection).Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to delete collection")
		}
	}

	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	carparks, err := source.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch carparks: %w", err)
	}

	start := time.Now()
	if err := adapter.Index(ctx, carparks); err != nil {
		return err
	}
	log.Info().Int("carparks", len(carparks)).Dur("duration", time.Since(start)).Msg("Indexed carparks")
	return nil
}
