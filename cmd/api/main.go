package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carparkfinder/backend/internal/adapters/cache"
	"github.com/carparkfinder/backend/internal/adapters/database"
	"github.com/carparkfinder/backend/internal/adapters/filestore"
	"github.com/carparkfinder/backend/internal/adapters/providers/availability"
	"github.com/carparkfinder/backend/internal/adapters/providers/geolocation"
	"github.com/carparkfinder/backend/internal/adapters/search"
	"github.com/carparkfinder/backend/internal/api/handlers"
	"github.com/carparkfinder/backend/internal/api/middleware"
	"github.com/carparkfinder/backend/internal/api/routes"
	"github.com/carparkfinder/backend/internal/application/services"
	"github.com/carparkfinder/backend/internal/domain/providers"
	"github.com/carparkfinder/backend/internal/domain/repositories"
	"github.com/carparkfinder/backend/internal/infrastructure/clients/openai"
	"github.com/carparkfinder/backend/internal/infrastructure/clients/postgres"
	"github.com/carparkfinder/backend/internal/infrastructure/clients/redis"
	"github.com/carparkfinder/backend/internal/infrastructure/clients/typesense"
	"github.com/carparkfinder/backend/internal/infrastructure/observability"
	"github.com/carparkfinder/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env, cfg.LogLevel)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	checks := map[string]handlers.HealthCheck{}

	// Cache: Redis when reachable, otherwise in-process
	var cacheProvider providers.CacheProvider
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
		memory, err := cache.NewMemoryAdapter(0)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create in-memory cache")
		}
		cacheProvider = memory
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		checks["redis"] = redisClient.Ping
	}

	// Rate catalog: Postgres when configured, otherwise the JSON file
	var rateRepo repositories.RateRepository = filestore.NewRateFileAdapter(cfg.Data.RatesFile)
	if cfg.Database.Enabled {
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("PostgreSQL unavailable, reading rates from file")
		} else {
			defer pgClient.Close()
			rateRepo = database.NewRateAdapter(pgClient)
			checks["postgres"] = pgClient.Ping
		}
	}
	pricingService := services.NewPricingService(rateRepo)
	if err := pricingService.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Rate catalog unavailable, all carparks use the default rate")
	}

	// Availability feeds, LTA first so its records win on duplicate ids
	availabilityService := services.NewAvailabilityService(
		cacheProvider,
		cfg.Data.AvailabilityTTL,
		cfg.Data.StorageNamespace,
		availability.NewLTAProvider(cfg.DataMall.URL, cfg.DataMall.AccountKey, cfg.DataMall.Timeout),
		availability.NewHDBProvider(cfg.Data.HDBInfoFile, cfg.DataGov.URL, cfg.DataGov.APIKey, cfg.DataGov.Timeout),
	)
	availabilityService.StartPeriodicRefresh(ctx, cfg.Data.RefreshInterval)

	// Keyword search
	aliasConfig, err := search.LoadAliasConfig(cfg.Data.SearchAliasesFile)
	if err != nil {
		log.Warn().Err(err).Msg("Search aliases unavailable")
	}
	aliasSearch := search.NewAliasSearch(aliasConfig)
	var searchRepo repositories.CarparkSearchRepository = aliasSearch
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, using alias search")
		} else {
			searchRepo = search.NewFallbackSearch(search.NewTypesenseAdapter(tsClient, aliasSearch), aliasSearch)
			checks["typesense"] = func(ctx context.Context) error {
				healthy, err := tsClient.Client().Health(ctx, time.Second)
				if err == nil && !healthy {
					err = fmt.Errorf("typesense reports unhealthy")
				}
				return err
			}
		}
	}

	// Geolocation
	var geolocationProvider providers.GeolocationProvider
	switch cfg.Geolocation.Provider {
	case "google":
		geolocationProvider = geolocation.NewGoogleGeolocationProvider(cfg.Geolocation.APIKey, cfg.Geolocation.Region)
	default:
		geolocationProvider = geolocation.NewMockGeolocationProvider()
	}
	locationService := services.NewLocationService(geolocationProvider, cacheProvider, cfg.Data.GeocodeCacheTTLSec)

	// AI cost calculation is optional
	var calculator providers.CostCalculator
	if cfg.OpenAI.APIKey != "" {
		client, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Warn().Err(err).Msg("OpenAI client unavailable, costs are estimated")
		} else {
			calculator = client
		}
	}
	costService := services.NewCostCalculationService(calculator, cacheProvider, cfg.OpenAI.MaxCalculate, cfg.OpenAI.Concurrency)

	recentSearchService := services.NewRecentSearchService(cacheProvider, cfg.Data.StorageNamespace, cfg.Data.RecentSearchLimit)
	favoritesService := services.NewFavoritesService(cacheProvider, cfg.Data.StorageNamespace)

	carparkService := services.NewCarparkService(services.CarparkServiceDeps{
		Source:      availabilityService,
		Search:      searchRepo,
		Pricing:     pricingService,
		Costs:       costService,
		Locations:   locationService,
		Recommender: services.NewRecommendationService(services.NewCostEstimator(cfg.Ranking.DefaultHourlyRate), cfg.Ranking.TravelCostPerKm, cfg.Ranking.NearMeLimit),
		Recents:     recentSearchService,
		MaxReturn:   cfg.Data.MaxCarparksReturn,
	})

	router := routes.NewRouter(routes.RouterConfig{
		CarparkHandler:     handlers.NewCarparkHandler(carparkService, pricingService),
		UserStateHandler:   handlers.NewUserStateHandler(favoritesService, recentSearchService),
		GeolocationHandler: handlers.NewGeolocationHandler(locationService),
		HealthHandler:      handlers.NewHealthHandler(checks),
		CacheMiddleware:    middleware.NewCacheMiddleware(cacheProvider, metrics),
		Metrics:            metrics,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router.SetupRoutes(),
		// AI cost calculation can take a while on a cold cache
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}
