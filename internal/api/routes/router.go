package routes

import (
	"net/http"

	"github.com/carparkfinder/backend/internal/api/handlers"
	"github.com/carparkfinder/backend/internal/api/middleware"
	"github.com/carparkfinder/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	carparkHandler     *handlers.CarparkHandler
	userStateHandler   *handlers.UserStateHandler
	geolocationHandler *handlers.GeolocationHandler
	healthHandler      *handlers.HealthHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	allowedOrigins  []string
}

// RouterConfig groups the handlers and middleware of the API.
type RouterConfig struct {
	CarparkHandler     *handlers.CarparkHandler
	UserStateHandler   *handlers.UserStateHandler
	GeolocationHandler *handlers.GeolocationHandler
	HealthHandler      *handlers.HealthHandler
	CacheMiddleware    *middleware.CacheMiddleware
	Metrics            *observability.Metrics
	AllowedOrigins     []string
}

// NewRouter creates a new router
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		carparkHandler:     cfg.CarparkHandler,
		userStateHandler:   cfg.UserStateHandler,
		geolocationHandler: cfg.GeolocationHandler,
		healthHandler:      cfg.HealthHandler,
		cacheMiddleware:    cfg.CacheMiddleware,
		metrics:            cfg.Metrics,
		allowedOrigins:     cfg.AllowedOrigins,
	}
}

func (r *Router) handle(pattern string, fn http.HandlerFunc) {
	var h http.Handler = fn
	if r.cacheMiddleware != nil {
		h = r.cacheMiddleware.Wrap(pattern, h)
	}
	r.mux.Handle(pattern, h)
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	if r.healthHandler != nil {
		r.handle("GET /health", r.healthHandler.Health)
	}

	// Carpark search
	r.handle("GET /carparks", r.carparkHandler.LegacySearch)
	r.handle("GET /api/carparks", r.carparkHandler.Search)
	r.handle("GET /api/rates", r.carparkHandler.Rates)

	// Favorites
	r.handle("GET /api/favorites", r.userStateHandler.ListFavorites)
	r.handle("POST /api/favorites", r.userStateHandler.AddFavorite)
	r.handle("GET /api/favorites/{id}", r.userStateHandler.GetFavorite)
	r.handle("DELETE /api/favorites/{id}", r.userStateHandler.RemoveFavorite)

	// Recent searches
	r.handle("GET /api/recent-searches", r.userStateHandler.ListRecentSearches)
	r.handle("POST /api/recent-searches", r.userStateHandler.AddRecentSearch)
	r.handle("DELETE /api/recent-searches", r.userStateHandler.ClearRecentSearches)

	// Geolocation endpoints
	r.handle("GET /api/geocode", r.geolocationHandler.Geocode)
	r.handle("GET /api/reverse-geocode", r.geolocationHandler.ReverseGeocode)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	origins := r.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler = middleware.CORS(origins)(handler)

	return handler
}
