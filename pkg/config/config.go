package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env         string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Geolocation GeolocationConfig
	DataMall    DataMallConfig
	DataGov     DataGovConfig
	Data        DataFilesConfig
	OpenAI      OpenAIConfig
	Ranking     RankingConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration. Postgres is optional; without
// DB_HOST the rate catalog is read from the JSON file.
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled bool
	URL     string
	APIKey  string
}

// GeolocationConfig holds geolocation provider configuration
type GeolocationConfig struct {
	Provider string
	APIKey   string
	Region   string
}

// DataMallConfig holds LTA DataMall settings
type DataMallConfig struct {
	URL        string
	AccountKey string
	Timeout    time.Duration
}

// DataGovConfig holds data.gov.sg settings for HDB availability
type DataGovConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// DataFilesConfig points at the static JSON data shipped with the service
type DataFilesConfig struct {
	RatesFile          string
	HDBInfoFile        string
	SearchAliasesFile  string
	AvailabilityTTL    time.Duration
	RefreshInterval    time.Duration
	MaxCarparksReturn  int
	RecentSearchLimit  int
	StorageNamespace   string
	DefaultClientID    string
	GeocodeCacheTTLSec int
}

// OpenAIConfig holds OpenAI configuration used by the cost calculator
type OpenAIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	RateLimitRPM   int
	RateLimitBurst int
	MaxCalculate   int
	Concurrency    int
}

// RankingConfig holds the tunable constants of the ranking heuristics
type RankingConfig struct {
	DefaultHourlyRate float64
	TravelCostPerKm   float64
	NearMeLimit       int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 5001),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Enabled:  os.Getenv("DB_HOST") != "",
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "carpark_finder"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			Enabled: getEnvAsBool("TYPESENSE_ENABLED", false),
			URL:     getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:  getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		Geolocation: GeolocationConfig{
			Provider: getEnv("GEOLOCATION_PROVIDER", "mock"),
			APIKey:   getEnv("GOOGLE_MAPS_API_KEY", ""),
			Region:   getEnv("GEOLOCATION_REGION", "sg"),
		},
		DataMall: DataMallConfig{
			URL:        getEnv("GOV_API_URL", "https://datamall2.mytransport.sg/ltaodataservice/CarParkAvailabilityv2"),
			AccountKey: getEnv("GOV_API_KEY", ""),
			Timeout:    getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		},
		DataGov: DataGovConfig{
			URL:     getEnv("HDB_API_URL", "https://api.data.gov.sg/v1/transport/carpark-availability"),
			APIKey:  getEnv("DATA_GOV_API_KEY", ""),
			Timeout: getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		},
		Data: DataFilesConfig{
			RatesFile:          getEnv("RATES_FILE", "data/carpark_rates.json"),
			HDBInfoFile:        getEnv("HDB_INFO_FILE", "data/hdb_carpark_info.json"),
			SearchAliasesFile:  getEnv("SEARCH_ALIASES_FILE", "data/search_aliases.json"),
			AvailabilityTTL:    getEnvAsDuration("AVAILABILITY_TTL", 60*time.Second),
			RefreshInterval:    getEnvAsDuration("AVAILABILITY_REFRESH_INTERVAL", 5*time.Minute),
			MaxCarparksReturn:  getEnvAsInt("MAX_CARPARKS_RETURN", 500),
			RecentSearchLimit:  getEnvAsInt("RECENT_SEARCH_LIMIT", 5),
			StorageNamespace:   getEnv("STORAGE_NAMESPACE", "carpark"),
			DefaultClientID:    getEnv("DEFAULT_CLIENT_ID", "anonymous"),
			GeocodeCacheTTLSec: getEnvAsInt("GEOCODE_CACHE_TTL_SECONDS", 60*60*24*30),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
			MaxCalculate:   getEnvAsInt("AI_MAX_CALCULATE", 10),
			Concurrency:    getEnvAsInt("AI_CONCURRENCY", 5),
		},
		Ranking: RankingConfig{
			DefaultHourlyRate: getEnvAsFloat("RANKING_DEFAULT_HOURLY_RATE", 1.50),
			TravelCostPerKm:   getEnvAsFloat("RANKING_TRAVEL_COST_PER_KM", 0.50),
			NearMeLimit:       getEnvAsInt("RANKING_NEAR_ME_LIMIT", 20),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "carpark-finder"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if c.Ranking.NearMeLimit <= 0 {
		return fmt.Errorf("RANKING_NEAR_ME_LIMIT must be positive, got %d", c.Ranking.NearMeLimit)
	}
	if c.Ranking.DefaultHourlyRate < 0 || c.Ranking.TravelCostPerKm < 0 {
		return fmt.Errorf("ranking rates must not be negative")
	}
	if c.Data.RecentSearchLimit <= 0 {
		return fmt.Errorf("RECENT_SEARCH_LIMIT must be positive, got %d", c.Data.RecentSearchLimit)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
