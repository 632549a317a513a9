package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Env           string
	Remote        RemoteConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Typesense     TypesenseConfig
	Elasticsearch ElasticsearchConfig
	Search        SearchConfig
	Sync          SyncConfig
	Map           MapConfig
	OTEL          OTELConfig
}

// RemoteConfig holds the REST catalog API configuration
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
	Token   string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
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
	Enabled  bool
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// ElasticsearchConfig holds Elasticsearch configuration
type ElasticsearchConfig struct {
	Addresses []string
	Index     string
}

// SearchConfig selects the backend used for place name searches
type SearchConfig struct {
	Backend string
}

// SyncConfig holds list synchronization defaults
type SyncConfig struct {
	PageSize        int
	FailureCooldown time.Duration
	StatsMode       string
}

// MapConfig holds map view defaults
type MapConfig struct {
	CenterLatitude     float64
	CenterLongitude    float64
	InitialZoom        float64
	FocusZoomThreshold float64
	FocusZoom          float64
	HighlightDuration  time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Search backends
const (
	SearchBackendNone          = "none"
	SearchBackendTypesense     = "typesense"
	SearchBackendElasticsearch = "elasticsearch"
)

// Stats modes
const (
	StatsModeAuthoritative = "authoritative"
	StatsModeWindowed      = "windowed"
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Remote: RemoteConfig{
			BaseURL: getEnv("TOURLY_API_URL", "http://localhost:8080/api"),
			Timeout: getEnvAsDuration("TOURLY_API_TIMEOUT", 10*time.Second),
			Token:   getEnv("TOURLY_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "skopje_tourism_guide"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},
		Typesense: TypesenseConfig{
			URL:        getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:     getEnv("TYPESENSE_API_KEY", "xyz"),
			Collection: getEnv("TYPESENSE_COLLECTION", "places"),
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses: getEnvAsList("ELASTICSEARCH_ADDRESSES", []string{"http://localhost:9200"}),
			Index:     getEnv("ELASTICSEARCH_INDEX", "places"),
		},
		Search: SearchConfig{
			Backend: strings.ToLower(getEnv("SEARCH_BACKEND", SearchBackendNone)),
		},
		Sync: SyncConfig{
			PageSize:        getEnvAsInt("SYNC_PAGE_SIZE", 12),
			FailureCooldown: getEnvAsDuration("SYNC_FAILURE_COOLDOWN", 5*time.Second),
			StatsMode:       strings.ToLower(getEnv("SYNC_STATS_MODE", StatsModeAuthoritative)),
		},
		Map: MapConfig{
			CenterLatitude:     getEnvAsFloat("MAP_CENTER_LAT", 41.9981),
			CenterLongitude:    getEnvAsFloat("MAP_CENTER_LNG", 21.4254),
			InitialZoom:        getEnvAsFloat("MAP_INITIAL_ZOOM", 13),
			FocusZoomThreshold: getEnvAsFloat("MAP_FOCUS_ZOOM_THRESHOLD", 14),
			FocusZoom:          getEnvAsFloat("MAP_FOCUS_ZOOM", 15),
			HighlightDuration:  getEnvAsDuration("MAP_HIGHLIGHT_DURATION", 1500*time.Millisecond),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "tourly-catalog"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise break the sync core at runtime
func (c *Config) Validate() error {
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be positive, got %d", c.Sync.PageSize)
	}
	if c.Sync.FailureCooldown < 0 {
		return fmt.Errorf("SYNC_FAILURE_COOLDOWN must not be negative")
	}
	switch c.Sync.StatsMode {
	case StatsModeAuthoritative, StatsModeWindowed:
	default:
		return fmt.Errorf("unknown SYNC_STATS_MODE %q", c.Sync.StatsMode)
	}
	switch c.Search.Backend {
	case SearchBackendNone, SearchBackendTypesense, SearchBackendElasticsearch:
	default:
		return fmt.Errorf("unknown SEARCH_BACKEND %q", c.Search.Backend)
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
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

// getEnvAsDuration accepts Go durations ("1500ms") or bare milliseconds ("1500").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
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
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
