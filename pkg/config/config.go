package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/pulse/pkg/analytics/anomaly"
	"github.com/platinummonkey/pulse/pkg/analytics/cache"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// PostgreSQL configuration
	Postgres postgres.Config

	// Query cache configuration
	Cache CacheConfig

	// Anomaly detection parameters
	Anomaly anomaly.Config

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// CacheConfig selects and tunes the query result cache backend.
type CacheConfig struct {
	// Backend is either "memory" or "redis".
	Backend string
	TTL     time.Duration
	// MaxEntries bounds the in-memory backend; ignored for redis.
	MaxEntries    int
	SweepInterval time.Duration

	// Redis settings, used when Backend is "redis".
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Hot series cache in front of the metric store.
	HotSeriesSize int
	HotSeriesTTL  time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Postgres:      loadPostgresConfig(),
		Cache:         loadCacheConfig(),
		Anomaly:       loadAnomalyConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PULSE_HOST", "0.0.0.0"),
		Port:            getEnv("PULSE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PULSE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PULSE_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("PULSE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PULSE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PULSE_HEALTH_PORT", "9090"),
	}
}

// loadPostgresConfig loads PostgreSQL configuration from environment
func loadPostgresConfig() postgres.Config {
	cfg := postgres.DefaultConfig()

	if pgURL := getEnv("PULSE_POSTGRES_URL", ""); pgURL != "" {
		cfg.URL = pgURL
	}
	if maxConns := getEnvInt("PULSE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("PULSE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("PULSE_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	return cfg
}

// loadCacheConfig loads query cache configuration from environment
func loadCacheConfig() CacheConfig {
	defaults := cache.DefaultConfig()

	return CacheConfig{
		Backend:       strings.ToLower(getEnv("PULSE_CACHE_BACKEND", "memory")),
		TTL:           getEnvDuration("PULSE_CACHE_TTL", defaults.TTL),
		MaxEntries:    getEnvInt("PULSE_CACHE_MAX_ENTRIES", defaults.MaxEntries),
		SweepInterval: getEnvDuration("PULSE_CACHE_SWEEP_INTERVAL", defaults.SweepInterval),
		RedisURL:      getEnv("PULSE_REDIS_URL", "redis://localhost:6379/0"),
		RedisPassword: getEnv("PULSE_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("PULSE_REDIS_DB", 0),
		HotSeriesSize: getEnvInt("PULSE_HOT_SERIES_SIZE", 64),
		HotSeriesTTL:  getEnvDuration("PULSE_HOT_SERIES_TTL", 30*time.Second),
	}
}

// loadAnomalyConfig loads anomaly detection parameters from environment
func loadAnomalyConfig() anomaly.Config {
	cfg := anomaly.DefaultConfig()

	if minPoints := getEnvInt("PULSE_ANOMALY_MIN_DATA_POINTS", 0); minPoints > 0 {
		cfg.MinDataPoints = minPoints
	}
	if threshold := getEnvFloat("PULSE_ANOMALY_Z_THRESHOLD", 0); threshold > 0 {
		cfg.ZScoreThreshold = threshold
	}
	if critical := getEnvFloat("PULSE_ANOMALY_CRITICAL_Z_THRESHOLD", 0); critical > 0 {
		cfg.CriticalZScoreThreshold = critical
	}

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("PULSE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PULSE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PULSE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PULSE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PULSE_OTEL_SERVICE_NAME", "pulse-analytics"),
		OTelServiceVersion: getEnv("PULSE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PULSE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be memory or redis)", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive")
	}

	if c.Anomaly.MinDataPoints <= 0 {
		return fmt.Errorf("anomaly min data points must be positive")
	}
	if c.Anomaly.CriticalZScoreThreshold < c.Anomaly.ZScoreThreshold {
		return fmt.Errorf("critical z-score threshold must be at least the warning threshold")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
