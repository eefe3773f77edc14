// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	PULSE_HOST="0.0.0.0"
//	PULSE_PORT="8080"
//	PULSE_HEALTH_PORT="9090"
//	PULSE_READ_TIMEOUT="15s"
//	PULSE_WRITE_TIMEOUT="30s"
//
// Storage settings:
//
//	PULSE_POSTGRES_URL="postgres://localhost/pulse"
//	PULSE_POSTGRES_MAX_CONNS="25"
//
// Cache settings:
//
//	PULSE_CACHE_BACKEND="memory"  # memory, redis
//	PULSE_CACHE_TTL="5m"
//	PULSE_CACHE_MAX_ENTRIES="1000"
//	PULSE_REDIS_URL="redis://localhost:6379/0"
//
// Anomaly detection settings:
//
//	PULSE_ANOMALY_MIN_DATA_POINTS="100"
//	PULSE_ANOMALY_Z_THRESHOLD="3"
//	PULSE_ANOMALY_CRITICAL_Z_THRESHOLD="4"
//
// Observability settings:
//
//	PULSE_LOG_LEVEL="info"  # debug, info, warn, error
//	PULSE_METRICS_ENABLED="true"
//	PULSE_OTEL_ENABLED="true"
//	PULSE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Cache backend: %s\n", cfg.Cache.Backend)
//
// # Related Packages
//
//   - pkg/storage/postgres: Uses the PostgreSQL configuration
//   - pkg/analytics/cache: Uses the cache configuration
//   - pkg/observability: Uses observability configuration
package config
