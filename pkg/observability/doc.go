// Package observability provides structured logging, Prometheus
// metrics, and OpenTelemetry tracing for Pulse.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("metric", name).Info("anomaly sweep started")
//
// # Prometheus Metrics
//
// Initialize and register metrics, then bridge core notifications into
// them:
//
//	metrics := observability.NewMetrics(registry)
//	notifier := observability.NewMetricsNotifier(metrics)
//	cache := cache.NewMemory(cfg, notifier)
//
// # Health Checks
//
// The HealthChecker pings the event store and the cache backend and
// serves liveness/readiness probes for the server binary.
//
// # OpenTelemetry
//
// InitTracing sets up an OTLP gRPC trace exporter; the query engine
// wraps each execution in a span.
package observability
