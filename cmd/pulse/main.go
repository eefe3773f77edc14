package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/analytics/cache"
	"github.com/platinummonkey/pulse/pkg/analytics/service"
	"github.com/platinummonkey/pulse/pkg/api"
	"github.com/platinummonkey/pulse/pkg/config"
	"github.com/platinummonkey/pulse/pkg/observability"
	"github.com/platinummonkey/pulse/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := postgres.Connect(cfg.Postgres)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to postgres")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	notifier := analytics.Notifier(analytics.NopNotifier())
	if cfg.Observability.MetricsEnabled {
		notifier = observability.NewMetricsNotifier(metrics)
	}

	var redisClient *redis.Client
	queryCache, closeCache, err := buildCache(cfg.Cache, notifier, logger, &redisClient)
	if err != nil {
		logger.WithError(err).Error("failed to initialize query cache")
		os.Exit(1)
	}
	defer closeCache()

	tracerShutdown, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize tracing")
		os.Exit(1)
	}

	eventStore := postgres.NewEventStore(db)
	metricStore := postgres.NewMetricStore(db, cfg.Cache.HotSeriesSize, cfg.Cache.HotSeriesTTL)
	insightStore := postgres.NewInsightStore(db)

	svc, err := service.New(service.Deps{
		Events:     eventStore,
		Metrics:    metricStore,
		Insights:   insightStore,
		EventSink:  eventStore,
		MetricSink: metricStore,
		Cache:      queryCache,
		Notifier:   notifier,
		Logger:     logger,
		Anomaly:    cfg.Anomaly,
	})
	if err != nil {
		logger.WithError(err).Error("failed to build analytics service")
		os.Exit(1)
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      api.NewRouter(svc, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes.
	healthChecker := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("api server failed")
			os.Exit(1)
		}
	}()

	err = observability.GracefulShutdown(logger, apiServer, cfg.Server.ShutdownTimeout,
		func(ctx context.Context) error { return healthServer.Shutdown(ctx) },
		func(ctx context.Context) error { return tracerShutdown(ctx) },
	)
	if err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// buildCache constructs the configured cache backend. The returned
// close function stops background sweeps or closes client connections.
func buildCache(cfg config.CacheConfig, notifier analytics.Notifier, logger *observability.Logger, redisClient **redis.Client) (cache.Cache, func(), error) {
	cacheConfig := cache.Config{
		TTL:           cfg.TTL,
		MaxEntries:    cfg.MaxEntries,
		SweepInterval: cfg.SweepInterval,
	}

	switch cfg.Backend {
	case "redis":
		backend, err := cache.NewRedis(cfg.RedisURL, cacheConfig, notifier, logger)
		if err != nil {
			return nil, nil, err
		}
		*redisClient = backend.Client()
		return backend, func() { backend.Close() }, nil
	default:
		backend := cache.NewMemory(cacheConfig, notifier)
		return backend, backend.Stop, nil
	}
}
