package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/pulse/pkg/analytics/anomaly"
	"github.com/platinummonkey/pulse/pkg/analytics/service"
	"github.com/platinummonkey/pulse/pkg/storage/postgres"
)

var (
	dbURL          = flag.String("db-url", getEnv("PULSE_POSTGRES_URL", "postgres://localhost/pulse?sslmode=disable"), "PostgreSQL connection URL")
	metricsFlag    = flag.String("metrics", getEnv("PULSE_MONITOR_METRICS", ""), "Comma-separated metric names to sweep for anomalies")
	sweepSchedule  = flag.String("sweep-schedule", "*/15 * * * *", "Cron schedule for the anomaly sweep (default: every 15 minutes)")
	minDataPoints  = flag.Int("min-data-points", 0, "Minimum history size before anomaly detection (0 uses the default)")
	zThreshold     = flag.Float64("z-threshold", 0, "Z-score threshold for anomalies (0 uses the default)")
	runOnce        = flag.Bool("run-once", false, "Run one sweep and exit (for testing)")
	requestTimeout = flag.Duration("timeout", 2*time.Minute, "Timeout for a single sweep")
)

func main() {
	flag.Parse()

	metrics := splitMetrics(*metricsFlag)
	if len(metrics) == 0 {
		log.Fatal("No metrics to monitor: set --metrics or PULSE_MONITOR_METRICS")
	}

	pgConfig := postgres.DefaultConfig()
	pgConfig.URL = *dbURL
	db, err := postgres.Connect(pgConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	anomalyConfig := anomaly.DefaultConfig()
	if *minDataPoints > 0 {
		anomalyConfig.MinDataPoints = *minDataPoints
	}
	if *zThreshold > 0 {
		anomalyConfig.ZScoreThreshold = *zThreshold
	}

	eventStore := postgres.NewEventStore(db)
	metricStore := postgres.NewMetricStore(db, len(metrics), time.Minute)
	insightStore := postgres.NewInsightStore(db)

	svc, err := service.New(service.Deps{
		Events:   eventStore,
		Metrics:  metricStore,
		Insights: insightStore,
		Anomaly:  anomalyConfig,
	})
	if err != nil {
		log.Fatalf("Failed to build analytics service: %v", err)
	}

	if *runOnce {
		if err := runSweep(svc, metrics, *requestTimeout); err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		log.Println("Sweep completed successfully")
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*sweepSchedule, func() {
		if err := runSweep(svc, metrics, *requestTimeout); err != nil {
			log.Printf("Sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule anomaly sweep: %v", err)
	}

	c.Start()
	log.Println("Pulse anomaly monitor started")
	log.Printf("Sweep schedule: %s", *sweepSchedule)
	log.Printf("Monitored metrics: %s", strings.Join(metrics, ", "))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down gracefully...")

	ctx := c.Stop()
	<-ctx.Done()

	log.Println("Monitor stopped")
}

func runSweep(svc *service.Service, metrics []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Printf("Sweeping %d metrics for anomalies", len(metrics))
	insights, err := svc.GenerateInsights(ctx, metrics)
	if err != nil {
		return err
	}

	for _, insight := range insights {
		log.Printf("Insight [%s] %s: %s", insight.Severity, insight.DefinitionID, insight.Title)
	}
	if len(insights) == 0 {
		log.Println("No anomalies detected")
	}

	stats := svc.CacheStats(ctx)
	log.Printf("Query cache: %d entries, %.1f%% hit rate", stats.Size, stats.HitRate*100)
	return nil
}

func splitMetrics(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
