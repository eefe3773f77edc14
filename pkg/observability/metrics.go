package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics core
type Metrics struct {
	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration prometheus.Histogram

	// Cache metrics
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal prometheus.Counter
	CacheExpiredTotal   prometheus.Counter
	CacheEntries        prometheus.Gauge

	// Ingestion metrics
	EventsTrackedTotal  prometheus.Counter
	PointsRecordedTotal prometheus.Counter

	// Anomaly metrics
	AnomaliesDetectedTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_queries_total",
				Help: "Total number of analytics queries executed",
			},
			[]string{"status"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pulse_query_duration_seconds",
				Help:    "Analytics query execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_cache_hits_total",
			Help: "Total number of query cache hits",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_cache_misses_total",
			Help: "Total number of query cache misses",
		}),
		CacheEvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_cache_evictions_total",
			Help: "Total number of query cache capacity evictions",
		}),
		CacheExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_cache_expired_total",
			Help: "Total number of query cache entries removed by TTL expiry",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_cache_entries",
			Help: "Current number of query cache entries",
		}),
		EventsTrackedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_events_tracked_total",
			Help: "Total number of usage events tracked",
		}),
		PointsRecordedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_metric_points_recorded_total",
			Help: "Total number of metric points recorded",
		}),
		AnomaliesDetectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_anomalies_detected_total",
				Help: "Total number of anomalies detected",
			},
			[]string{"severity"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CacheExpiredTotal,
		m.CacheEntries,
		m.EventsTrackedTotal,
		m.PointsRecordedTotal,
		m.AnomaliesDetectedTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
