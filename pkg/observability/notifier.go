package observability

import (
	"github.com/platinummonkey/pulse/pkg/analytics"
)

// MetricsNotifier bridges core observability notifications into
// Prometheus metrics. Notify only bumps counters, so it is safe to
// call from the cache and engine hot paths.
type MetricsNotifier struct {
	metrics *Metrics
}

// NewMetricsNotifier creates a notifier backed by the given metrics.
func NewMetricsNotifier(metrics *Metrics) *MetricsNotifier {
	return &MetricsNotifier{metrics: metrics}
}

// Notify implements analytics.Notifier.
func (n *MetricsNotifier) Notify(notification analytics.Notification) {
	switch notification.Kind {
	case analytics.NotifyCacheHit:
		n.metrics.CacheHitsTotal.Inc()
	case analytics.NotifyCacheMiss:
		n.metrics.CacheMissesTotal.Inc()
	case analytics.NotifyCacheSet:
		n.metrics.CacheEntries.Inc()
	case analytics.NotifyCacheEvicted:
		n.metrics.CacheEvictionsTotal.Inc()
		n.metrics.CacheEntries.Dec()
	case analytics.NotifyCacheExpired:
		n.metrics.CacheExpiredTotal.Inc()
		n.metrics.CacheEntries.Dec()
	case analytics.NotifyCacheCleared:
		if removed, ok := notification.Fields["removed"].(int); ok {
			n.metrics.CacheEntries.Sub(float64(removed))
		} else {
			n.metrics.CacheEntries.Set(0)
		}
	case analytics.NotifyQueryCompleted:
		n.metrics.QueriesTotal.WithLabelValues("ok").Inc()
		if secs, ok := notification.Fields["duration_seconds"].(float64); ok {
			n.metrics.QueryDuration.Observe(secs)
		}
	case analytics.NotifyQueryFailed:
		n.metrics.QueriesTotal.WithLabelValues("error").Inc()
	case analytics.NotifyEventTracked:
		n.metrics.EventsTrackedTotal.Inc()
	case analytics.NotifyPointRecorded:
		n.metrics.PointsRecordedTotal.Inc()
	case analytics.NotifyAnomalyDetected:
		severity, _ := notification.Fields["severity"].(string)
		if severity == "" {
			severity = "unknown"
		}
		n.metrics.AnomaliesDetectedTotal.WithLabelValues(severity).Inc()
	}
}
