package anomaly

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/observability"
)

// Definition IDs for the insight categories this detector emits.
const (
	DefEventAnomaly       = "event_anomaly"
	DefTimeSeriesAnomaly  = "time_series_anomaly"
	DefThresholdViolation = "threshold_violation"
	DefSuddenChange       = "sudden_change"
)

// Config holds the detector's statistical parameters.
type Config struct {
	MinDataPoints           int
	ZScoreThreshold         float64
	CriticalZScoreThreshold float64
}

// DefaultConfig returns the default detection parameters.
func DefaultConfig() Config {
	return Config{
		MinDataPoints:           100,
		ZScoreThreshold:         3,
		CriticalZScoreThreshold: 4,
	}
}

// Thresholds are optional static bounds for DetectThresholdViolation.
// A nil bound is not checked.
type Thresholds struct {
	Warning  *float64 `json:"warning,omitempty"`
	Critical *float64 `json:"critical,omitempty"`
}

// Detector detects anomalies and emits insights through the
// InsightCreator collaborator.
type Detector struct {
	creator  analytics.InsightCreator
	notifier analytics.Notifier
	logger   *observability.Logger
	config   Config
}

// New creates a detector.
func New(creator analytics.InsightCreator, notifier analytics.Notifier, logger *observability.Logger, config Config) *Detector {
	if config.MinDataPoints <= 0 {
		config.MinDataPoints = DefaultConfig().MinDataPoints
	}
	if config.ZScoreThreshold <= 0 {
		config.ZScoreThreshold = DefaultConfig().ZScoreThreshold
	}
	if config.CriticalZScoreThreshold <= 0 {
		config.CriticalZScoreThreshold = DefaultConfig().CriticalZScoreThreshold
	}
	if notifier == nil {
		notifier = analytics.NopNotifier()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Detector{
		creator:  creator,
		notifier: notifier,
		logger:   logger,
		config:   config,
	}
}

// DetectEventAnomaly checks a new event's numeric "value" property
// against the most recent history. It returns nil without error when
// history is too short, the event carries no numeric value, or the
// value is within bounds.
func (d *Detector) DetectEventAnomaly(ctx context.Context, event analytics.Event, historical []analytics.Event) (*analytics.Insight, error) {
	current, ok := numericValue(event)
	if !ok {
		return nil, nil
	}
	if len(historical) < d.config.MinDataPoints {
		return nil, nil
	}

	// Most recent minDataPoints form the reference window.
	recent := make([]analytics.Event, len(historical))
	copy(recent, historical)
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].Timestamp.After(recent[j].Timestamp)
	})
	recent = recent[:d.config.MinDataPoints]

	values := make([]float64, 0, len(recent))
	for _, e := range recent {
		if v, ok := numericValue(e); ok {
			values = append(values, v)
		}
	}
	if len(values) < d.config.MinDataPoints {
		return nil, nil
	}

	mean, stdDev := meanStdDev(values)
	if stdDev == 0 {
		return nil, nil
	}

	zScore := math.Abs(current-mean) / stdDev
	if zScore <= d.config.ZScoreThreshold {
		return nil, nil
	}

	severity := analytics.SeverityWarning
	if zScore > d.config.CriticalZScoreThreshold {
		severity = analytics.SeverityCritical
	}

	insight, err := d.creator.CreateInsight(ctx, DefEventAnomaly, analytics.InsightDraft{
		Severity:    severity,
		Title:       fmt.Sprintf("Anomalous %s event detected", event.EventType),
		Description: fmt.Sprintf("Value %.2f deviates %.1f standard deviations from the recent mean %.2f", current, zScore, mean),
		Data: map[string]interface{}{
			"event_type": event.EventType,
			"value":      current,
			"mean":       mean,
			"std_dev":    stdDev,
			"z_score":    zScore,
		},
		Recommendations: []string{
			"Inspect the event source for instrumentation changes",
			"Compare against the same period in prior weeks",
		},
	}, event.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("create insight: %w", err)
	}

	d.notifyDetected(severity, event.EventType)
	return insight, nil
}

// DetectTimeSeriesAnomaly slides a reference window across the series
// and flags every point whose z-score against the preceding window
// exceeds the threshold. Pass threshold 0 to use the configured
// default.
func (d *Detector) DetectTimeSeriesAnomaly(ctx context.Context, metric string, series []analytics.TimeSeriesPoint, threshold float64) ([]analytics.Insight, error) {
	if threshold <= 0 {
		threshold = d.config.ZScoreThreshold
	}

	windowSize := d.config.MinDataPoints
	if len(series) < windowSize {
		windowSize = len(series)
	}
	if windowSize == 0 || len(series) <= windowSize {
		return nil, nil
	}

	var insights []analytics.Insight
	for i := windowSize; i < len(series); i++ {
		window := make([]float64, 0, windowSize)
		for _, p := range series[i-windowSize : i] {
			window = append(window, p.Value)
		}
		mean, stdDev := meanStdDev(window)
		if stdDev == 0 {
			continue
		}

		point := series[i]
		zScore := math.Abs(point.Value-mean) / stdDev
		if zScore <= threshold {
			continue
		}

		severity := analytics.SeverityWarning
		if zScore > d.config.CriticalZScoreThreshold {
			severity = analytics.SeverityCritical
		}

		insight, err := d.creator.CreateInsight(ctx, DefTimeSeriesAnomaly, analytics.InsightDraft{
			Severity:    severity,
			Title:       fmt.Sprintf("Anomaly in %s", metric),
			Description: fmt.Sprintf("Value %.2f at %s deviates %.1f standard deviations from the trailing mean %.2f", point.Value, point.Timestamp.Format(time.RFC3339), zScore, mean),
			Data: map[string]interface{}{
				"metric":    metric,
				"timestamp": point.Timestamp,
				"value":     point.Value,
				"mean":      mean,
				"std_dev":   stdDev,
				"z_score":   zScore,
			},
			AffectedMetrics: []string{metric},
		}, "")
		if err != nil {
			return insights, fmt.Errorf("create insight: %w", err)
		}
		d.notifyDetected(severity, metric)
		insights = append(insights, *insight)
	}
	return insights, nil
}

// DetectThresholdViolation checks a single value against static
// bounds. The critical bound takes precedence over the warning bound;
// nil is returned when neither is configured or met.
func (d *Detector) DetectThresholdViolation(ctx context.Context, metric string, value float64, thresholds Thresholds, orgID string) (*analytics.Insight, error) {
	var severity analytics.Severity
	var bound float64
	switch {
	case thresholds.Critical != nil && value >= *thresholds.Critical:
		severity = analytics.SeverityCritical
		bound = *thresholds.Critical
	case thresholds.Warning != nil && value >= *thresholds.Warning:
		severity = analytics.SeverityWarning
		bound = *thresholds.Warning
	default:
		return nil, nil
	}

	insight, err := d.creator.CreateInsight(ctx, DefThresholdViolation, analytics.InsightDraft{
		Severity:    severity,
		Title:       fmt.Sprintf("%s exceeded its %s threshold", metric, severity),
		Description: fmt.Sprintf("Value %.2f is at or above the configured %s threshold %.2f", value, severity, bound),
		Data: map[string]interface{}{
			"metric":    metric,
			"value":     value,
			"threshold": bound,
		},
		AffectedMetrics: []string{metric},
	}, orgID)
	if err != nil {
		return nil, fmt.Errorf("create insight: %w", err)
	}

	d.notifyDetected(severity, metric)
	return insight, nil
}

// DetectSuddenChange flags consecutive points whose relative change is
// at or above changeThresholdPercent (default 50). Transitions from a
// zero baseline are undefined and skipped.
func (d *Detector) DetectSuddenChange(ctx context.Context, metric string, series []analytics.TimeSeriesPoint, changeThresholdPercent float64) ([]analytics.Insight, error) {
	if changeThresholdPercent <= 0 {
		changeThresholdPercent = 50
	}

	var insights []analytics.Insight
	for i := 1; i < len(series); i++ {
		previous := series[i-1].Value
		if previous == 0 {
			continue
		}
		current := series[i].Value

		changePercent := math.Abs(current-previous) / math.Abs(previous) * 100
		if changePercent < changeThresholdPercent {
			continue
		}

		severity := analytics.SeverityWarning
		if changePercent >= 100 {
			severity = analytics.SeverityCritical
		}
		direction := "increase"
		if current < previous {
			direction = "decrease"
		}

		insight, err := d.creator.CreateInsight(ctx, DefSuddenChange, analytics.InsightDraft{
			Severity:    severity,
			Title:       fmt.Sprintf("Sudden %s in %s", direction, metric),
			Description: fmt.Sprintf("%s changed %.1f%% between consecutive points (%.2f to %.2f)", metric, changePercent, previous, current),
			Data: map[string]interface{}{
				"metric":         metric,
				"timestamp":      series[i].Timestamp,
				"previous":       previous,
				"current":        current,
				"change_percent": changePercent,
				"direction":      direction,
			},
			AffectedMetrics: []string{metric},
		}, "")
		if err != nil {
			return insights, fmt.Errorf("create insight: %w", err)
		}
		d.notifyDetected(severity, metric)
		insights = append(insights, *insight)
	}
	return insights, nil
}

func (d *Detector) notifyDetected(severity analytics.Severity, subject string) {
	d.notifier.Notify(analytics.Notification{
		Kind: analytics.NotifyAnomalyDetected,
		At:   time.Now(),
		Fields: map[string]interface{}{
			"severity": string(severity),
			"subject":  subject,
		},
	})
}

// numericValue extracts the numeric "value" property from an event.
func numericValue(event analytics.Event) (float64, bool) {
	raw, ok := event.Properties["value"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
