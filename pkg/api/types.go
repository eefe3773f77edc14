package api

import (
	"time"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/analytics/anomaly"
)

// FunnelRequest describes a funnel analysis request.
type FunnelRequest struct {
	Steps      []analytics.FunnelStep `json:"steps"`
	TimeWindow string                 `json:"time_window,omitempty"`
	TimeRange  analytics.TimeRange    `json:"time_range"`
	OrgID      string                 `json:"organization_id,omitempty"`
}

// ConversionPathRequest describes a per-user conversion path request.
type ConversionPathRequest struct {
	UserID    string                 `json:"user_id"`
	Steps     []analytics.FunnelStep `json:"steps"`
	TimeRange analytics.TimeRange    `json:"time_range"`
}

// StepDropOffRequest describes a drop-off analysis request for one
// funnel transition.
type StepDropOffRequest struct {
	Steps     []analytics.FunnelStep `json:"steps"`
	StepIndex int                    `json:"step_index"`
	TimeRange analytics.TimeRange    `json:"time_range"`
}

// CohortRequest describes a cohort retention analysis request.
type CohortRequest struct {
	Definition analytics.CohortDefinition `json:"definition"`
	Retention  analytics.RetentionMetric  `json:"retention"`
	Periods    int                        `json:"periods"`
	PeriodType analytics.PeriodType       `json:"period_type"`
	OrgID      string                     `json:"organization_id,omitempty"`
}

// ActivityComparisonRequest describes a request to compare a user's
// activity across two time ranges.
type ActivityComparisonRequest struct {
	Period1 analytics.TimeRange `json:"period1"`
	Period2 analytics.TimeRange `json:"period2"`
}

// RecordMetricRequest carries one metric observation.
type RecordMetricRequest struct {
	Metric     string            `json:"metric"`
	Timestamp  time.Time         `json:"timestamp,omitempty"`
	Value      float64           `json:"value"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// ThresholdCheckRequest asks whether a metric value violates its
// configured bounds.
type ThresholdCheckRequest struct {
	Metric     string             `json:"metric"`
	Value      float64            `json:"value"`
	Thresholds anomaly.Thresholds `json:"thresholds"`
	OrgID      string             `json:"organization_id,omitempty"`
}

// GenerateInsightsRequest names the metrics to sweep for anomalies.
type GenerateInsightsRequest struct {
	Metrics []string `json:"metrics"`
}

// InvalidateCacheResponse reports how many cached results were removed.
type InvalidateCacheResponse struct {
	Removed int `json:"removed"`
}
