package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/analytics/anomaly"
	"github.com/platinummonkey/pulse/pkg/analytics/behavior"
	"github.com/platinummonkey/pulse/pkg/analytics/cache"
	"github.com/platinummonkey/pulse/pkg/analytics/cohort"
	"github.com/platinummonkey/pulse/pkg/analytics/engine"
	"github.com/platinummonkey/pulse/pkg/analytics/funnel"
	"github.com/platinummonkey/pulse/pkg/async"
	"github.com/platinummonkey/pulse/pkg/observability"
)

// Deps are the collaborators the facade is built from. Events,
// Metrics, and Insights are required; sinks are optional (TrackEvent
// and RecordMetric fail when their sink is absent), and Cache,
// Notifier, and Logger default to in-memory/no-op implementations.
type Deps struct {
	Events     analytics.EventSource
	Metrics    analytics.MetricSource
	Insights   analytics.InsightCreator
	EventSink  analytics.EventSink
	MetricSink analytics.MetricSink
	Cache      cache.Cache
	Notifier   analytics.Notifier
	Logger     *observability.Logger
	Anomaly    anomaly.Config
}

// Service is the analytics facade exposed to the reporting and
// dashboard layers.
type Service struct {
	events     analytics.EventSource
	metrics    analytics.MetricSource
	eventSink  analytics.EventSink
	metricSink analytics.MetricSink
	cache      cache.Cache
	engine     *engine.Engine
	funnel     *funnel.Analyzer
	cohort     *cohort.Analyzer
	behavior   *behavior.Analyzer
	detector   *anomaly.Detector
	notifier   analytics.Notifier
	logger     *observability.Logger
	config     anomaly.Config
}

// New wires the facade from its dependencies.
func New(deps Deps) (*Service, error) {
	if deps.Events == nil {
		return nil, fmt.Errorf("event source is required")
	}
	if deps.Metrics == nil {
		return nil, fmt.Errorf("metric source is required")
	}
	if deps.Insights == nil {
		return nil, fmt.Errorf("insight creator is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = analytics.NopNotifier()
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemory(cache.DefaultConfig(), deps.Notifier)
	}

	return &Service{
		events:     deps.Events,
		metrics:    deps.Metrics,
		eventSink:  deps.EventSink,
		metricSink: deps.MetricSink,
		cache:      deps.Cache,
		engine:     engine.New(deps.Metrics, deps.Notifier, deps.Logger),
		funnel:     funnel.New(deps.Events, deps.Logger),
		cohort:     cohort.New(deps.Events, deps.Logger),
		behavior:   behavior.New(deps.Events, deps.Logger),
		detector:   anomaly.New(deps.Insights, deps.Notifier, deps.Logger, deps.Anomaly),
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		config:     deps.Anomaly,
	}, nil
}

// TrackEvent persists a usage event, assigning an ID and timestamp
// when absent, and kicks off a reactive anomaly check in the
// background.
func (s *Service) TrackEvent(ctx context.Context, event analytics.Event) (analytics.Event, error) {
	if s.eventSink == nil {
		return event, fmt.Errorf("no event sink configured")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := s.eventSink.InsertEvent(ctx, event); err != nil {
		return event, fmt.Errorf("insert event: %w", err)
	}

	s.notifier.Notify(analytics.Notification{
		Kind:   analytics.NotifyEventTracked,
		At:     time.Now(),
		Fields: map[string]interface{}{"event_type": event.EventType},
	})

	// The anomaly check needs history and must not delay tracking.
	async.SafeGo(context.WithoutCancel(ctx), s.logger, 30*time.Second, "reactive anomaly check", func(ctx context.Context) error {
		historical, err := s.events.GetEvents(ctx, analytics.EventFilter{
			EventType:      event.EventType,
			OrganizationID: event.OrganizationID,
		})
		if err != nil {
			return err
		}
		_, err = s.detector.DetectEventAnomaly(ctx, event, historical)
		return err
	})

	return event, nil
}

// RecordMetric persists a metric observation.
func (s *Service) RecordMetric(ctx context.Context, metric string, point analytics.TimeSeriesPoint) error {
	if s.metricSink == nil {
		return fmt.Errorf("no metric sink configured")
	}
	if metric == "" {
		return fmt.Errorf("metric name is required")
	}
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now().UTC()
	}

	if err := s.metricSink.InsertPoint(ctx, metric, point); err != nil {
		return fmt.Errorf("insert metric point: %w", err)
	}

	s.notifier.Notify(analytics.Notification{
		Kind:   analytics.NotifyPointRecorded,
		At:     time.Now(),
		Fields: map[string]interface{}{"metric": metric},
	})
	return nil
}

// Query executes an analytics query through the cache: a hit returns
// the memoized result, a miss executes the engine and populates the
// cache.
func (s *Service) Query(ctx context.Context, query analytics.AnalyticsQuery) (*analytics.QueryResult, error) {
	if result, ok := s.cache.Get(ctx, query); ok {
		return result, nil
	}

	result, err := s.engine.Execute(ctx, query)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, query, result)
	return result, nil
}

// AnalyzeFunnel computes a conversion funnel.
func (s *Service) AnalyzeFunnel(ctx context.Context, steps []analytics.FunnelStep, timeWindow time.Duration, timeRange analytics.TimeRange, orgID string) (*analytics.FunnelAnalysis, error) {
	return s.funnel.AnalyzeFunnel(ctx, steps, timeWindow, timeRange, orgID)
}

// GetUserConversionPath traces one user through the funnel steps.
func (s *Service) GetUserConversionPath(ctx context.Context, userID string, steps []analytics.FunnelStep, timeRange analytics.TimeRange) (*analytics.ConversionPath, error) {
	return s.funnel.GetUserConversionPath(ctx, userID, steps, timeRange)
}

// AnalyzeStepDropOff measures the drop-off after one funnel step.
func (s *Service) AnalyzeStepDropOff(ctx context.Context, steps []analytics.FunnelStep, index int, timeRange analytics.TimeRange) (*analytics.StepDropOff, error) {
	return s.funnel.AnalyzeStepDropOff(ctx, steps, index, timeRange)
}

// AnalyzeCohort computes cohort retention.
func (s *Service) AnalyzeCohort(ctx context.Context, definition analytics.CohortDefinition, retention analytics.RetentionMetric, periods int, periodType analytics.PeriodType, orgID string) (*analytics.CohortAnalysis, error) {
	return s.cohort.AnalyzeCohort(ctx, definition, retention, periods, periodType, orgID)
}

// GetCohortRetentionSummary aggregates retention across cohorts.
func (s *Service) GetCohortRetentionSummary(analysis *analytics.CohortAnalysis) *analytics.RetentionSummary {
	return s.cohort.GetCohortRetentionSummary(analysis)
}

// CompareCohorts diffs two cohorts of an analysis.
func (s *Service) CompareCohorts(date1, date2 time.Time, analysis *analytics.CohortAnalysis) *analytics.CohortComparison {
	return s.cohort.CompareCohorts(date1, date2, analysis)
}

// GetUserAnalytics summarizes one user's behavior.
func (s *Service) GetUserAnalytics(ctx context.Context, userID string, timeRange *analytics.TimeRange) (*analytics.UserAnalytics, error) {
	return s.behavior.GetUserAnalytics(ctx, userID, timeRange)
}

// GetOrganizationAnalytics summarizes one organization's behavior.
func (s *Service) GetOrganizationAnalytics(ctx context.Context, orgID string, timeRange *analytics.TimeRange) (*analytics.OrganizationAnalytics, error) {
	return s.behavior.GetOrganizationAnalytics(ctx, orgID, timeRange)
}

// CompareUserActivity contrasts a user's activity across two periods.
func (s *Service) CompareUserActivity(ctx context.Context, userID string, period1, period2 analytics.TimeRange) (*analytics.ActivityComparison, error) {
	return s.behavior.CompareUserActivity(ctx, userID, period1, period2)
}

// GetUserEngagementScore computes the 0-100 engagement composite.
func (s *Service) GetUserEngagementScore(ctx context.Context, userID string, timeRange analytics.TimeRange) (*analytics.EngagementScore, error) {
	return s.behavior.GetUserEngagementScore(ctx, userID, timeRange)
}

// DetectThresholdViolation checks a value against static bounds.
func (s *Service) DetectThresholdViolation(ctx context.Context, metric string, value float64, thresholds anomaly.Thresholds, orgID string) (*analytics.Insight, error) {
	return s.detector.DetectThresholdViolation(ctx, metric, value, thresholds, orgID)
}

// GenerateInsights sweeps the given metrics for time-series anomalies
// and sudden changes, returning every insight created. A failure on
// one metric aborts the sweep; partial results are returned alongside
// the error.
func (s *Service) GenerateInsights(ctx context.Context, metrics []string) ([]analytics.Insight, error) {
	var insights []analytics.Insight
	for _, metric := range metrics {
		series, err := s.metrics.GetTimeSeries(ctx, metric, nil)
		if err != nil {
			return insights, fmt.Errorf("fetch %s: %w", metric, err)
		}

		detected, err := s.detector.DetectTimeSeriesAnomaly(ctx, metric, series, 0)
		if err != nil {
			return insights, err
		}
		insights = append(insights, detected...)

		changes, err := s.detector.DetectSuddenChange(ctx, metric, series, 0)
		if err != nil {
			return insights, err
		}
		insights = append(insights, changes...)
	}
	return insights, nil
}

// InvalidateCache removes cached results matching pattern, or all
// cached results when pattern is empty.
func (s *Service) InvalidateCache(ctx context.Context, pattern string) (int, error) {
	return s.cache.Invalidate(ctx, pattern)
}

// CacheStats reports query cache effectiveness.
func (s *Service) CacheStats(ctx context.Context) cache.Stats {
	return s.cache.Stats(ctx)
}
