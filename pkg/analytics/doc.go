// Package analytics provides the Pulse analytics computation core.
//
// # Overview
//
// The package defines the shared data model (events, time series,
// declarative queries, analysis results) and the collaborator
// interfaces the core pulls data through. The Service type composes
// the sub-analyzers into a single facade:
//
//   - query execution with caching (pkg/analytics/engine, pkg/analytics/cache)
//   - funnel conversion (pkg/analytics/funnel)
//   - cohort retention (pkg/analytics/cohort)
//   - user/org behavioral summaries (pkg/analytics/behavior)
//   - statistical anomaly detection (pkg/analytics/anomaly)
//
// # Usage Example
//
// Execute a cached query:
//
//	svc := analytics.NewService(deps)
//	result, err := svc.Query(ctx, analytics.AnalyticsQuery{
//		Metrics:     []string{"page_views"},
//		Granularity: analytics.GranularityDay,
//		TimeRange:   analytics.RelativeRange(7, analytics.UnitDays),
//	})
//
// Analyze a signup funnel:
//
//	funnel, err := svc.AnalyzeFunnel(ctx, steps, 24*time.Hour, timeRange, "")
//
// All analyzers are stateless between calls; each call fetches its own
// data from the injected sources and computes in memory. The query
// cache is the only shared mutable state and is safe for concurrent
// use.
package analytics
