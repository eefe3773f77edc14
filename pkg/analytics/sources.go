package analytics

import (
	"context"
	"time"
)

// EventFilter narrows an EventSource query. Zero-value fields are
// ignored; Start/End bound the event timestamp when non-zero.
type EventFilter struct {
	EventType      string
	UserID         string
	OrganizationID string
	Start          time.Time
	End            time.Time
}

// EventSource answers event-filter queries. Implementations are
// expected to filter reasonably efficiently; the analyzers compute
// everything else in memory.
type EventSource interface {
	GetEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// MetricSource answers time-series-by-metric-name queries.
type MetricSource interface {
	GetTimeSeries(ctx context.Context, metric string, dimensions map[string]string) ([]TimeSeriesPoint, error)
}

// InsightDraft is the payload handed to the InsightCreator.
type InsightDraft struct {
	Severity        Severity
	Title           string
	Description     string
	Data            map[string]interface{}
	AffectedMetrics []string
	Recommendations []string
}

// InsightCreator persists detected insights. The anomaly detector
// delegates all insight creation here and holds no persistence state.
type InsightCreator interface {
	CreateInsight(ctx context.Context, definitionID string, draft InsightDraft, organizationID string) (*Insight, error)
}

// EventSink accepts tracked events for persistence.
type EventSink interface {
	InsertEvent(ctx context.Context, event Event) error
}

// MetricSink accepts recorded metric observations for persistence.
type MetricSink interface {
	InsertPoint(ctx context.Context, metric string, point TimeSeriesPoint) error
}
