package analytics

import (
	"time"
)

// Granularity is the time-bucket width used to aggregate a time series.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
	GranularityWeek   Granularity = "week"
	GranularityMonth  Granularity = "month"
)

// FilterOperator is the comparison applied by a QueryFilter.
type FilterOperator string

const (
	OpEquals    FilterOperator = "equals"
	OpNotEquals FilterOperator = "not_equals"
	OpContains  FilterOperator = "contains"
	OpGT        FilterOperator = "gt"
	OpLT        FilterOperator = "lt"
	OpBetween   FilterOperator = "between"
	OpIn        FilterOperator = "in"
	OpRegex     FilterOperator = "regex"
)

// SortDirection orders a sort key ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// TimeUnit is the unit of a relative time range.
type TimeUnit string

const (
	UnitMinutes TimeUnit = "minutes"
	UnitHours   TimeUnit = "hours"
	UnitDays    TimeUnit = "days"
	UnitWeeks   TimeUnit = "weeks"
	UnitMonths  TimeUnit = "months"
)

// PeriodType is the cohort bucketing period.
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
)

// Severity classifies an insight.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// DeviceInfo describes the device an event originated from.
type DeviceInfo struct {
	Type    string `json:"type,omitempty"`
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
}

// LocationInfo describes where an event originated from.
type LocationInfo struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// EventContext carries optional device/location metadata for an event.
type EventContext struct {
	Device   *DeviceInfo   `json:"device,omitempty"`
	Location *LocationInfo `json:"location,omitempty"`
}

// Event is a single immutable product usage event. Events are produced
// by the ingestion path and consumed read-only by the analyzers.
type Event struct {
	ID             string                 `json:"id"`
	EventType      string                 `json:"event_type"`
	UserID         string                 `json:"user_id,omitempty"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	SessionID      string                 `json:"session_id,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	Context        *EventContext          `json:"context,omitempty"`
}

// TimeSeriesPoint is a single metric observation.
type TimeSeriesPoint struct {
	Timestamp  time.Time         `json:"timestamp"`
	Value      float64           `json:"value"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// QueryFilter restricts a query to points whose dimension value
// satisfies the operator. Value is a string for the string operators,
// a number for gt/lt, a 2-element slice for between, and a slice for in.
type QueryFilter struct {
	Dimension string         `json:"dimension"`
	Operator  FilterOperator `json:"operator"`
	Value     interface{}    `json:"value"`
}

// TimeRangeType discriminates absolute and relative ranges.
type TimeRangeType string

const (
	RangeAbsolute TimeRangeType = "absolute"
	RangeRelative TimeRangeType = "relative"
)

// TimeRange bounds a query in time. Absolute ranges carry fixed
// start/end instants; relative ranges are resolved against "now" at
// evaluation time, not at construction time.
type TimeRange struct {
	Type  TimeRangeType `json:"type"`
	Start time.Time     `json:"start,omitempty"`
	End   time.Time     `json:"end,omitempty"`
	Value int           `json:"value,omitempty"`
	Unit  TimeUnit      `json:"unit,omitempty"`
}

// AbsoluteRange builds an absolute time range.
func AbsoluteRange(start, end time.Time) TimeRange {
	return TimeRange{Type: RangeAbsolute, Start: start, End: end}
}

// RelativeRange builds a relative time range (e.g. "last 7 days").
func RelativeRange(value int, unit TimeUnit) TimeRange {
	return TimeRange{Type: RangeRelative, Value: value, Unit: unit}
}

// Resolve returns the concrete [start, end] instants for the range.
// Relative ranges resolve end = now and start = now - value*unit.
func (r TimeRange) Resolve(now time.Time) (time.Time, time.Time) {
	if r.Type == RangeAbsolute {
		return r.Start, r.End
	}
	switch r.Unit {
	case UnitMinutes:
		return now.Add(-time.Duration(r.Value) * time.Minute), now
	case UnitHours:
		return now.Add(-time.Duration(r.Value) * time.Hour), now
	case UnitDays:
		return now.AddDate(0, 0, -r.Value), now
	case UnitWeeks:
		return now.AddDate(0, 0, -7*r.Value), now
	case UnitMonths:
		return now.AddDate(0, -r.Value, 0), now
	default:
		return now, now
	}
}

// OrderBy is one key of a multi-key sort.
type OrderBy struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// AnalyticsQuery is a declarative aggregate query over one or more
// metrics.
type AnalyticsQuery struct {
	Metrics     []string      `json:"metrics"`
	Filters     []QueryFilter `json:"filters,omitempty"`
	Dimensions  []string      `json:"dimensions,omitempty"`
	Granularity Granularity   `json:"granularity,omitempty"`
	TimeRange   TimeRange     `json:"time_range"`
	OrderBy     []OrderBy     `json:"order_by,omitempty"`
	Limit       int           `json:"limit,omitempty"`
	Offset      int           `json:"offset,omitempty"`
}

// Row is one aggregated result row. Grouped rows carry the group key
// and the dimension values that formed it; bucketed rows carry the
// bucket timestamp and source metric.
type Row struct {
	Timestamp  time.Time         `json:"timestamp,omitempty"`
	Metric     string            `json:"metric,omitempty"`
	Value      float64           `json:"value"`
	Count      int               `json:"count"`
	Group      string            `json:"group,omitempty"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

// ResultMetadata describes how a QueryResult was produced.
type ResultMetadata struct {
	TotalRows       int   `json:"total_rows"`
	ExecutionTimeMS int64 `json:"execution_time_ms"`
	CacheHit        bool  `json:"cache_hit"`
}

// QueryResult is the output of executing an AnalyticsQuery.
type QueryResult struct {
	Query    AnalyticsQuery `json:"query"`
	Data     []Row          `json:"data"`
	Metadata ResultMetadata `json:"metadata"`
}

// FunnelStep defines one step of a funnel: the qualifying event type
// plus optional property filters (equality on event properties).
type FunnelStep struct {
	Name      string                 `json:"name"`
	EventType string                 `json:"event_type"`
	Filters   map[string]interface{} `json:"filters,omitempty"`
}

// FunnelStepResult is the computed outcome for one funnel step.
type FunnelStepResult struct {
	Name           string  `json:"name"`
	EventType      string  `json:"event_type"`
	UsersCount     int     `json:"users_count"`
	ConversionRate float64 `json:"conversion_rate"`
}

// FunnelAnalysis is the result of a funnel computation.
//
// Invariants: Steps[0].ConversionRate == 1, len(DropOffRates) ==
// len(Steps)-1, and all rates are in [0, 1].
type FunnelAnalysis struct {
	Steps          []FunnelStepResult `json:"steps"`
	TimeWindow     time.Duration      `json:"time_window"`
	ConversionRate float64            `json:"conversion_rate"`
	DropOffRates   []float64          `json:"drop_off_rates"`
}

// ConversionPath traces a single user through the funnel steps.
type ConversionPath struct {
	UserID         string        `json:"user_id"`
	Completed      bool          `json:"completed"`
	AbandonedAt    int           `json:"abandoned_at"` // step index, -1 when completed
	ConversionTime time.Duration `json:"conversion_time"`
	StepsMatched   int           `json:"steps_matched"`
}

// StepDropOff reports the drop-off between one step and the next.
type StepDropOff struct {
	Step        string  `json:"step"`
	NextStep    string  `json:"next_step"`
	Reached     int     `json:"reached"`
	Continued   int     `json:"continued"`
	DropOffRate float64 `json:"drop_off_rate"`
}

// CohortDefinition selects the cohort-forming event.
type CohortDefinition struct {
	Event     string                 `json:"event"`
	Filters   map[string]interface{} `json:"filters,omitempty"`
	TimeRange TimeRange              `json:"time_range"`
}

// RetentionMetric selects the event that counts as retention.
type RetentionMetric struct {
	Event string `json:"event"`
}

// CohortRow is one cohort with its per-period retention rates.
//
// Invariants: len(Retention) == periods, every value is in [0, 1], and
// all values are 0 when CohortSize is 0.
type CohortRow struct {
	CohortDate time.Time `json:"cohort_date"`
	CohortSize int       `json:"cohort_size"`
	Retention  []float64 `json:"retention"`
}

// CohortAnalysis is the result of a cohort retention computation.
type CohortAnalysis struct {
	Definition      CohortDefinition `json:"cohort_definition"`
	RetentionMetric RetentionMetric  `json:"retention_metric"`
	Periods         int              `json:"periods"`
	PeriodType      PeriodType       `json:"period_type"`
	Data            []CohortRow      `json:"data"`
}

// RetentionSummary aggregates retention across all cohorts of an
// analysis.
type RetentionSummary struct {
	AverageRetention []float64  `json:"average_retention"`
	BestCohort       *CohortRow `json:"best_cohort,omitempty"`
	WorstCohort      *CohortRow `json:"worst_cohort,omitempty"`
}

// CohortComparison is the pointwise retention difference between two
// cohorts of the same analysis (cohort1 - cohort2).
type CohortComparison struct {
	Date1       time.Time `json:"date1"`
	Date2       time.Time `json:"date2"`
	Differences []float64 `json:"differences"`
}

// DeviceSummary is a deduplicated device fingerprint with the most
// recent sighting.
type DeviceSummary struct {
	Type     string    `json:"type"`
	Browser  string    `json:"browser"`
	OS       string    `json:"os"`
	LastSeen time.Time `json:"last_seen"`
}

// LocationSummary is a deduplicated location with the most recent
// sighting.
type LocationSummary struct {
	Country  string    `json:"country"`
	City     string    `json:"city"`
	LastSeen time.Time `json:"last_seen"`
}

// UserAnalytics is a per-user behavioral summary.
type UserAnalytics struct {
	UserID       string            `json:"user_id"`
	TotalEvents  int               `json:"total_events"`
	FirstSeen    time.Time         `json:"first_seen"`
	LastSeen     time.Time         `json:"last_seen"`
	EventCounts  map[string]int    `json:"event_counts"`
	SessionCount int               `json:"session_count"`
	Devices      []DeviceSummary   `json:"devices"`
	Locations    []LocationSummary `json:"locations"`
}

// UserActivity pairs a user with an event count, for top-user rankings.
type UserActivity struct {
	UserID     string `json:"user_id"`
	EventCount int    `json:"event_count"`
}

// OrganizationAnalytics is a per-organization behavioral summary.
type OrganizationAnalytics struct {
	OrganizationID string         `json:"organization_id"`
	TotalEvents    int            `json:"total_events"`
	ActiveUsers    int            `json:"active_users"`
	EventCounts    map[string]int `json:"event_counts"`
	TopUsers       []UserActivity `json:"top_users"`
	UsageByHour    [24]int        `json:"usage_by_hour"`
	UsageByDay     map[string]int `json:"usage_by_day"`
}

// PeriodActivity summarizes a user's activity within one period.
type PeriodActivity struct {
	TimeRange   TimeRange      `json:"time_range"`
	TotalEvents int            `json:"total_events"`
	EventCounts map[string]int `json:"event_counts"`
}

// ActivityComparison contrasts a user's activity across two periods.
type ActivityComparison struct {
	UserID        string         `json:"user_id"`
	Period1       PeriodActivity `json:"period1"`
	Period2       PeriodActivity `json:"period2"`
	EventsChange  int            `json:"events_change"`
	PercentChange float64        `json:"percent_change"`
}

// EngagementScore is a weighted 0-100 composite of activity frequency,
// recency, and event-type diversity.
type EngagementScore struct {
	Score     int     `json:"score"`
	Frequency float64 `json:"frequency"`
	Recency   float64 `json:"recency"`
	Diversity float64 `json:"diversity"`
}

// Insight is a detected finding, created through the InsightCreator
// collaborator. The core never persists insights itself.
type Insight struct {
	ID              string                 `json:"id"`
	DefinitionID    string                 `json:"definition_id,omitempty"`
	OrganizationID  string                 `json:"organization_id,omitempty"`
	Severity        Severity               `json:"severity"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Data            map[string]interface{} `json:"data,omitempty"`
	AffectedMetrics []string               `json:"affected_metrics,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// BucketStart truncates t to the start of its bucket for the given
// granularity. Boundaries are computed in UTC: minute zeroes seconds,
// hour zeroes minutes, day is midnight, week is the most recent Sunday
// at midnight, month is the first of the month at midnight.
func BucketStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityMinute:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	case GranularityHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case GranularityWeek:
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return midnight.AddDate(0, 0, -int(midnight.Weekday()))
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// PeriodStart truncates t to the start of its cohort period.
func PeriodStart(t time.Time, p PeriodType) time.Time {
	switch p {
	case PeriodWeek:
		return BucketStart(t, GranularityWeek)
	case PeriodMonth:
		return BucketStart(t, GranularityMonth)
	default:
		return BucketStart(t, GranularityDay)
	}
}

// AddPeriods advances t by n cohort periods.
func AddPeriods(t time.Time, p PeriodType, n int) time.Time {
	switch p {
	case PeriodWeek:
		return t.AddDate(0, 0, 7*n)
	case PeriodMonth:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}
