package cohort

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/observability"
)

// Analyzer computes cohort retention. It is stateless between calls
// and safe for concurrent use.
type Analyzer struct {
	source analytics.EventSource
	logger *observability.Logger
	now    func() time.Time
}

// New creates a cohort analyzer.
func New(source analytics.EventSource, logger *observability.Logger) *Analyzer {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Analyzer{
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// AnalyzeCohort buckets users into cohorts by their defining event and
// computes per-period retention rates against the retention event.
func (a *Analyzer) AnalyzeCohort(ctx context.Context, definition analytics.CohortDefinition, retention analytics.RetentionMetric, periods int, periodType analytics.PeriodType, orgID string) (*analytics.CohortAnalysis, error) {
	if definition.Event == "" {
		return nil, fmt.Errorf("cohort definition requires an event")
	}
	if retention.Event == "" {
		return nil, fmt.Errorf("retention metric requires an event")
	}
	if periods <= 0 {
		return nil, fmt.Errorf("periods must be positive, got %d", periods)
	}

	rangeStart, rangeEnd := definition.TimeRange.Resolve(a.now())

	cohortEvents, err := a.source.GetEvents(ctx, analytics.EventFilter{
		EventType:      definition.Event,
		OrganizationID: orgID,
		Start:          rangeStart,
		End:            rangeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch cohort events: %w", err)
	}

	// cohort date (unix nanos) -> member set
	cohorts := make(map[int64]map[string]struct{})
	for _, event := range cohortEvents {
		if event.UserID == "" {
			continue
		}
		if !matchesProperties(event, definition.Filters) {
			continue
		}
		date := analytics.PeriodStart(event.Timestamp, periodType).UnixNano()
		if cohorts[date] == nil {
			cohorts[date] = make(map[string]struct{})
		}
		cohorts[date][event.UserID] = struct{}{}
	}

	analysis := &analytics.CohortAnalysis{
		Definition:      definition,
		RetentionMetric: retention,
		Periods:         periods,
		PeriodType:      periodType,
		Data:            make([]analytics.CohortRow, 0, len(cohorts)),
	}
	if len(cohorts) == 0 {
		return analysis, nil
	}

	dates := make([]int64, 0, len(cohorts))
	for date := range cohorts {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	// One fetch covering every cohort's full retention horizon.
	earliest := time.Unix(0, dates[0]).UTC()
	latest := analytics.AddPeriods(time.Unix(0, dates[len(dates)-1]).UTC(), periodType, periods)
	retentionEvents, err := a.source.GetEvents(ctx, analytics.EventFilter{
		EventType:      retention.Event,
		OrganizationID: orgID,
		Start:          earliest,
		End:            latest,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch retention events: %w", err)
	}

	activity := make(map[string][]time.Time)
	for _, event := range retentionEvents {
		if event.UserID == "" {
			continue
		}
		activity[event.UserID] = append(activity[event.UserID], event.Timestamp)
	}

	for _, date := range dates {
		cohortDate := time.Unix(0, date).UTC()
		members := cohorts[date]

		row := analytics.CohortRow{
			CohortDate: cohortDate,
			CohortSize: len(members),
			Retention:  make([]float64, periods),
		}

		for period := 0; period < periods; period++ {
			if row.CohortSize == 0 {
				continue
			}
			periodStart := analytics.AddPeriods(cohortDate, periodType, period)
			periodEnd := analytics.AddPeriods(cohortDate, periodType, period+1)

			retained := 0
			for member := range members {
				if activeWithin(activity[member], periodStart, periodEnd) {
					retained++
				}
			}
			row.Retention[period] = float64(retained) / float64(row.CohortSize)
		}

		analysis.Data = append(analysis.Data, row)
	}

	return analysis, nil
}

// GetCohortRetentionSummary averages retention per period across all
// cohorts and picks the best/worst cohort by final-period retention.
func (a *Analyzer) GetCohortRetentionSummary(analysis *analytics.CohortAnalysis) *analytics.RetentionSummary {
	summary := &analytics.RetentionSummary{
		AverageRetention: make([]float64, analysis.Periods),
	}
	if len(analysis.Data) == 0 {
		return summary
	}

	for period := 0; period < analysis.Periods; period++ {
		sum := 0.0
		for _, row := range analysis.Data {
			sum += row.Retention[period]
		}
		summary.AverageRetention[period] = sum / float64(len(analysis.Data))
	}

	final := analysis.Periods - 1
	for i := range analysis.Data {
		row := &analysis.Data[i]
		if summary.BestCohort == nil || row.Retention[final] > summary.BestCohort.Retention[final] {
			summary.BestCohort = row
		}
		if summary.WorstCohort == nil || row.Retention[final] < summary.WorstCohort.Retention[final] {
			summary.WorstCohort = row
		}
	}
	return summary
}

// CompareCohorts returns the pointwise retention difference between
// the cohorts at date1 and date2. Differences is empty when either
// cohort is absent from the analysis.
func (a *Analyzer) CompareCohorts(date1, date2 time.Time, analysis *analytics.CohortAnalysis) *analytics.CohortComparison {
	comparison := &analytics.CohortComparison{
		Date1:       date1,
		Date2:       date2,
		Differences: []float64{},
	}

	first := findCohort(analysis, date1)
	second := findCohort(analysis, date2)
	if first == nil || second == nil {
		return comparison
	}

	comparison.Differences = make([]float64, len(first.Retention))
	for i := range first.Retention {
		comparison.Differences[i] = first.Retention[i] - second.Retention[i]
	}
	return comparison
}

func findCohort(analysis *analytics.CohortAnalysis, date time.Time) *analytics.CohortRow {
	for i := range analysis.Data {
		if analysis.Data[i].CohortDate.Equal(date) {
			return &analysis.Data[i]
		}
	}
	return nil
}

func activeWithin(times []time.Time, start, end time.Time) bool {
	for _, t := range times {
		if !t.Before(start) && t.Before(end) {
			return true
		}
	}
	return false
}

func matchesProperties(event analytics.Event, filters map[string]interface{}) bool {
	for key, want := range filters {
		got, ok := event.Properties[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
