package behavior

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/observability"
)

// Analyzer computes behavioral summaries. It is stateless between
// calls and safe for concurrent use.
type Analyzer struct {
	source analytics.EventSource
	logger *observability.Logger
	now    func() time.Time
}

// New creates a behavior analyzer.
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

// GetUserAnalytics summarizes one user's activity. A nil timeRange
// covers the user's full history.
func (a *Analyzer) GetUserAnalytics(ctx context.Context, userID string, timeRange *analytics.TimeRange) (*analytics.UserAnalytics, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	filter := analytics.EventFilter{UserID: userID}
	if timeRange != nil {
		filter.Start, filter.End = timeRange.Resolve(a.now())
	}
	events, err := a.source.GetEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch user events: %w", err)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	summary := &analytics.UserAnalytics{
		UserID:      userID,
		TotalEvents: len(events),
		EventCounts: make(map[string]int),
		Devices:     []analytics.DeviceSummary{},
		Locations:   []analytics.LocationSummary{},
	}
	if len(events) == 0 {
		return summary, nil
	}

	summary.FirstSeen = events[0].Timestamp
	summary.LastSeen = events[len(events)-1].Timestamp

	sessions := make(map[string]struct{})
	devices := make(map[string]analytics.DeviceSummary)
	locations := make(map[string]analytics.LocationSummary)

	for _, event := range events {
		summary.EventCounts[event.EventType]++
		if event.SessionID != "" {
			sessions[event.SessionID] = struct{}{}
		}
		if event.Context == nil {
			continue
		}
		// Events are walked oldest-first, so the stored instance per
		// key is always the most recently seen.
		if d := event.Context.Device; d != nil {
			key := d.Type + ":" + d.Browser + ":" + d.OS
			devices[key] = analytics.DeviceSummary{
				Type:     d.Type,
				Browser:  d.Browser,
				OS:       d.OS,
				LastSeen: event.Timestamp,
			}
		}
		if l := event.Context.Location; l != nil {
			key := l.Country + ":" + l.City
			locations[key] = analytics.LocationSummary{
				Country:  l.Country,
				City:     l.City,
				LastSeen: event.Timestamp,
			}
		}
	}

	summary.SessionCount = len(sessions)
	for _, d := range devices {
		summary.Devices = append(summary.Devices, d)
	}
	for _, l := range locations {
		summary.Locations = append(summary.Locations, l)
	}
	sort.Slice(summary.Devices, func(i, j int) bool {
		a, b := summary.Devices[i], summary.Devices[j]
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.Type+a.Browser+a.OS < b.Type+b.Browser+b.OS
	})
	sort.Slice(summary.Locations, func(i, j int) bool {
		a, b := summary.Locations[i], summary.Locations[j]
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.Country+a.City < b.Country+b.City
	})

	return summary, nil
}

// GetOrganizationAnalytics summarizes an organization's activity. A
// nil timeRange covers the organization's full history.
func (a *Analyzer) GetOrganizationAnalytics(ctx context.Context, orgID string, timeRange *analytics.TimeRange) (*analytics.OrganizationAnalytics, error) {
	if orgID == "" {
		return nil, fmt.Errorf("organization ID is required")
	}

	filter := analytics.EventFilter{OrganizationID: orgID}
	if timeRange != nil {
		filter.Start, filter.End = timeRange.Resolve(a.now())
	}
	events, err := a.source.GetEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch organization events: %w", err)
	}

	summary := &analytics.OrganizationAnalytics{
		OrganizationID: orgID,
		TotalEvents:    len(events),
		EventCounts:    make(map[string]int),
		TopUsers:       []analytics.UserActivity{},
		UsageByDay:     make(map[string]int),
	}

	userCounts := make(map[string]int)
	for _, event := range events {
		summary.EventCounts[event.EventType]++
		if event.UserID != "" {
			userCounts[event.UserID]++
		}
		ts := event.Timestamp.UTC()
		summary.UsageByHour[ts.Hour()]++
		summary.UsageByDay[ts.Format("2006-01-02")]++
	}

	summary.ActiveUsers = len(userCounts)

	ranking := make([]analytics.UserActivity, 0, len(userCounts))
	for user, count := range userCounts {
		ranking = append(ranking, analytics.UserActivity{UserID: user, EventCount: count})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].EventCount != ranking[j].EventCount {
			return ranking[i].EventCount > ranking[j].EventCount
		}
		return ranking[i].UserID < ranking[j].UserID
	})
	if len(ranking) > 10 {
		ranking = ranking[:10]
	}
	summary.TopUsers = ranking

	return summary, nil
}

// CompareUserActivity contrasts a user's activity across two periods.
func (a *Analyzer) CompareUserActivity(ctx context.Context, userID string, period1, period2 analytics.TimeRange) (*analytics.ActivityComparison, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	first, err := a.periodActivity(ctx, userID, period1)
	if err != nil {
		return nil, err
	}
	second, err := a.periodActivity(ctx, userID, period2)
	if err != nil {
		return nil, err
	}

	comparison := &analytics.ActivityComparison{
		UserID:       userID,
		Period1:      first,
		Period2:      second,
		EventsChange: second.TotalEvents - first.TotalEvents,
	}
	if first.TotalEvents > 0 {
		comparison.PercentChange = float64(comparison.EventsChange) / float64(first.TotalEvents) * 100
	}
	return comparison, nil
}

func (a *Analyzer) periodActivity(ctx context.Context, userID string, timeRange analytics.TimeRange) (analytics.PeriodActivity, error) {
	start, end := timeRange.Resolve(a.now())
	events, err := a.source.GetEvents(ctx, analytics.EventFilter{
		UserID: userID,
		Start:  start,
		End:    end,
	})
	if err != nil {
		return analytics.PeriodActivity{}, fmt.Errorf("fetch period events: %w", err)
	}

	activity := analytics.PeriodActivity{
		TimeRange:   timeRange,
		TotalEvents: len(events),
		EventCounts: make(map[string]int),
	}
	for _, event := range events {
		activity.EventCounts[event.EventType]++
	}
	return activity, nil
}

// GetUserEngagementScore computes the weighted 0-100 engagement
// composite over timeRange. A user with no events scores 0.
func (a *Analyzer) GetUserEngagementScore(ctx context.Context, userID string, timeRange analytics.TimeRange) (*analytics.EngagementScore, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	now := a.now()
	start, end := timeRange.Resolve(now)
	events, err := a.source.GetEvents(ctx, analytics.EventFilter{
		UserID: userID,
		Start:  start,
		End:    end,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch user events: %w", err)
	}

	score := &analytics.EngagementScore{}
	if len(events) == 0 {
		return score, nil
	}

	periodDays := end.Sub(start).Hours() / 24
	if periodDays < 1 {
		periodDays = 1
	}

	lastSeen := events[0].Timestamp
	types := make(map[string]struct{})
	for _, event := range events {
		if event.Timestamp.After(lastSeen) {
			lastSeen = event.Timestamp
		}
		types[event.EventType] = struct{}{}
	}

	eventsPerDay := float64(len(events)) / periodDays
	score.Frequency = math.Min(100, eventsPerDay*10)

	daysSinceLast := now.Sub(lastSeen).Hours() / 24
	score.Recency = math.Max(0, 100-(daysSinceLast/periodDays)*100)

	score.Diversity = math.Min(100, float64(len(types))*20)

	composite := math.Round(0.4*score.Frequency + 0.4*score.Recency + 0.2*score.Diversity)
	score.Score = int(math.Max(0, math.Min(100, composite)))
	return score, nil
}
