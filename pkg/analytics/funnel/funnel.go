package funnel

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/observability"
)

// Analyzer computes conversion funnels. It is stateless between calls
// and safe for concurrent use.
type Analyzer struct {
	source analytics.EventSource
	logger *observability.Logger
	now    func() time.Time
}

// New creates a funnel analyzer.
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

// AnalyzeFunnel computes the funnel over the given steps within
// timeRange, optionally scoped to one organization.
func (a *Analyzer) AnalyzeFunnel(ctx context.Context, steps []analytics.FunnelStep, timeWindow time.Duration, timeRange analytics.TimeRange, orgID string) (*analytics.FunnelAnalysis, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("funnel requires at least one step")
	}

	rangeStart, rangeEnd := timeRange.Resolve(a.now())

	analysis := &analytics.FunnelAnalysis{
		Steps:        make([]analytics.FunnelStepResult, 0, len(steps)),
		TimeWindow:   timeWindow,
		DropOffRates: make([]float64, 0, len(steps)-1),
	}

	var previous map[string]struct{}
	for i, step := range steps {
		raw, err := a.stepUsers(ctx, step, rangeStart, rangeEnd, orgID)
		if err != nil {
			return nil, fmt.Errorf("funnel step %q: %w", step.Name, err)
		}

		qualified := raw
		if i > 0 {
			qualified = intersect(raw, previous)
		}

		conversion := 1.0
		if i > 0 {
			conversion = ratio(len(qualified), len(previous))
			analysis.DropOffRates = append(analysis.DropOffRates, 1-conversion)
		}

		analysis.Steps = append(analysis.Steps, analytics.FunnelStepResult{
			Name:           step.Name,
			EventType:      step.EventType,
			UsersCount:     len(qualified),
			ConversionRate: conversion,
		})
		previous = qualified
	}

	first := analysis.Steps[0].UsersCount
	last := analysis.Steps[len(analysis.Steps)-1].UsersCount
	analysis.ConversionRate = ratio(last, first)

	return analysis, nil
}

// GetUserConversionPath walks one user through the funnel steps in
// order, stopping at the first step the user never matched.
func (a *Analyzer) GetUserConversionPath(ctx context.Context, userID string, steps []analytics.FunnelStep, timeRange analytics.TimeRange) (*analytics.ConversionPath, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("funnel requires at least one step")
	}

	rangeStart, rangeEnd := timeRange.Resolve(a.now())

	path := &analytics.ConversionPath{
		UserID:      userID,
		AbandonedAt: -1,
	}

	var firstMatch, lastMatch time.Time
	for i, step := range steps {
		events, err := a.source.GetEvents(ctx, analytics.EventFilter{
			EventType: step.EventType,
			UserID:    userID,
			Start:     rangeStart,
			End:       rangeEnd,
		})
		if err != nil {
			return nil, fmt.Errorf("funnel step %q: %w", step.Name, err)
		}

		matched := false
		var matchedAt time.Time
		for _, event := range events {
			if !matchesProperties(event, step.Filters) {
				continue
			}
			if !matched || event.Timestamp.Before(matchedAt) {
				matchedAt = event.Timestamp
			}
			matched = true
		}

		if !matched {
			path.AbandonedAt = i
			break
		}

		path.StepsMatched++
		if firstMatch.IsZero() {
			firstMatch = matchedAt
		}
		lastMatch = matchedAt
	}

	path.Completed = path.StepsMatched == len(steps)
	if !firstMatch.IsZero() {
		path.ConversionTime = lastMatch.Sub(firstMatch)
	}
	return path, nil
}

// AnalyzeStepDropOff reports the drop-off between steps[index] and the
// next step. The last step has no "next" to measure against.
func (a *Analyzer) AnalyzeStepDropOff(ctx context.Context, steps []analytics.FunnelStep, index int, timeRange analytics.TimeRange) (*analytics.StepDropOff, error) {
	if index < 0 || index >= len(steps) {
		return nil, fmt.Errorf("step index %d out of range", index)
	}
	if index == len(steps)-1 {
		return nil, fmt.Errorf("step %q is the last step, nothing follows it", steps[index].Name)
	}

	rangeStart, rangeEnd := timeRange.Resolve(a.now())

	// Walk the chain so "reached" reflects sequential qualification,
	// not just raw event matches.
	var reached map[string]struct{}
	for i := 0; i <= index; i++ {
		raw, err := a.stepUsers(ctx, steps[i], rangeStart, rangeEnd, "")
		if err != nil {
			return nil, fmt.Errorf("funnel step %q: %w", steps[i].Name, err)
		}
		if i == 0 {
			reached = raw
		} else {
			reached = intersect(raw, reached)
		}
	}

	nextRaw, err := a.stepUsers(ctx, steps[index+1], rangeStart, rangeEnd, "")
	if err != nil {
		return nil, fmt.Errorf("funnel step %q: %w", steps[index+1].Name, err)
	}
	continued := intersect(nextRaw, reached)

	dropOff := 0.0
	if len(reached) > 0 {
		dropOff = 1 - ratio(len(continued), len(reached))
	}

	return &analytics.StepDropOff{
		Step:        steps[index].Name,
		NextStep:    steps[index+1].Name,
		Reached:     len(reached),
		Continued:   len(continued),
		DropOffRate: dropOff,
	}, nil
}

// stepUsers returns the distinct user IDs with a matching event for
// one step within the range. Events without a user ID are skipped.
func (a *Analyzer) stepUsers(ctx context.Context, step analytics.FunnelStep, start, end time.Time, orgID string) (map[string]struct{}, error) {
	events, err := a.source.GetEvents(ctx, analytics.EventFilter{
		EventType:      step.EventType,
		OrganizationID: orgID,
		Start:          start,
		End:            end,
	})
	if err != nil {
		return nil, err
	}

	users := make(map[string]struct{})
	for _, event := range events {
		if event.UserID == "" {
			continue
		}
		if !matchesProperties(event, step.Filters) {
			continue
		}
		users[event.UserID] = struct{}{}
	}
	return users, nil
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

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for user := range a {
		if _, ok := b[user]; ok {
			out[user] = struct{}{}
		}
	}
	return out
}

func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
