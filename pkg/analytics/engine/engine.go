package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/observability"
)

// Engine executes analytics queries against a metric source. It holds
// no mutable state between calls and is safe for concurrent use.
type Engine struct {
	source   analytics.MetricSource
	notifier analytics.Notifier
	logger   *observability.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a query engine.
func New(source analytics.MetricSource, notifier analytics.Notifier, logger *observability.Logger) *Engine {
	if notifier == nil {
		notifier = analytics.NopNotifier()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Engine{
		source:   source,
		notifier: notifier,
		logger:   logger,
		tracer:   observability.Tracer("pulse/engine"),
		now:      time.Now,
	}
}

// Execute runs the query and returns aggregated rows. The result's
// CacheHit metadata is always false; caching is the caller's concern.
func (e *Engine) Execute(ctx context.Context, query analytics.AnalyticsQuery) (*analytics.QueryResult, error) {
	started := time.Now()

	ctx, span := e.tracer.Start(ctx, "engine.Execute",
		trace.WithAttributes(
			attribute.Int("query.metrics", len(query.Metrics)),
			attribute.Int("query.filters", len(query.Filters)),
			attribute.String("query.granularity", string(query.Granularity)),
		),
	)
	defer span.End()

	preds, err := compileFilters(query.Filters)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.notifyFailed(query, err)
		return nil, err
	}

	// Relative ranges resolve against "now" at execution time.
	rangeStart, rangeEnd := query.TimeRange.Resolve(e.now())

	// One fetch per metric, concurrently. Slots keep metric order so
	// the concatenated output is deterministic.
	perMetric := make([][]analytics.Row, len(query.Metrics))
	g, gctx := errgroup.WithContext(ctx)
	for i, metric := range query.Metrics {
		i, metric := i, metric
		g.Go(func() error {
			points, err := e.source.GetTimeSeries(gctx, metric, nil)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", metric, err)
			}
			perMetric[i] = e.aggregate(metric, points, preds, rangeStart, rangeEnd, query)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.notifyFailed(query, err)
		return nil, err
	}

	var rows []analytics.Row
	for _, metricRows := range perMetric {
		rows = append(rows, metricRows...)
	}

	if len(query.Dimensions) > 0 {
		rows = groupRows(rows, query.Dimensions)
	}

	sortRows(rows, query.OrderBy)

	total := len(rows)
	rows = paginate(rows, query.Offset, query.Limit)

	elapsed := time.Since(started)
	e.notifier.Notify(analytics.Notification{
		Kind: analytics.NotifyQueryCompleted,
		At:   time.Now(),
		Fields: map[string]interface{}{
			"metrics":          query.Metrics,
			"rows":             len(rows),
			"duration_seconds": elapsed.Seconds(),
		},
	})

	return &analytics.QueryResult{
		Query: query,
		Data:  rows,
		Metadata: analytics.ResultMetadata{
			TotalRows:       total,
			ExecutionTimeMS: elapsed.Milliseconds(),
			CacheHit:        false,
		},
	}, nil
}

// aggregate filters, range-restricts, and buckets one metric's series.
func (e *Engine) aggregate(metric string, points []analytics.TimeSeriesPoint, preds []predicate, rangeStart, rangeEnd time.Time, query analytics.AnalyticsQuery) []analytics.Row {
	type bucketKey struct {
		ts  int64
		sig string
	}

	buckets := make(map[bucketKey]*analytics.Row)
	order := make([]bucketKey, 0)

	for _, point := range points {
		if !matchesAll(preds, point.Dimensions) {
			continue
		}
		if point.Timestamp.Before(rangeStart) || point.Timestamp.After(rangeEnd) {
			continue
		}

		ts := point.Timestamp
		if query.Granularity != "" {
			ts = analytics.BucketStart(ts, query.Granularity)
		}

		var sig string
		var projected map[string]string
		if len(query.Dimensions) > 0 {
			projected = projectDimensions(point.Dimensions, query.Dimensions)
			sig = dimensionSignature(projected, query.Dimensions)
		}

		key := bucketKey{ts: ts.UnixNano(), sig: sig}
		row, ok := buckets[key]
		if !ok {
			row = &analytics.Row{
				Timestamp:  ts,
				Metric:     metric,
				Dimensions: projected,
			}
			buckets[key] = row
			order = append(order, key)
		}
		row.Value += point.Value
		row.Count++
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].ts != order[j].ts {
			return order[i].ts < order[j].ts
		}
		return order[i].sig < order[j].sig
	})

	rows := make([]analytics.Row, 0, len(order))
	for _, key := range order {
		rows = append(rows, *buckets[key])
	}
	return rows
}

// groupRows merges rows across metrics and buckets by their dimension
// signature, summing values. Count is the number of member rows per
// group. Groups appear in first-seen order of the input rows.
func groupRows(rows []analytics.Row, dimensions []string) []analytics.Row {
	groups := make(map[string]*analytics.Row)
	order := make([]string, 0)

	for _, row := range rows {
		projected := row.Dimensions
		if projected == nil {
			projected = projectDimensions(nil, dimensions)
		}
		sig := dimensionSignature(projected, dimensions)

		group, ok := groups[sig]
		if !ok {
			group = &analytics.Row{
				Group:      sig,
				Dimensions: projected,
			}
			groups[sig] = group
			order = append(order, sig)
		}
		group.Value += row.Value
		group.Count++
	}

	out := make([]analytics.Row, 0, len(order))
	for _, sig := range order {
		out = append(out, *groups[sig])
	}
	return out
}

// projectDimensions keeps only the requested dimensions, substituting
// the literal "unknown" for missing values.
func projectDimensions(dims map[string]string, requested []string) map[string]string {
	projected := make(map[string]string, len(requested))
	for _, name := range requested {
		value := dims[name]
		if value == "" {
			value = "unknown"
		}
		projected[name] = value
	}
	return projected
}

// dimensionSignature concatenates "dim:value" pairs in requested order.
func dimensionSignature(projected map[string]string, requested []string) string {
	parts := make([]string, 0, len(requested))
	for _, name := range requested {
		parts = append(parts, name+":"+projected[name])
	}
	return strings.Join(parts, "|")
}

// sortRows applies the lexicographic multi-key stable sort. Ties on a
// key fall through to the next key; each key respects its direction.
func sortRows(rows []analytics.Row, orderBy []analytics.OrderBy) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range orderBy {
			c := compareField(rows[i], rows[j], key.Field)
			if c == 0 {
				continue
			}
			if key.Direction == analytics.SortDesc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareField(a, b analytics.Row, field string) int {
	switch field {
	case "timestamp":
		switch {
		case a.Timestamp.Before(b.Timestamp):
			return -1
		case a.Timestamp.After(b.Timestamp):
			return 1
		}
		return 0
	case "metric":
		return strings.Compare(a.Metric, b.Metric)
	case "value":
		switch {
		case a.Value < b.Value:
			return -1
		case a.Value > b.Value:
			return 1
		}
		return 0
	case "count":
		return a.Count - b.Count
	case "group":
		return strings.Compare(a.Group, b.Group)
	default:
		// Any other field names a dimension.
		return strings.Compare(a.Dimensions[field], b.Dimensions[field])
	}
}

func paginate(rows []analytics.Row, offset, limit int) []analytics.Row {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []analytics.Row{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func (e *Engine) notifyFailed(query analytics.AnalyticsQuery, err error) {
	e.logger.WithError(err).WithField("metrics", query.Metrics).Error("query execution failed")
	e.notifier.Notify(analytics.Notification{
		Kind: analytics.NotifyQueryFailed,
		At:   time.Now(),
		Fields: map[string]interface{}{
			"metrics": query.Metrics,
			"error":   err.Error(),
		},
	})
}
