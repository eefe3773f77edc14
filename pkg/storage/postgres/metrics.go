package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/pulse/pkg/analytics"
)

// MetricStore reads and writes metric time series. It implements
// analytics.MetricSource and analytics.MetricSink.
type MetricStore struct {
	db *sql.DB

	// Full per-metric series, keyed by metric name. Analyzers often
	// re-read the same metric within seconds of each other.
	hot *lru.LRU[string, []analytics.TimeSeriesPoint]
}

// NewMetricStore creates a metric store over db. hotTTL bounds how
// stale a cached series may be; hotSize bounds how many metrics are
// kept hot.
func NewMetricStore(db *sql.DB, hotSize int, hotTTL time.Duration) *MetricStore {
	if hotSize <= 0 {
		hotSize = 64
	}
	if hotTTL <= 0 {
		hotTTL = 30 * time.Second
	}
	return &MetricStore{
		db:  db,
		hot: lru.NewLRU[string, []analytics.TimeSeriesPoint](hotSize, nil, hotTTL),
	}
}

// InsertPoint persists one metric observation and drops the metric's
// hot series.
func (s *MetricStore) InsertPoint(ctx context.Context, metric string, point analytics.TimeSeriesPoint) error {
	var dimensions interface{}
	if len(point.Dimensions) > 0 {
		data, err := json.Marshal(point.Dimensions)
		if err != nil {
			return fmt.Errorf("marshal dimensions: %w", err)
		}
		dimensions = data
	}

	query := `
		INSERT INTO metric_points (metric, occurred_at, value, dimensions)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, metric, point.Timestamp, point.Value, dimensions); err != nil {
		return fmt.Errorf("insert metric point: %w", err)
	}

	s.hot.Remove(metric)
	return nil
}

// GetTimeSeries returns the metric's points oldest first, optionally
// restricted to points carrying every given dimension value.
func (s *MetricStore) GetTimeSeries(ctx context.Context, metric string, dimensions map[string]string) ([]analytics.TimeSeriesPoint, error) {
	points, ok := s.hot.Get(metric)
	if !ok {
		var err error
		points, err = s.fetchSeries(ctx, metric)
		if err != nil {
			return nil, err
		}
		s.hot.Add(metric, points)
	}

	if len(dimensions) == 0 {
		return points, nil
	}

	filtered := make([]analytics.TimeSeriesPoint, 0, len(points))
	for _, point := range points {
		if matchesDimensions(point.Dimensions, dimensions) {
			filtered = append(filtered, point)
		}
	}
	return filtered, nil
}

func (s *MetricStore) fetchSeries(ctx context.Context, metric string) ([]analytics.TimeSeriesPoint, error) {
	query := `
		SELECT occurred_at, value, dimensions
		FROM metric_points
		WHERE metric = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, metric)
	if err != nil {
		return nil, fmt.Errorf("query metric %s: %w", metric, err)
	}
	defer rows.Close()

	var points []analytics.TimeSeriesPoint
	for rows.Next() {
		var point analytics.TimeSeriesPoint
		var dimensions []byte
		if err := rows.Scan(&point.Timestamp, &point.Value, &dimensions); err != nil {
			return nil, fmt.Errorf("scan metric point: %w", err)
		}
		if len(dimensions) > 0 {
			if err := json.Unmarshal(dimensions, &point.Dimensions); err != nil {
				return nil, fmt.Errorf("unmarshal dimensions: %w", err)
			}
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric points: %w", err)
	}

	return points, nil
}

func matchesDimensions(have, want map[string]string) bool {
	for key, value := range want {
		if have[key] != value {
			return false
		}
	}
	return true
}
