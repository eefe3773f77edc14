package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/analytics/anomaly"
	"github.com/platinummonkey/pulse/pkg/analytics/service"
	"github.com/platinummonkey/pulse/pkg/observability"
)

// memoryStore is an in-memory event and metric backend for handler tests.
type memoryStore struct {
	mu     sync.Mutex
	events []analytics.Event
	series map[string][]analytics.TimeSeriesPoint
}

func newMemoryStore() *memoryStore {
	return &memoryStore{series: make(map[string][]analytics.TimeSeriesPoint)}
}

func (m *memoryStore) InsertEvent(ctx context.Context, event analytics.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memoryStore) GetEvents(ctx context.Context, filter analytics.EventFilter) ([]analytics.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []analytics.Event
	for _, event := range m.events {
		if filter.EventType != "" && event.EventType != filter.EventType {
			continue
		}
		if filter.UserID != "" && event.UserID != filter.UserID {
			continue
		}
		if filter.OrganizationID != "" && event.OrganizationID != filter.OrganizationID {
			continue
		}
		if !filter.Start.IsZero() && event.Timestamp.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && event.Timestamp.After(filter.End) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (m *memoryStore) InsertPoint(ctx context.Context, metric string, point analytics.TimeSeriesPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[metric] = append(m.series[metric], point)
	return nil
}

func (m *memoryStore) GetTimeSeries(ctx context.Context, metric string, dimensions map[string]string) ([]analytics.TimeSeriesPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.series[metric], nil
}

func (m *memoryStore) CreateInsight(ctx context.Context, definitionID string, draft analytics.InsightDraft, organizationID string) (*analytics.Insight, error) {
	return &analytics.Insight{
		ID:           fmt.Sprintf("insight-%d", time.Now().UnixNano()),
		DefinitionID: definitionID,
		Severity:     draft.Severity,
		Title:        draft.Title,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *memoryStore) {
	t.Helper()

	store := newMemoryStore()
	svc, err := service.New(service.Deps{
		Events:     store,
		Metrics:    store,
		Insights:   store,
		EventSink:  store,
		MetricSink: store,
	})
	if err != nil {
		t.Fatalf("Failed to build service: %v", err)
	}

	logger := observability.NewLogger(observability.ErrorLevel, &strings.Builder{})
	return NewRouter(svc, logger), store
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	r := httptest.NewRequest("POST", path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestTrackEventEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/events", map[string]interface{}{
		"event_type": "page_view",
		"user_id":    "user-1",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var tracked analytics.Event
	if err := json.Unmarshal(w.Body.Bytes(), &tracked); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if tracked.ID == "" {
		t.Error("Expected a generated event ID")
	}
	if tracked.Timestamp.IsZero() {
		t.Error("Expected a generated timestamp")
	}

	store.mu.Lock()
	stored := len(store.events)
	store.mu.Unlock()
	if stored != 1 {
		t.Errorf("Expected 1 stored event, got %d", stored)
	}
}

func TestTrackEventMissingType(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/events", map[string]interface{}{
		"user_id": "user-1",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestRecordMetricEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/metrics", RecordMetricRequest{
		Metric: "api_latency_ms",
		Value:  42.5,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	store.mu.Lock()
	points := store.series["api_latency_ms"]
	store.mu.Unlock()
	if len(points) != 1 || points[0].Value != 42.5 {
		t.Errorf("Expected one stored point, got %+v", points)
	}
	if len(points) == 1 && points[0].Timestamp.IsZero() {
		t.Error("Expected timestamp to be defaulted")
	}
}

func TestQueryEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store.series["requests_total"] = []analytics.TimeSeriesPoint{
		{Timestamp: base, Value: 10},
		{Timestamp: base.Add(30 * time.Minute), Value: 20},
		{Timestamp: base.Add(2 * time.Hour), Value: 5},
	}

	w := postJSON(t, router, "/api/v1/query", analytics.AnalyticsQuery{
		Metrics:     []string{"requests_total"},
		Granularity: analytics.GranularityHour,
		TimeRange:   analytics.AbsoluteRange(base, base.Add(3*time.Hour)),
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result analytics.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(result.Data) != 2 {
		t.Fatalf("Expected 2 hourly buckets, got %d", len(result.Data))
	}
	if result.Data[0].Value != 30 {
		t.Errorf("Expected first bucket value 30, got %v", result.Data[0].Value)
	}
}

func TestQueryEndpointRequiresMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/query", analytics.AnalyticsQuery{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestFunnelEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		store.events = append(store.events, analytics.Event{
			ID:        fmt.Sprintf("s-%d", i),
			EventType: "signup",
			UserID:    fmt.Sprintf("user-%d", i),
			Timestamp: base,
		})
	}
	for i := 0; i < 2; i++ {
		store.events = append(store.events, analytics.Event{
			ID:        fmt.Sprintf("a-%d", i),
			EventType: "activate",
			UserID:    fmt.Sprintf("user-%d", i),
			Timestamp: base.Add(time.Hour),
		})
	}

	w := postJSON(t, router, "/api/v1/funnel", FunnelRequest{
		Steps: []analytics.FunnelStep{
			{Name: "Signed up", EventType: "signup"},
			{Name: "Activated", EventType: "activate"},
		},
		TimeRange: analytics.AbsoluteRange(base.Add(-time.Hour), base.Add(2*time.Hour)),
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var analysis analytics.FunnelAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if analysis.ConversionRate != 0.5 {
		t.Errorf("Expected overall conversion 0.5, got %v", analysis.ConversionRate)
	}
}

func TestFunnelEndpointInvalidWindow(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/funnel", map[string]interface{}{
		"steps":       []map[string]string{{"name": "a", "event_type": "a"}},
		"time_window": "two hours",
		"time_range":  map[string]string{"type": "absolute"},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestStepDropOffEndpointBadIndex(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/funnel/dropoff", StepDropOffRequest{
		Steps: []analytics.FunnelStep{
			{Name: "Signed up", EventType: "signup"},
			{Name: "Activated", EventType: "activate"},
		},
		StepIndex: 1,
		TimeRange: analytics.RelativeRange(7, analytics.UnitDays),
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for last-step index, got %d", w.Code)
	}
}

func TestUserAnalyticsEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store.events = append(store.events,
		analytics.Event{ID: "1", EventType: "page_view", UserID: "user-1", SessionID: "s1", Timestamp: base},
		analytics.Event{ID: "2", EventType: "click", UserID: "user-1", SessionID: "s1", Timestamp: base.Add(time.Minute)},
	)

	r := httptest.NewRequest("GET", "/api/v1/users/user-1/analytics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result analytics.UserAnalytics
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.TotalEvents != 2 {
		t.Errorf("Expected 2 events, got %d", result.TotalEvents)
	}
	if result.SessionCount != 1 {
		t.Errorf("Expected 1 session, got %d", result.SessionCount)
	}
}

func TestUserEngagementEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	now := time.Now().UTC()
	store.events = append(store.events, analytics.Event{
		ID: "1", EventType: "page_view", UserID: "user-1", Timestamp: now.Add(-time.Hour),
	})

	r := httptest.NewRequest("GET", "/api/v1/users/user-1/engagement", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var score analytics.EngagementScore
	if err := json.Unmarshal(w.Body.Bytes(), &score); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if score.Score < 0 || score.Score > 100 {
		t.Errorf("Expected score within [0,100], got %d", score.Score)
	}
}

func TestOrgAnalyticsEndpointWithRange(t *testing.T) {
	router, store := newTestRouter(t)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store.events = append(store.events, analytics.Event{
		ID: "1", EventType: "page_view", UserID: "user-1", OrganizationID: "org-1", Timestamp: base,
	})

	r := httptest.NewRequest("GET", "/api/v1/orgs/org-1/analytics?start=2026-05-01T00:00:00Z&end=2026-05-02T00:00:00Z", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result analytics.OrganizationAnalytics
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.TotalEvents != 1 || result.ActiveUsers != 1 {
		t.Errorf("Unexpected org analytics: %+v", result)
	}
}

func TestOrgAnalyticsEndpointBadRange(t *testing.T) {
	router, _ := newTestRouter(t)

	r := httptest.NewRequest("GET", "/api/v1/orgs/org-1/analytics?start=yesterday", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestThresholdCheckEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	warning := 100.0
	w := postJSON(t, router, "/api/v1/thresholds/check", ThresholdCheckRequest{
		Metric:     "error_rate",
		Value:      50,
		Thresholds: anomaly.Thresholds{Warning: &warning},
	})
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for in-bounds value, got %d", w.Code)
	}

	w = postJSON(t, router, "/api/v1/thresholds/check", ThresholdCheckRequest{
		Metric:     "error_rate",
		Value:      150,
		Thresholds: anomaly.Thresholds{Warning: &warning},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for violation, got %d", w.Code)
	}

	var insight analytics.Insight
	if err := json.Unmarshal(w.Body.Bytes(), &insight); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if insight.Severity != analytics.SeverityWarning {
		t.Errorf("Expected warning severity, got %q", insight.Severity)
	}
}

func TestCacheEndpoints(t *testing.T) {
	router, store := newTestRouter(t)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store.series["requests_total"] = []analytics.TimeSeriesPoint{{Timestamp: base, Value: 1}}

	query := analytics.AnalyticsQuery{
		Metrics:   []string{"requests_total"},
		TimeRange: analytics.AbsoluteRange(base, base.Add(time.Hour)),
	}
	if w := postJSON(t, router, "/api/v1/query", query); w.Code != http.StatusOK {
		t.Fatalf("Query failed: %d", w.Code)
	}

	r := httptest.NewRequest("GET", "/api/v1/cache/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from cache stats, got %d", w.Code)
	}
	var stats struct {
		Size int `json:"size"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.Size != 1 {
		t.Errorf("Expected 1 cached entry, got %d", stats.Size)
	}

	r = httptest.NewRequest("DELETE", "/api/v1/cache", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from invalidate, got %d", w.Code)
	}
	var resp InvalidateCacheResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode invalidate response: %v", err)
	}
	if resp.Removed != 1 {
		t.Errorf("Expected 1 removed entry, got %d", resp.Removed)
	}
}

func TestContentTypeEnforced(t *testing.T) {
	router, _ := newTestRouter(t)

	r := httptest.NewRequest("POST", "/api/v1/events", bytes.NewReader([]byte(`{"event_type":"x"}`)))
	r.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-JSON content type, got %d", w.Code)
	}
}
