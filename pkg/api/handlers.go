package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/analytics/service"
	"github.com/platinummonkey/pulse/pkg/httputil"
)

// Handlers provides the analytics API endpoints
type Handlers struct {
	service *service.Service
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{service: svc}
}

// RegisterRoutes registers the analytics API routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Ingestion
	r.HandleFunc("/api/v1/events", h.trackEvent).Methods("POST")
	r.HandleFunc("/api/v1/metrics", h.recordMetric).Methods("POST")

	// Query engine
	r.HandleFunc("/api/v1/query", h.query).Methods("POST")

	// Funnel analysis
	r.HandleFunc("/api/v1/funnel", h.analyzeFunnel).Methods("POST")
	r.HandleFunc("/api/v1/funnel/path", h.conversionPath).Methods("POST")
	r.HandleFunc("/api/v1/funnel/dropoff", h.stepDropOff).Methods("POST")

	// Cohort analysis
	r.HandleFunc("/api/v1/cohort", h.analyzeCohort).Methods("POST")

	// User and organization analytics
	r.HandleFunc("/api/v1/users/{id}/analytics", h.userAnalytics).Methods("GET")
	r.HandleFunc("/api/v1/users/{id}/engagement", h.userEngagement).Methods("GET")
	r.HandleFunc("/api/v1/users/{id}/activity/compare", h.compareActivity).Methods("POST")
	r.HandleFunc("/api/v1/orgs/{id}/analytics", h.orgAnalytics).Methods("GET")

	// Anomaly detection
	r.HandleFunc("/api/v1/insights/generate", h.generateInsights).Methods("POST")
	r.HandleFunc("/api/v1/thresholds/check", h.checkThreshold).Methods("POST")

	// Cache administration
	r.HandleFunc("/api/v1/cache/stats", h.cacheStats).Methods("GET")
	r.HandleFunc("/api/v1/cache", h.invalidateCache).Methods("DELETE")
}

// trackEvent handles POST /api/v1/events
func (h *Handlers) trackEvent(w http.ResponseWriter, r *http.Request) {
	var event analytics.Event
	if !httputil.ParseJSONOrError(w, r, &event) {
		return
	}
	if event.EventType == "" {
		httputil.WriteBadRequest(w, "event_type is required")
		return
	}

	tracked, err := h.service.TrackEvent(r.Context(), event)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, tracked)
}

// recordMetric handles POST /api/v1/metrics
func (h *Handlers) recordMetric(w http.ResponseWriter, r *http.Request) {
	var req RecordMetricRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Metric == "" {
		httputil.WriteBadRequest(w, "metric is required")
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	err := h.service.RecordMetric(r.Context(), req.Metric, analytics.TimeSeriesPoint{
		Timestamp:  req.Timestamp,
		Value:      req.Value,
		Dimensions: req.Dimensions,
	})
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, map[string]string{"status": "recorded"})
}

// query handles POST /api/v1/query
func (h *Handlers) query(w http.ResponseWriter, r *http.Request) {
	var query analytics.AnalyticsQuery
	if !httputil.ParseJSONOrError(w, r, &query) {
		return
	}
	if len(query.Metrics) == 0 {
		httputil.WriteBadRequest(w, "at least one metric is required")
		return
	}

	result, err := h.service.Query(r.Context(), query)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// analyzeFunnel handles POST /api/v1/funnel
func (h *Handlers) analyzeFunnel(w http.ResponseWriter, r *http.Request) {
	var req FunnelRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Steps) == 0 {
		httputil.WriteBadRequest(w, "at least one step is required")
		return
	}

	var window time.Duration
	if req.TimeWindow != "" {
		parsed, err := time.ParseDuration(req.TimeWindow)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid time_window: "+req.TimeWindow)
			return
		}
		window = parsed
	}

	analysis, err := h.service.AnalyzeFunnel(r.Context(), req.Steps, window, req.TimeRange, req.OrgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, analysis)
}

// conversionPath handles POST /api/v1/funnel/path
func (h *Handlers) conversionPath(w http.ResponseWriter, r *http.Request) {
	var req ConversionPathRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" {
		httputil.WriteBadRequest(w, "user_id is required")
		return
	}

	path, err := h.service.GetUserConversionPath(r.Context(), req.UserID, req.Steps, req.TimeRange)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, path)
}

// stepDropOff handles POST /api/v1/funnel/dropoff
func (h *Handlers) stepDropOff(w http.ResponseWriter, r *http.Request) {
	var req StepDropOffRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	dropOff, err := h.service.AnalyzeStepDropOff(r.Context(), req.Steps, req.StepIndex, req.TimeRange)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, dropOff)
}

// analyzeCohort handles POST /api/v1/cohort
func (h *Handlers) analyzeCohort(w http.ResponseWriter, r *http.Request) {
	var req CohortRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	analysis, err := h.service.AnalyzeCohort(r.Context(), req.Definition, req.Retention, req.Periods, req.PeriodType, req.OrgID)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, analysis)
}

// userAnalytics handles GET /api/v1/users/{id}/analytics
// Query params:
//   - start, end: RFC 3339 bounds; both omitted means all time
func (h *Handlers) userAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	timeRange, ok := parseOptionalRange(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetUserAnalytics(r.Context(), userID, timeRange)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// userEngagement handles GET /api/v1/users/{id}/engagement
// Query params:
//   - start, end: RFC 3339 bounds; defaults to the last 30 days
func (h *Handlers) userEngagement(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	timeRange, ok := parseOptionalRange(w, r)
	if !ok {
		return
	}
	if timeRange == nil {
		defaultRange := analytics.RelativeRange(30, analytics.UnitDays)
		timeRange = &defaultRange
	}

	score, err := h.service.GetUserEngagementScore(r.Context(), userID, *timeRange)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, score)
}

// compareActivity handles POST /api/v1/users/{id}/activity/compare
func (h *Handlers) compareActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req ActivityComparisonRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	comparison, err := h.service.CompareUserActivity(r.Context(), userID, req.Period1, req.Period2)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, comparison)
}

// orgAnalytics handles GET /api/v1/orgs/{id}/analytics
func (h *Handlers) orgAnalytics(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	timeRange, ok := parseOptionalRange(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetOrganizationAnalytics(r.Context(), orgID, timeRange)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// generateInsights handles POST /api/v1/insights/generate
func (h *Handlers) generateInsights(w http.ResponseWriter, r *http.Request) {
	var req GenerateInsightsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Metrics) == 0 {
		httputil.WriteBadRequest(w, "at least one metric is required")
		return
	}

	insights, err := h.service.GenerateInsights(r.Context(), req.Metrics)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, insights)
}

// checkThreshold handles POST /api/v1/thresholds/check
func (h *Handlers) checkThreshold(w http.ResponseWriter, r *http.Request) {
	var req ThresholdCheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Metric == "" {
		httputil.WriteBadRequest(w, "metric is required")
		return
	}

	insight, err := h.service.DetectThresholdViolation(r.Context(), req.Metric, req.Value, req.Thresholds, req.OrgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if insight == nil {
		httputil.WriteNoContent(w)
		return
	}
	httputil.WriteSuccess(w, insight)
}

// cacheStats handles GET /api/v1/cache/stats
func (h *Handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.service.CacheStats(r.Context()))
}

// invalidateCache handles DELETE /api/v1/cache
// Query params:
//   - pattern: regexp matched against cached queries; empty clears all
func (h *Handlers) invalidateCache(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")

	removed, err := h.service.InvalidateCache(r.Context(), pattern)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, InvalidateCacheResponse{Removed: removed})
}

// parseOptionalRange reads optional start/end query parameters. Returns
// nil when neither is set.
func parseOptionalRange(w http.ResponseWriter, r *http.Request) (*analytics.TimeRange, bool) {
	start, err := httputil.ParseQueryTime(r, "start")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return nil, false
	}
	end, err := httputil.ParseQueryTime(r, "end")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return nil, false
	}
	if start.IsZero() && end.IsZero() {
		return nil, true
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	timeRange := analytics.AbsoluteRange(start, end)
	return &timeRange, true
}
