package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/pulse/pkg/analytics/service"
	"github.com/platinummonkey/pulse/pkg/httputil"
	"github.com/platinummonkey/pulse/pkg/observability"
)

const maxRequestBody = 1 << 20 // 1 MiB

// NewRouter builds the API router with the standard middleware stack.
func NewRouter(svc *service.Service, logger *observability.Logger) http.Handler {
	router := mux.NewRouter()
	NewHandlers(svc).RegisterRoutes(router)

	return httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxRequestBody),
	)(router)
}
