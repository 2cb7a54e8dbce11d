package http

import (
	"net/http"

	"github.com/atinyakov/sharedpasswords/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the diagnostics API.
//
// Routes:
//
//	GET /api/environment    → diag.Environment
//	GET /api/support        → diag.Support
//	GET /api/credentials    → diag.Credentials (token protected)
//	GET /api/audit          → audit.List (token protected)
//	GET /api/audit/summary  → audit.Summary (token protected)
//	GET /metrics            → metrics
//
// audit and metrics may be nil, in which case their routes are not mounted.
func NewRouter(
	diag *DiagnosticsHandler,
	audit *AuditHandler,
	metrics http.Handler,
	adminToken string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/environment", diag.Environment)
		r.Get("/support", diag.Support)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(adminToken))
			r.Get("/credentials", diag.Credentials)

			if audit != nil {
				r.Get("/audit", audit.List)
				r.Get("/audit/summary", audit.Summary)
			}
		})
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	return r
}
