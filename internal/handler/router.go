package handler

import (
	"net/http"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/observability"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/port"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(routerSvc port.Router, authSvc *service.AdminAuth, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(routerSvc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		// Query routing
		r.Post("/query", queryHandler(routerSvc, logger))
		r.Post("/feedback", feedbackHandler(routerSvc, logger))

		// Reporting
		r.Get("/metrics/routing", routingMetricsHandler(routerSvc))
		r.Get("/routing/insights", insightsHandler(routerSvc))

		// Administrative (JWT-protected; disabled without ADMIN_KEY_HASH)
		if authSvc.Enabled() {
			r.Post("/admin/login", adminLoginHandler(authSvc, logger))
			r.Group(func(r chi.Router) {
				r.Use(AdminAuthMiddleware(authSvc, logger))
				r.Post("/admin/metrics/reset", metricsResetHandler(routerSvc, logger))
			})
		}
	})

	return r
}
