package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/crmsync/pkg/health"
	"github.com/utafrali/crmsync/pkg/middleware"
)

// NewRouter creates a chi router with all sync service routes registered.
func NewRouter(
	syncHandler *SyncHandler,
	tenantHandler *TenantHandler,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("crm-sync"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, pprofCIDRs, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/sync", func(r chi.Router) {
			r.Post("/contacts", syncHandler.TriggerContactSync)
			r.Post("/opportunities", syncHandler.TriggerOpportunitySync)
			r.Post("/all", syncHandler.TriggerFullSync)
			r.Post("/aggregate", syncHandler.TriggerAggregation)
		})

		r.Get("/jobs/{id}", syncHandler.GetJob)

		r.Post("/tenants", tenantHandler.RegisterTenant)
		r.Post("/oauth/exchange", tenantHandler.ExchangeCode)
	})

	return r
}
