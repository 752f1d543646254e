package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kingmouse-ai/moat/internal/audit"
	"github.com/kingmouse-ai/moat/internal/auth"
	"github.com/kingmouse-ai/moat/internal/guard"
	"github.com/kingmouse-ai/moat/internal/store"
	"github.com/kingmouse-ai/moat/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Guard       *guard.Guardrail
	AuditLog    *audit.Log
	Auth        auth.Authenticator
	Store       *store.Store // nil when Postgres is not configured
	AdminAPIKey string
	Metrics     *telemetry.Metrics
	Logger      *zap.Logger
}

// NewRouter builds the HTTP router with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogging(deps.Logger))

	// Guardrail endpoints (customer Bearer auth)
	r.Group(func(r chi.Router) {
		r.Use(deps.authMiddleware)
		r.Post("/v1/guardrails/check", deps.handleCheck)
		r.Post("/v1/guardrails/filter-output", deps.handleFilterOutput)
	})

	// Operator endpoints (x-admin-api-key)
	r.Route("/api/admin/guardrails", func(r chi.Router) {
		r.Use(deps.adminAuthMiddleware)
		r.Get("/audit-log", deps.handleAuditLog)
		r.Get("/repeat-offenders", deps.handleRepeatOffenders)
		r.Get("/customers", deps.handleListCustomers)
		r.Post("/customers", deps.handleCreateCustomer)
		r.Post("/customers/{id}/flag", deps.handleFlagCustomer)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
