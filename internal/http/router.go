// Package httpapi is the thin HTTP layer. Handlers decode requests, call
// domain services and translate coded errors to HTTP statuses; business
// logic stays out of this package.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"boreal/internal/agent"
	"boreal/internal/billing"
	caseservice "boreal/internal/casefile/service"
	"boreal/internal/configbundle"
	"boreal/internal/evaluation"
	"boreal/internal/lifecycle"
	"boreal/internal/platform/metrics"
	"boreal/internal/platform/middleware"
	"boreal/internal/preparation"
	"boreal/internal/tasks"
	"boreal/pkg/platform/audit/publisher"
	adminmw "boreal/pkg/platform/middleware/admin"
	"boreal/pkg/platform/middleware/metadata"
	request "boreal/pkg/platform/middleware/request"
	"boreal/pkg/platform/middleware/requesttime"
)

// Handler carries the wired services.
type Handler struct {
	cases      *caseservice.Service
	lifecycle  *lifecycle.Service
	evaluation *evaluation.Service
	tasks      *tasks.Service
	agent      *agent.Service
	billing    *billing.Service
	builder    *preparation.Builder
	bundle     func() *configbundle.Bundle
	domainDir  string
	adminToken string
	metrics    *metrics.Metrics
	audit      *publisher.Publisher
	logger     *slog.Logger
}

// Config bundles the Handler dependencies.
type Config struct {
	Cases      *caseservice.Service
	Lifecycle  *lifecycle.Service
	Evaluation *evaluation.Service
	Tasks      *tasks.Service
	Agent      *agent.Service
	Billing    *billing.Service
	Bundle     func() *configbundle.Bundle
	DomainDir  string
	AdminToken string
	Metrics    *metrics.Metrics
	Audit      *publisher.Publisher
	Logger     *slog.Logger
}

func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cases:      cfg.Cases,
		lifecycle:  cfg.Lifecycle,
		evaluation: cfg.Evaluation,
		tasks:      cfg.Tasks,
		agent:      cfg.Agent,
		billing:    cfg.Billing,
		builder:    preparation.NewBuilder(),
		bundle:     cfg.Bundle,
		domainDir:  cfg.DomainDir,
		adminToken: cfg.AdminToken,
		metrics:    cfg.Metrics,
		audit:      cfg.Audit,
		logger:     logger,
	}
}

// NewRouter wires all endpoints. Everything under /v1 requires a bearer
// token; health and metrics stay open.
func NewRouter(h *Handler, validator *middleware.Validator) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, h.logger))

		r.Route("/cases", func(r chi.Router) {
			r.Post("/", h.handleCreateCase)
			r.Get("/", h.handleListCases)

			r.Route("/{caseID}", func(r chi.Router) {
				r.Get("/", h.handleGetCase)
				r.Delete("/", h.handleDeleteCase)
				r.Put("/profile", h.handleUpdateProfile)
				r.Post("/transitions", h.handleTransition)
				r.Get("/events", h.handleListEvents)
				r.Get("/snapshots", h.handleListSnapshots)

				r.Post("/documents", h.handleAddDocument)
				r.Get("/documents", h.handleListDocuments)

				r.Post("/evaluation", h.handleEvaluate)
				r.Get("/checklist", h.handleChecklist)
				r.Get("/readiness", h.handleReadiness)
				r.Post("/evidence", h.handleEvidence)
				r.Post("/autofill", h.handleAutofill)
				r.Post("/package", h.handleBuildPackage)
				r.Post("/draft", h.handleAssistedDraft)

				r.Post("/tasks", h.handleCreateTask)
				r.Get("/tasks", h.handleListTasks)

				r.Post("/agent/sessions", h.handleStartAgentSession)
				r.Get("/agent/sessions", h.handleListAgentSessions)
			})
		})

		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Post("/transitions", h.handleTaskTransition)
			r.Post("/dependencies", h.handleTaskDependency)
		})

		r.Route("/agent/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/actions", h.handleRecordAgentAction)
			r.Get("/actions", h.handleListAgentActions)
			r.Post("/end", h.handleEndAgentSession)
		})

		r.Get("/intake/template", h.handleIntakeTemplate)
		r.Get("/usage", h.handleUsage)

		r.Route("/admin", func(r chi.Router) {
			// Role-gated in the handler; an admin token adds a second factor
			// for operational endpoints when configured.
			if h.adminToken != "" {
				r.Use(adminmw.RequireAdminToken(h.adminToken, h.logger))
			}
			r.Post("/config/reload", h.handleConfigReload)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
