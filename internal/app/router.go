package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fakturo/fakturo/internal/auth"
	"github.com/fakturo/fakturo/internal/clients"
	"github.com/fakturo/fakturo/internal/deliveries"
	"github.com/fakturo/fakturo/internal/invoices"
	"github.com/fakturo/fakturo/internal/observability"
	"github.com/fakturo/fakturo/internal/products"
	"github.com/fakturo/fakturo/internal/proformas"
	"github.com/fakturo/fakturo/internal/reports"
	"github.com/fakturo/fakturo/internal/shared"
	"github.com/fakturo/fakturo/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	AuthHandler       *auth.Handler
	ClientsHandler    *clients.Handler
	ProductsHandler   *products.Handler
	ProformasHandler  *proformas.Handler
	InvoicesHandler   *invoices.Handler
	DeliveriesHandler *deliveries.Handler
	ReportsHandler    *reports.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireUser)

		if params.ClientsHandler != nil {
			params.ClientsHandler.MountRoutes(r)
		}
		if params.ProductsHandler != nil {
			params.ProductsHandler.MountRoutes(r)
		}
		if params.ProformasHandler != nil {
			params.ProformasHandler.MountRoutes(r)
		}
		if params.InvoicesHandler != nil {
			params.InvoicesHandler.MountRoutes(r)
		}
		if params.DeliveriesHandler != nil {
			params.DeliveriesHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			params.AuthHandler.MountAdminRoutes(r)
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
