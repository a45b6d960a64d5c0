package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/waterops/waterops/internal/activity"
	"github.com/waterops/waterops/internal/catalog"
	"github.com/waterops/waterops/internal/inventory"
	"github.com/waterops/waterops/internal/observability"
	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/rbac"
	"github.com/waterops/waterops/internal/reconcile"
	"github.com/waterops/waterops/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	RBACMiddleware   rbac.Middleware
	CatalogHandler   *catalog.Handler
	OrdersHandler    *orders.Handler
	ReturnsHandler   *reconcile.Handler
	ActivityHandler  *activity.Handler
	InventoryHandler *inventory.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		RBAC:    params.RBACMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.CatalogHandler != nil {
			r.Route("/products", params.CatalogHandler.MountRoutes)
		}
		if params.OrdersHandler != nil {
			r.Route("/orders", func(r chi.Router) {
				params.OrdersHandler.MountRoutes(r)
				if params.ReturnsHandler != nil {
					r.Route("/{id}/returns", params.ReturnsHandler.MountRoutes)
				}
			})
		}
		if params.ActivityHandler != nil {
			r.Route("/activity-logs", params.ActivityHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
