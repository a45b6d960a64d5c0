package activity

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/waterops/waterops/internal/platform/httpx"
	"github.com/waterops/waterops/internal/rbac"
	"github.com/waterops/waterops/internal/shared"
)

// Handler exposes the activity log.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole())
		r.Get("/", h.list)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	limit, offset := shared.ParseLimitOffset(r.URL.Query(), maxPageSize)
	f := Filter{Entity: r.URL.Query().Get("entity"), Limit: limit, Offset: offset}
	entries, page, err := h.service.List(r.Context(), actor, f)
	if err != nil {
		h.logger.Error("list activity failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Results(w, entries, &page)
}
