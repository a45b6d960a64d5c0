package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/waterops/waterops/internal/platform/httpx"
	"github.com/waterops/waterops/internal/rbac"
	"github.com/waterops/waterops/internal/shared"
)

// Handler exposes the inventory report.
type Handler struct {
	logger *slog.Logger
	report *Report
	rbac   rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, report *Report, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, report: report, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleAdmin, shared.RoleStaff))
		r.Get("/stock", h.stock)
		r.Get("/outstanding", h.outstanding)
	})
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.report.Stock(r.Context())
	if err != nil {
		h.logger.Error("inventory stock report failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) outstanding(w http.ResponseWriter, r *http.Request) {
	rows, err := h.report.Outstanding(r.Context())
	if err != nil {
		h.logger.Error("inventory outstanding report failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}
