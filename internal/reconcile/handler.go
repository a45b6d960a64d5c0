package reconcile

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/platform/httpx"
	"github.com/waterops/waterops/internal/rbac"
	"github.com/waterops/waterops/internal/returns"
	"github.com/waterops/waterops/internal/shared"
)

// ReturnsRequest carries per-product return counts keyed by grouped line key.
type ReturnsRequest struct {
	Returns   returns.Allocation `json:"returns"`
	Confirmed bool               `json:"confirmed"`
}

// CheckResponse previews a finalization.
type CheckResponse struct {
	Completeness
	Message    string              `json:"message,omitempty"`
	Allocation []orders.ItemUpdate `json:"allocation"`
}

// Handler exposes the two-phase return capture over HTTP, mounted under an
// order route.
type Handler struct {
	logger   *slog.Logger
	service  *orders.Service
	rbac     rbac.Middleware
	observer Observer
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *orders.Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// SetObserver reports commit outcomes to o.
func (h *Handler) SetObserver(o Observer) { h.observer = o }

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(shared.RoleAdmin, shared.RoleStaff, shared.RoleDriver))
		r.Post("/check", h.check)
		r.Post("/commit", h.commit)
	})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	order, req, ok := h.load(w, r)
	if !ok {
		return
	}
	c := CheckCompleteness(order, req.Returns)
	httpx.JSON(w, http.StatusOK, CheckResponse{
		Completeness: c,
		Message:      c.Message(),
		Allocation:   returns.AllocateReturns(order, req.Returns),
	})
}

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	order, req, ok := h.load(w, r)
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	reconciler := NewReconciler(NewLocalGateway(h.service, actor), h.logger)
	if h.observer != nil {
		reconciler.SetObserver(h.observer)
	}
	res, err := reconciler.Commit(r.Context(), order, req.Returns, Confirmation(req.Confirmed))
	if err != nil {
		if errors.Is(err, ErrConfirmationRequired) {
			httpx.JSON(w, http.StatusConflict, CheckResponse{
				Completeness: res.Completeness,
				Message:      res.Completeness.Message(),
				Allocation:   returns.AllocateReturns(order, req.Returns),
			})
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*orders.Order, ReturnsRequest, bool) {
	var req ReturnsRequest
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return nil, req, false
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return nil, req, false
	}
	actor, _ := shared.ActorFromContext(r.Context())
	order, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return nil, req, false
	}
	return order, req, true
}
