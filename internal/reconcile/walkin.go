package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/waterops/waterops/internal/catalog"
	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/returns"
	"github.com/waterops/waterops/internal/shared"
)

// WalkIn holds the state of one counter sale from creation to delivery. A
// created order survives failed later steps so they can be retried.
type WalkIn struct {
	gateway    Gateway
	reconciler *Reconciler
	key        string
	order      *orders.Order
}

// NewWalkIn starts a workflow. Every create attempt of the workflow carries
// the same idempotency key.
func NewWalkIn(gateway Gateway, reconciler *Reconciler) *WalkIn {
	return &WalkIn{gateway: gateway, reconciler: reconciler, key: uuid.NewString()}
}

// Order returns the created order, or nil before creation.
func (w *WalkIn) Order() *orders.Order { return w.order }

// Create posts the order once. Calling it again after success returns the
// stored order without a request.
func (w *WalkIn) Create(ctx context.Context, req orders.CreateRequest) (*orders.Order, error) {
	if w.order != nil {
		return w.order, nil
	}
	if err := orders.ValidateCreateRequest(req); err != nil {
		return nil, err
	}
	walkIn := true
	req.WalkIn = &walkIn
	created, err := w.gateway.CreateOrder(ctx, req, w.key)
	if err != nil {
		return nil, persistence("create order", err)
	}
	w.order = created
	return created, nil
}

// Lines returns the grouped, priced view used to capture returns.
func (w *WalkIn) Lines(products catalog.Index) []orders.LineSummary {
	return orders.Summarize(w.order, products)
}

// Check runs the first finalization phase against the stored order.
func (w *WalkIn) Check(requested returns.Allocation) (Completeness, error) {
	if w.order == nil {
		return Completeness{}, errNotCreated
	}
	return CheckCompleteness(w.order, requested), nil
}

// Finalize commits returns and delivery for the stored order. On failure the
// order is kept for a retry.
func (w *WalkIn) Finalize(ctx context.Context, requested returns.Allocation, confirm Confirmation) (Result, error) {
	if w.order == nil {
		return Result{}, errNotCreated
	}
	res, err := w.reconciler.Commit(ctx, w.order, requested, confirm)
	if err != nil {
		return res, err
	}
	w.order = res.Order
	return res, nil
}

var errNotCreated = fmt.Errorf("%w: walk-in order has not been created", shared.ErrValidation)
