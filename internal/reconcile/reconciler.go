package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/returns"
	"github.com/waterops/waterops/internal/shared"
)

// Completeness compares requested returns against the ordered quantity.
type Completeness struct {
	TotalOrdered      int                   `json:"total_ordered"`
	TotalReturned     int                   `json:"total_returned"`
	Outstanding       int                   `json:"outstanding"`
	Excess            []returns.Discrepancy `json:"excess"`
	NeedsConfirmation bool                  `json:"needs_confirmation"`
}

// Message is the prompt shown to the actor when confirmation is needed.
func (c Completeness) Message() string {
	switch {
	case c.Outstanding > 0:
		return fmt.Sprintf("%d containers outstanding; proceed anyway?", c.Outstanding)
	case len(c.Excess) > 0:
		extra := 0
		for _, d := range c.Excess {
			extra += d.Excess()
		}
		return fmt.Sprintf("%d returned containers exceed the ordered quantity and will be capped; proceed anyway?", extra)
	default:
		return ""
	}
}

// CheckCompleteness is the first phase of finalization. It never sends
// anything. TotalReturned counts what the allocation will record, so
// duplicate or unknown keys in requested cannot hide outstanding containers.
func CheckCompleteness(o *orders.Order, requested returns.Allocation) Completeness {
	c := Completeness{
		Excess:        returns.Discrepancies(o, requested),
		TotalReturned: returns.Returned(returns.AllocateReturns(o, requested)),
	}
	if o != nil {
		for _, g := range orders.GroupLineItems(o.Items, nil) {
			c.TotalOrdered += g.TotalQtyFullOut
		}
	}
	if c.TotalReturned < c.TotalOrdered {
		c.Outstanding = c.TotalOrdered - c.TotalReturned
	}
	c.NeedsConfirmation = c.Outstanding > 0 || len(c.Excess) > 0
	return c
}

// Confirmation records whether the actor accepted an incomplete return.
type Confirmation bool

const (
	Unconfirmed Confirmation = false
	Confirmed   Confirmation = true
)

// Result is the outcome of a committed finalization.
type Result struct {
	Order        *orders.Order       `json:"order"`
	Updates      []orders.ItemUpdate `json:"updates"`
	Completeness Completeness        `json:"completeness"`
}

// Reconciler commits container returns and the delivered transition.
type Reconciler struct {
	gateway  Gateway
	logger   *slog.Logger
	observer Observer
}

// Observer is told the outcome of every commit attempt.
type Observer interface {
	ObserveReconciliation(outcome string)
}

// Commit outcomes reported to the Observer.
const (
	OutcomeComplete            = "complete"
	OutcomeConfirmed           = "confirmed"
	OutcomePendingConfirmation = "pending_confirmation"
	OutcomeFailed              = "failed"
)

// NewReconciler creates a reconciler over gateway.
func NewReconciler(gateway Gateway, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{gateway: gateway, logger: logger}
}

// SetObserver attaches an outcome observer.
func (r *Reconciler) SetObserver(o Observer) { r.observer = o }

func (r *Reconciler) observe(outcome string) {
	if r.observer != nil {
		r.observer.ObserveReconciliation(outcome)
	}
}

// Commit is the second phase of finalization. Incomplete returns without
// confirmation are refused before any request is sent. Otherwise returns are
// allocated and persisted together with the delivered transition in a single
// gateway call; a failure leaves both untouched.
func (r *Reconciler) Commit(ctx context.Context, o *orders.Order, requested returns.Allocation, confirm Confirmation) (Result, error) {
	if o == nil {
		return Result{}, fmt.Errorf("%w: order is required", shared.ErrValidation)
	}
	c := CheckCompleteness(o, requested)
	if c.NeedsConfirmation && !bool(confirm) {
		r.observe(OutcomePendingConfirmation)
		return Result{Completeness: c}, ErrConfirmationRequired
	}
	updates := returns.AllocateReturns(o, requested)
	delivered, err := r.gateway.FinalizeDelivery(ctx, o.ID, updates)
	if err != nil {
		r.logger.Warn("finalize delivery failed", slog.Int64("order_id", o.ID), slog.Any("error", err))
		r.observe(OutcomeFailed)
		return Result{Updates: updates, Completeness: c}, persistence("finalize delivery", err)
	}
	r.logger.Info("order delivered",
		slog.Int64("order_id", o.ID),
		slog.Int("returned", c.TotalReturned),
		slog.Int("outstanding", c.Outstanding))
	if c.NeedsConfirmation {
		r.observe(OutcomeConfirmed)
	} else {
		r.observe(OutcomeComplete)
	}
	return Result{Order: delivered, Updates: updates, Completeness: c}, nil
}

// FinalizeWalkInDelivery checks completeness and commits in one call.
func (r *Reconciler) FinalizeWalkInDelivery(ctx context.Context, o *orders.Order, requested returns.Allocation, confirmed bool) (Result, error) {
	return r.Commit(ctx, o, requested, Confirmation(confirmed))
}
