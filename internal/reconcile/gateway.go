// Package reconcile drives the walk-in workflow: order creation, container
// return capture, and the confirmation-gated delivery finalization.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/shared"
)

// Gateway persists workflow steps. It is served in-process by the order
// service or remotely by the API client.
type Gateway interface {
	CreateOrder(ctx context.Context, req orders.CreateRequest, idempotencyKey string) (*orders.Order, error)
	Process(ctx context.Context, orderID int64, req orders.ProcessRequest) (*orders.Order, error)
	UpdateItems(ctx context.Context, orderID int64, updates []orders.ItemUpdate) (*orders.Order, error)
	// FinalizeDelivery applies updates and the delivered transition atomically.
	FinalizeDelivery(ctx context.Context, orderID int64, updates []orders.ItemUpdate) (*orders.Order, error)
}

// ErrConfirmationRequired is returned by Commit when returns are incomplete
// and the actor has not confirmed.
var ErrConfirmationRequired = fmt.Errorf("%w: containers outstanding, confirmation required", shared.ErrConflict)

// PersistenceError wraps a failed gateway call. Its message is the
// collaborator's message, unchanged.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Message returns the underlying error text for display.
func (e *PersistenceError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// LocalGateway adapts the order service for in-process use on behalf of one
// actor.
type LocalGateway struct {
	service *orders.Service
	actor   shared.Actor
}

// NewLocalGateway binds service to actor.
func NewLocalGateway(service *orders.Service, actor shared.Actor) *LocalGateway {
	return &LocalGateway{service: service, actor: actor}
}

// CreateOrder implements Gateway.
func (g *LocalGateway) CreateOrder(ctx context.Context, req orders.CreateRequest, key string) (*orders.Order, error) {
	return g.service.Create(ctx, g.actor, req, key)
}

// Process implements Gateway.
func (g *LocalGateway) Process(ctx context.Context, orderID int64, req orders.ProcessRequest) (*orders.Order, error) {
	return g.service.Process(ctx, g.actor, orderID, req)
}

// UpdateItems implements Gateway.
func (g *LocalGateway) UpdateItems(ctx context.Context, orderID int64, updates []orders.ItemUpdate) (*orders.Order, error) {
	return g.service.UpdateItems(ctx, g.actor, orderID, updates)
}

// FinalizeDelivery implements Gateway.
func (g *LocalGateway) FinalizeDelivery(ctx context.Context, orderID int64, updates []orders.ItemUpdate) (*orders.Order, error) {
	return g.service.Finalize(ctx, g.actor, orderID, orders.FinalizeRequest{Items: updates})
}
