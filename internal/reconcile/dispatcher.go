package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/waterops/waterops/internal/orders"
	"github.com/waterops/waterops/internal/shared"
)

// Dispatcher sends status changes, holding an out transition back until a
// driver is chosen. Pending state is local to the dispatcher.
type Dispatcher struct {
	gateway Gateway

	mu      sync.Mutex
	pending map[int64]orders.Status
}

// NewDispatcher creates a dispatcher over gateway.
func NewDispatcher(gateway Gateway) *Dispatcher {
	return &Dispatcher{gateway: gateway, pending: make(map[int64]orders.Status)}
}

// SetStatus sends status for o. Moving an order without a driver out is held
// as pending and nothing is sent; the returned order is then nil.
func (d *Dispatcher) SetStatus(ctx context.Context, o *orders.Order, status orders.Status) (*orders.Order, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: order is required", shared.ErrValidation)
	}
	if status == orders.StatusOut && !o.HasDriver() {
		d.mu.Lock()
		d.pending[o.ID] = status
		d.mu.Unlock()
		return nil, nil
	}
	d.Discard(o.ID)
	updated, err := d.gateway.Process(ctx, o.ID, orders.ProcessRequest{Status: &status})
	return updated, persistence("update status", err)
}

// SetDriver assigns driverID. A pending out transition is sent together with
// the assignment as one request.
func (d *Dispatcher) SetDriver(ctx context.Context, orderID, driverID int64) (*orders.Order, error) {
	req := orders.ProcessRequest{DriverID: &driverID}
	d.mu.Lock()
	status, held := d.pending[orderID]
	d.mu.Unlock()
	if held {
		req.Status = &status
	}
	updated, err := d.gateway.Process(ctx, orderID, req)
	if err != nil {
		return nil, persistence("assign driver", err)
	}
	if held {
		d.Discard(orderID)
	}
	return updated, nil
}

// Pending reports the held status for orderID.
func (d *Dispatcher) Pending(orderID int64) (orders.Status, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	status, ok := d.pending[orderID]
	return status, ok
}

// Discard drops any held update for orderID. Nothing is sent.
func (d *Dispatcher) Discard(orderID int64) {
	d.mu.Lock()
	delete(d.pending, orderID)
	d.mu.Unlock()
}
