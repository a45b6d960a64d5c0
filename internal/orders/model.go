// Package orders holds the order store, its status machine, and the
// aggregation rules applied to order line items.
package orders

import (
	"time"
)

// Status represents the lifecycle of an order.
type Status string

const (
	StatusProcessing Status = "processing" // Accepted, being prepared
	StatusOut        Status = "out"        // Out for delivery with a driver
	StatusDelivered  Status = "delivered"  // Handed over, terminal
	StatusCancelled  Status = "cancelled"  // Cancelled, terminal
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusProcessing, StatusOut, StatusDelivered, StatusCancelled}
}

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusProcessing, StatusOut, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

var transitions = map[Status][]Status{
	StatusProcessing: {StatusOut, StatusCancelled},
	StatusOut:        {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether from -> to is allowed. Walk-in orders are
// handed over at the counter and may skip the out leg.
func CanTransition(from, to Status, walkIn bool) bool {
	if walkIn && from == StatusProcessing && to == StatusDelivered {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Order is a customer or walk-in order with its line items.
type Order struct {
	ID          int64      `json:"id"`
	CustomerID  *int64     `json:"customer_id,omitempty"`
	Status      Status     `json:"status"`
	DriverID    *int64     `json:"driver_id,omitempty"`
	WalkIn      bool       `json:"walk_in"`
	Notes       string     `json:"notes"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	Items       []Item     `json:"items"`
}

// HasDriver reports whether a driver is assigned.
func (o *Order) HasDriver() bool {
	return o != nil && o.DriverID != nil && *o.DriverID > 0
}

// Item returns the line item with id.
func (o *Order) Item(id int64) (Item, bool) {
	if o == nil {
		return Item{}, false
	}
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Item is one order line. ProductID is nil when the referenced product is
// missing from the payload.
type Item struct {
	ID         int64  `json:"id"`
	OrderID    int64  `json:"order_id"`
	ProductID  *int64 `json:"product_id"`
	QtyFullOut int    `json:"qty_full_out"`
	QtyEmptyIn int    `json:"qty_empty_in"`
}

// ItemUpdate sets the returned-container count of one line item.
type ItemUpdate struct {
	ID         int64 `json:"id" validate:"required,gt=0"`
	QtyEmptyIn int   `json:"qty_empty_in" validate:"gte=0"`
}

// GroupedLine aggregates the items of one product within an order. It is
// recomputed on every read and never stored.
type GroupedLine struct {
	ProductID       int64   `json:"product_id"`
	ProductName     string  `json:"product_name"`
	TotalQtyFullOut int     `json:"total_qty_full_out"`
	MemberItemIDs   []int64 `json:"member_item_ids"`
}

// Key is the representative item id used to address the group.
func (g GroupedLine) Key() int64 {
	if len(g.MemberItemIDs) == 0 {
		return 0
	}
	return g.MemberItemIDs[0]
}

// History records one status change of an order.
type History struct {
	OrderID   int64     `json:"order_id"`
	Status    Status    `json:"status"`
	UpdatedBy int64     `json:"updated_by"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusChange describes a committed transition, used for notifications.
type StatusChange struct {
	OrderID    int64  `json:"order_id"`
	CustomerID *int64 `json:"customer_id,omitempty"`
	DriverID   *int64 `json:"driver_id,omitempty"`
	From       Status `json:"from"`
	To         Status `json:"to"`
	Notes      string `json:"notes,omitempty"`
}
