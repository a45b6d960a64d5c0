// Package activity keeps the append-only log of state changes performed by
// actors, and serves it read-only.
package activity

import (
	"fmt"
	"time"
)

// Actions recorded by the order workflow.
const (
	ActionCreateOrder       = "create_order"
	ActionCreateWalkInOrder = "create_walkin_order"
	ActionUpdateOrderStatus = "update_order_status"
	ActionAssignDriver      = "assign_driver"
	ActionUpdateOrderItems  = "update_order_items"
)

// Entry is one activity log record.
type Entry struct {
	ID        int64          `json:"id"`
	ActorID   int64          `json:"actor_id"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	Meta      map[string]any `json:"meta"`
	Timestamp time.Time      `json:"timestamp"`
}

// OrderEntity formats the entity reference of an order.
func OrderEntity(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}

// Filter narrows a listing.
type Filter struct {
	ActorID *int64
	Entity  string
	Limit   int
	Offset  int
}
