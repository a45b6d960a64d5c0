package orders

// CreateRequest represents a request to create an order.
type CreateRequest struct {
	CustomerID *int64          `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	WalkIn     *bool           `json:"walk_in,omitempty"`
	Items      []CreateItemReq `json:"items"`
	Notes      string          `json:"notes" validate:"max=1000"`
}

// CreateItemReq is one line of a create request.
type CreateItemReq struct {
	ProductID  *int64 `json:"product_id"`
	QtyFullOut int    `json:"qty_full_out"`
	QtyEmptyIn int    `json:"qty_empty_in"`
}

// ItemsRequest carries container return updates.
type ItemsRequest struct {
	Items []ItemUpdate `json:"items"`
}

// ProcessRequest drives a status transition and/or driver assignment.
type ProcessRequest struct {
	Status   *Status `json:"status,omitempty"`
	DriverID *int64  `json:"driver_id,omitempty" validate:"omitempty,gt=0"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// FinalizeRequest applies return updates and delivers the order in one step.
type FinalizeRequest struct {
	Items []ItemUpdate `json:"items"`
	Notes *string      `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ListRequest represents filters for listing orders. A zero Limit lists every
// matching order.
type ListRequest struct {
	Status     *Status
	DriverID   *int64
	CustomerID *int64
	Limit      int
	Offset     int
}
