package orders

import (
	"github.com/waterops/waterops/internal/shared"
)

func canView(actor shared.Actor, o *Order) bool {
	switch actor.Role {
	case shared.RoleAdmin, shared.RoleStaff:
		return true
	case shared.RoleDriver:
		return isAssigned(actor, o)
	case shared.RoleCustomer:
		return o.CustomerID != nil && *o.CustomerID == actor.ID
	default:
		return false
	}
}

func isAssigned(actor shared.Actor, o *Order) bool {
	return o.DriverID != nil && *o.DriverID == actor.ID
}

// authorizeItemUpdate lets drivers edit returns of their own deliveries and
// counter staff edit walk-in orders.
func authorizeItemUpdate(actor shared.Actor, o *Order) error {
	switch {
	case actor.Role == shared.RoleDriver:
		if !isAssigned(actor, o) {
			return ErrNotAssigned
		}
		return nil
	case actor.IsStaff():
		if !o.WalkIn {
			return ErrNotWalkIn
		}
		return nil
	default:
		return ErrRoleNotAllowed
	}
}

// authorizeProcess applies the per-role status rules. Staff move orders
// through processing, out and cancelled, and may deliver walk-ins. Drivers
// deliver or cancel orders assigned to them and never reassign.
func authorizeProcess(actor shared.Actor, o *Order, req ProcessRequest) error {
	switch {
	case actor.IsStaff():
		if req.Status == nil {
			return nil
		}
		switch *req.Status {
		case StatusProcessing, StatusOut, StatusCancelled:
			return nil
		case StatusDelivered:
			if o.WalkIn {
				return nil
			}
		}
		return ErrRoleNotAllowed
	case actor.Role == shared.RoleDriver:
		if req.DriverID != nil {
			return ErrRoleNotAllowed
		}
		if req.Status != nil && *req.Status != StatusDelivered && *req.Status != StatusCancelled {
			return ErrRoleNotAllowed
		}
		if !isAssigned(actor, o) {
			return ErrNotAssigned
		}
		return nil
	default:
		return ErrRoleNotAllowed
	}
}
