package orders

import (
	"fmt"

	"github.com/waterops/waterops/internal/shared"
)

// Domain errors for orders.
var (
	ErrNotFound         = fmt.Errorf("order %w", shared.ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("%w: item not found in this order", shared.ErrValidation)
	ErrDriverNotFound   = fmt.Errorf("driver %w", shared.ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("%w: invalid customer specified", shared.ErrValidation)

	ErrTerminal          = fmt.Errorf("%w: order is already in a final state", shared.ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", shared.ErrValidation)
	ErrInvalidStatus     = fmt.Errorf("%w: invalid status", shared.ErrValidation)
	ErrDriverRequired    = fmt.Errorf("%w: a driver must be assigned before the order goes out", shared.ErrValidation)

	ErrEmptyItems       = fmt.Errorf("%w: at least one item is required", shared.ErrValidation)
	ErrNoProduct        = fmt.Errorf("%w: product is required", shared.ErrValidation)
	ErrUnknownProduct   = fmt.Errorf("%w: product does not exist", shared.ErrValidation)
	ErrInactiveProduct  = fmt.Errorf("%w: product is not active", shared.ErrValidation)
	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be greater than zero", shared.ErrValidation)
	ErrNegativeReturn   = fmt.Errorf("%w: qty_empty_in cannot be negative", shared.ErrValidation)
	ErrReturnExceedsOut = fmt.Errorf("%w: qty_empty_in cannot be greater than qty_full_out", shared.ErrValidation)

	ErrRoleNotAllowed   = fmt.Errorf("%w: not allowed for your role", shared.ErrForbidden)
	ErrNotAssigned      = fmt.Errorf("%w: you are not assigned to this delivery", shared.ErrForbidden)
	ErrNotWalkIn        = fmt.Errorf("%w: only drivers can update items of non walk-in orders", shared.ErrForbidden)
	ErrDuplicateRequest = fmt.Errorf("%w: request with this idempotency key is still being processed", shared.ErrConflict)
)
