package catalog

import (
	"fmt"

	"github.com/waterops/waterops/internal/shared"
)

// Domain errors for the product catalog.
var (
	ErrNotFound      = fmt.Errorf("product %w", shared.ErrNotFound)
	ErrInvalidPrice  = fmt.Errorf("%w: price must be greater than zero", shared.ErrValidation)
	ErrInvalidLiters = fmt.Errorf("%w: liters cannot be negative", shared.ErrValidation)
	ErrDuplicateSKU  = fmt.Errorf("%w: sku already in use", shared.ErrConflict)
)
