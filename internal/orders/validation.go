package orders

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/waterops/waterops/internal/shared"
)

// IsWalkInNote reports whether notes mark an order as a counter sale.
func IsWalkInNote(notes string) bool {
	folded := cases.Fold().String(notes)
	return strings.Contains(folded, "walk-in") || strings.Contains(folded, "walk in")
}

// StatusLabel is the human readable form of a status.
func StatusLabel(s Status) string {
	switch s {
	case StatusOut:
		return "Out for Delivery"
	default:
		return cases.Title(language.English).String(string(s))
	}
}

// ValidateCreateRequest validates the line items of a create request.
func ValidateCreateRequest(req CreateRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	for i, it := range req.Items {
		if it.ProductID == nil || *it.ProductID <= 0 {
			return fmt.Errorf("item %d: %w", i+1, ErrNoProduct)
		}
		if it.QtyFullOut <= 0 {
			return fmt.Errorf("item %d: %w", i+1, ErrInvalidQuantity)
		}
		if it.QtyEmptyIn < 0 {
			return fmt.Errorf("item %d: %w", i+1, ErrNegativeReturn)
		}
		if it.QtyEmptyIn > it.QtyFullOut {
			return fmt.Errorf("item %d: %w (%d)", i+1, ErrReturnExceedsOut, it.QtyFullOut)
		}
	}
	return nil
}

// ValidateItemUpdates checks updates against the items of o.
func ValidateItemUpdates(o *Order, updates []ItemUpdate) error {
	if len(updates) == 0 {
		return fmt.Errorf("%w: no items provided for update", shared.ErrValidation)
	}
	for _, u := range updates {
		item, ok := o.Item(u.ID)
		if !ok {
			return fmt.Errorf("item %d: %w", u.ID, ErrItemNotFound)
		}
		if u.QtyEmptyIn < 0 {
			return fmt.Errorf("item %d: %w", u.ID, ErrNegativeReturn)
		}
		if u.QtyEmptyIn > item.QtyFullOut {
			return fmt.Errorf("item %d: %w (%d)", u.ID, ErrReturnExceedsOut, item.QtyFullOut)
		}
	}
	return nil
}
