package catalog

import "github.com/shopspring/decimal"

// CreateRequest is the admin payload for a new product.
type CreateRequest struct {
	Name   string          `json:"name" validate:"required,max=100"`
	SKU    string          `json:"sku" validate:"required,max=50"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock" validate:"gte=0"`
	Active *bool           `json:"active,omitempty"`
	Liters decimal.Decimal `json:"liters"`
}

// UpdateRequest carries optional admin edits.
type UpdateRequest struct {
	Name   *string          `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	SKU    *string          `json:"sku,omitempty" validate:"omitempty,min=1,max=50"`
	Price  *decimal.Decimal `json:"price,omitempty"`
	Stock  *int             `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Active *bool            `json:"active,omitempty"`
	Liters *decimal.Decimal `json:"liters,omitempty"`
}
