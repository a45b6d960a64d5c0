// Package catalog provides read access to the product catalog and the admin
// edit path that maintains it.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable container product. Price and stock are authoritative
// on the server; the order workflow only reads them.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Active    bool            `json:"active"`
	Liters    decimal.Decimal `json:"liters"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Priced reports whether the product carries a usable price.
func (p *Product) Priced() bool {
	return p != nil && p.ID > 0 && !p.Price.IsNegative()
}

// Index is an immutable id -> product lookup built from a catalog snapshot.
type Index map[int64]Product

// NewIndex builds an Index from a product list. Later duplicates win.
func NewIndex(products []Product) Index {
	idx := make(Index, len(products))
	for _, p := range products {
		idx[p.ID] = p
	}
	return idx
}

// Lookup returns the product for id.
func (i Index) Lookup(id int64) (Product, bool) {
	p, ok := i[id]
	return p, ok
}

// ProductName returns the product name or an empty string when unknown.
func (i Index) ProductName(id int64) string {
	return i[id].Name
}
