// Package inventory derives per-product container metrics from the order
// history. Nothing is cached; every call rescans the orders it is given.
package inventory

import (
	"github.com/waterops/waterops/internal/catalog"
	"github.com/waterops/waterops/internal/orders"
)

// StockValues are the container counts of one product across delivered orders.
type StockValues struct {
	Delivered    int `json:"delivered"`
	Returned     int `json:"returned"`
	ToBeReturned int `json:"to_be_returned"`
}

// ComputeStockValues sums the items of product over delivered orders only.
// Orders without items contribute nothing.
func ComputeStockValues(product *catalog.Product, all []orders.Order) StockValues {
	var v StockValues
	if product == nil {
		return v
	}
	for _, o := range all {
		if o.Status != orders.StatusDelivered {
			continue
		}
		for _, it := range o.Items {
			if it.ProductID == nil || *it.ProductID != product.ID {
				continue
			}
			v.Delivered += it.QtyFullOut
			v.Returned += it.QtyEmptyIn
		}
	}
	v.ToBeReturned = v.Delivered - v.Returned
	return v
}
