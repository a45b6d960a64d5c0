// Package returns distributes per-product container return counts back onto
// the raw line items of an order.
package returns

import (
	"log/slog"

	"github.com/waterops/waterops/internal/orders"
)

// Allocation maps a grouped line key (any member item id of a product group)
// to the number of containers returned for that product.
type Allocation map[int64]int

// Request is the resolved return count for one product group of an order.
type Request struct {
	Group     orders.GroupedLine
	Requested int
}

// Resolve maps a returns map onto the order's product groups, in grouped line
// order. Every group is present; a group no key addresses requests zero. Two
// keys of the same product keep the larger request, negatives count as zero
// and keys matching no item are skipped with a warning.
func Resolve(o *orders.Order, requested Allocation) []Request {
	if o == nil {
		return []Request{}
	}
	groups := orders.GroupLineItems(o.Items, nil)
	memberOf := make(map[int64]int, len(o.Items))
	out := make([]Request, len(groups))
	for gi, g := range groups {
		out[gi].Group = g
		for _, id := range g.MemberItemIDs {
			memberOf[id] = gi
		}
	}
	for key, qty := range requested {
		gi, ok := memberOf[key]
		if !ok {
			slog.Default().Warn("return allocation key matches no item",
				slog.String("kind", "data_integrity"), slog.Int64("order_id", o.ID), slog.Int64("key", key))
			continue
		}
		out[gi].Requested = max(out[gi].Requested, qty)
	}
	return out
}

// AllocateReturns spreads each product's resolved request greedily over the
// product's items in their original order, capping every item at its
// qty_full_out. Every item with a product gets an update, so items that
// receive nothing are reset to zero. The output follows the original item
// order.
func AllocateReturns(o *orders.Order, requested Allocation) []orders.ItemUpdate {
	updates := []orders.ItemUpdate{}
	if o == nil {
		return updates
	}
	left := make(map[int64]int)
	for _, r := range Resolve(o, requested) {
		left[r.Group.ProductID] = r.Requested
	}
	for _, it := range o.Items {
		if it.ProductID == nil {
			continue
		}
		give := max(min(left[*it.ProductID], it.QtyFullOut), 0)
		left[*it.ProductID] -= give
		updates = append(updates, orders.ItemUpdate{ID: it.ID, QtyEmptyIn: give})
	}
	return updates
}

// Returned sums the containers an allocation actually records.
func Returned(updates []orders.ItemUpdate) int {
	total := 0
	for _, u := range updates {
		total += u.QtyEmptyIn
	}
	return total
}

// Discrepancy is a product whose requested returns exceed what was ordered.
type Discrepancy struct {
	ProductID int64 `json:"product_id"`
	Key       int64 `json:"key"`
	Ordered   int   `json:"ordered"`
	Requested int   `json:"requested"`
}

// Excess is how many requested containers cannot be allocated.
func (d Discrepancy) Excess() int {
	return d.Requested - d.Ordered
}

// Discrepancies lists products whose requested returns exceed the ordered
// quantity, in grouped line order.
func Discrepancies(o *orders.Order, requested Allocation) []Discrepancy {
	out := []Discrepancy{}
	for _, r := range Resolve(o, requested) {
		if r.Requested <= r.Group.TotalQtyFullOut {
			continue
		}
		out = append(out, Discrepancy{
			ProductID: r.Group.ProductID,
			Key:       r.Group.Key(),
			Ordered:   r.Group.TotalQtyFullOut,
			Requested: r.Requested,
		})
	}
	return out
}
