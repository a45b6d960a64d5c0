package orders

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/waterops/waterops/internal/catalog"
)

// BonusThreshold is the number of ordered units that earns one free unit.
const BonusThreshold = 10

// ProductNamer resolves a product id to its display name.
type ProductNamer interface {
	ProductName(id int64) string
}

// GroupLineItems groups items by product in first-seen order. Items without a
// product are skipped and reported as data integrity warnings. The result is
// never nil.
func GroupLineItems(items []Item, names ProductNamer) []GroupedLine {
	groups := make([]GroupedLine, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if it.ProductID == nil {
			warnIntegrity("line item without product", slog.Int64("item_id", it.ID), slog.Int64("order_id", it.OrderID))
			continue
		}
		pid := *it.ProductID
		pos, ok := index[pid]
		if !ok {
			name := ""
			if names != nil {
				name = names.ProductName(pid)
			}
			groups = append(groups, GroupedLine{ProductID: pid, ProductName: name})
			pos = len(groups) - 1
			index[pid] = pos
		}
		groups[pos].TotalQtyFullOut += it.QtyFullOut
		groups[pos].MemberItemIDs = append(groups[pos].MemberItemIDs, it.ID)
	}
	return groups
}

// ComputeFreeUnits returns the bonus units granted for q ordered units.
func ComputeFreeUnits(q int) int {
	if q <= 0 {
		return 0
	}
	return q / BonusThreshold
}

// TotalFulfilled is the quantity handed over for q ordered units, bonus included.
func TotalFulfilled(q int) int {
	if q <= 0 {
		return 0
	}
	return q + ComputeFreeUnits(q)
}

// ComputeLineCost prices q units at the product's current price. Free units
// are not charged. Unknown products and non-positive quantities cost zero.
func ComputeLineCost(p *catalog.Product, q int) decimal.Decimal {
	if !p.Priced() || q <= 0 {
		return decimal.Zero
	}
	return p.Price.Mul(decimal.NewFromInt(int64(q)))
}

// OrderCost sums the line cost of every item of o against products.
func OrderCost(o *Order, products catalog.Index) decimal.Decimal {
	total := decimal.Zero
	if o == nil {
		return total
	}
	for _, it := range o.Items {
		if it.ProductID == nil {
			continue
		}
		p, ok := products.Lookup(*it.ProductID)
		if !ok {
			warnIntegrity("line item references unknown product", slog.Int64("item_id", it.ID), slog.Int64("product_id", *it.ProductID))
			continue
		}
		total = total.Add(ComputeLineCost(&p, it.QtyFullOut))
	}
	return total
}

// LineSummary is a grouped line enriched with bonus units and cost.
type LineSummary struct {
	GroupedLine
	FreeUnits      int             `json:"free_units"`
	TotalFulfilled int             `json:"total_fulfilled"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Cost           decimal.Decimal `json:"cost"`
}

// Summarize groups the order lines and prices them.
func Summarize(o *Order, products catalog.Index) []LineSummary {
	if o == nil {
		return []LineSummary{}
	}
	groups := GroupLineItems(o.Items, products)
	out := make([]LineSummary, 0, len(groups))
	for _, g := range groups {
		line := LineSummary{
			GroupedLine:    g,
			FreeUnits:      ComputeFreeUnits(g.TotalQtyFullOut),
			TotalFulfilled: TotalFulfilled(g.TotalQtyFullOut),
			UnitPrice:      decimal.Zero,
			Cost:           decimal.Zero,
		}
		if p, ok := products.Lookup(g.ProductID); ok {
			line.UnitPrice = p.Price
			line.Cost = ComputeLineCost(&p, g.TotalQtyFullOut)
		}
		out = append(out, line)
	}
	return out
}

func warnIntegrity(msg string, attrs ...any) {
	slog.Default().Warn(msg, append([]any{slog.String("kind", "data_integrity")}, attrs...)...)
}
