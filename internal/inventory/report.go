package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/waterops/waterops/internal/catalog"
	"github.com/waterops/waterops/internal/orders"
)

// Source loads the data the report is computed from.
type Source interface {
	Products(ctx context.Context) ([]catalog.Product, error)
	Orders(ctx context.Context) ([]orders.Order, error)
}

// Row is one product line of the report.
type Row struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Stock     int    `json:"stock"`
	Active    bool   `json:"active"`
	StockValues
}

// Report computes container metrics on demand.
type Report struct {
	source Source
	logger *slog.Logger
}

// NewReport creates a report over source.
func NewReport(source Source, logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.Default()
	}
	return &Report{source: source, logger: logger}
}

// Stock returns one row per product in catalog order.
func (r *Report) Stock(ctx context.Context) ([]Row, error) {
	var (
		products []catalog.Product
		all      []orders.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = r.source.Products(gctx)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		all, err = r.source.Orders(gctx)
		if err != nil {
			return fmt.Errorf("load orders: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(products))
	for i := range products {
		p := &products[i]
		rows = append(rows, Row{
			ProductID:   p.ID,
			Name:        p.Name,
			SKU:         p.SKU,
			Stock:       p.Stock,
			Active:      p.Active,
			StockValues: ComputeStockValues(p, all),
		})
	}
	return rows, nil
}

// Outstanding returns the rows with containers still to be returned.
func (r *Report) Outstanding(ctx context.Context) ([]Row, error) {
	rows, err := r.Stock(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if row.ToBeReturned > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

// ProductLister lists the catalog.
type ProductLister interface {
	List(ctx context.Context) ([]catalog.Product, error)
}

// OrderLister lists stored orders.
type OrderLister interface {
	List(ctx context.Context, req orders.ListRequest) ([]orders.Order, int, error)
}

// LocalSource reads directly from the catalog and order stores. Only
// delivered orders are loaded since no other status contributes.
type LocalSource struct {
	Catalog ProductLister
	Store   OrderLister
}

// Products implements Source.
func (s LocalSource) Products(ctx context.Context) ([]catalog.Product, error) {
	return s.Catalog.List(ctx)
}

// Orders implements Source.
func (s LocalSource) Orders(ctx context.Context) ([]orders.Order, error) {
	delivered := orders.StatusDelivered
	list, _, err := s.Store.List(ctx, orders.ListRequest{Status: &delivered})
	return list, err
}
