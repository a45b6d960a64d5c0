package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waterops/waterops/internal/platform/db"
)

// Repository defines order persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, req ListRequest) ([]Order, int, error)
	History(ctx context.Context, orderID int64) ([]History, error)
	UserHasRole(ctx context.Context, userID int64, role string) (bool, error)

	// WithTx runs fn inside a single transaction.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations.
type TxRepository interface {
	CreateOrder(ctx context.Context, o Order) (int64, error)
	InsertItem(ctx context.Context, it Item) (int64, error)
	UpdateItemReturn(ctx context.Context, orderID, itemID int64, qtyEmptyIn int) error
	UpdateOrder(ctx context.Context, id int64, updates map[string]any) error
	InsertHistory(ctx context.Context, h History) error
	InsertCancellation(ctx context.Context, orderID int64, reason string, cancelledBy int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps fn in a read-committed transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `id, customer_id, status, driver_id, walk_in, notes, created_by, created_at, updated_at, delivered_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.DriverID, &o.WalkIn, &o.Notes,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt, &o.DeliveredAt)
	return o, err
}

// Get returns an order with its items.
func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := r.items(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	if o.Items == nil {
		o.Items = []Item{}
	}
	return &o, nil
}

// List returns orders matching req, newest first, with the total match count.
func (r *repository) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	var where []string
	var args []any
	argPos := 1

	if req.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.DriverID != nil {
		where = append(where, fmt.Sprintf("driver_id = $%d", argPos))
		args = append(args, *req.DriverID)
		argPos++
	}
	if req.CustomerID != nil {
		where = append(where, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders ` + whereClause + ` ORDER BY created_at DESC, id DESC`
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Order
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range list {
		list[i].Items = items[list[i].ID]
		if list[i].Items == nil {
			list[i].Items = []Item{}
		}
	}
	return list, total, nil
}

func (r *repository) items(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	out := make(map[int64][]Item, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, qty_full_out, qty_empty_in
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.QtyFullOut, &it.QtyEmptyIn); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// UserHasRole reports whether userID exists with role.
func (r *repository) UserHasRole(ctx context.Context, userID int64, role string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND role = $2)`, userID, role,
	).Scan(&exists)
	return exists, err
}

// History lists the status changes of an order, oldest first.
func (r *repository) History(ctx context.Context, orderID int64) ([]History, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, status, updated_by, created_at
		FROM order_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []History{}
	for rows.Next() {
		var h History
		if err := rows.Scan(&h.OrderID, &h.Status, &h.UpdatedBy, &h.Timestamp); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// CreateOrder inserts the order header.
func (t *txRepository) CreateOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (customer_id, status, driver_id, walk_in, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, o.CustomerID, o.Status, o.DriverID, o.WalkIn, o.Notes, o.CreatedBy).Scan(&id)
	return id, err
}

// InsertItem inserts an order line.
func (t *txRepository) InsertItem(ctx context.Context, it Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, qty_full_out, qty_empty_in)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, it.OrderID, it.ProductID, it.QtyFullOut, it.QtyEmptyIn).Scan(&id)
	return id, err
}

// UpdateItemReturn sets qty_empty_in of one item of orderID.
func (t *txRepository) UpdateItemReturn(ctx context.Context, orderID, itemID int64, qtyEmptyIn int) error {
	cmdTag, err := t.tx.Exec(ctx, `
		UPDATE order_items SET qty_empty_in = $1
		WHERE id = $2 AND order_id = $3
	`, qtyEmptyIn, itemID, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// UpdateOrder updates order fields.
func (t *txRepository) UpdateOrder(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	var setClauses []string
	var args []any
	argPos := 1

	for field, value := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, value)
		argPos++
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now())
	argPos++

	args = append(args, id)

	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), argPos)

	cmdTag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertHistory appends a status history row.
func (t *txRepository) InsertHistory(ctx context.Context, h History) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_history (order_id, status, updated_by, created_at)
		VALUES ($1, $2, $3, $4)
	`, h.OrderID, h.Status, h.UpdatedBy, h.Timestamp)
	return err
}

// InsertCancellation records why an order was cancelled.
func (t *txRepository) InsertCancellation(ctx context.Context, orderID int64, reason string, cancelledBy int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO cancelled_orders (order_id, reason, cancelled_by)
		VALUES ($1, $2, $3)
	`, orderID, reason, cancelledBy)
	return err
}
