package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/donut-orders/internal/domain/donut"
	"github.com/xenking/donut-orders/internal/domain/order"
)

const (
	insertOrderSQL  = `INSERT INTO orders (name, created_at, updated_at) VALUES (?, ?, ?) RETURNING id`
	insertDetailSQL = `INSERT INTO order_details (order_id, donut_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`

	findOrderSQL = `SELECT o.id, o.name, o.created_at, o.updated_at,
			d.id, d.quantity, d.donut_id, n.id, n.flavor
		FROM orders o
		LEFT JOIN order_details d ON d.order_id = o.id
		LEFT JOIN donuts n ON n.id = d.donut_id
		WHERE o.id = ?
		ORDER BY d.id`

	listOrdersSQL = `SELECT id, name, created_at, updated_at FROM orders ORDER BY created_at, id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository.
type OrderRepository struct {
	db *DB
}

// Create persists an order and its details in one transaction. Nothing is
// written unless every insert succeeds.
func (r *OrderRepository) Create(ctx context.Context, name string, items []order.LineItem) (_ *order.Order, err error) {
	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("creating order %q: begin: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := r.db.now()
	o := &order.Order{
		Name:      name,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
		Details:   make([]order.Detail, 0, len(items)),
	}
	ts := now.UnixNano()

	if err := tx.QueryRowContext(ctx, insertOrderSQL, name, ts, ts).Scan(&o.ID); err != nil {
		return nil, fmt.Errorf("creating order %q: %w", name, err)
	}
	for _, item := range items {
		d := order.Detail{
			OrderID:  o.ID,
			DonutID:  item.DonutID,
			Quantity: item.Quantity,
		}
		err := tx.QueryRowContext(ctx, insertDetailSQL, o.ID, item.DonutID, item.Quantity, ts, ts).Scan(&d.ID)
		if err != nil {
			return nil, fmt.Errorf("creating order %q: %w",
				name, errors.Wrapf(mapConstraintError(err), "insert detail for donut %d", item.DonutID))
		}
		o.Details = append(o.Details, d)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("creating order %q: commit: %w", name, err)
	}
	return o, nil
}

// FindByID loads an order with its details and their donuts in a single
// query. A detail whose donut no longer exists is returned with a nil Donut.
func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.db.db.QueryContext(ctx, findOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding order %d: %w", id, err)
	}
	defer rows.Close()

	var o *order.Order
	for rows.Next() {
		var (
			row                order.Order
			created, updated   int64
			detailID, quantity sql.NullInt64
			donutRef, donutID  sql.NullInt64
			flavor             sql.NullString
		)
		err := rows.Scan(&row.ID, &row.Name, &created, &updated,
			&detailID, &quantity, &donutRef, &donutID, &flavor)
		if err != nil {
			return nil, fmt.Errorf("scanning order %d: %w", id, err)
		}
		if o == nil {
			row.CreatedAt = toTime(created)
			row.UpdatedAt = toTime(updated)
			row.Details = []order.Detail{}
			o = &row
		}
		if !detailID.Valid {
			continue
		}

		d := order.Detail{
			ID:       detailID.Int64,
			OrderID:  o.ID,
			DonutID:  donutRef.Int64,
			Quantity: int(quantity.Int64),
		}
		if donutID.Valid {
			d.Donut = &donut.Donut{ID: donutID.Int64, Flavor: flavor.String}
		}
		o.Details = append(o.Details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding order %d: %w", id, err)
	}
	if o == nil {
		return nil, order.ErrNotFound
	}
	return o, nil
}

// List returns every order without details, oldest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db.db.QueryContext(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	orders := []order.Order{}
	for rows.Next() {
		var (
			o                order.Order
			created, updated int64
		)
		if err := rows.Scan(&o.ID, &o.Name, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		o.CreatedAt = toTime(created)
		o.UpdatedAt = toTime(updated)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}
