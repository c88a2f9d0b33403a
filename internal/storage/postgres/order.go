package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/donut-orders/internal/domain/donut"
	"github.com/xenking/donut-orders/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (name) VALUES ($1)
		RETURNING id, name, created_at, updated_at`

	insertDetailSQL = `INSERT INTO order_details (order_id, donut_id, quantity) VALUES ($1, $2, $3)
		RETURNING id`

	// One row per detail, or a single row with NULL detail columns for an
	// order without details.
	findOrderSQL = `SELECT o.id, o.name, o.created_at, o.updated_at,
			d.id, d.quantity, d.donut_id, n.id, n.flavor
		FROM orders o
		LEFT JOIN order_details d ON d.order_id = o.id
		LEFT JOIN donuts n ON n.id = d.donut_id
		WHERE o.id = $1
		ORDER BY d.id`

	listOrdersSQL = `SELECT id, name, created_at, updated_at FROM orders ORDER BY created_at, id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists an order and its details in one transaction. Nothing is
// written unless every insert succeeds.
func (r *OrderRepository) Create(ctx context.Context, name string, items []order.LineItem) (*order.Order, error) {
	var o order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertOrderSQL, name).Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "insert order")
		}

		o.Details = make([]order.Detail, 0, len(items))
		for _, item := range items {
			d := order.Detail{
				OrderID:  o.ID,
				DonutID:  item.DonutID,
				Quantity: item.Quantity,
			}
			err := tx.QueryRow(ctx, insertDetailSQL, o.ID, item.DonutID, item.Quantity).Scan(&d.ID)
			if err != nil {
				return errors.Wrapf(mapConstraintError(err), "insert detail for donut %d", item.DonutID)
			}
			o.Details = append(o.Details, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating order %q: %w", name, err)
	}
	return &o, nil
}

// FindByID loads an order with its details and their donuts in a single
// query. Details are ordered by ID. A detail whose donut no longer exists is
// returned with a nil Donut.
func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, findOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding order %d: %w", id, err)
	}
	defer rows.Close()

	var o *order.Order
	for rows.Next() {
		var (
			row      order.Order
			detailID *int64
			quantity *int32
			donutRef *int64
			donutID  *int64
			flavor   *string
		)
		err := rows.Scan(&row.ID, &row.Name, &row.CreatedAt, &row.UpdatedAt,
			&detailID, &quantity, &donutRef, &donutID, &flavor)
		if err != nil {
			return nil, fmt.Errorf("scanning order %d: %w", id, err)
		}
		if o == nil {
			row.Details = []order.Detail{}
			o = &row
		}
		if detailID == nil {
			continue
		}

		d := order.Detail{
			ID:       *detailID,
			OrderID:  o.ID,
			DonutID:  *donutRef,
			Quantity: int(*quantity),
		}
		if donutID != nil {
			d.Donut = &donut.Donut{ID: *donutID, Flavor: *flavor}
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
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Order, error) {
		var o order.Order
		err := row.Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}
