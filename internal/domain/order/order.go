package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/donut-orders/internal/domain/donut"
)

// Sentinel errors reported by order repositories.
var (
	// ErrNotFound is returned when no order exists with the requested id.
	ErrNotFound = errors.New("order not found")
	// ErrUnknownDonut is returned when a line item references a donut that
	// is not in the catalog.
	ErrUnknownDonut = errors.New("unknown donut")
	// ErrDuplicateDonut is returned when an order lists the same donut twice.
	ErrDuplicateDonut = errors.New("duplicate donut")
)

// Order is a named, timestamped set of donut selections. It is written once
// together with its details and never modified afterwards.
type Order struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Details   []Detail
}

// Detail is a persisted line item of an order.
//
// Donut is populated by repository reads that join the catalog. It is nil
// when the referenced donut could not be resolved.
type Detail struct {
	ID       int64
	OrderID  int64
	DonutID  int64
	Quantity int
	Donut    *donut.Donut
}

// LineItem is a requested (donut, quantity) pair of a new order.
type LineItem struct {
	DonutID  int64
	Quantity int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts the order and all of its line items atomically.
	Create(ctx context.Context, name string, items []LineItem) (*Order, error)
	// FindByID loads an order with its details and their donuts, details
	// ordered by id. Returns ErrNotFound when the order does not exist.
	FindByID(ctx context.Context, id int64) (*Order, error)
	// List returns all orders without details, oldest first.
	List(ctx context.Context) ([]Order, error)
}
