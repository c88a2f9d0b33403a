// Package postgres implements the donut and order repositories on
// PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/donut-orders/db"
	"github.com/xenking/donut-orders/internal/domain/order"
)

// PostgreSQL error codes mapped to domain errors.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

// NewPool creates a pgxpool.Pool and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Reset deletes every order and donut and restarts their identities.
func Reset(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `TRUNCATE order_details, orders, donuts RESTART IDENTITY`
	if _, err := pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("resetting tables: %w", err)
	}
	return nil
}

// mapConstraintError translates integrity violations on order_details into
// domain errors. Other errors are returned unchanged.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeForeignKeyViolation:
		return errors.Wrap(order.ErrUnknownDonut, pgErr.ConstraintName)
	case codeUniqueViolation:
		return errors.Wrap(order.ErrDuplicateDonut, pgErr.ConstraintName)
	default:
		return err
	}
}
