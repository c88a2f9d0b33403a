// Package sqlite implements the donut and order repositories on an
// embedded SQLite database. It needs no external server and backs local
// runs and unit tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xenking/donut-orders/db"
	"github.com/xenking/donut-orders/internal/domain/order"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// DB is an open SQLite database with the schema applied.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path (":memory:" for a private in-memory
// database) and applies the schema.
func Open(ctx context.Context, path string) (*DB, error) {
	// Pragmas in the DSN apply to every connection the pool opens.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", path, err)
	}
	// Single writer. Also keeps an in-memory database alive for the
	// lifetime of the pool.
	sqlDB.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("enabling WAL: %w", err)
		}
	}

	if _, err := sqlDB.ExecContext(ctx, db.SQLiteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &DB{db: sqlDB, now: time.Now}, nil
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Reset deletes every order and donut and restarts their identities.
func (d *DB) Reset(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM order_details`,
		`DELETE FROM orders`,
		`DELETE FROM donuts`,
		`DELETE FROM sqlite_sequence WHERE name IN ('order_details', 'orders', 'donuts')`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("resetting tables: %w", err)
		}
	}
	return tx.Commit()
}

// Donuts returns the flavor repository.
func (d *DB) Donuts() *DonutRepository {
	return &DonutRepository{db: d}
}

// Orders returns the order repository.
func (d *DB) Orders() *OrderRepository {
	return &OrderRepository{db: d}
}

// mapConstraintError translates integrity violations on order_details into
// domain errors. Other errors are returned unchanged.
func mapConstraintError(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return errors.Wrap(order.ErrUnknownDonut, "foreign key")
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return errors.Wrap(order.ErrDuplicateDonut, "unique")
	default:
		return err
	}
}

func toTime(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}
