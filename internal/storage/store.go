// Package storage opens the configured order store.
package storage

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/donut-orders/internal/domain/donut"
	"github.com/xenking/donut-orders/internal/domain/order"
	"github.com/xenking/donut-orders/internal/storage/postgres"
	"github.com/xenking/donut-orders/internal/storage/sqlite"
)

// DonutStore reads and seeds the flavor catalog.
type DonutStore interface {
	donut.Repository
	donut.Writer
}

// Store groups the repositories of one backend with its lifecycle.
type Store struct {
	Backend string
	Donuts  DonutStore
	Orders  order.Repository

	ping  func(context.Context) error
	reset func(context.Context) error
	close func()
}

// Ping verifies the backend is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.ping(ctx) }

// Reset deletes every order and donut.
func (s *Store) Reset(ctx context.Context) error { return s.reset(ctx) }

// Close releases the backend connections.
func (s *Store) Close() { s.close() }

const sqliteScheme = "sqlite://"

// Open connects to the store named by url and applies the schema. URLs of
// the form sqlite://path or sqlite://:memory: select the embedded SQLite
// store; postgres:// and postgresql:// select PostgreSQL.
func Open(ctx context.Context, url string) (*Store, error) {
	switch {
	case strings.HasPrefix(url, sqliteScheme):
		path := strings.TrimPrefix(url, sqliteScheme)
		if path == "" {
			return nil, errors.New("sqlite url has no path")
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		return &Store{
			Backend: "sqlite",
			Donuts:  db.Donuts(),
			Orders:  db.Orders(),
			ping:    db.Ping,
			reset:   db.Reset,
			close:   func() { _ = db.Close() },
		}, nil

	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		pool, err := postgres.NewPool(ctx, url)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Backend: "postgres",
			Donuts:  postgres.NewDonutRepository(pool),
			Orders:  postgres.NewOrderRepository(pool),
			ping:    pool.Ping,
			reset: func(ctx context.Context) error {
				return postgres.Reset(ctx, pool)
			},
			close: pool.Close,
		}, nil

	default:
		return nil, errors.Errorf("unsupported database url scheme: %q", redact(url))
	}
}

// redact drops everything after the scheme so credentials never reach logs.
func redact(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i+3] + "..."
	}
	return "..."
}
