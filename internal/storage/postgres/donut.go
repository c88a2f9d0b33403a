package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/donut-orders/internal/domain/donut"
)

const (
	listDonutsSQL = `SELECT id, flavor FROM donuts ORDER BY id`

	upsertDonutSQL = `INSERT INTO donuts (flavor) VALUES ($1)
		ON CONFLICT (flavor) DO UPDATE SET updated_at = now()
		RETURNING id, flavor`
)

var (
	_ donut.Repository = (*DonutRepository)(nil)
	_ donut.Writer     = (*DonutRepository)(nil)
)

// DonutRepository implements donut.Repository and donut.Writer backed by
// PostgreSQL.
type DonutRepository struct {
	pool *pgxpool.Pool
}

// NewDonutRepository returns a DonutRepository that uses the given pool.
func NewDonutRepository(pool *pgxpool.Pool) *DonutRepository {
	return &DonutRepository{pool: pool}
}

// List returns the flavor catalog ordered by ID.
func (r *DonutRepository) List(ctx context.Context) ([]donut.Donut, error) {
	rows, err := r.pool.Query(ctx, listDonutsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing donuts: %w", err)
	}
	donuts, err := pgx.CollectRows(rows, scanDonut)
	if err != nil {
		return nil, fmt.Errorf("listing donuts: %w", err)
	}
	return donuts, nil
}

// Upsert inserts a flavor, or returns the existing row when the flavor is
// already present.
func (r *DonutRepository) Upsert(ctx context.Context, flavor string) (*donut.Donut, error) {
	if err := donut.ValidateFlavor(flavor); err != nil {
		return nil, err
	}

	var d donut.Donut
	if err := r.pool.QueryRow(ctx, upsertDonutSQL, flavor).Scan(&d.ID, &d.Flavor); err != nil {
		return nil, fmt.Errorf("upserting donut %q: %w", flavor, err)
	}
	return &d, nil
}

func scanDonut(row pgx.CollectableRow) (donut.Donut, error) {
	var d donut.Donut
	err := row.Scan(&d.ID, &d.Flavor)
	return d, err
}
