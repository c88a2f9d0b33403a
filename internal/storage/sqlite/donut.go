package sqlite

import (
	"context"
	"fmt"

	"github.com/xenking/donut-orders/internal/domain/donut"
)

var (
	_ donut.Repository = (*DonutRepository)(nil)
	_ donut.Writer     = (*DonutRepository)(nil)
)

// DonutRepository implements donut.Repository and donut.Writer.
type DonutRepository struct {
	db *DB
}

// List returns the flavor catalog ordered by ID.
func (r *DonutRepository) List(ctx context.Context) ([]donut.Donut, error) {
	rows, err := r.db.db.QueryContext(ctx, `SELECT id, flavor FROM donuts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing donuts: %w", err)
	}
	defer rows.Close()

	donuts := []donut.Donut{}
	for rows.Next() {
		var d donut.Donut
		if err := rows.Scan(&d.ID, &d.Flavor); err != nil {
			return nil, fmt.Errorf("scanning donut: %w", err)
		}
		donuts = append(donuts, d)
	}
	if err := rows.Err(); err != nil {
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

	const q = `INSERT INTO donuts (flavor, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (flavor) DO UPDATE SET updated_at = excluded.updated_at
		RETURNING id, flavor`

	now := r.db.now().UnixNano()
	var d donut.Donut
	if err := r.db.db.QueryRowContext(ctx, q, flavor, now, now).Scan(&d.ID, &d.Flavor); err != nil {
		return nil, fmt.Errorf("upserting donut %q: %w", flavor, err)
	}
	return &d, nil
}
