package seed

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/donut-orders/internal/domain/donut"
	"github.com/xenking/donut-orders/internal/domain/order"
	"github.com/xenking/donut-orders/internal/storage/sqlite"
)

func setup(t *testing.T) (*sqlite.DB, *order.Service) {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc, err := order.NewService(db.Orders(), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	return db, svc
}

func TestRun_DefaultCatalogAndSamples(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	err := Run(ctx, zaptest.NewLogger(t), db, db.Donuts(), svc, Options{SampleOrders: true})
	require.NoError(t, err)

	donuts, err := db.Donuts().List(ctx)
	require.NoError(t, err)
	flavors := make([]string, len(donuts))
	for i, d := range donuts {
		flavors[i] = d.Flavor
	}
	assert.Equal(t, []string{"Boston Cream", "Chocolate Sprinkles", "Glazed", "Jelly", "Old-Fashioned"}, flavors)

	orders, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, len(SampleOrders))

	totals := make(map[string]int)
	for _, o := range orders {
		s, err := svc.Get(ctx, o.ID)
		require.NoError(t, err)
		totals[s.Name] = s.Total
	}
	assert.Equal(t, map[string]int{"Hanson": 11, "Yusef": 5, "Juan": 3, "Yvonne": 7, "Zara": 8}, totals)
}

func TestRun_ResetIsRepeatable(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	opts := Options{Reset: true, SampleOrders: true}

	require.NoError(t, Run(ctx, zaptest.NewLogger(t), db, db.Donuts(), svc, opts))
	require.NoError(t, Run(ctx, zaptest.NewLogger(t), db, db.Donuts(), svc, opts))

	orders, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, len(SampleOrders))
}

func TestRun_CustomFlavorsSkipUnmatchedSamples(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	err := Run(ctx, zaptest.NewLogger(t), db, db.Donuts(), svc, Options{
		Flavors:      []string{"Glazed", "Jelly"},
		SampleOrders: true,
	})
	require.NoError(t, err)

	orders, err := svc.List(ctx)
	require.NoError(t, err)
	names := make([]string, len(orders))
	for i, o := range orders {
		names[i] = o.Name
	}
	assert.ElementsMatch(t, []string{"Yusef", "Yvonne"}, names)
}

func TestParseFlavors(t *testing.T) {
	got, err := ParseFlavors([]byte(` [" Glazed ", "Jelly", "Glazed"] `))
	require.NoError(t, err)
	assert.Equal(t, []string{"Glazed", "Jelly"}, got)

	_, err = ParseFlavors([]byte(`["ok", ""]`))
	require.ErrorIs(t, err, donut.ErrInvalidFlavor)

	_, err = ParseFlavors([]byte(`{"flavor":"Glazed"}`))
	require.Error(t, err)
}

func TestLoadFlavors(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "donuts.json")
	require.NoError(t, os.WriteFile(plain, []byte(`["Glazed","Jelly"]`), 0o600))

	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`["Maple Bar"]`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	gz := filepath.Join(dir, "donuts.json.gz")
	require.NoError(t, os.WriteFile(gz, buf.Bytes(), 0o600))

	got, err := LoadFlavors(plain)
	require.NoError(t, err)
	assert.Equal(t, []string{"Glazed", "Jelly"}, got)

	got, err = LoadFlavors(gz)
	require.NoError(t, err)
	assert.Equal(t, []string{"Maple Bar"}, got)

	_, err = LoadFlavors(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
