package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/donut-orders/internal/domain/order"
	"github.com/xenking/donut-orders/internal/handler"
	"github.com/xenking/donut-orders/internal/storage/sqlite"
)

func newTestClient(t *testing.T) (*Client, []int64) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var ids []int64
	for _, flavor := range []string{"Boston Cream", "Chocolate Sprinkles"} {
		d, err := db.Donuts().Upsert(ctx, flavor)
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}

	svc, err := order.NewService(db.Orders(), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	mux := http.NewServeMux()
	handler.New(db.Donuts(), svc).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, ids
}

func TestClient_RoundTrip(t *testing.T) {
	c, ids := newTestClient(t)
	ctx := context.Background()

	donuts, err := c.ListDonuts(ctx)
	require.NoError(t, err)
	require.Len(t, donuts, 2)
	assert.Equal(t, "Boston Cream", donuts[0].Flavor)

	created, err := c.PlaceOrder(ctx, order.PlaceOrderRequest{
		Name: "Hanson",
		Items: []order.LineItem{
			{DonutID: ids[0], Quantity: 3},
			{DonutID: ids[1], Quantity: 6},
		},
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Hanson", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := c.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, 9, got.Total)
	require.Len(t, got.Details, 2)
	assert.Equal(t, "Chocolate Sprinkles", got.Details[1].Donut.Flavor)
	assert.Equal(t, 6, got.Details[1].Quantity)

	list, err := c.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestClient_ValidationError(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.PlaceOrder(context.Background(), order.PlaceOrderRequest{Name: "  "})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, []string{
		"Donuts " + order.MsgNotSelected,
		"Name " + order.MsgNameBlank,
	}, apiErr.Messages())
}

func TestClient_NotFound(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.GetOrder(context.Background(), 404)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, []string{"Order not found"}, apiErr.Messages())
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.ListDonuts(context.Background())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Empty(t, apiErr.Messages())
	assert.Equal(t, "api: status 502", apiErr.Error())
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"localhost:8080", "ftp://host", "://"} {
		_, err := New(u)
		assert.Error(t, err, u)
	}
}
