package order

import (
	"context"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// MaxNameLength is the longest order name accepted, in characters.
const MaxNameLength = 20

const instrumentationName = "github.com/xenking/donut-orders/internal/domain/order"

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Name  string
	Items []LineItem
}

// Service encapsulates order placement and retrieval.
type Service struct {
	orders Repository
	tracer trace.Tracer

	created  metric.Int64Counter
	rejected metric.Int64Counter
	items    metric.Int64Histogram
}

// NewService creates an order Service backed by the given repository.
func NewService(orders Repository, tp trace.TracerProvider, mp metric.MeterProvider) (*Service, error) {
	meter := mp.Meter(instrumentationName)

	created, err := meter.Int64Counter("donut.orders.created",
		metric.WithDescription("Orders persisted"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders created counter")
	}
	rejected, err := meter.Int64Counter("donut.orders.rejected",
		metric.WithDescription("Order submissions rejected by validation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders rejected counter")
	}
	items, err := meter.Int64Histogram("donut.order.items",
		metric.WithDescription("Line items per persisted order"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "order items histogram")
	}

	return &Service{
		orders:   orders,
		tracer:   tp.Tracer(instrumentationName),
		created:  created,
		rejected: rejected,
		items:    items,
	}, nil
}

// Validate checks a submission and returns its normalized form: the name is
// trimmed and the items are copied. Every violation is reported in a single
// *ValidationError.
func Validate(req PlaceOrderRequest) (PlaceOrderRequest, error) {
	verr := &ValidationError{}

	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		verr.Add(FieldName, MsgNameBlank)
	case utf8.RuneCountInString(name) > MaxNameLength:
		verr.Add(FieldName, MsgNameTooLong)
	}

	if len(req.Items) == 0 {
		verr.Add(FieldDonuts, MsgNotSelected)
	}
	seen := make(map[int64]struct{}, len(req.Items))
	for _, item := range req.Items {
		if item.DonutID <= 0 {
			verr.Add(FieldDonuts, MsgInvalidDonut)
			continue
		}
		if item.Quantity <= 0 || item.Quantity > math.MaxInt32 {
			verr.Add(FieldDonuts, MsgInvalidQuantity)
		}
		if _, dup := seen[item.DonutID]; dup {
			verr.Add(FieldDonuts, MsgDuplicateDonut)
		}
		seen[item.DonutID] = struct{}{}
	}

	if !verr.Empty() {
		return PlaceOrderRequest{}, verr
	}
	return PlaceOrderRequest{
		Name:  name,
		Items: slices.Clone(req.Items),
	}, nil
}

// PlaceOrder validates the submission and persists the order together with
// its line items in one transaction.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer span.End()

	clean, err := Validate(req)
	if err != nil {
		s.reject(ctx, "validation")
		return nil, err
	}

	o, err := s.orders.Create(ctx, clean.Name, clean.Items)
	switch {
	case errors.Is(err, ErrUnknownDonut):
		s.reject(ctx, "unknown_donut")
		return nil, newValidationError(FieldDonuts, MsgUnknownDonut)
	case errors.Is(err, ErrDuplicateDonut):
		s.reject(ctx, "duplicate_donut")
		return nil, newValidationError(FieldDonuts, MsgDuplicateDonut)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		return nil, errors.Wrap(err, "create order")
	}

	span.SetAttributes(attribute.Int64("order.id", o.ID))
	s.created.Add(ctx, 1)
	s.items.Record(ctx, int64(len(o.Details)))

	return o, nil
}

// Get loads an order and projects it with its details and total.
func (s *Service) Get(ctx context.Context, id int64) (*DetailedSummary, error) {
	ctx, span := s.tracer.Start(ctx, "order.Get",
		trace.WithAttributes(attribute.Int64("order.id", id)),
	)
	defer span.End()

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
		}
		return nil, errors.Wrapf(err, "find order %d", id)
	}

	summary, err := SummarizeWithDetails(*o)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "summarize order %d", id)
	}
	return summary, nil
}

// List returns summaries of all orders, oldest first.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	ctx, span := s.tracer.Start(ctx, "order.List")
	defer span.End()

	orders, err := s.orders.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "list orders")
	}

	out := make([]Summary, len(orders))
	for i, o := range orders {
		out[i] = Summarize(o)
	}
	return out, nil
}

func (s *Service) reject(ctx context.Context, reason string) {
	s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
