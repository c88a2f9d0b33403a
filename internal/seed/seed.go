// Package seed fills a store with the flavor catalog and sample orders.
package seed

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/donut-orders/db"
	"github.com/xenking/donut-orders/internal/domain/donut"
	"github.com/xenking/donut-orders/internal/domain/order"
)

// SampleOrder is a demo order expressed by flavor name.
type SampleOrder struct {
	Name  string
	Items map[string]int
}

// SampleOrders are placed by Run when Options.SampleOrders is set.
var SampleOrders = []SampleOrder{
	{Name: "Hanson", Items: map[string]int{"Boston Cream": 3, "Chocolate Sprinkles": 6, "Old-Fashioned": 2}},
	{Name: "Yusef", Items: map[string]int{"Glazed": 2, "Jelly": 3}},
	{Name: "Juan", Items: map[string]int{"Old-Fashioned": 2, "Jelly": 1}},
	{Name: "Yvonne", Items: map[string]int{"Jelly": 3, "Glazed": 4}},
	{Name: "Zara", Items: map[string]int{"Boston Cream": 6, "Chocolate Sprinkles": 2}},
}

// Store is the part of the order store the seeder needs.
type Store interface {
	Reset(ctx context.Context) error
}

// Options controls Run.
type Options struct {
	// Reset deletes all orders and donuts first.
	Reset bool
	// Flavors to upsert. Empty means the embedded default catalog.
	Flavors []string
	// SampleOrders places SampleOrders after the catalog is seeded.
	SampleOrders bool
}

// Run seeds the catalog through donuts and, optionally, sample orders
// through orders. Sample orders are placed concurrently, so their creation
// order is not fixed.
func Run(ctx context.Context, lg *zap.Logger, store Store, donuts donut.Writer, orders *order.Service, opts Options) error {
	if opts.Reset {
		lg.Info("Resetting store")
		if err := store.Reset(ctx); err != nil {
			return errors.Wrap(err, "reset")
		}
	}

	flavors := opts.Flavors
	if len(flavors) == 0 {
		var err error
		if flavors, err = ParseFlavors(db.Donuts); err != nil {
			return errors.Wrap(err, "default flavors")
		}
	}

	ids := make(map[string]int64, len(flavors))
	for _, flavor := range flavors {
		d, err := donuts.Upsert(ctx, flavor)
		if err != nil {
			return errors.Wrapf(err, "upsert donut %q", flavor)
		}
		ids[d.Flavor] = d.ID
		lg.Info("Upserted donut", zap.Int64("id", d.ID), zap.String("flavor", d.Flavor))
	}

	if !opts.SampleOrders {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sample := range SampleOrders {
		req, ok := sample.request(ids)
		if !ok {
			lg.Warn("Skipping sample order, flavor missing from catalog", zap.String("name", sample.Name))
			continue
		}
		g.Go(func() error {
			o, err := orders.PlaceOrder(gctx, req)
			if err != nil {
				return errors.Wrapf(err, "place sample order %q", sample.Name)
			}
			lg.Info("Placed sample order",
				zap.Int64("id", o.ID),
				zap.String("name", o.Name),
				zap.Int("details", len(o.Details)),
			)
			return nil
		})
	}
	return g.Wait()
}

func (s SampleOrder) request(ids map[string]int64) (order.PlaceOrderRequest, bool) {
	req := order.PlaceOrderRequest{Name: s.Name}
	for flavor, qty := range s.Items {
		id, ok := ids[flavor]
		if !ok {
			return order.PlaceOrderRequest{}, false
		}
		req.Items = append(req.Items, order.LineItem{DonutID: id, Quantity: qty})
	}
	return req, true
}

// LoadFlavors reads a JSON array of flavor names from path. Files ending in
// .gz are decompressed first.
func LoadFlavors(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}
	return ParseFlavors(data)
}

// ParseFlavors decodes a JSON array of flavor names, trimming each and
// dropping duplicates.
func ParseFlavors(data []byte) ([]string, error) {
	var (
		flavors []string
		seen    = make(map[string]struct{})
	)
	d := jx.DecodeBytes(bytes.TrimSpace(data))
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if err := donut.ValidateFlavor(s); err != nil {
			return errors.Wrapf(err, "flavor %q", s)
		}
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			flavors = append(flavors, s)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode flavors")
	}
	return flavors, nil
}
