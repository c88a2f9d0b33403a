package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/donut-orders/internal/domain/order"
	"github.com/xenking/donut-orders/internal/seed"
	"github.com/xenking/donut-orders/internal/storage"
)

func main() {
	var (
		databaseURL  string
		donutsFile   string
		reset        bool
		sampleOrders bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "store URL, postgres://... or sqlite://path (or DATABASE_URL env)")
	flag.StringVar(&donutsFile, "donuts-file", "", "JSON array of flavors, optionally .gz (default: built-in catalog)")
	flag.BoolVar(&reset, "reset", false, "delete all orders and donuts first")
	flag.BoolVar(&sampleOrders, "sample-orders", false, "place the sample orders")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := seed.Options{Reset: reset, SampleOrders: sampleOrders}
	if err := run(ctx, lg, databaseURL, donutsFile, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, donutsFile string, opts seed.Options) error {
	if donutsFile != "" {
		lg.Info("Reading flavors", zap.String("path", donutsFile))
		flavors, err := seed.LoadFlavors(donutsFile)
		if err != nil {
			return errors.Wrapf(err, "load %s", donutsFile)
		}
		opts.Flavors = flavors
	}

	store, err := storage.Open(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer store.Close()
	lg.Info("Connected", zap.String("backend", store.Backend))

	orders, err := order.NewService(store.Orders, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	return seed.Run(ctx, lg, store, store.Donuts, orders, opts)
}
