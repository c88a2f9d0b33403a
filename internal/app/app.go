package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/donut-orders/internal/domain/order"
	"github.com/xenking/donut-orders/internal/handler"
	"github.com/xenking/donut-orders/internal/seed"
	"github.com/xenking/donut-orders/internal/storage"
	"github.com/xenking/donut-orders/pkg/health"
	"github.com/xenking/donut-orders/pkg/httpmiddleware"
)

// Run opens the store, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	store, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer store.Close()
	lg.Info("Store ready", zap.String("backend", store.Backend))

	healthSvc := health.New()
	healthSvc.AddReadinessCheck(store.Backend, 5*time.Second, health.PingCheck(store))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	h, err := newHandler(ctx, lg, m, cfg, store, healthSvc)
	if err != nil {
		return err
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           h,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		defer healthSvc.Stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}

// newHandler builds the domain services and the middleware-wrapped mux
// serving the API and the health endpoints.
func newHandler(
	ctx context.Context,
	lg *zap.Logger,
	m httpmiddleware.Telemetry,
	cfg *Config,
	store *storage.Store,
	healthSvc *health.Health,
) (http.Handler, error) {
	orderService, err := order.NewService(store.Orders, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	if cfg.SeedOnStart {
		if err := seedOnStart(ctx, lg, cfg, store, orderService); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(store.Donuts, orderService).Register(mux)

	routeFinder := httpmiddleware.MakeRouteFinder(mux)
	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins:          cfg.CORS.Origins,
			Headers:          []string{"Content-Type", httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "X-RateLimit-Remaining", "Retry-After"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           24 * time.Hour,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument("donut-api", routeFinder, m),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	), nil
}

// seedOnStart upserts the default catalog. Sample orders are placed only
// into an empty store so restarts do not duplicate them.
func seedOnStart(ctx context.Context, lg *zap.Logger, cfg *Config, store *storage.Store, orders *order.Service) error {
	opts := seed.Options{}
	if cfg.SeedSamples {
		existing, err := orders.List(ctx)
		if err != nil {
			return errors.Wrap(err, "list orders")
		}
		opts.SampleOrders = len(existing) == 0
	}
	if err := seed.Run(ctx, lg.Named("seed"), store, store.Donuts, orders, opts); err != nil {
		return errors.Wrap(err, "seed")
	}
	return nil
}
