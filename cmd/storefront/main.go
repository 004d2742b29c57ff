package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-checkout/api/routes"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/checkout/submit"
	"github.com/angelmondragon/storefront-checkout/internal/storefront"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "storefront stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := openStateBackend(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range state.closers {
			err = multierr.Append(err, c.Close())
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	backend, err := storefront.NewClient(cfg.Backend.BaseURL,
		storefront.WithTimeouts(cfg.Backend.OrderTimeout, cfg.Backend.ProductTimeout, cfg.Backend.LookupTimeout),
	)
	if err != nil {
		return err
	}

	submitter := submit.New(backend,
		submit.WithLogger(logg),
		submit.WithMetrics(checkoutMetrics),
	)
	registry := checkout.NewRegistry(submitter,
		checkout.WithSessionTTL(cfg.Checkout.SessionTTL),
		checkout.WithRegistryLogger(logg),
		checkout.WithSessionGauge(checkoutMetrics),
	)

	handler := routes.NewRouter(routes.Deps{
		Config:    cfg,
		Logger:    logg,
		KV:        state.kv,
		Bus:       state.bus,
		Carts:     cart.NewFactory(state.kv, state.bus, logg, checkoutMetrics),
		Products:  backend,
		Lookups:   backend,
		Profiles:  backend,
		Checkout:  registry,
		Readiness: state.readiness,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"backend": cfg.Backend.BaseURL,
	})
	logg.Info(logCtx, "starting storefront server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return registry.Run(gctx, cfg.Checkout.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(logCtx, "shutting down storefront server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
