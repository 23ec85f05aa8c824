package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/emezadev/ordering-sagas/internal/config"
	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/idempotency"
	"github.com/emezadev/ordering-sagas/internal/ordering/app"
	"github.com/emezadev/ordering-sagas/internal/ordering/checkout"
	"github.com/emezadev/ordering-sagas/internal/ordering/httpx"
	ordersqlite "github.com/emezadev/ordering-sagas/internal/ordering/repository/sqlite"
	"github.com/emezadev/ordering-sagas/internal/payment"
	"github.com/emezadev/ordering-sagas/internal/payment/paypal"
	"github.com/emezadev/ordering-sagas/internal/pkg/cache"
	"github.com/emezadev/ordering-sagas/internal/pkg/sqlitex"
	"github.com/emezadev/ordering-sagas/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, "ordering-service")
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	db, err := sqlitex.Open(cfg.SQLitePath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	orders, err := ordersqlite.New(db)
	if err != nil {
		slog.Error("failed to initialise order repository", "error", err)
		os.Exit(1)
	}
	store, err := idempotency.NewSQLiteStore(db)
	if err != nil {
		slog.Error("failed to initialise idempotency store", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	bus := eventbus.NewRedisBus(redisClient, "ordering")
	refs := checkout.NewStore(cache.NewRedisCache(redisClient, "ordering"))

	commands := app.NewCommands(store, orders, bus, newProvider(cfg), refs, cfg.CurrencyCode)
	queries := app.NewQueries(orders)

	dispatcher := eventbus.NewDispatcher()
	app.NewSagaHandlers(orders, bus, refs).Register(dispatcher)

	worker := app.NewGracePeriodWorker(orders, bus, cfg.GracePeriod, cfg.GracePeriodInterval)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpx.NewRouter(httpx.NewHandler(commands, queries)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Subscribe(ctx, dispatcher)
	})
	g.Go(func() error {
		worker.Run(ctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("ordering service HTTP running", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("ordering service stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("ordering service stopped")
}

// newProvider picks the payment provider for checkout-order creation. PayPal
// without credentials falls back to the simulated provider.
func newProvider(cfg *config.Config) payment.Provider {
	if cfg.PaymentProvider == "paypal" {
		opts := paypal.Options{
			ClientID:     cfg.PayPalClientID,
			ClientSecret: cfg.PayPalClientSecret,
			Live:         cfg.PayPalLive,
			CurrencyCode: cfg.CurrencyCode,
		}
		if opts.IsConfigured() {
			return paypal.New(opts, nil)
		}
		slog.Warn("paypal selected but credentials missing, using simulated provider")
	}
	return payment.NewSimulatedProvider(cfg.PaymentSucceeded)
}
