package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emezadev/ordering-sagas/internal/config"
	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/payment"
	"github.com/emezadev/ordering-sagas/internal/payment/app"
	"github.com/emezadev/ordering-sagas/internal/payment/paypal"
	"github.com/emezadev/ordering-sagas/internal/pkg/cache"
	"github.com/emezadev/ordering-sagas/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, "payment-service")
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	bus := eventbus.NewRedisBus(redisClient, "payment")

	reconciler := payment.NewReconciler(newProvider(cfg), payment.ReconcilerOptions{
		GatewayEnabled:     cfg.PaymentGatewayEnabled,
		SimulatedSucceeded: cfg.PaymentSucceeded,
		CaptureTimeout:     cfg.PaymentCaptureTimeout,
	})

	dispatcher := eventbus.NewDispatcher()
	app.NewHandler(reconciler, bus, cache.NewRedisCache(redisClient, "payment")).Register(dispatcher)

	slog.Info("payment service running", "provider", cfg.PaymentProvider, "gateway_enabled", cfg.PaymentGatewayEnabled)

	if err := bus.Subscribe(ctx, dispatcher); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("payment service stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("payment service stopped")
}

// newProvider picks the capture provider. PayPal without credentials falls
// back to the simulated provider.
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
