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

	"github.com/emezadev/ordering-sagas/internal/basket"
	"github.com/emezadev/ordering-sagas/internal/basket/app"
	"github.com/emezadev/ordering-sagas/internal/config"
	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/pkg/cache"
	"github.com/emezadev/ordering-sagas/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, "basket-service")
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

	bus := eventbus.NewRedisBus(redisClient, "basket")
	baskets := basket.NewRedisRepository(cache.NewRedisCache(redisClient, "basket"))

	dispatcher := eventbus.NewDispatcher()
	app.NewHandler(baskets).Register(dispatcher)

	slog.Info("basket service running")

	if err := bus.Subscribe(ctx, dispatcher); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("basket service stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("basket service stopped")
}
