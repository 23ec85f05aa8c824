package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/allisson/go-env"
	"github.com/redis/go-redis/v9"

	"github.com/emezadev/ordering-sagas/internal/catalog"
	"github.com/emezadev/ordering-sagas/internal/catalog/app"
	"github.com/emezadev/ordering-sagas/internal/config"
	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, "catalog-service")
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

	bus := eventbus.NewRedisBus(redisClient, "catalog")
	stock := catalog.NewStock(stockSeed())

	dispatcher := eventbus.NewDispatcher()
	app.NewHandler(stock, bus).Register(dispatcher)

	slog.Info("catalog service running")

	if err := bus.Subscribe(ctx, dispatcher); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("catalog service stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog service stopped")
}

// stockSeed parses STOCK_SEED, a comma-separated product:units list.
func stockSeed() map[string]int {
	seed := env.GetString("STOCK_SEED", "prod_1:15,prod_2:10,prod_3:0")
	units := make(map[string]int)
	for _, entry := range strings.Split(seed, ",") {
		productID, raw, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			slog.Warn("invalid stock seed entry, skipping", "entry", entry)
			continue
		}
		units[productID] = n
	}
	return units
}
