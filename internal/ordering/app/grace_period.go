package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/events"
	"github.com/emezadev/ordering-sagas/internal/ordering/domain"
)

// GracePeriodWorker moves orders out of Submitted once their grace period
// has elapsed, publishing the event that asks the catalog to validate stock.
// The grace period is the window in which a buyer can still change the order
// cheaply.
type GracePeriodWorker struct {
	orders      domain.Repository
	publisher   eventbus.Publisher
	gracePeriod time.Duration
	interval    time.Duration
}

func NewGracePeriodWorker(orders domain.Repository, publisher eventbus.Publisher, gracePeriod, interval time.Duration) *GracePeriodWorker {
	return &GracePeriodWorker{
		orders:      orders,
		publisher:   publisher,
		gracePeriod: gracePeriod,
		interval:    interval,
	}
}

// Run polls until ctx is cancelled. Meant to be started as a goroutine from
// main.
func (w *GracePeriodWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "grace period sweep failed", "error", err)
			}
		}
	}
}

// Sweep advances every expired Submitted order. Orders that already moved to
// AwaitingValidation but are still sitting there past the cutoff are
// announced again: a previous sweep may have saved the transition and then
// failed to publish, and without the announcement the catalog never
// validates. Downstream handlers dedup duplicates. Exported so tests can
// drive the worker without the ticker.
func (w *GracePeriodWorker) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.gracePeriod)

	stalled, err := w.orders.ListByStatusOlderThan(ctx, domain.StatusAwaitingValidation, cutoff)
	if err != nil {
		return err
	}
	for _, order := range stalled {
		if err := w.announce(ctx, order); err != nil {
			return err
		}
	}

	expired, err := w.orders.ListByStatusOlderThan(ctx, domain.StatusSubmitted, cutoff)
	if err != nil {
		return err
	}

	for _, order := range expired {
		if err := order.SetAwaitingValidationStatus(); err != nil {
			slog.WarnContext(ctx, "skipping order", "order_id", order.ID, "error", err)
			continue
		}
		if err := w.orders.Save(ctx, order); err != nil {
			return err
		}
		if err := w.announce(ctx, order); err != nil {
			return err
		}

		slog.InfoContext(ctx, "order awaiting validation", "order_id", order.ID)
	}
	return nil
}

func (w *GracePeriodWorker) announce(ctx context.Context, order *domain.Order) error {
	return w.publisher.Publish(ctx, events.OrderStatusChangedToAwaitingValidation{
		OrderID:     order.ID,
		OrderStatus: string(order.Status),
		BuyerName:   order.BuyerName,
		BuyerID:     order.BuyerID,
		StockItems:  stockItemsFor(order),
	})
}
