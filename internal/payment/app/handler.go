// Package app wires the payment service's saga handler: it reacts to the
// stock-confirmed event by reconciling the capture and publishing exactly one
// payment outcome event.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/events"
	"github.com/emezadev/ordering-sagas/internal/payment"
	"github.com/emezadev/ordering-sagas/internal/pkg/cache"
)

// dedupTTL bounds the capture marker. A redelivery after this window falls
// through to the order aggregate's transition guard instead.
const dedupTTL = 24 * time.Hour

// Handler holds the payment service's dependencies, passed explicitly.
type Handler struct {
	reconciler *payment.Reconciler
	publisher  eventbus.Publisher
	cache      cache.Cache
}

func NewHandler(reconciler *payment.Reconciler, publisher eventbus.Publisher, c cache.Cache) *Handler {
	return &Handler{reconciler: reconciler, publisher: publisher, cache: c}
}

// Register binds the handler on the dispatch table.
func (h *Handler) Register(d *eventbus.Dispatcher) {
	d.On(events.KindOrderStatusChangedToStockConfirmed, h.handleStockConfirmed)
}

// handleStockConfirmed reconciles the capture for the order and publishes
// OrderPaymentSucceeded or OrderPaymentFailed. Redelivery of the same event
// is skipped via the capture marker so the gateway is not captured twice.
func (h *Handler) handleStockConfirmed(ctx context.Context, e events.Envelope) error {
	var ev events.OrderStatusChangedToStockConfirmed
	if err := e.Decode(&ev); err != nil {
		return err
	}

	slog.InfoContext(ctx, "handling stock confirmed",
		"event_id", e.ID, "order_id", ev.OrderID, "provider_order_id", ev.PaymentProviderOrderID)

	markerKey := h.cache.GenerateKey("capture", ev.OrderID.String())
	if marker, err := h.cache.Get(ctx, markerKey); err != nil {
		slog.WarnContext(ctx, "capture marker lookup failed, proceeding", "order_id", ev.OrderID, "error", err)
	} else if marker != "" {
		slog.InfoContext(ctx, "capture already processed, skipping", "order_id", ev.OrderID)
		return nil
	}

	result := h.reconciler.Capture(ctx, ev.PaymentProviderOrderID)

	var outcome events.Payload
	if result.Succeeded {
		outcome = events.OrderPaymentSucceeded{OrderID: ev.OrderID}
	} else {
		outcome = events.OrderPaymentFailed{OrderID: ev.OrderID}
	}

	if err := h.publisher.Publish(ctx, outcome); err != nil {
		return err
	}

	if err := h.cache.Set(ctx, markerKey, result.Status, dedupTTL); err != nil {
		// Worst case the next redelivery re-captures; the gateway treats a
		// second capture of the same order as a failure and the aggregate
		// guard rejects the stale outcome.
		slog.WarnContext(ctx, "capture marker write failed", "order_id", ev.OrderID, "error", err)
	}

	slog.InfoContext(ctx, "published payment outcome",
		"order_id", ev.OrderID, "succeeded", result.Succeeded, "status", result.Status)
	return nil
}
