// Package app holds the basket service's saga handler.
package app

import (
	"context"
	"log/slog"

	"github.com/emezadev/ordering-sagas/internal/basket"
	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/events"
)

// Handler clears the buyer's basket once an order has started. Deleting an
// already-deleted basket is a no-op, so redelivery is harmless.
type Handler struct {
	baskets basket.Repository
}

func NewHandler(baskets basket.Repository) *Handler {
	return &Handler{baskets: baskets}
}

// Register binds the handler on the dispatch table.
func (h *Handler) Register(d *eventbus.Dispatcher) {
	d.On(events.KindOrderStarted, h.handleOrderStarted)
}

func (h *Handler) handleOrderStarted(ctx context.Context, e events.Envelope) error {
	var ev events.OrderStarted
	if err := e.Decode(&ev); err != nil {
		return err
	}

	if err := h.baskets.Delete(ctx, ev.BuyerID); err != nil {
		return err
	}

	slog.InfoContext(ctx, "basket cleared", "buyer_id", ev.BuyerID, "event_id", e.ID)
	return nil
}
