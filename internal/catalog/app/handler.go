// Package app holds the catalog service's saga handler.
package app

import (
	"context"
	"log/slog"

	"github.com/emezadev/ordering-sagas/internal/catalog"
	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/events"
)

// Handler validates stock for orders awaiting validation and publishes the
// confirmation or rejection.
type Handler struct {
	stock     *catalog.Stock
	publisher eventbus.Publisher
}

func NewHandler(stock *catalog.Stock, publisher eventbus.Publisher) *Handler {
	return &Handler{stock: stock, publisher: publisher}
}

// Register binds the handlers on the dispatch table.
func (h *Handler) Register(d *eventbus.Dispatcher) {
	d.On(events.KindOrderStatusChangedToAwaitingValidation, h.handleAwaitingValidation)
	d.On(events.KindOrderStatusChangedToCancelled, h.handleCancelled)
}

// handleCancelled returns a cancelled order's reserved units to stock.
func (h *Handler) handleCancelled(ctx context.Context, e events.Envelope) error {
	var ev events.OrderStatusChangedToCancelled
	if err := e.Decode(&ev); err != nil {
		return err
	}
	h.stock.Release(ev.OrderID.String())
	slog.InfoContext(ctx, "stock released", "order_id", ev.OrderID)
	return nil
}

func (h *Handler) handleAwaitingValidation(ctx context.Context, e events.Envelope) error {
	var ev events.OrderStatusChangedToAwaitingValidation
	if err := e.Decode(&ev); err != nil {
		return err
	}

	requested := make(map[string]int, len(ev.StockItems))
	for _, item := range ev.StockItems {
		requested[item.ProductID] += item.Units
	}

	rejected := h.stock.Reserve(ev.OrderID.String(), requested)
	if len(rejected) == 0 {
		slog.InfoContext(ctx, "stock confirmed", "order_id", ev.OrderID)
		return h.publisher.Publish(ctx, events.OrderStockConfirmed{OrderID: ev.OrderID})
	}

	rejectedItems := make([]events.OrderStockItem, 0, len(rejected))
	for _, productID := range rejected {
		rejectedItems = append(rejectedItems, events.OrderStockItem{
			ProductID: productID,
			Units:     requested[productID],
		})
	}

	slog.InfoContext(ctx, "stock rejected", "order_id", ev.OrderID, "rejected", rejected)
	return h.publisher.Publish(ctx, events.OrderStockRejected{
		OrderID:       ev.OrderID,
		RejectedItems: rejectedItems,
	})
}
