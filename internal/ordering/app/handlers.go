package app

import (
	"context"
	"log/slog"

	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/events"
	"github.com/emezadev/ordering-sagas/internal/ordering/checkout"
	"github.com/emezadev/ordering-sagas/internal/ordering/domain"
)

// SagaHandlers applies the stock and payment outcome events to the order
// aggregate. Out-of-order or duplicate delivery is rejected by the
// aggregate's transition guards, which the dispatcher logs and acks. The one
// exception is a redelivery that finds the order already in the event's
// target status: the announcement is published again, so a transition that
// committed without its announcement cannot strand the order. The saga
// relies on no ordering from the bus.
type SagaHandlers struct {
	orders    domain.Repository
	publisher eventbus.Publisher
	refs      *checkout.Store
}

func NewSagaHandlers(orders domain.Repository, publisher eventbus.Publisher, refs *checkout.Store) *SagaHandlers {
	return &SagaHandlers{orders: orders, publisher: publisher, refs: refs}
}

// stockItemsFor flattens the order's per-product units for the stock events.
func stockItemsFor(order *domain.Order) []events.OrderStockItem {
	units := order.StockItems()
	items := make([]events.OrderStockItem, 0, len(units))
	for productID, n := range units {
		items = append(items, events.OrderStockItem{ProductID: productID, Units: n})
	}
	return items
}

// Register binds the handlers on the dispatch table.
func (h *SagaHandlers) Register(d *eventbus.Dispatcher) {
	d.On(events.KindOrderStockConfirmed, h.handleStockConfirmed)
	d.On(events.KindOrderStockRejected, h.handleStockRejected)
	d.On(events.KindOrderPaymentSucceeded, h.handlePaymentSucceeded)
	d.On(events.KindOrderPaymentFailed, h.handlePaymentFailed)
}

// handleStockConfirmed moves the order to StockConfirmed, attaching the
// payment provider reference recorded at checkout, and publishes the event
// that triggers the capture.
func (h *SagaHandlers) handleStockConfirmed(ctx context.Context, e events.Envelope) error {
	var ev events.OrderStockConfirmed
	if err := e.Decode(&ev); err != nil {
		return err
	}

	order, err := h.orders.Get(ctx, ev.OrderID)
	if err != nil {
		return err
	}

	ref, err := h.refs.GetRef(ctx, ev.OrderID)
	if err != nil {
		// Proceed without the reference: the reconciler turns a missing
		// reference into a failed capture, never into a stuck order.
		slog.ErrorContext(ctx, "checkout reference lookup failed",
			"order_id", ev.OrderID, "error", err)
		ref = ""
	}

	if err := order.SetStockConfirmedStatus(ref); err != nil {
		// A redelivery can land after the transition committed but before
		// the announcement went out. Announce again; the capture handler
		// dedups.
		if order.Status == domain.StatusStockConfirmed {
			return h.announceStockConfirmed(ctx, order)
		}
		return err
	}
	if err := h.orders.Save(ctx, order); err != nil {
		return err
	}

	slog.InfoContext(ctx, "order stock confirmed",
		"order_id", order.ID, "provider_order_id", order.PaymentProviderOrderID)

	return h.announceStockConfirmed(ctx, order)
}

func (h *SagaHandlers) announceStockConfirmed(ctx context.Context, order *domain.Order) error {
	return h.publisher.Publish(ctx, events.OrderStatusChangedToStockConfirmed{
		OrderID:                order.ID,
		OrderStatus:            string(order.Status),
		BuyerName:              order.BuyerName,
		BuyerID:                order.BuyerID,
		PaymentProviderOrderID: order.PaymentProviderOrderID,
	})
}

func (h *SagaHandlers) handleStockRejected(ctx context.Context, e events.Envelope) error {
	var ev events.OrderStockRejected
	if err := e.Decode(&ev); err != nil {
		return err
	}

	order, err := h.orders.Get(ctx, ev.OrderID)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(ev.RejectedItems))
	for _, rejected := range ev.RejectedItems {
		name := rejected.ProductID
		for _, it := range order.Items {
			if it.ProductID == rejected.ProductID && it.ProductName != "" {
				name = it.ProductName
				break
			}
		}
		names = append(names, name)
	}

	if err := order.SetStockRejectedStatus(names); err != nil {
		return err
	}
	if err := h.orders.Save(ctx, order); err != nil {
		return err
	}

	slog.InfoContext(ctx, "order stock rejected", "order_id", order.ID, "items", names)
	return nil
}

func (h *SagaHandlers) handlePaymentSucceeded(ctx context.Context, e events.Envelope) error {
	var ev events.OrderPaymentSucceeded
	if err := e.Decode(&ev); err != nil {
		return err
	}

	order, err := h.orders.Get(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	if err := order.SetPaidStatus(); err != nil {
		if order.Status == domain.StatusPaid {
			return h.announcePaid(ctx, order)
		}
		return err
	}
	if err := h.orders.Save(ctx, order); err != nil {
		return err
	}

	slog.InfoContext(ctx, "order paid", "order_id", order.ID)

	return h.announcePaid(ctx, order)
}

func (h *SagaHandlers) announcePaid(ctx context.Context, order *domain.Order) error {
	return h.publisher.Publish(ctx, events.OrderStatusChangedToPaid{
		OrderID:     order.ID,
		OrderStatus: string(order.Status),
		BuyerName:   order.BuyerName,
		BuyerID:     order.BuyerID,
		StockItems:  stockItemsFor(order),
	})
}

func (h *SagaHandlers) handlePaymentFailed(ctx context.Context, e events.Envelope) error {
	var ev events.OrderPaymentFailed
	if err := e.Decode(&ev); err != nil {
		return err
	}

	order, err := h.orders.Get(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	if err := order.SetPaymentFailedStatus(); err != nil {
		return err
	}
	if err := h.orders.Save(ctx, order); err != nil {
		return err
	}

	slog.WarnContext(ctx, "order payment failed", "order_id", order.ID)
	return nil
}
