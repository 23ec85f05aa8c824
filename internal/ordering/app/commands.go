// Package app implements the ordering service's use cases: the idempotent
// commands, the saga event handlers, the queries and the grace-period
// worker. Dependencies are passed explicitly through the constructors.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/events"
	"github.com/emezadev/ordering-sagas/internal/idempotency"
	"github.com/emezadev/ordering-sagas/internal/ordering/checkout"
	"github.com/emezadev/ordering-sagas/internal/ordering/domain"
	"github.com/emezadev/ordering-sagas/internal/payment"
)

// CreateOrderCommand carries everything needed to construct an order.
type CreateOrderCommand struct {
	BuyerID       string
	BuyerName     string
	Address       domain.Address
	PaymentMethod string
	Items         []domain.OrderItem
}

// OrderSubmission is the result of a create-order command. ApprovalURI is
// where the buyer approves the payment at the provider.
type OrderSubmission struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderSubmitted bool      `json:"order_submitted"`
	ApprovalURI    string    `json:"approval_uri"`
}

// ShipOrderCommand and CancelOrderCommand drive the two buyer-facing
// transitions.
type ShipOrderCommand struct {
	OrderID uuid.UUID
}

type CancelOrderCommand struct {
	OrderID uuid.UUID
}

// StatusResult reports the order status after a ship/cancel command.
type StatusResult struct {
	OrderID uuid.UUID          `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
}

// Commands bundles the ordering service's state-changing use cases. Every
// exported entry point is wrapped by the idempotency gate: re-submission
// with the same request id replays the first result.
type Commands struct {
	CreateOrder idempotency.IdentifiedHandlerFunc[CreateOrderCommand, OrderSubmission]
	ShipOrder   idempotency.IdentifiedHandlerFunc[ShipOrderCommand, StatusResult]
	CancelOrder idempotency.IdentifiedHandlerFunc[CancelOrderCommand, StatusResult]
}

// NewCommands wires the command handlers. provider creates the payment order
// at checkout; currency is the ISO code used for it.
func NewCommands(
	store idempotency.Store,
	orders domain.Repository,
	publisher eventbus.Publisher,
	provider payment.Provider,
	refs *checkout.Store,
	currency string,
) *Commands {
	c := &commandService{
		orders:    orders,
		publisher: publisher,
		provider:  provider,
		refs:      refs,
		currency:  currency,
	}
	return &Commands{
		CreateOrder: idempotency.WithIdempotency(store, "create_order", c.createOrder),
		ShipOrder:   idempotency.WithIdempotency(store, "ship_order", c.shipOrder),
		CancelOrder: idempotency.WithIdempotency(store, "cancel_order", c.cancelOrder),
	}
}

type commandService struct {
	orders    domain.Repository
	publisher eventbus.Publisher
	provider  payment.Provider
	refs      *checkout.Store
	currency  string
}

// createOrder validates and persists a new order, creates the payment order
// at the provider so the buyer gets an approval URI back, and publishes
// OrderStarted so the basket service clears the buyer's basket. The publish
// comes after the save: a publish failure rolls the whole command back, and
// the basket is never cleared for an order that was not recorded.
func (c *commandService) createOrder(ctx context.Context, cmd CreateOrderCommand) (OrderSubmission, error) {
	order, err := domain.NewOrder(cmd.BuyerID, cmd.BuyerName, cmd.Address, cmd.PaymentMethod, cmd.Items)
	if err != nil {
		return OrderSubmission{}, err
	}

	slog.InfoContext(ctx, "creating order",
		"order_id", order.ID, "buyer_id", order.BuyerID, "total", order.Total())

	checkoutOrder, err := c.provider.CreateOrder(ctx, order.Total(), c.currency)
	if err != nil {
		// The provider order is optional: without it the capture later
		// reconciles to failed, which the buyer can retry.
		slog.ErrorContext(ctx, "payment order creation failed, continuing without reference",
			"order_id", order.ID, "error", err)
		checkoutOrder = payment.CheckoutOrder{}
	}
	if checkoutOrder.ProviderOrderID != "" {
		if err := c.refs.SaveRef(ctx, order.ID, checkoutOrder.ProviderOrderID); err != nil {
			slog.ErrorContext(ctx, "checkout reference not saved",
				"order_id", order.ID, "error", err)
		}
	}

	if err := c.orders.Save(ctx, order); err != nil {
		return OrderSubmission{}, err
	}

	if err := c.publisher.Publish(ctx, events.OrderStarted{BuyerID: order.BuyerID}); err != nil {
		return OrderSubmission{}, fmt.Errorf("publish order started: %w", err)
	}

	return OrderSubmission{
		OrderID:        order.ID,
		OrderSubmitted: true,
		ApprovalURI:    checkoutOrder.ApprovalURI,
	}, nil
}

func (c *commandService) shipOrder(ctx context.Context, cmd ShipOrderCommand) (StatusResult, error) {
	order, err := c.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		return StatusResult{}, err
	}
	if err := order.SetShippedStatus(); err != nil {
		return StatusResult{}, err
	}
	if err := c.orders.Save(ctx, order); err != nil {
		return StatusResult{}, err
	}

	if err := c.publisher.Publish(ctx, events.OrderStatusChangedToShipped{
		OrderID:     order.ID,
		OrderStatus: string(order.Status),
		BuyerName:   order.BuyerName,
		BuyerID:     order.BuyerID,
	}); err != nil {
		slog.ErrorContext(ctx, "publish shipped announcement failed", "order_id", order.ID, "error", err)
	}
	return StatusResult{OrderID: order.ID, Status: order.Status}, nil
}

func (c *commandService) cancelOrder(ctx context.Context, cmd CancelOrderCommand) (StatusResult, error) {
	order, err := c.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		return StatusResult{}, err
	}
	if err := order.SetCancelledStatus(); err != nil {
		return StatusResult{}, err
	}
	if err := c.orders.Save(ctx, order); err != nil {
		return StatusResult{}, err
	}

	if err := c.publisher.Publish(ctx, events.OrderStatusChangedToCancelled{
		OrderID:     order.ID,
		OrderStatus: string(order.Status),
		BuyerName:   order.BuyerName,
		BuyerID:     order.BuyerID,
	}); err != nil {
		slog.ErrorContext(ctx, "publish cancelled announcement failed", "order_id", order.ID, "error", err)
	}
	return StatusResult{OrderID: order.ID, Status: order.Status}, nil
}
