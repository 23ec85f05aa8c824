// Package events defines the integration events exchanged between services.
//
// An integration event is an immutable fact published by one service and
// consumed by zero or more others. Delivery is at-least-once and unordered;
// consumers must tolerate duplicates and out-of-order arrival.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event kinds. The kind string doubles as the subscription key on the bus,
// so it must stay stable across deployments.
const (
	KindOrderStarted                            = "order_started"
	KindOrderStatusChangedToAwaitingValidation  = "order_status_changed_to_awaiting_validation"
	KindOrderStockConfirmed                     = "order_stock_confirmed"
	KindOrderStockRejected                      = "order_stock_rejected"
	KindOrderStatusChangedToStockConfirmed      = "order_status_changed_to_stock_confirmed"
	KindOrderPaymentSucceeded                   = "order_payment_succeeded"
	KindOrderPaymentFailed                      = "order_payment_failed"
	KindOrderStatusChangedToPaid                = "order_status_changed_to_paid"
	KindOrderStatusChangedToShipped             = "order_status_changed_to_shipped"
	KindOrderStatusChangedToCancelled           = "order_status_changed_to_cancelled"
)

// Envelope is the wire record for every integration event: a generated
// identity, a creation timestamp, the kind and the kind-specific payload.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Payload is implemented by every event payload type.
type Payload interface {
	Kind() string
}

// NewEnvelope wraps a payload in a fresh envelope.
func NewEnvelope(p Payload) (Envelope, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s payload: %w", p.Kind(), err)
	}
	return Envelope{
		ID:         uuid.New(),
		Kind:       p.Kind(),
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Decode unmarshals the envelope payload into dst.
func (e Envelope) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("events: decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// OrderStarted is published by the ordering service as soon as a new order is
// accepted. The basket service clears the buyer's basket on it.
type OrderStarted struct {
	BuyerID string `json:"buyer_id"`
}

func (OrderStarted) Kind() string { return KindOrderStarted }

// OrderStockItem is the per-product quantity carried by stock events.
type OrderStockItem struct {
	ProductID string `json:"product_id"`
	Units     int    `json:"units"`
}

// OrderStatusChangedToAwaitingValidation asks the catalog service to validate
// stock for the order's items.
type OrderStatusChangedToAwaitingValidation struct {
	OrderID     uuid.UUID        `json:"order_id"`
	OrderStatus string           `json:"order_status"`
	BuyerName   string           `json:"buyer_name"`
	BuyerID     string           `json:"buyer_id"`
	StockItems  []OrderStockItem `json:"stock_items"`
}

func (OrderStatusChangedToAwaitingValidation) Kind() string {
	return KindOrderStatusChangedToAwaitingValidation
}

// OrderStockConfirmed is the catalog's answer when every item is in stock.
type OrderStockConfirmed struct {
	OrderID uuid.UUID `json:"order_id"`
}

func (OrderStockConfirmed) Kind() string { return KindOrderStockConfirmed }

// OrderStockRejected lists the items the catalog could not fulfil.
type OrderStockRejected struct {
	OrderID       uuid.UUID        `json:"order_id"`
	RejectedItems []OrderStockItem `json:"rejected_items"`
}

func (OrderStockRejected) Kind() string { return KindOrderStockRejected }

// OrderStatusChangedToStockConfirmed triggers the payment capture. It carries
// the payment provider's order id recorded on the stock-confirmed transition.
type OrderStatusChangedToStockConfirmed struct {
	OrderID                uuid.UUID `json:"order_id"`
	OrderStatus            string    `json:"order_status"`
	BuyerName              string    `json:"buyer_name"`
	BuyerID                string    `json:"buyer_id"`
	PaymentProviderOrderID string    `json:"payment_provider_order_id"`
}

func (OrderStatusChangedToStockConfirmed) Kind() string {
	return KindOrderStatusChangedToStockConfirmed
}

// OrderPaymentSucceeded is the payment service's terminal success signal.
type OrderPaymentSucceeded struct {
	OrderID uuid.UUID `json:"order_id"`
}

func (OrderPaymentSucceeded) Kind() string { return KindOrderPaymentSucceeded }

// OrderPaymentFailed is the payment service's terminal failure signal.
type OrderPaymentFailed struct {
	OrderID uuid.UUID `json:"order_id"`
}

func (OrderPaymentFailed) Kind() string { return KindOrderPaymentFailed }

// OrderStatusChangedToPaid announces the paid transition to interested
// services (storefront, notifications). Nothing in the saga consumes it.
type OrderStatusChangedToPaid struct {
	OrderID     uuid.UUID        `json:"order_id"`
	OrderStatus string           `json:"order_status"`
	BuyerName   string           `json:"buyer_name"`
	BuyerID     string           `json:"buyer_id"`
	StockItems  []OrderStockItem `json:"stock_items"`
}

func (OrderStatusChangedToPaid) Kind() string { return KindOrderStatusChangedToPaid }

// OrderStatusChangedToShipped announces the shipped transition.
type OrderStatusChangedToShipped struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderStatus string    `json:"order_status"`
	BuyerName   string    `json:"buyer_name"`
	BuyerID     string    `json:"buyer_id"`
}

func (OrderStatusChangedToShipped) Kind() string { return KindOrderStatusChangedToShipped }

// OrderStatusChangedToCancelled announces the cancelled transition.
type OrderStatusChangedToCancelled struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderStatus string    `json:"order_status"`
	BuyerName   string    `json:"buyer_name"`
	BuyerID     string    `json:"buyer_id"`
}

func (OrderStatusChangedToCancelled) Kind() string { return KindOrderStatusChangedToCancelled }
