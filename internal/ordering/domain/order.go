// Package domain holds the order aggregate: the order entity together with
// the transactional boundary and the invariants that must hold after every
// state change. All mutation goes through the named transition methods; the
// saga handlers never touch fields directly.
package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusSubmitted          OrderStatus = "SUBMITTED"
	StatusAwaitingValidation OrderStatus = "AWAITING_VALIDATION"
	StatusStockConfirmed     OrderStatus = "STOCK_CONFIRMED"
	StatusPaid               OrderStatus = "PAID"
	StatusShipped            OrderStatus = "SHIPPED"
	StatusCancelled          OrderStatus = "CANCELLED"
	StatusPaymentFailed      OrderStatus = "PAYMENT_FAILED"
	StatusStockRejected      OrderStatus = "STOCK_REJECTED"
)

// ErrInvalidStateTransition is returned by every transition method whose
// guard rejects the current status. The order is left untouched.
var ErrInvalidStateTransition = errors.New("invalid order state transition")

// TransitionError is a guard rejection: the order cannot move from From to
// To. It unwraps to ErrInvalidStateTransition.
type TransitionError struct {
	OrderID uuid.UUID
	From    OrderStatus
	To      OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: %s -> %s: %v", e.OrderID, e.From, e.To, ErrInvalidStateTransition)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// Unretryable tells the event bus that redelivering the same event can never
// make the transition legal.
func (e *TransitionError) Unretryable() bool { return true }

// ValidationError reports malformed input rejected before any persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Unretryable tells the event bus that the rejected input will not become
// valid on redelivery.
func (e *ValidationError) Unretryable() bool { return true }

// IsInvalidStateTransition reports whether err is a transition guard failure.
func IsInvalidStateTransition(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition)
}

// IsValidationError reports whether err is a rejected-input error.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// providerRefPattern matches the short alphanumeric tokens payment providers
// use as order ids (e.g. "5O190127TN364715T").
var providerRefPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,32}$`)

// Address is the order's shipping address. Every field is required.
type Address struct {
	Street  string
	City    string
	State   string
	Country string
	ZipCode string
}

func (a Address) validate() error {
	fields := []struct {
		name, value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"country", a.Country},
		{"zip_code", a.ZipCode},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Reason: "is required"}
		}
	}
	return nil
}

// OrderItem is a single order line.
type OrderItem struct {
	ProductID   string
	ProductName string
	UnitPrice   float64
	Discount    float64
	Units       int
	PictureURL  string
}

func (i OrderItem) validate() error {
	switch {
	case i.ProductID == "":
		return &ValidationError{Field: "product_id", Reason: "is required"}
	case i.UnitPrice < 0:
		return &ValidationError{Field: "unit_price", Reason: "must not be negative"}
	case i.Discount < 0:
		return &ValidationError{Field: "discount", Reason: "must not be negative"}
	case i.Units < 1:
		return &ValidationError{Field: "units", Reason: "must be at least 1"}
	}
	return nil
}

// Subtotal is the line amount after discount.
func (i OrderItem) Subtotal() float64 {
	return (i.UnitPrice - i.Discount) * float64(i.Units)
}

// Order is the aggregate root. The address is immutable after construction
// and the payment provider reference is attached exactly once, on the
// stock-confirmed transition.
type Order struct {
	ID                     uuid.UUID
	BuyerID                string
	BuyerName              string
	Address                Address
	Items                  []OrderItem
	PaymentMethod          string
	Status                 OrderStatus
	Description            string
	PaymentProviderOrderID string
	CreatedAt              time.Time
}

// NewOrder constructs a submitted order, validating the address and items.
func NewOrder(buyerID, buyerName string, address Address, paymentMethod string, items []OrderItem) (*Order, error) {
	if strings.TrimSpace(buyerID) == "" {
		return nil, &ValidationError{Field: "buyer_id", Reason: "is required"}
	}
	if err := address.validate(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "must contain at least one item"}
	}
	for _, it := range items {
		if err := it.validate(); err != nil {
			return nil, err
		}
	}

	return &Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		BuyerName:     buyerName,
		Address:       address,
		Items:         items,
		PaymentMethod: paymentMethod,
		Status:        StatusSubmitted,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Total is the order amount, always recomputed from the items.
func (o *Order) Total() float64 {
	var total float64
	for _, it := range o.Items {
		total += it.Subtotal()
	}
	return total
}

// IsTerminal reports whether no further transition is possible.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusShipped || o.Status == StatusCancelled
}

// StockItems returns the per-product units, for the stock validation events.
func (o *Order) StockItems() map[string]int {
	units := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		units[it.ProductID] += it.Units
	}
	return units
}

// SetAwaitingValidationStatus moves the order out of the grace period.
func (o *Order) SetAwaitingValidationStatus() error {
	if o.Status != StatusSubmitted {
		return o.transitionError(StatusAwaitingValidation)
	}
	o.Status = StatusAwaitingValidation
	return nil
}

// SetStockConfirmedStatus records the stock confirmation and attaches the
// payment provider's order reference. The reference is set once; a later
// transition attempt can never rewrite it.
func (o *Order) SetStockConfirmedStatus(providerOrderID string) error {
	if o.Status != StatusAwaitingValidation {
		return o.transitionError(StatusStockConfirmed)
	}
	if providerOrderID != "" && !providerRefPattern.MatchString(providerOrderID) {
		return &ValidationError{Field: "payment_provider_order_id", Reason: "must be a short alphanumeric token"}
	}
	o.Status = StatusStockConfirmed
	o.PaymentProviderOrderID = providerOrderID
	o.Description = "All the items were confirmed with available stock."
	return nil
}

// SetStockRejectedStatus records which items could not be fulfilled.
func (o *Order) SetStockRejectedStatus(rejectedProductNames []string) error {
	if o.Status != StatusAwaitingValidation {
		return o.transitionError(StatusStockRejected)
	}
	o.Status = StatusStockRejected
	o.Description = fmt.Sprintf("The product items don't have stock: (%s).",
		strings.Join(rejectedProductNames, ", "))
	return nil
}

// SetPaidStatus records a successful payment capture.
func (o *Order) SetPaidStatus() error {
	if o.Status != StatusStockConfirmed {
		return o.transitionError(StatusPaid)
	}
	o.Status = StatusPaid
	o.Description = "The payment was performed at a simulated \"American Bank checking bank account ending on XX35071\""
	return nil
}

// SetPaymentFailedStatus records a failed payment capture.
func (o *Order) SetPaymentFailedStatus() error {
	if o.Status != StatusStockConfirmed {
		return o.transitionError(StatusPaymentFailed)
	}
	o.Status = StatusPaymentFailed
	o.Description = "The order payment failed; the order can be retried or cancelled."
	return nil
}

// SetShippedStatus is the happy-path terminal transition.
func (o *Order) SetShippedStatus() error {
	if o.Status != StatusPaid {
		return o.transitionError(StatusShipped)
	}
	o.Status = StatusShipped
	o.Description = "The order was shipped."
	return nil
}

// SetCancelledStatus is reachable from every non-terminal state.
func (o *Order) SetCancelledStatus() error {
	if o.IsTerminal() {
		return o.transitionError(StatusCancelled)
	}
	o.Status = StatusCancelled
	o.Description = "The order was cancelled."
	return nil
}

func (o *Order) transitionError(target OrderStatus) error {
	return &TransitionError{OrderID: o.ID, From: o.Status, To: target}
}
