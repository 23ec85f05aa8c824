// Package payment owns the payment-gateway boundary: a narrow provider port,
// the interchangeable provider implementations behind it, and the reconciler
// that reduces every capture outcome to a single succeeded/failed signal.
package payment

import "context"

// CaptureResult is the outcome of one capture attempt. Status carries the
// provider's raw status string when one was returned; it is diagnostic only,
// Succeeded is the signal the saga acts on.
type CaptureResult struct {
	Succeeded bool
	Status    string
}

// CheckoutOrder is a payment order created at the provider before the buyer
// approves it. The reference later drives the capture; the approval URI is
// returned to the buyer.
type CheckoutOrder struct {
	ProviderOrderID string
	ApprovalURI     string
}

// Provider is the external gateway capability the core consumes. Capture
// finalizes a previously created payment order, converting the buyer's
// authorization into an actual charge.
type Provider interface {
	CreateOrder(ctx context.Context, amount float64, currency string) (CheckoutOrder, error)
	Capture(ctx context.Context, providerOrderID string) (CaptureResult, error)
}
