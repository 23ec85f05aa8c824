package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// SimulatedProvider stands in for the gateway in environments without live
// credentials. Capture answers with a pre-configured flag instead of a
// network call.
type SimulatedProvider struct {
	// Succeeded is the simulated capture outcome.
	Succeeded bool
}

func NewSimulatedProvider(succeeded bool) *SimulatedProvider {
	return &SimulatedProvider{Succeeded: succeeded}
}

// CreateOrder hands out a synthetic reference and the storefront's own
// orders page as the approval target.
func (p *SimulatedProvider) CreateOrder(_ context.Context, _ float64, _ string) (CheckoutOrder, error) {
	ref := "SIM" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:14])
	return CheckoutOrder{
		ProviderOrderID: ref,
		ApprovalURI:     "user/orders",
	}, nil
}

// Capture implements Provider.
func (p *SimulatedProvider) Capture(context.Context, string) (CaptureResult, error) {
	if p.Succeeded {
		return CaptureResult{Succeeded: true, Status: StatusCompleted}, nil
	}
	return CaptureResult{Succeeded: false, Status: "DECLINED"}, nil
}
