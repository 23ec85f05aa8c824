package payment

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// StatusCompleted is the only provider status recognized as a successful
// capture. Any other status, non-2xx response, timeout or transport error
// collapses to failed: a failed order can be retried by the buyer, a
// falsely-succeeded one cannot be un-charged.
const StatusCompleted = "COMPLETED"

// ReconcilerOptions configures the capture policy.
type ReconcilerOptions struct {
	// GatewayEnabled gates the network call. When false the reconciler
	// bypasses the provider entirely and answers with SimulatedSucceeded.
	GatewayEnabled bool

	// SimulatedSucceeded is the outcome reported when the gateway is
	// disabled or unconfigured.
	SimulatedSucceeded bool

	// CaptureTimeout bounds the gateway round trip. A timeout is a failed
	// capture, never an error.
	CaptureTimeout time.Duration
}

// Reconciler maps a gateway capture outcome, or the absence of one, to a
// single terminal succeeded/failed result. It never returns an error: every
// failure mode is logged and absorbed so the business process always reaches
// a terminal state.
type Reconciler struct {
	provider Provider
	opts     ReconcilerOptions
}

func NewReconciler(provider Provider, opts ReconcilerOptions) *Reconciler {
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = 30 * time.Second
	}
	return &Reconciler{provider: provider, opts: opts}
}

// Capture applies the reconciliation policy, in priority order: a missing
// provider reference fails without touching the gateway; a disabled gateway
// answers with the configured flag; otherwise the provider is called under a
// timeout and only a COMPLETED status counts as success.
func (r *Reconciler) Capture(ctx context.Context, providerOrderID string) CaptureResult {
	if strings.TrimSpace(providerOrderID) == "" {
		slog.WarnContext(ctx, "no payment provider order id recorded; capture failed")
		return CaptureResult{Succeeded: false}
	}

	if !r.opts.GatewayEnabled || r.provider == nil {
		slog.InfoContext(ctx, "payment gateway disabled; using simulated outcome",
			"succeeded", r.opts.SimulatedSucceeded)
		return CaptureResult{Succeeded: r.opts.SimulatedSucceeded}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.CaptureTimeout)
	defer cancel()

	result, err := r.provider.Capture(ctx, providerOrderID)
	if err != nil {
		slog.ErrorContext(ctx, "capture failed",
			"provider_order_id", providerOrderID, "error", err)
		return CaptureResult{Succeeded: false}
	}

	result.Succeeded = strings.EqualFold(result.Status, StatusCompleted)

	slog.InfoContext(ctx, "capture reconciled",
		"provider_order_id", providerOrderID,
		"status", result.Status,
		"succeeded", result.Succeeded)
	return result
}
