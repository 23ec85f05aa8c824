package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/events"
	"github.com/emezadev/ordering-sagas/internal/payment"
)

type mapCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string]string)}
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = fmt.Sprint(value)
	return nil
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *mapCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *mapCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("payment:%s:%s", operation, key)
}

type countingProvider struct {
	captures int
	status   string
}

func (p *countingProvider) CreateOrder(context.Context, float64, string) (payment.CheckoutOrder, error) {
	return payment.CheckoutOrder{}, nil
}

func (p *countingProvider) Capture(context.Context, string) (payment.CaptureResult, error) {
	p.captures++
	return payment.CaptureResult{Status: p.status}, nil
}

func stockConfirmedEnvelope(t *testing.T, orderID uuid.UUID, ref string) events.Envelope {
	t.Helper()
	e, err := events.NewEnvelope(events.OrderStatusChangedToStockConfirmed{
		OrderID:                orderID,
		OrderStatus:            "STOCK_CONFIRMED",
		BuyerName:              "Alice",
		BuyerID:                "buyer-1",
		PaymentProviderOrderID: ref,
	})
	require.NoError(t, err)
	return e
}

func TestHandleStockConfirmed(t *testing.T) {
	ctx := context.Background()

	capture := func(t *testing.T, provider payment.Provider, c *mapCache) (*eventbus.Dispatcher, *[]string) {
		t.Helper()
		bus := eventbus.NewMemoryBus(0)

		var outcomes []string
		sink := eventbus.NewDispatcher().
			On(events.KindOrderPaymentSucceeded, func(context.Context, events.Envelope) error {
				outcomes = append(outcomes, "succeeded")
				return nil
			}).
			On(events.KindOrderPaymentFailed, func(context.Context, events.Envelope) error {
				outcomes = append(outcomes, "failed")
				return nil
			})
		require.NoError(t, bus.Subscribe(ctx, sink))

		reconciler := payment.NewReconciler(provider, payment.ReconcilerOptions{GatewayEnabled: true})
		d := eventbus.NewDispatcher()
		NewHandler(reconciler, bus, c).Register(d)
		return d, &outcomes
	}

	t.Run("completed capture publishes success", func(t *testing.T) {
		provider := &countingProvider{status: payment.StatusCompleted}
		d, outcomes := capture(t, provider, newMapCache())

		e := stockConfirmedEnvelope(t, uuid.New(), "REF1")
		require.NoError(t, d.Dispatch(ctx, e))
		assert.Equal(t, []string{"succeeded"}, *outcomes)
		assert.Equal(t, 1, provider.captures)
	})

	t.Run("declined capture publishes failure", func(t *testing.T) {
		provider := &countingProvider{status: "DECLINED"}
		d, outcomes := capture(t, provider, newMapCache())

		require.NoError(t, d.Dispatch(ctx, stockConfirmedEnvelope(t, uuid.New(), "REF1")))
		assert.Equal(t, []string{"failed"}, *outcomes)
	})

	t.Run("redelivery does not capture twice", func(t *testing.T) {
		provider := &countingProvider{status: payment.StatusCompleted}
		d, outcomes := capture(t, provider, newMapCache())

		orderID := uuid.New()
		require.NoError(t, d.Dispatch(ctx, stockConfirmedEnvelope(t, orderID, "REF1")))
		require.NoError(t, d.Dispatch(ctx, stockConfirmedEnvelope(t, orderID, "REF1")))

		assert.Equal(t, 1, provider.captures)
		assert.Equal(t, []string{"succeeded"}, *outcomes)
	})

	t.Run("missing reference fails without a capture", func(t *testing.T) {
		provider := &countingProvider{status: payment.StatusCompleted}
		d, outcomes := capture(t, provider, newMapCache())

		require.NoError(t, d.Dispatch(ctx, stockConfirmedEnvelope(t, uuid.New(), "")))
		assert.Equal(t, []string{"failed"}, *outcomes)
		assert.Equal(t, 0, provider.captures)
	})
}
