package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emezadev/ordering-sagas/internal/events"
)

type staleEventError struct{}

func (staleEventError) Error() string     { return "stale event" }
func (staleEventError) Unretryable() bool { return true }

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("routes to the registered handler", func(t *testing.T) {
		d := NewDispatcher()
		var got events.Envelope
		d.On("order_started", func(_ context.Context, e events.Envelope) error {
			got = e
			return nil
		})

		e, err := events.NewEnvelope(events.OrderStarted{BuyerID: "buyer-1"})
		require.NoError(t, err)
		require.NoError(t, d.Dispatch(ctx, e))
		assert.Equal(t, e.ID, got.ID)
	})

	t.Run("unregistered kind is dropped without error", func(t *testing.T) {
		d := NewDispatcher()
		e, err := events.NewEnvelope(events.OrderStarted{BuyerID: "buyer-1"})
		require.NoError(t, err)
		assert.NoError(t, d.Dispatch(ctx, e))
	})

	t.Run("unretryable rejection is dropped, not retried", func(t *testing.T) {
		d := NewDispatcher()
		d.On("order_started", func(context.Context, events.Envelope) error {
			return fmt.Errorf("apply event: %w", staleEventError{})
		})

		e, err := events.NewEnvelope(events.OrderStarted{BuyerID: "buyer-1"})
		require.NoError(t, err)
		assert.NoError(t, d.Dispatch(ctx, e))
	})

	t.Run("other handler errors are surfaced for redelivery", func(t *testing.T) {
		d := NewDispatcher()
		boom := errors.New("db unavailable")
		d.On("order_started", func(context.Context, events.Envelope) error {
			return boom
		})

		e, err := events.NewEnvelope(events.OrderStarted{BuyerID: "buyer-1"})
		require.NoError(t, err)
		assert.ErrorIs(t, d.Dispatch(ctx, e), boom)
	})

	t.Run("double registration panics", func(t *testing.T) {
		d := NewDispatcher()
		h := func(context.Context, events.Envelope) error { return nil }
		d.On("order_started", h)
		assert.Panics(t, func() { d.On("order_started", h) })
	})
}

func TestMemoryBusFanOut(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(0)

	var first, second int32
	d1 := NewDispatcher().On("order_started", func(context.Context, events.Envelope) error {
		atomic.AddInt32(&first, 1)
		return nil
	})
	d2 := NewDispatcher().On("order_started", func(context.Context, events.Envelope) error {
		atomic.AddInt32(&second, 1)
		return nil
	})
	require.NoError(t, bus.Subscribe(ctx, d1))
	require.NoError(t, bus.Subscribe(ctx, d2))

	require.NoError(t, bus.Publish(ctx, events.OrderStarted{BuyerID: "buyer-1"}))

	assert.Equal(t, int32(1), first)
	assert.Equal(t, int32(1), second)
}

func TestMemoryBusRetries(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus(2)

	var attempts int32
	d := NewDispatcher().On("order_started", func(context.Context, events.Envelope) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, bus.Subscribe(ctx, d))

	require.NoError(t, bus.Publish(ctx, events.OrderStarted{BuyerID: "buyer-1"}))
	assert.Equal(t, int32(3), attempts)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	orderID := uuid.New()
	e, err := events.NewEnvelope(events.OrderStockRejected{
		OrderID:       orderID,
		RejectedItems: []events.OrderStockItem{{ProductID: "prod_1", Units: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, events.KindOrderStockRejected, e.Kind)

	var decoded events.OrderStockRejected
	require.NoError(t, e.Decode(&decoded))
	assert.Equal(t, orderID, decoded.OrderID)
	require.Len(t, decoded.RejectedItems, 1)
	assert.Equal(t, "prod_1", decoded.RejectedItems[0].ProductID)
}
