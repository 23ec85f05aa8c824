package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emezadev/ordering-sagas/internal/basket"
	"github.com/emezadev/ordering-sagas/internal/basket/domain"
	"github.com/emezadev/ordering-sagas/internal/eventbus"
	"github.com/emezadev/ordering-sagas/internal/events"
)

type mapCache struct {
	mu     sync.Mutex
	values map[string]string
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
	return fmt.Sprintf("basket:%s:%s", operation, key)
}

func TestHandleOrderStarted(t *testing.T) {
	ctx := context.Background()
	baskets := basket.NewRedisRepository(&mapCache{values: make(map[string]string)})

	require.NoError(t, baskets.Update(ctx, &domain.CustomerBasket{
		BuyerID: "buyer-1",
		Items:   []domain.BasketItem{{ProductID: "prod_1", ProductName: "Boots", UnitPrice: 100, Quantity: 2}},
	}))

	d := eventbus.NewDispatcher()
	NewHandler(baskets).Register(d)

	e, err := events.NewEnvelope(events.OrderStarted{BuyerID: "buyer-1"})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(ctx, e))

	b, err := baskets.Get(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Empty(t, b.Items)

	// Redelivery deletes an already-empty basket, which is a no-op.
	require.NoError(t, d.Dispatch(ctx, e))
}

func TestBasketRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	baskets := basket.NewRedisRepository(&mapCache{values: make(map[string]string)})

	// A missing basket reads as empty, never as an error.
	b, err := baskets.Get(ctx, "buyer-9")
	require.NoError(t, err)
	assert.Equal(t, "buyer-9", b.BuyerID)
	assert.Empty(t, b.Items)

	stored := &domain.CustomerBasket{
		BuyerID: "buyer-1",
		Items: []domain.BasketItem{
			{ProductID: "prod_1", ProductName: "Boots", UnitPrice: 100, Quantity: 2},
			{ProductID: "prod_2", ProductName: "Socks", UnitPrice: 10, Quantity: 1},
		},
	}
	require.NoError(t, baskets.Update(ctx, stored))

	loaded, err := baskets.Get(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, stored, loaded)
}
