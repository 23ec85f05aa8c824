package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emezadev/ordering-sagas/internal/events"
	"github.com/emezadev/ordering-sagas/internal/ordering/domain"
)

// memoryRepository keeps orders in a map, returning copies the way a real
// store would return fresh rows.
type memoryRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{orders: make(map[uuid.UUID]*domain.Order)}
}

func cloneOrder(o *domain.Order) *domain.Order {
	clone := *o
	clone.Items = append([]domain.OrderItem(nil), o.Items...)
	return &clone
}

func (r *memoryRepository) Save(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("orders: %s: %w", id, domain.ErrOrderNotFound)
	}
	return cloneOrder(o), nil
}

func (r *memoryRepository) ListByStatusOlderThan(_ context.Context, status domain.OrderStatus, cutoff time.Time) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Status == status && o.CreatedAt.Before(cutoff) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

// flakyPublisher fails the first `failures` publishes and records the rest.
type flakyPublisher struct {
	failures  int
	published []events.Payload
}

func (p *flakyPublisher) Publish(_ context.Context, payload events.Payload) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("bus unavailable")
	}
	p.published = append(p.published, payload)
	return nil
}

// memoryCache is an in-process cache.Cache for tests.
type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]string)}
}

func (c *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = fmt.Sprint(value)
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *memoryCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *memoryCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("test:%s:%s", operation, key)
}
