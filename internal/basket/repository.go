// Package basket stores customer baskets in Redis, keyed by buyer id.
package basket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emezadev/ordering-sagas/internal/basket/domain"
	"github.com/emezadev/ordering-sagas/internal/pkg/cache"
)

// Repository is the basket store port.
type Repository interface {
	Get(ctx context.Context, buyerID string) (*domain.CustomerBasket, error)
	Update(ctx context.Context, b *domain.CustomerBasket) error
	Delete(ctx context.Context, buyerID string) error
}

type redisRepository struct {
	cache cache.Cache
}

// NewRedisRepository stores baskets through the shared cache. Baskets have no
// TTL; they live until the buyer places the order.
func NewRedisRepository(c cache.Cache) Repository {
	return &redisRepository{cache: c}
}

func (r *redisRepository) key(buyerID string) string {
	return r.cache.GenerateKey("basket", buyerID)
}

func (r *redisRepository) Get(ctx context.Context, buyerID string) (*domain.CustomerBasket, error) {
	raw, err := r.cache.Get(ctx, r.key(buyerID))
	if err != nil {
		return nil, fmt.Errorf("basket: get %s: %w", buyerID, err)
	}
	if raw == "" {
		return &domain.CustomerBasket{BuyerID: buyerID}, nil
	}

	var b domain.CustomerBasket
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("basket: decode %s: %w", buyerID, err)
	}
	return &b, nil
}

func (r *redisRepository) Update(ctx context.Context, b *domain.CustomerBasket) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("basket: encode %s: %w", b.BuyerID, err)
	}
	if err := r.cache.Set(ctx, r.key(b.BuyerID), string(raw), 0); err != nil {
		return fmt.Errorf("basket: update %s: %w", b.BuyerID, err)
	}
	return nil
}

func (r *redisRepository) Delete(ctx context.Context, buyerID string) error {
	if err := r.cache.Del(ctx, r.key(buyerID)); err != nil {
		return fmt.Errorf("basket: delete %s: %w", buyerID, err)
	}
	return nil
}
