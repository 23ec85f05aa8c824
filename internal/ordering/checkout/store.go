// Package checkout keeps the payment provider's order reference between the
// moment the checkout creates it and the stock-confirmed transition that
// attaches it to the order aggregate. The reference is the only piece of
// order state that is not yet owned by the aggregate, so it lives in the
// shared cache under a TTL.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emezadev/ordering-sagas/internal/pkg/cache"
)

// refTTL outlives any realistic grace period + stock validation. A lost
// reference degrades to a failed capture, which is the safe outcome.
const refTTL = 7 * 24 * time.Hour

// Store maps order ids to provider order references.
type Store struct {
	cache cache.Cache
}

func NewStore(c cache.Cache) *Store {
	return &Store{cache: c}
}

func (s *Store) key(orderID uuid.UUID) string {
	return s.cache.GenerateKey("checkout-ref", orderID.String())
}

// SaveRef records the provider reference created at checkout.
func (s *Store) SaveRef(ctx context.Context, orderID uuid.UUID, providerOrderID string) error {
	if err := s.cache.Set(ctx, s.key(orderID), providerOrderID, refTTL); err != nil {
		return fmt.Errorf("checkout: save ref for %s: %w", orderID, err)
	}
	return nil
}

// GetRef returns the provider reference, or "" when none was recorded.
func (s *Store) GetRef(ctx context.Context, orderID uuid.UUID) (string, error) {
	ref, err := s.cache.Get(ctx, s.key(orderID))
	if err != nil {
		return "", fmt.Errorf("checkout: get ref for %s: %w", orderID, err)
	}
	return ref, nil
}
