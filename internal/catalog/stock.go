// Package catalog validates order stock. It keeps a per-product stock count
// and answers the awaiting-validation event with a confirmation or a
// rejection listing the items it cannot fulfil.
package catalog

import "sync"

// Stock is a mutex-guarded product inventory. Reservations are tracked per
// order so a redelivered validation event does not decrement stock twice.
type Stock struct {
	mu           sync.Mutex
	units        map[string]int
	reservations map[string]map[string]int
}

// NewStock seeds the inventory. A missing product counts as zero stock.
func NewStock(units map[string]int) *Stock {
	if units == nil {
		units = make(map[string]int)
	}
	return &Stock{
		units:        units,
		reservations: make(map[string]map[string]int),
	}
}

// Reserve atomically checks and decrements stock for every requested
// product. When any product falls short nothing is decremented and the short
// products are returned. Reserving the same order again is a no-op that
// repeats the first answer.
func (s *Stock) Reserve(orderID string, requested map[string]int) (rejected []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.reservations[orderID]; done {
		return nil
	}

	for productID, units := range requested {
		if s.units[productID] < units {
			rejected = append(rejected, productID)
		}
	}
	if len(rejected) > 0 {
		return rejected
	}

	reserved := make(map[string]int, len(requested))
	for productID, units := range requested {
		s.units[productID] -= units
		reserved[productID] = units
	}
	s.reservations[orderID] = reserved
	return nil
}

// Release returns an order's reserved units, for cancelled orders. Unknown
// orders are ignored.
func (s *Stock) Release(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for productID, units := range s.reservations[orderID] {
		s.units[productID] += units
	}
	delete(s.reservations, orderID)
}

// Available reports the current stock of a product.
func (s *Stock) Available(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units[productID]
}
