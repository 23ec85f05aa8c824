package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStockReserve(t *testing.T) {
	t.Run("reserves when everything is available", func(t *testing.T) {
		s := NewStock(map[string]int{"prod_1": 5, "prod_2": 3})

		rejected := s.Reserve("order-1", map[string]int{"prod_1": 2, "prod_2": 3})
		assert.Empty(t, rejected)
		assert.Equal(t, 3, s.Available("prod_1"))
		assert.Equal(t, 0, s.Available("prod_2"))
	})

	t.Run("rejects short items without decrementing anything", func(t *testing.T) {
		s := NewStock(map[string]int{"prod_1": 5, "prod_2": 1})

		rejected := s.Reserve("order-1", map[string]int{"prod_1": 2, "prod_2": 3})
		assert.Equal(t, []string{"prod_2"}, rejected)
		assert.Equal(t, 5, s.Available("prod_1"))
		assert.Equal(t, 1, s.Available("prod_2"))
	})

	t.Run("unknown product counts as zero stock", func(t *testing.T) {
		s := NewStock(map[string]int{"prod_1": 5})

		rejected := s.Reserve("order-1", map[string]int{"prod_9": 1})
		assert.Equal(t, []string{"prod_9"}, rejected)
	})

	t.Run("redelivered reservation is a no-op", func(t *testing.T) {
		s := NewStock(map[string]int{"prod_1": 5})

		assert.Empty(t, s.Reserve("order-1", map[string]int{"prod_1": 2}))
		assert.Empty(t, s.Reserve("order-1", map[string]int{"prod_1": 2}))
		assert.Equal(t, 3, s.Available("prod_1"))
	})
}

func TestStockRelease(t *testing.T) {
	s := NewStock(map[string]int{"prod_1": 5})

	assert.Empty(t, s.Reserve("order-1", map[string]int{"prod_1": 2}))
	assert.Equal(t, 3, s.Available("prod_1"))

	s.Release("order-1")
	assert.Equal(t, 5, s.Available("prod_1"))

	// Releasing again, or releasing an unknown order, changes nothing.
	s.Release("order-1")
	s.Release("order-9")
	assert.Equal(t, 5, s.Available("prod_1"))

	// After a release the same order may reserve again.
	assert.Empty(t, s.Reserve("order-1", map[string]int{"prod_1": 5}))
	assert.Equal(t, 0, s.Available("prod_1"))
}
