package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrOrderNotFound is returned by Repository.Get for unknown order ids.
var ErrOrderNotFound = errors.New("order not found")

// Repository is the port for durable order storage. Implementations must
// join a transaction carried by the context so the idempotency gate can
// commit the order and the request record as one unit.
type Repository interface {
	// Save inserts the order or, when it already exists, updates its
	// status, description and payment provider reference. Items and
	// address are immutable after the first save.
	Save(ctx context.Context, o *Order) error

	Get(ctx context.Context, id uuid.UUID) (*Order, error)

	// ListByStatusOlderThan returns orders in the given status created
	// before the cutoff, oldest first.
	ListByStatusOlderThan(ctx context.Context, status OrderStatus, cutoff time.Time) ([]*Order, error)
}
