// Package eventbus defines the publish/subscribe ports the services use to
// exchange integration events, plus the dispatch table that routes a
// delivered event to the handler registered for its kind.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/emezadev/ordering-sagas/internal/events"
)

// Handler reacts to one delivered event. Returning an error asks the bus for
// a redelivery; handlers must therefore be idempotent at the event level.
type Handler func(ctx context.Context, e events.Envelope) error

// UnretryableError marks handler errors that no amount of redelivery will
// fix, such as a transition guard rejecting a stale or duplicated event. The
// dispatcher drops the event instead of surfacing the error.
type UnretryableError interface {
	error
	Unretryable() bool
}

// Publisher publishes an integration event to every subscribed service.
type Publisher interface {
	Publish(ctx context.Context, p events.Payload) error
}

// Subscriber delivers events of the registered kinds to a dispatcher until
// the context is cancelled. Delivery is at-least-once and unordered.
type Subscriber interface {
	Subscribe(ctx context.Context, d *Dispatcher) error
}

// Dispatcher is a dispatch table keyed by event kind. One handler per kind;
// dependencies are closed over at registration, not injected ambiently.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// On registers the handler for an event kind. Registering a kind twice is a
// wiring bug and panics at startup.
func (d *Dispatcher) On(kind string, h Handler) *Dispatcher {
	if _, dup := d.handlers[kind]; dup {
		panic(fmt.Sprintf("eventbus: duplicate handler for %q", kind))
	}
	d.handlers[kind] = h
	return d
}

// Kinds lists the registered event kinds, for the subscriber to bind to.
func (d *Dispatcher) Kinds() []string {
	kinds := make([]string, 0, len(d.handlers))
	for kind := range d.handlers {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Dispatch routes the envelope to its handler. Unregistered kinds are acked
// and dropped. A guard rejection from the order aggregate means the event is
// stale or duplicated; it is logged and acked rather than retried forever.
func (d *Dispatcher) Dispatch(ctx context.Context, e events.Envelope) error {
	h, ok := d.handlers[e.Kind]
	if !ok {
		slog.WarnContext(ctx, "no handler for event kind, dropping", "kind", e.Kind, "event_id", e.ID)
		return nil
	}

	err := h(ctx, e)
	if err == nil {
		return nil
	}
	if isUnretryable(err) {
		slog.WarnContext(ctx, "event rejected, dropping",
			"kind", e.Kind, "event_id", e.ID, "error", err)
		return nil
	}
	return fmt.Errorf("eventbus: handle %s: %w", e.Kind, err)
}

func isUnretryable(err error) bool {
	var u UnretryableError
	return errors.As(err, &u) && u.Unretryable()
}
