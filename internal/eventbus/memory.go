package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/emezadev/ordering-sagas/internal/events"
)

// MemoryBus is an in-process bus for tests and single-process runs. It keeps
// the production delivery contract: at-least-once (a failed handler is
// retried), no ordering across subscribers, and fan-out to every dispatcher.
type MemoryBus struct {
	mu          sync.Mutex
	dispatchers []*Dispatcher
	retries     int
	wg          sync.WaitGroup
	async       bool
}

// NewMemoryBus returns a bus that delivers synchronously, which keeps tests
// deterministic. retries is how often a failing handler is redelivered to
// before the event is dropped.
func NewMemoryBus(retries int) *MemoryBus {
	return &MemoryBus{retries: retries}
}

// NewAsyncMemoryBus delivers on a goroutine per event, closer to how the
// Redis bus behaves in production.
func NewAsyncMemoryBus(retries int) *MemoryBus {
	return &MemoryBus{retries: retries, async: true}
}

// Subscribe implements Subscriber. Delivery starts immediately; the context
// is only consulted per delivery.
func (b *MemoryBus) Subscribe(_ context.Context, d *Dispatcher) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatchers = append(b.dispatchers, d)
	return nil
}

// Publish implements Publisher.
func (b *MemoryBus) Publish(ctx context.Context, p events.Payload) error {
	e, err := events.NewEnvelope(p)
	if err != nil {
		return err
	}

	b.mu.Lock()
	dispatchers := make([]*Dispatcher, len(b.dispatchers))
	copy(dispatchers, b.dispatchers)
	b.mu.Unlock()

	for _, d := range dispatchers {
		if b.async {
			b.wg.Add(1)
			go func(d *Dispatcher) {
				defer b.wg.Done()
				b.deliver(ctx, d, e)
			}(d)
		} else {
			b.deliver(ctx, d, e)
		}
	}
	return nil
}

// Wait blocks until all in-flight async deliveries have finished.
func (b *MemoryBus) Wait() {
	b.wg.Wait()
}

func (b *MemoryBus) deliver(ctx context.Context, d *Dispatcher, e events.Envelope) {
	var err error
	for attempt := 0; attempt <= b.retries; attempt++ {
		if err = d.Dispatch(ctx, e); err == nil {
			return
		}
	}
	slog.ErrorContext(ctx, "event dropped after retries",
		"kind", e.Kind, "event_id", e.ID, "error", err)
}
