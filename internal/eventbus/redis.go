package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/emezadev/ordering-sagas/internal/events"
)

const (
	streamPrefix = "events:"

	// claimMinIdle is how long a delivered-but-unacked event may sit in
	// another consumer's pending list before it is claimed and retried.
	claimMinIdle = 30 * time.Second

	readBlock = 5 * time.Second
	readCount = 16
)

// RedisBus is the production bus: one Redis Stream per event kind, one
// consumer group per service. A message is acked only after its handler
// returns, so a crash mid-handler redelivers it. That gives the at-least-once
// delivery the saga expects.
type RedisBus struct {
	client   *redis.Client
	group    string
	consumer string
}

// NewRedisBus returns a bus bound to the given consumer group (typically the
// service name; every group receives every event of the kinds it subscribes
// to).
func NewRedisBus(client *redis.Client, group string) *RedisBus {
	return &RedisBus{
		client:   client,
		group:    group,
		consumer: group + "-" + uuid.NewString()[:8],
	}
}

// Publish implements Publisher.
func (b *RedisBus) Publish(ctx context.Context, p events.Payload) error {
	e, err := events.NewEnvelope(p)
	if err != nil {
		return err
	}

	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamPrefix + e.Kind,
		Values: map[string]any{
			"id":          e.ID.String(),
			"kind":        e.Kind,
			"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
			"payload":     string(e.Payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("eventbus: publish %s: %w", e.Kind, err)
	}
	return nil
}

// Subscribe implements Subscriber. It blocks until ctx is cancelled, running
// one consumer loop per registered event kind.
func (b *RedisBus) Subscribe(ctx context.Context, d *Dispatcher) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, kind := range d.Kinds() {
		stream := streamPrefix + kind

		err := b.client.XGroupCreateMkStream(ctx, stream, b.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("eventbus: create group %s on %s: %w", b.group, stream, err)
		}

		g.Go(func() error {
			return b.consume(ctx, d, stream)
		})
	}

	return g.Wait()
}

func (b *RedisBus) consume(ctx context.Context, d *Dispatcher, stream string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.claimStale(ctx, d, stream)

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: b.consumer,
			Streams:  []string{stream, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.ErrorContext(ctx, "read group failed", "stream", stream, "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				b.handle(ctx, d, stream, msg)
			}
		}
	}
}

// claimStale takes over events another consumer read but never acked.
func (b *RedisBus) claimStale(ctx context.Context, d *Dispatcher, stream string) {
	msgs, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    b.group,
		Consumer: b.consumer,
		MinIdle:  claimMinIdle,
		Start:    "0",
		Count:    readCount,
	}).Result()
	if err != nil || len(msgs) == 0 {
		return
	}
	for _, msg := range msgs {
		b.handle(ctx, d, stream, msg)
	}
}

func (b *RedisBus) handle(ctx context.Context, d *Dispatcher, stream string, msg redis.XMessage) {
	e, err := envelopeFromMessage(msg)
	if err != nil {
		// Malformed messages would be redelivered forever; ack and drop.
		slog.ErrorContext(ctx, "malformed event, dropping", "stream", stream, "msg_id", msg.ID, "error", err)
		b.ack(ctx, stream, msg.ID)
		return
	}

	if err := d.Dispatch(ctx, e); err != nil {
		// No ack: the event stays pending and is claimed again later.
		slog.WarnContext(ctx, "handler failed, leaving event pending",
			"stream", stream, "event_id", e.ID, "error", err)
		return
	}
	b.ack(ctx, stream, msg.ID)
}

func (b *RedisBus) ack(ctx context.Context, stream, msgID string) {
	if err := b.client.XAck(ctx, stream, b.group, msgID).Err(); err != nil {
		slog.ErrorContext(ctx, "ack failed", "stream", stream, "msg_id", msgID, "error", err)
	}
}

func envelopeFromMessage(msg redis.XMessage) (events.Envelope, error) {
	id, _ := msg.Values["id"].(string)
	kind, _ := msg.Values["kind"].(string)
	occurredAt, _ := msg.Values["occurred_at"].(string)
	payload, _ := msg.Values["payload"].(string)

	eventID, err := uuid.Parse(id)
	if err != nil {
		return events.Envelope{}, fmt.Errorf("eventbus: bad event id %q: %w", id, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, occurredAt)
	if err != nil {
		return events.Envelope{}, fmt.Errorf("eventbus: bad timestamp %q: %w", occurredAt, err)
	}
	if kind == "" {
		return events.Envelope{}, fmt.Errorf("eventbus: message %s has no kind", msg.ID)
	}

	return events.Envelope{
		ID:         eventID,
		Kind:       kind,
		OccurredAt: ts,
		Payload:    json.RawMessage(payload),
	}, nil
}
