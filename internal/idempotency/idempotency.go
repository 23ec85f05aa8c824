// Package idempotency deduplicates client-submitted commands by a
// caller-supplied request id. A retry reuses the id and gets the original
// result back; a genuinely failed attempt leaves no record and stays
// retryable under the same id.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDuplicateRequest is reported by Store.Run when the request id is already
// claimed. Callers of the decorator never see it; the decorator translates it
// into the stored result of the first execution.
var ErrDuplicateRequest = errors.New("duplicate request")

// Store executes a command exactly once per request id.
//
// Run must claim the request id and invoke fn so that the claim, the result
// and every write fn performs commit or roll back as one atomic unit. When
// the id is already claimed, Run must not invoke fn; it waits for the first
// execution to finish and returns its stored result with replayed=true. If fn
// returns an error nothing is recorded and the error is returned as-is.
type Store interface {
	Run(ctx context.Context, requestID uuid.UUID, commandName string, fn func(ctx context.Context) ([]byte, error)) (result []byte, replayed bool, err error)
}

// HandlerFunc is a state-changing command handler.
type HandlerFunc[C, R any] func(ctx context.Context, cmd C) (R, error)

// IdentifiedHandlerFunc is a handler guarded by a request id. The boolean
// reports whether the result was replayed from a previous execution.
type IdentifiedHandlerFunc[C, R any] func(ctx context.Context, requestID uuid.UUID, cmd C) (R, bool, error)

// WithIdempotency wraps a command handler so that re-submission with the same
// request id is a no-op returning the original result. The result type must
// round-trip through JSON; commandName keys the record for diagnostics.
func WithIdempotency[C, R any](store Store, commandName string, handle HandlerFunc[C, R]) IdentifiedHandlerFunc[C, R] {
	return func(ctx context.Context, requestID uuid.UUID, cmd C) (R, bool, error) {
		var zero R

		raw, replayed, err := store.Run(ctx, requestID, commandName, func(ctx context.Context) ([]byte, error) {
			result, err := handle(ctx, cmd)
			if err != nil {
				return nil, err
			}
			encoded, err := json.Marshal(result)
			if err != nil {
				return nil, fmt.Errorf("idempotency: encode %s result: %w", commandName, err)
			}
			return encoded, nil
		})
		if err != nil {
			return zero, false, err
		}

		var result R
		if err := json.Unmarshal(raw, &result); err != nil {
			return zero, replayed, fmt.Errorf("idempotency: decode %s result: %w", commandName, err)
		}
		return result, replayed, nil
	}
}
