// Package httpx holds the HTTP plumbing shared by the services: the request
// metadata headers, their typed context keys and the middleware that lifts
// them out of the request.
package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys in this package.
// Using a custom type prevents collisions with keys from other packages
// that might use the same underlying string value.
type contextKey string

const (
	HeaderXRequestID      = "x-request-id"
	HeaderXIdempotencyKey = "x-idempotency-key"

	// ContextKeyRequestID is the context key for the request ID.
	ContextKeyRequestID contextKey = HeaderXRequestID
	// ContextKeyIdempotencyKey is the context key for the idempotency key.
	ContextKeyIdempotencyKey contextKey = HeaderXIdempotencyKey
)

// AttachRequestMetadata stores the chi request id and the client-supplied
// idempotency key in the context under typed keys.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, ContextKeyRequestID, middleware.GetReqID(ctx))
		ctx = context.WithValue(ctx, ContextKeyIdempotencyKey, r.Header.Get(HeaderXIdempotencyKey))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request id attached by the middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

// IdempotencyKey parses the idempotency key attached by the middleware.
// The key identifies one logical client intent: a retry reuses it, a new
// action gets a fresh one.
func IdempotencyKey(ctx context.Context) (uuid.UUID, error) {
	raw, _ := ctx.Value(ContextKeyIdempotencyKey).(string)
	return uuid.Parse(raw)
}
