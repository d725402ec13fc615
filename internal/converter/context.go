package converter

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// WithRequestID tags ctx with a request id reported in conversion events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// NewRequestID returns a fresh random request id.
func NewRequestID() string {
	return uuid.NewString()
}

// RequestIDFromContext returns the id stored by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
