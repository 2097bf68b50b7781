package messaging

import "context"

type contextKey struct{}

// WithCorrelationID returns a context carrying correlationID
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, contextKey{}, correlationID)
}

// CorrelationID returns the correlation ID carried by ctx, or ""
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
