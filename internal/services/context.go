package services

import "context"

type contextKey string

const (
	executionIDKey contextKey = "execution_id"
	requestIDKey   contextKey = "request_id"
)

// WithExecutionID annotates context with the executor handle identifier.
func WithExecutionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, executionIDKey, id)
}

// ExecutionIDFromContext extracts the execution identifier if present.
func ExecutionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(executionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
