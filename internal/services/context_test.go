package services_test

import (
	"context"
	"testing"

	"ffexec/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithExecutionID(ctx, "exec-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ExecutionIDFromContext(ctx); !ok || id != "exec-1" {
		t.Fatalf("unexpected execution id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankIDsPreserveContext(t *testing.T) {
	ctx := services.WithExecutionID(context.Background(), "")
	if _, ok := services.ExecutionIDFromContext(ctx); ok {
		t.Fatal("expected no execution id value")
	}
	ctx = services.WithRequestID(ctx, "")
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id value")
	}
}
