package services_test

import (
	"context"
	"testing"

	"splice/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithDocumentID(ctx, "1700000000000")
	ctx = services.WithOperation(ctx, "open")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.DocumentIDFromContext(ctx); !ok || id != "1700000000000" {
		t.Fatalf("unexpected document id: %v %v", id, ok)
	}
	if op, ok := services.OperationFromContext(ctx); !ok || op != "open" {
		t.Fatalf("unexpected operation: %v %v", op, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithOperation(ctx, "")
	ctx = services.WithDocumentID(ctx, "")
	if _, ok := services.OperationFromContext(ctx); ok {
		t.Fatal("expected no operation value")
	}
	if _, ok := services.DocumentIDFromContext(ctx); ok {
		t.Fatal("expected no document id value")
	}
}
