package services_test

import (
	"context"
	"testing"

	"weft/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWorkspace(ctx, "ws-42")
	ctx = services.WithOperation(ctx, "upgrade")
	ctx = services.WithRequestID(ctx, "req-123")

	if ws, ok := services.WorkspaceFromContext(ctx); !ok || ws != "ws-42" {
		t.Fatalf("unexpected workspace: %v %v", ws, ok)
	}
	if op, ok := services.OperationFromContext(ctx); !ok || op != "upgrade" {
		t.Fatalf("unexpected operation: %v %v", op, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithOperation(ctx, "")
	ctx = services.WithWorkspace(ctx, "")
	if _, ok := services.OperationFromContext(ctx); ok {
		t.Fatal("expected no operation value")
	}
	if _, ok := services.WorkspaceFromContext(ctx); ok {
		t.Fatal("expected no workspace value")
	}
}
