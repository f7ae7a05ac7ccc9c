package services

import "context"

type contextKey string

const (
	workspaceKey contextKey = "workspace"
	operationKey contextKey = "operation"
	requestIDKey contextKey = "request_id"
)

// WithWorkspace annotates context with the workspace identifier being processed.
func WithWorkspace(ctx context.Context, workspace string) context.Context {
	if workspace == "" {
		return ctx
	}
	return context.WithValue(ctx, workspaceKey, workspace)
}

// WorkspaceFromContext extracts the workspace identifier if present.
func WorkspaceFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(workspaceKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOperation annotates context with the lifecycle operation (create/upgrade).
func WithOperation(ctx context.Context, operation string) context.Context {
	if operation == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey, operation)
}

// OperationFromContext returns the operation name if present.
func OperationFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(operationKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
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
