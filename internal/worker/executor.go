package worker

import (
	"context"

	"weft/internal/account"
)

// Job is a claimed workspace handed to an Executor.
type Job struct {
	ID            int64
	CorrelationID string
	Operation     account.Operation
	Endpoint      string
	Workspace     account.WorkspaceInfo
}

// ProgressFunc receives progress updates from an executor. Percent is 0..100;
// values outside the range are clamped before they are reported.
type ProgressFunc func(percent float64, message string)

// Executor performs the actual create or upgrade work for a workspace.
type Executor interface {
	Execute(ctx context.Context, job Job, progress ProgressFunc) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job Job, progress ProgressFunc) error

func (f ExecutorFunc) Execute(ctx context.Context, job Job, progress ProgressFunc) error {
	return f(ctx, job, progress)
}
