package lifecycle

import (
	"context"

	"weft/internal/account"
	"weft/internal/version"
)

// PendingSource is the subset of the account client used to claim work.
type PendingSource interface {
	GetPendingWorkspace(ctx context.Context, token, region string, v version.Vector, operation account.Operation) (*account.WorkspaceInfo, error)
	WorkerHandshake(ctx context.Context, token, region string, v version.Vector, operation account.Operation) error
}

// Claimer asks the account service for pending workspaces on behalf of one
// worker. Polling cadence belongs to the caller.
type Claimer struct {
	source    PendingSource
	token     string
	region    string
	version   version.Vector
	operation account.Operation
}

// NewClaimer binds the claim scope used by Claim and Handshake.
func NewClaimer(source PendingSource, token, region string, v version.Vector, operation account.Operation) *Claimer {
	return &Claimer{source: source, token: token, region: region, version: v, operation: operation}
}

// Claim returns the next pending workspace, or nil when nothing is waiting.
func (c *Claimer) Claim(ctx context.Context) (*account.WorkspaceInfo, error) {
	return c.source.GetPendingWorkspace(ctx, c.token, c.region, c.version, c.operation)
}

// Handshake announces the worker with the same scope it claims with.
func (c *Claimer) Handshake(ctx context.Context) error {
	return c.source.WorkerHandshake(ctx, c.token, c.region, c.version, c.operation)
}

// Operation returns the claim filter.
func (c *Claimer) Operation() account.Operation {
	return c.operation
}
