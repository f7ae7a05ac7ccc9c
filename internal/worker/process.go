package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"weft/internal/account"
	"weft/internal/authz"
	"weft/internal/journal"
	"weft/internal/lifecycle"
	"weft/internal/logging"
	"weft/internal/services"
)

// ProcessNext claims at most one pending workspace and runs it to completion.
// It reports whether a job was started for a claimed workspace. A returned
// error with the flag set describes a journaled job failure; without it,
// nothing was journaled and the caller should back off before claiming again.
func (c *Coordinator) ProcessNext(ctx context.Context) (bool, error) {
	ws, err := c.claimer.Claim(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		c.logger.Warn("claim pending workspace failed",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldEventType, "claim_failed"),
			logging.Bool("transient", account.IsTransient(err)),
		)
		return false, err
	}
	if ws == nil {
		return false, nil
	}
	return c.process(ctx, *ws)
}

func (c *Coordinator) process(ctx context.Context, ws account.WorkspaceInfo) (bool, error) {
	op := c.operationFor(ws)
	workspaceID := ws.ID()
	if workspaceID == "" {
		err := services.Wrap(services.ErrValidation, string(op), "claim", "pending workspace has no identifier", nil)
		c.logger.Warn("skipping pending workspace without identifier",
			logging.String(logging.FieldEventType, "claim_invalid"),
			logging.String("raw", string(ws.Raw)),
		)
		c.recordFailure(err, nil)
		return false, err
	}

	correlationID := uuid.NewString()
	ctx = services.WithWorkspace(ctx, workspaceID)
	ctx = services.WithOperation(ctx, string(op))
	ctx = services.WithRequestID(ctx, correlationID)
	logger := logging.WithContext(ctx, c.logger)
	persistCtx := context.WithoutCancel(ctx)
	started := time.Now()

	job, err := c.journal.NewJob(persistCtx, correlationID, workspaceID, string(op), c.settings.Region)
	if err != nil {
		err = services.Wrap(services.ErrTransient, string(op), "journal", "claim not recorded", err)
		logging.ErrorWithContext(logger, "claimed workspace dropped; journal unavailable", "journal_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and free disk space"),
		)
		c.recordFailure(err, nil)
		return false, err
	}
	c.trackJob(job)
	logger.Info("claimed workspace",
		logging.String(logging.FieldEventType, "job_claimed"),
		logging.Int64("job_id", job.ID),
		logging.String("mode", ws.Mode),
	)

	decision, err := c.authz.Authorize(ctx, authz.Request{
		ResourceType: authz.ResourceWorkspace,
		ResourceID:   workspaceID,
		Operation:    string(op),
		Region:       c.settings.Region,
	})
	if err != nil {
		return true, c.fail(ctx, job, services.Wrap(services.ErrTransient, string(op), "authorize", "", err))
	}
	if !decision.Allowed {
		return true, c.fail(ctx, job, services.Wrap(services.ErrUnauthorized, string(op), "authorize", decision.Reason, nil))
	}

	_ = c.report(ctx, job, lifecycle.StartedEvent(op), 0, "")

	endpoint, err := c.resolveEndpoint(ctx, ws, op)
	if err != nil {
		if ctx.Err() != nil {
			return true, c.fail(ctx, job, ctx.Err())
		}
		return true, c.fail(ctx, job, err)
	}
	job.State = journal.StateRunning
	job.Endpoint = endpoint
	if err := c.journal.Update(persistCtx, job); err != nil {
		logger.Warn("journal update failed", logging.Error(err))
	}
	c.trackJob(job)
	logger.Info("resolved transactor endpoint",
		logging.String("endpoint", endpoint),
		logging.String("endpoint_kind", string(c.settings.EndpointKind)),
	)

	if err := c.execute(ctx, job, ws, op); err != nil {
		if ctx.Err() != nil {
			return true, c.fail(ctx, job, ctx.Err())
		}
		return true, c.fail(ctx, job, err)
	}

	if err := c.report(ctx, job, lifecycle.DoneEvent(op), 100, ""); err != nil {
		return true, c.fail(ctx, job, services.Wrap(services.ErrTransient, string(op), "report", "done event not delivered", err))
	}

	job.State = journal.StateCompleted
	job.SetProgress(100, "")
	job.ErrorMessage = ""
	if err := c.journal.Update(persistCtx, job); err != nil {
		logger.Warn("journal update failed", logging.Error(err))
	}
	duration := time.Since(started)
	if err := c.notifier.NotifyJobCompleted(persistCtx, workspaceID, string(op), duration); err != nil {
		logger.Debug("completion notification failed", logging.Error(err))
	}
	c.trackJob(job)
	c.mu.Lock()
	c.processed++
	c.mu.Unlock()
	logger.Info("workspace job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.Duration("duration", duration),
	)
	return true, nil
}

// resolveEndpoint finds the transactor for a claimed workspace. With a token
// source the resolver is asked with a token scoped to the workspace. Without
// one, an address carried by the descriptor wins over resolving with the
// worker token, which the account service maps to the worker's own workspace.
func (c *Coordinator) resolveEndpoint(ctx context.Context, ws account.WorkspaceInfo, op account.Operation) (string, error) {
	kind := c.settings.EndpointKind
	token := c.settings.Token
	if c.tokens != nil {
		scoped, err := c.tokens.WorkspaceToken(ctx, ws)
		if err != nil {
			return "", services.Wrap(services.ErrConfiguration, string(op), "workspace token", "", err)
		}
		token = scoped
	} else if addr := strings.TrimSpace(ws.EndpointFor(kind)); addr != "" {
		return addr, nil
	}
	addr, err := c.resolver.Resolve(ctx, token, kind, c.settings.ResolveTimeout)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, string(op), "resolve endpoint", "", err)
	}
	return addr, nil
}

// fail persists the terminal state for a job that did not complete.
func (c *Coordinator) fail(ctx context.Context, job *journal.Job, err error) error {
	persistCtx := context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, c.logger)

	if errors.Is(err, context.Canceled) {
		job.State = journal.StateFailed
		job.ErrorMessage = journal.WorkerStopReason
	} else {
		job.State = services.FailureState(err)
		job.ErrorMessage = err.Error()
	}
	if updateErr := c.journal.Update(persistCtx, job); updateErr != nil {
		logger.Warn("journal update failed", logging.Error(updateErr))
	}
	if notifyErr := c.notifier.NotifyJobFailed(persistCtx, job.Workspace, job.Operation, err); notifyErr != nil {
		logger.Debug("failure notification failed", logging.Error(notifyErr))
	}
	logging.ErrorWithContext(logger, "workspace job failed", "job_failed",
		logging.Error(err),
		logging.ErrorKind(err),
		logging.String("state", string(job.State)),
		logging.String(logging.FieldErrorHint, "see journal entry for details"),
	)
	c.recordFailure(err, job)
	return err
}

func (c *Coordinator) recordFailure(err error, job *journal.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed++
	c.lastErr = err
	if job != nil {
		snapshot := *job
		c.lastJob = &snapshot
	}
}

// trackJob stores a copy so Status never observes a job mid-update.
func (c *Coordinator) trackJob(job *journal.Job) {
	snapshot := *job
	c.mu.Lock()
	c.lastJob = &snapshot
	c.mu.Unlock()
}

// operationFor picks the lifecycle events for a claimed workspace. A worker
// filtering on a single operation knows it; otherwise the descriptor's mode
// decides.
func (c *Coordinator) operationFor(ws account.WorkspaceInfo) account.Operation {
	if c.settings.Operation != account.OperationAll {
		return c.settings.Operation
	}
	if strings.Contains(strings.ToLower(ws.Mode), "upgrad") {
		return account.OperationUpgrade
	}
	return account.OperationCreate
}

// nopJournal is used when the coordinator runs without a persistent journal.
type nopJournal struct {
	mu     sync.Mutex
	nextID int64
}

func (j *nopJournal) NewJob(_ context.Context, correlationID, workspace, operation, region string) (*journal.Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextID++
	now := time.Now().UTC()
	return &journal.Job{
		ID:            j.nextID,
		CorrelationID: correlationID,
		Workspace:     workspace,
		Operation:     operation,
		Region:        region,
		State:         journal.StateClaimed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (*nopJournal) Update(context.Context, *journal.Job) error         { return nil }
func (*nopJournal) RecordReport(context.Context, journal.Report) error { return nil }
func (*nopJournal) FailInterrupted(context.Context) (int64, error)     { return 0, nil }
