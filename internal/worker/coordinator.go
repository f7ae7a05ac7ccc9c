package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"weft/internal/account"
	"weft/internal/authz"
	"weft/internal/journal"
	"weft/internal/lifecycle"
	"weft/internal/logging"
	"weft/internal/notifications"
)

// Claimer claims pending workspaces and announces the worker.
type Claimer interface {
	Claim(ctx context.Context) (*account.WorkspaceInfo, error)
	Handshake(ctx context.Context) error
}

// Resolver resolves the transactor endpoint a token is scoped to.
type Resolver interface {
	Resolve(ctx context.Context, token string, kind account.EndpointKind, timeout time.Duration) (string, error)
}

// Reporter sends lifecycle events to the account service.
type Reporter interface {
	Report(ctx context.Context, workspaceID string, event lifecycle.Event, progress float64, message string) error
}

// TokenSource issues a token scoped to a claimed workspace.
type TokenSource interface {
	WorkspaceToken(ctx context.Context, ws account.WorkspaceInfo) (string, error)
}

// Journal is the local record of claims and reports.
type Journal interface {
	NewJob(ctx context.Context, correlationID, workspace, operation, region string) (*journal.Job, error)
	Update(ctx context.Context, job *journal.Job) error
	RecordReport(ctx context.Context, report journal.Report) error
	FailInterrupted(ctx context.Context) (int64, error)
}

// Coordinator runs the claim loop.
type Coordinator struct {
	settings Settings
	claimer  Claimer
	resolver Resolver
	reporter Reporter
	executor Executor
	tokens   TokenSource
	journal  Journal
	authz    *authz.Registry
	notifier notifications.Service
	logger   *slog.Logger
	session  string
	sampler  *logging.ProgressSampler

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastJob   *journal.Job
	processed int
	failed    int
	startedAt time.Time
}

// Option configures optional Coordinator collaborators.
type Option func(*Coordinator)

// WithJournal records claims and reports in the given journal.
func WithJournal(j Journal) Option {
	return func(c *Coordinator) {
		if j != nil {
			c.journal = j
		}
	}
}

// WithTokenSource resolves endpoints with workspace-scoped tokens instead of
// the worker token.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Coordinator) {
		if tokens != nil {
			c.tokens = tokens
		}
	}
}

// WithAuthorizers replaces the default permissive registry.
func WithAuthorizers(registry *authz.Registry) Option {
	return func(c *Coordinator) {
		if registry != nil {
			c.authz = registry
		}
	}
}

// WithNotifier sends job outcome notifications.
func WithNotifier(n notifications.Service) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSessionID overrides the generated worker session identifier.
func WithSessionID(id string) Option {
	return func(c *Coordinator) {
		if id != "" {
			c.session = id
		}
	}
}

// New constructs a coordinator. Journal, notifier, and authorizers default to
// no-op or permissive implementations.
func New(settings Settings, claimer Claimer, resolver Resolver, reporter Reporter, executor Executor, opts ...Option) *Coordinator {
	c := &Coordinator{
		settings: settings.withDefaults(),
		claimer:  claimer,
		resolver: resolver,
		reporter: reporter,
		executor: executor,
		journal:  &nopJournal{},
		authz:    authz.NewRegistry(),
		notifier: notifications.NewService(nil),
		logger:   logging.NewNop(),
		session:  uuid.NewString(),
		sampler:  logging.NewProgressSampler(10),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "worker")
	return c
}

// SessionID identifies this worker process in logs.
func (c *Coordinator) SessionID() string {
	return c.session
}

// Start launches the claim loop in the background.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.startedAt = time.Now()
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		if err := c.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.setLastError(err)
		}
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()
	return nil
}

// Stop cancels the claim loop and waits for the current job to wind down.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
}

// Run executes the claim loop until ctx is cancelled or a configuration error
// makes further claims pointless.
func (c *Coordinator) Run(ctx context.Context) error {
	if n, err := c.journal.FailInterrupted(ctx); err != nil {
		c.logger.Warn("failed to close out interrupted jobs", logging.Error(err))
	} else if n > 0 {
		c.logger.Info("marked interrupted jobs as failed", logging.Int64("count", n))
	}

	if err := c.handshake(ctx); err != nil && account.IsConfiguration(err) {
		return err
	}
	if err := c.notifier.NotifyWorkerStarted(ctx, c.settings.Region, string(c.settings.Operation)); err != nil {
		c.logger.Debug("worker start notification failed", logging.Error(err))
	}

	var hsWG sync.WaitGroup
	hsCtx, hsCancel := context.WithCancel(ctx)
	if c.settings.HandshakeInterval > 0 {
		hsWG.Add(1)
		go c.handshakeLoop(hsCtx, &hsWG)
	}
	defer func() {
		hsCancel()
		hsWG.Wait()
	}()

	c.logger.Info("worker claim loop started",
		logging.String(logging.FieldEventType, "worker_start"),
		logging.String("region", c.settings.Region),
		logging.String(logging.FieldOperation, string(c.settings.Operation)),
		logging.String("version", c.settings.Version.String()),
		logging.String(logging.FieldSessionID, c.session),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		claimed, err := c.ProcessNext(ctx)
		switch {
		case err != nil && account.IsConfiguration(err):
			c.logger.Error("account service is not configured; stopping claim loop",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_config_error"),
				logging.String(logging.FieldErrorHint, "set account.url or WEFT_ACCOUNT_URL"),
			)
			return err
		case err != nil && errors.Is(err, context.Canceled):
			return err
		case err != nil && claimed:
			// The job failure is journaled; look for more work.
		case err != nil:
			c.setLastError(err)
			c.wait(ctx, c.settings.PollInterval)
		case !claimed:
			c.wait(ctx, c.settings.PollInterval)
		}
	}
}

// Status summarizes the coordinator for the CLI and daemon.
type Status struct {
	Running   bool
	SessionID string
	StartedAt time.Time
	LastError string
	LastJob   *journal.Job
	Processed int
	Failed    int
}

// Status returns a snapshot of the coordinator state.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status := Status{
		Running:   c.running,
		SessionID: c.session,
		StartedAt: c.startedAt,
		Processed: c.processed,
		Failed:    c.failed,
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	if c.lastJob != nil {
		job := *c.lastJob
		status.LastJob = &job
	}
	return status
}

func (c *Coordinator) setLastError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Coordinator) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (c *Coordinator) handshake(ctx context.Context) error {
	if err := c.claimer.Handshake(ctx); err != nil {
		logging.WarnWithContext(c.logger, "worker handshake failed", "handshake_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check account service reachability"),
			logging.String(logging.FieldImpact, "account service may not route work to this worker"),
		)
		return err
	}
	c.logger.Debug("worker handshake sent")
	return nil
}

func (c *Coordinator) handshakeLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(c.settings.HandshakeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.handshake(ctx)
		}
	}
}
