package worker

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"weft/internal/account"
	"weft/internal/journal"
	"weft/internal/lifecycle"
	"weft/internal/logging"
)

// report sends one lifecycle event and journals the attempt. Delivery
// failures are logged and returned; the caller decides whether they matter.
func (c *Coordinator) report(ctx context.Context, job *journal.Job, event lifecycle.Event, progress float64, message string) error {
	err := c.reporter.Report(ctx, job.Workspace, event, progress, message)
	entry := journal.Report{
		JobID:     job.ID,
		Workspace: job.Workspace,
		Event:     string(event),
		Progress:  progress,
		Message:   message,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if recErr := c.journal.RecordReport(context.WithoutCancel(ctx), entry); recErr != nil {
		c.logger.Warn("journal report failed", logging.Error(recErr))
	}
	if err != nil && ctx.Err() == nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "lifecycle report not delivered", "report_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "account service may show stale workspace progress"),
		)
	}
	return err
}

// progressState tracks the latest executor progress for pings and reports.
type progressState struct {
	mu      sync.Mutex
	percent float64
	message string
	limiter *rate.Limiter
}

func newProgressState(interval time.Duration) *progressState {
	return &progressState{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// update records the progress and reports whether it should be sent now.
func (p *progressState) update(percent float64, message string) (float64, bool) {
	percent = clampPercent(percent)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.percent = percent
	p.message = message
	return percent, p.limiter.Allow()
}

func (p *progressState) current() (float64, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent, p.message
}

func clampPercent(value float64) float64 {
	switch {
	case math.IsNaN(value) || value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}

// execute runs the executor while pinging the account service and forwarding
// throttled progress reports.
func (c *Coordinator) execute(ctx context.Context, job *journal.Job, ws account.WorkspaceInfo, op account.Operation) error {
	state := newProgressState(c.settings.ProgressInterval)
	logger := logging.WithContext(ctx, c.logger)
	c.sampler.Reset()

	pingCtx, stopPing := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go c.pingLoop(pingCtx, &wg, job, state)

	var reportMu sync.Mutex
	onProgress := func(percent float64, message string) {
		percent, send := state.update(percent, message)
		if c.sampler.ShouldLog(job.Workspace, percent) {
			logger.Info("workspace progress",
				logging.Float64("percent", percent),
				logging.String("message", message),
			)
		}
		if !send {
			return
		}
		reportMu.Lock()
		defer reportMu.Unlock()
		_ = c.report(ctx, job, lifecycle.EventProgress, percent, message)
	}

	err := c.executor.Execute(ctx, Job{
		ID:            job.ID,
		CorrelationID: job.CorrelationID,
		Operation:     op,
		Endpoint:      job.Endpoint,
		Workspace:     ws,
	}, onProgress)

	stopPing()
	wg.Wait()

	job.SetProgress(state.current())
	return err
}

func (c *Coordinator) pingLoop(ctx context.Context, wg *sync.WaitGroup, job *journal.Job, state *progressState) {
	defer wg.Done()
	ticker := time.NewTicker(c.settings.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			percent, _ := state.current()
			_ = c.report(ctx, job, lifecycle.EventPing, percent, "")
		}
	}
}
