package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"weft/internal/config"
	"weft/internal/journal"
	"weft/internal/logging"
	"weft/internal/notifications"
	"weft/internal/worker"
)

// Worker is the background loop the daemon supervises.
type Worker interface {
	Start(ctx context.Context) error
	Stop()
	Status() worker.Status
}

// Daemon coordinates the worker loop and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *journal.Store
	worker  Worker
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Worker       worker.Status
	JournalPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *journal.Store, logger *slog.Logger, w Worker) (*Daemon, error) {
	if cfg == nil || store == nil || w == nil {
		return nil, errors.New("daemon requires config, journal, and worker")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		worker:   w,
		logPath:  filepath.Join(cfg.Paths.LogDir, "weft.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the worker lock and launches the claim loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another weft worker instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.worker.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start worker: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("weft daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the worker and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("weft daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListJobs returns journaled jobs filtered by optional states.
func (d *Daemon) ListJobs(ctx context.Context, limit int, states ...journal.State) ([]*journal.Job, error) {
	return d.store.List(ctx, limit, states...)
}

// JobStats returns journaled job counts by state.
func (d *Daemon) JobStats(ctx context.Context) (map[journal.State]int, error) {
	return d.store.Stats(ctx)
}

// ClearFinished removes terminal jobs from the journal.
func (d *Daemon) ClearFinished(ctx context.Context) (int64, error) {
	return d.store.ClearFinished(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Worker:       d.worker.Status(),
		JournalPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
