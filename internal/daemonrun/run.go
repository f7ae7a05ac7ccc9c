package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"weft/internal/config"
	"weft/internal/daemon"
	"weft/internal/journal"
	"weft/internal/logging"
)

// Options configures worker process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the weft worker runtime loop and blocks until a signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("weft-%s.log", runID))
	sessionID := uuid.NewString()

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
		SessionID:   sessionID,
		Region:      cfg.Worker.Region,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update weft.log link: %v\n", err)
	}
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "weftd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := journal.Open(cfg)
	if err != nil {
		logger.Error("open job journal", logging.Error(err))
		return err
	}

	coordinator, err := NewCoordinator(cfg, store, logger, sessionID)
	if err != nil {
		store.Close()
		return fmt.Errorf("create worker: %w", err)
	}

	d, err := daemon.New(cfg, store, logger, coordinator)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running worker and journal access"),
			logging.String(logging.FieldImpact, "no workspaces will be claimed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("weft worker shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "weft.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	command := ""
	if len(cfg.Worker.Command) > 0 {
		command = cfg.Worker.Command[0]
	}
	logger.Info("worker configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Bool("account_url_present", strings.TrimSpace(cfg.Account.URL) != ""),
		logging.Bool("token_present", strings.TrimSpace(cfg.Account.Token) != ""),
		logging.Bool("workspace_tokens", cfg.Account.TokenSecret != ""),
		logging.String("region", cfg.Worker.Region),
		logging.String(logging.FieldOperation, cfg.Worker.Operation),
		logging.String("endpoint_kind", cfg.Worker.EndpointKind),
		logging.String("version", cfg.Worker.Version),
		logging.String("command", command),
		logging.Bool("command_available", binaryAvailable(command)),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
