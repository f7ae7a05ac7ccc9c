package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"weft/internal/daemonrun"
	"weft/internal/journal"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run or inspect the workspace worker",
	}
	workerCmd.AddCommand(newWorkerRunCommand(ctx))
	workerCmd.AddCommand(newWorkerStatusCommand(ctx))
	return workerCmd
}

func newWorkerRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the worker claim loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}

func newWorkerStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a worker holds the lock and summarize the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			running, err := workerRunning(cfg.LockPath())
			if err != nil {
				return err
			}
			if running {
				detail := "Running"
				if pid := readPID(filepath.Join(cfg.Paths.StateDir, "weftd.pid")); pid != "" {
					detail = fmt.Sprintf("Running (pid %s)", pid)
				}
				fmt.Fprintln(out, renderStatusLine("Worker", statusOK, detail, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Worker", statusInfo, "Not running", colorize))
			}

			if strings.TrimSpace(cfg.Account.URL) == "" {
				fmt.Fprintln(out, renderStatusLine("Account", statusError, "account.url not configured", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Account", statusOK, cfg.Account.URL, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Token", statusInfo, "Present: "+yesNo(strings.TrimSpace(cfg.Account.Token) != ""), colorize))

			return ctx.withJournal(func(store *journal.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				for _, state := range journal.AllStates() {
					fmt.Fprintln(out, renderStatusLine(titleLabel(string(state)), stateKind(state), strconv.Itoa(stats[state]), colorize))
				}
				return nil
			})
		},
	}
}

// workerRunning probes the worker lock without holding it.
func workerRunning(lockPath string) (bool, error) {
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe worker lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

func readPID(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
