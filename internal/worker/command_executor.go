package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"weft/internal/logging"
	"weft/internal/services"
)

var commandContext = exec.CommandContext

const (
	stderrTailLines    = 5
	maxOutputLineBytes = 1024 * 1024
	commandWaitDelay   = 5 * time.Second
)

// CommandExecutor runs an external program for each job. The program learns
// about the job through WEFT_* environment variables and reports progress by
// printing lines of the form "progress <percent> [message]" to stdout.
type CommandExecutor struct {
	args   []string
	logger *slog.Logger
}

// NewCommandExecutor builds an executor for the given argv.
func NewCommandExecutor(args []string, logger *slog.Logger) (*CommandExecutor, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "executor", "worker.command is empty", nil)
	}
	return &CommandExecutor{
		args:   append([]string(nil), args...),
		logger: logging.NewComponentLogger(logger, "executor"),
	}, nil
}

// Execute runs the command and blocks until it exits.
func (c *CommandExecutor) Execute(ctx context.Context, job Job, progress ProgressFunc) error {
	cmd := commandContext(ctx, c.args[0], c.args[1:]...) //nolint:gosec
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	cmd.Env = append(env, jobEnv(job)...)

	cmd.WaitDelay = commandWaitDelay

	logger := logging.WithContext(ctx, c.logger)
	tail := newLineTail(stderrTailLines)
	stdout := newLineWriter(func(line string) {
		if percent, message, ok := ParseProgressLine(line); ok {
			if progress != nil {
				progress(percent, message)
			}
			return
		}
		logger.Debug("executor output", logging.String("line", line))
	})
	stderr := newLineWriter(func(line string) {
		tail.add(line)
		logger.Debug("executor stderr", logging.String("line", line))
	})
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, string(job.Operation), "start", c.args[0], err)
	}
	err := cmd.Wait()
	stdout.Flush()
	stderr.Flush()
	if dropped := stdout.Dropped() + stderr.Dropped(); dropped > 0 {
		logger.Warn("executor output lines dropped",
			logging.Int("count", dropped),
			logging.Int("limit_bytes", maxOutputLineBytes),
		)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return services.Wrap(services.ErrExternalTool, string(job.Operation), "execute",
				fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), tail.String()), err)
		}
		return services.Wrap(services.ErrExternalTool, string(job.Operation), "execute", "", err)
	}
	return nil
}

func jobEnv(job Job) []string {
	return []string{
		"WEFT_WORKSPACE=" + job.Workspace.Workspace,
		"WEFT_WORKSPACE_ID=" + job.Workspace.ID(),
		"WEFT_WORKSPACE_NAME=" + job.Workspace.WorkspaceName,
		"WEFT_OPERATION=" + string(job.Operation),
		"WEFT_ENDPOINT=" + job.Endpoint,
		"WEFT_REGION=" + job.Workspace.Region,
		"WEFT_CORRELATION_ID=" + job.CorrelationID,
	}
}

// lineWriter splits command output into lines. Lines longer than
// maxOutputLineBytes are discarded whole so a runaway writer never stalls the
// child on a full pipe.
type lineWriter struct {
	emit      func(string)
	buf       []byte
	oversized bool
	dropped   int
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			w.append(p)
			break
		}
		w.append(p[:i])
		w.Flush()
		p = p[i+1:]
	}
	return n, nil
}

func (w *lineWriter) append(b []byte) {
	if w.oversized {
		return
	}
	if len(w.buf)+len(b) > maxOutputLineBytes {
		w.oversized = true
		w.buf = w.buf[:0]
		return
	}
	w.buf = append(w.buf, b...)
}

// Flush emits any buffered partial line.
func (w *lineWriter) Flush() {
	if w.oversized {
		w.dropped++
	} else if line := strings.TrimSpace(string(w.buf)); line != "" {
		w.emit(line)
	}
	w.buf = w.buf[:0]
	w.oversized = false
}

// Dropped counts lines discarded for exceeding the length limit.
func (w *lineWriter) Dropped() int {
	return w.dropped
}

// ParseProgressLine recognises "progress <percent> [message]".
func ParseProgressLine(line string) (float64, string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "progress") {
		return 0, "", false
	}
	percent, err := strconv.ParseFloat(strings.TrimSuffix(fields[1], "%"), 64)
	if err != nil {
		return 0, "", false
	}
	message := ""
	if len(fields) > 2 {
		_, rest, _ := strings.Cut(strings.TrimSpace(line), fields[1])
		message = strings.TrimSpace(rest)
	}
	return percent, message, true
}

// lineTail keeps the last n lines written to it.
type lineTail struct {
	mu    sync.Mutex
	limit int
	lines []string
}

func newLineTail(limit int) *lineTail {
	return &lineTail{limit: limit}
}

func (l *lineTail) add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if len(l.lines) > l.limit {
		l.lines = l.lines[len(l.lines)-l.limit:]
	}
}

func (l *lineTail) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return "no stderr output"
	}
	return strings.Join(l.lines, " | ")
}
