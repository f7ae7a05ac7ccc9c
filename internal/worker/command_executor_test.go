package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"weft/internal/account"
	"weft/internal/services"
)

func setHelperCommand(t *testing.T, mode string) *[]string {
	t.Helper()
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("WEFT_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &captured
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("WEFT_HELPER_MODE") {
	case "success":
		fmt.Println("starting migration for " + os.Getenv("WEFT_WORKSPACE_ID"))
		fmt.Println("progress 25 copying blobs")
		fmt.Println("progress 100%")
		os.Exit(0)
	case "env":
		if os.Getenv("WEFT_WORKSPACE_ID") != "ws-env" || os.Getenv("WEFT_OPERATION") != "upgrade" ||
			os.Getenv("WEFT_ENDPOINT") != "ws://transactor:3333" || os.Getenv("WEFT_CORRELATION_ID") != "corr-1" {
			fmt.Fprintln(os.Stderr, "missing job environment")
			os.Exit(3)
		}
		os.Exit(0)
	case "oversized":
		fmt.Println("progress 10 starting")
		fmt.Println(strings.Repeat("x", 2*maxOutputLineBytes))
		fmt.Println("progress 100 done")
		os.Exit(0)
	case "failure":
		for i := 1; i <= 7; i++ {
			fmt.Fprintf(os.Stderr, "error line %d\n", i)
		}
		os.Exit(2)
	default:
		os.Exit(0)
	}
}

func testJob() Job {
	return Job{
		ID:            1,
		CorrelationID: "corr-1",
		Operation:     account.OperationUpgrade,
		Endpoint:      "ws://transactor:3333",
		Workspace:     account.WorkspaceInfo{WorkspaceID: "ws-env", Workspace: "env"},
	}
}

func TestNewCommandExecutorRequiresArgs(t *testing.T) {
	for _, args := range [][]string{nil, {}, {"  "}} {
		if _, err := NewCommandExecutor(args, nil); !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("args %q: expected configuration error, got %v", args, err)
		}
	}
}

func TestCommandExecutorReportsProgress(t *testing.T) {
	captured := setHelperCommand(t, "success")
	executor, err := NewCommandExecutor([]string{"/usr/local/bin/migrate", "--fast"}, nil)
	if err != nil {
		t.Fatalf("NewCommandExecutor: %v", err)
	}

	type update struct {
		percent float64
		message string
	}
	var updates []update
	err = executor.Execute(context.Background(), testJob(), func(percent float64, message string) {
		updates = append(updates, update{percent, message})
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := strings.Join(*captured, " "); got != "/usr/local/bin/migrate --fast" {
		t.Fatalf("unexpected argv %q", got)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 progress updates, got %+v", updates)
	}
	if updates[0].percent != 25 || updates[0].message != "copying blobs" {
		t.Fatalf("unexpected first update %+v", updates[0])
	}
	if updates[1].percent != 100 || updates[1].message != "" {
		t.Fatalf("unexpected second update %+v", updates[1])
	}
}

func TestCommandExecutorPassesJobEnvironment(t *testing.T) {
	setHelperCommand(t, "env")
	executor, err := NewCommandExecutor([]string{"migrate"}, nil)
	if err != nil {
		t.Fatalf("NewCommandExecutor: %v", err)
	}
	if err := executor.Execute(context.Background(), testJob(), nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestCommandExecutorFailureIncludesStderrTail(t *testing.T) {
	setHelperCommand(t, "failure")
	executor, err := NewCommandExecutor([]string{"migrate"}, nil)
	if err != nil {
		t.Fatalf("NewCommandExecutor: %v", err)
	}
	err = executor.Execute(context.Background(), testJob(), nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "exit status 2") || !strings.Contains(msg, "error line 7") {
		t.Fatalf("expected exit status and stderr tail, got %q", msg)
	}
	if strings.Contains(msg, "error line 2") {
		t.Fatalf("expected only the last %d stderr lines, got %q", stderrTailLines, msg)
	}
}

func TestCommandExecutorSurvivesOversizedLine(t *testing.T) {
	setHelperCommand(t, "oversized")
	executor, err := NewCommandExecutor([]string{"migrate"}, nil)
	if err != nil {
		t.Fatalf("NewCommandExecutor: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var percents []float64
	var last string
	err = executor.Execute(ctx, testJob(), func(percent float64, message string) {
		percents = append(percents, percent)
		last = message
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(percents) != 2 || percents[1] != 100 || last != "done" {
		t.Fatalf("expected progress after the oversized line, got %v %q", percents, last)
	}
}

func TestLineWriterSplitsAndDropsLongLines(t *testing.T) {
	var lines []string
	w := newLineWriter(func(line string) { lines = append(lines, line) })

	chunks := []string{"progress 1", "0 first\r\n\n", strings.Repeat("y", maxOutputLineBytes), "y\nsecond\n", "tail"}
	for _, chunk := range chunks {
		if n, err := w.Write([]byte(chunk)); err != nil || n != len(chunk) {
			t.Fatalf("Write(%d bytes) = %d, %v", len(chunk), n, err)
		}
	}
	w.Flush()

	want := []string{"progress 10 first", "second", "tail"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	if w.Dropped() != 1 {
		t.Fatalf("expected 1 dropped line, got %d", w.Dropped())
	}
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		line    string
		percent float64
		message string
		ok      bool
	}{
		{line: "progress 42 halfway there", percent: 42, message: "halfway there", ok: true},
		{line: "PROGRESS 7.5%", percent: 7.5, ok: true},
		{line: "progress", ok: false},
		{line: "progress abc", ok: false},
		{line: "copying progress 10", ok: false},
	}
	for _, tt := range tests {
		percent, message, ok := ParseProgressLine(tt.line)
		if ok != tt.ok || percent != tt.percent || message != tt.message {
			t.Fatalf("ParseProgressLine(%q) = (%v, %q, %v), want (%v, %q, %v)",
				tt.line, percent, message, ok, tt.percent, tt.message, tt.ok)
		}
	}
}

func TestLineTailKeepsLastLines(t *testing.T) {
	tail := newLineTail(2)
	if tail.String() != "no stderr output" {
		t.Fatalf("unexpected empty tail %q", tail.String())
	}
	tail.add("a")
	tail.add("b")
	tail.add("c")
	if got := tail.String(); got != "b | c" {
		t.Fatalf("unexpected tail %q", got)
	}
}
