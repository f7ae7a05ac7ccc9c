package main

import (
	"strings"
	"testing"

	"weft/internal/journal"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Worker", statusOK, "Running", false)
	if !strings.Contains(line, "Worker:") || !strings.Contains(line, "[OK] Running") {
		t.Fatalf("unexpected status line %q", line)
	}
	colored := renderStatusLine("Worker", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected red status line, got %q", colored)
	}
}

func TestColorizeState(t *testing.T) {
	if got := colorizeState(journal.StateCompleted, false); got != "Completed" {
		t.Fatalf("unexpected plain state %q", got)
	}
	if got := colorizeState(journal.StateRejected, true); got != ansiYellow+"Rejected"+ansiReset {
		t.Fatalf("unexpected colored state %q", got)
	}
}

func TestTitleLabel(t *testing.T) {
	tests := map[string]string{
		"create-started": "Create Started",
		"upgrade":        "Upgrade",
		"pending_create": "Pending Create",
		"  ":             "",
	}
	for input, want := range tests {
		if got := titleLabel(input); got != want {
			t.Fatalf("titleLabel(%q) = %q, want %q", input, got, want)
		}
	}
}
