package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"weft/internal/account"
	"weft/internal/journal"
	"weft/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "create", "execute", "command failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"create", "execute", "command failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "worker failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureStateMapping(t *testing.T) {
	denied := services.Wrap(services.ErrUnauthorized, "create", "authorize", "denied", nil)
	if state := services.FailureState(denied); state != journal.StateRejected {
		t.Fatalf("expected rejected for authorization error, got %s", state)
	}

	client := account.NewClient(account.Config{})
	_, cfgErr := client.ListWorkspaces(context.Background(), "tok")
	if state := services.FailureState(cfgErr); state != journal.StateRejected {
		t.Fatalf("expected rejected for configuration error, got %s", state)
	}

	transientErr := services.Wrap(services.ErrTransient, "upgrade", "resolve", "endpoint unavailable", errors.New("io"))
	if state := services.FailureState(transientErr); state != journal.StateFailed {
		t.Fatalf("expected failed for transient error, got %s", state)
	}

	if state := services.FailureState(nil); state != journal.StateFailed {
		t.Fatalf("expected failed for nil error, got %s", state)
	}
}
