package lifecycle

import (
	"context"
	"fmt"
	"math"
	"strings"

	"weft/internal/account"
	"weft/internal/version"
)

// Event is a lifecycle notification sent to the account service.
type Event string

const (
	EventPing           Event = "ping"
	EventCreateStarted  Event = "create-started"
	EventUpgradeStarted Event = "upgrade-started"
	EventProgress       Event = "progress"
	EventCreateDone     Event = "create-done"
	EventUpgradeDone    Event = "upgrade-done"
)

var allEvents = []Event{
	EventPing,
	EventCreateStarted,
	EventUpgradeStarted,
	EventProgress,
	EventCreateDone,
	EventUpgradeDone,
}

// ParseEvent converts a string into a known Event.
func ParseEvent(value string) (Event, error) {
	normalized := Event(strings.ToLower(strings.TrimSpace(value)))
	for _, event := range allEvents {
		if event == normalized {
			return event, nil
		}
	}
	return "", fmt.Errorf("unknown lifecycle event %q", value)
}

// StartedEvent returns the event announcing that an operation began.
func StartedEvent(op account.Operation) Event {
	if op == account.OperationUpgrade {
		return EventUpgradeStarted
	}
	return EventCreateStarted
}

// DoneEvent returns the event announcing that an operation finished.
func DoneEvent(op account.Operation) Event {
	if op == account.OperationUpgrade {
		return EventUpgradeDone
	}
	return EventCreateDone
}

// Updater is the account client call the reporter forwards to.
type Updater interface {
	UpdateWorkspaceInfo(ctx context.Context, token, workspaceID, event string, v version.Vector, progress float64, message string) error
}

// Reporter sends lifecycle events for one worker identity.
type Reporter struct {
	updater Updater
	token   string
	version version.Vector
}

// NewReporter binds a reporter to the worker token and version.
func NewReporter(updater Updater, token string, v version.Vector) *Reporter {
	return &Reporter{updater: updater, token: token, version: v}
}

// Report sends one event. Progress is clamped to 0..100.
func (r *Reporter) Report(ctx context.Context, workspaceID string, event Event, progress float64, message string) error {
	return r.updater.UpdateWorkspaceInfo(ctx, r.token, workspaceID, string(event), r.version, clampProgress(progress), message)
}

// Ping tells the account service the worker is still busy with the workspace.
func (r *Reporter) Ping(ctx context.Context, workspaceID string, progress float64) error {
	return r.Report(ctx, workspaceID, EventPing, progress, "")
}

func (r *Reporter) CreateStarted(ctx context.Context, workspaceID string) error {
	return r.Report(ctx, workspaceID, EventCreateStarted, 0, "")
}

func (r *Reporter) UpgradeStarted(ctx context.Context, workspaceID string) error {
	return r.Report(ctx, workspaceID, EventUpgradeStarted, 0, "")
}

func (r *Reporter) Progress(ctx context.Context, workspaceID string, progress float64, message string) error {
	return r.Report(ctx, workspaceID, EventProgress, progress, message)
}

func (r *Reporter) CreateDone(ctx context.Context, workspaceID, message string) error {
	return r.Report(ctx, workspaceID, EventCreateDone, 100, message)
}

func (r *Reporter) UpgradeDone(ctx context.Context, workspaceID, message string) error {
	return r.Report(ctx, workspaceID, EventUpgradeDone, 100, message)
}

func clampProgress(value float64) float64 {
	switch {
	case math.IsNaN(value), value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}
