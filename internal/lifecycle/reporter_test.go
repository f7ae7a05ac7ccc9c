package lifecycle_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"weft/internal/account"
	"weft/internal/lifecycle"
	"weft/internal/version"
)

type recordedUpdate struct {
	token, workspace, event string
	version                 version.Vector
	progress                float64
	message                 string
}

type fakeUpdater struct {
	calls []recordedUpdate
	err   error
}

func (f *fakeUpdater) UpdateWorkspaceInfo(_ context.Context, token, workspaceID, event string, v version.Vector, progress float64, message string) error {
	f.calls = append(f.calls, recordedUpdate{token, workspaceID, event, v, progress, message})
	return f.err
}

func TestReporterEvents(t *testing.T) {
	updater := &fakeUpdater{}
	v := version.MustParse("0.6.2")
	reporter := lifecycle.NewReporter(updater, "tok", v)
	ctx := context.Background()

	steps := []func() error{
		func() error { return reporter.CreateStarted(ctx, "ws-1") },
		func() error { return reporter.Progress(ctx, "ws-1", 42, "halfway") },
		func() error { return reporter.Ping(ctx, "ws-1", 42) },
		func() error { return reporter.CreateDone(ctx, "ws-1", "") },
		func() error { return reporter.UpgradeStarted(ctx, "ws-2") },
		func() error { return reporter.UpgradeDone(ctx, "ws-2", "ok") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	want := []recordedUpdate{
		{"tok", "ws-1", "create-started", v, 0, ""},
		{"tok", "ws-1", "progress", v, 42, "halfway"},
		{"tok", "ws-1", "ping", v, 42, ""},
		{"tok", "ws-1", "create-done", v, 100, ""},
		{"tok", "ws-2", "upgrade-started", v, 0, ""},
		{"tok", "ws-2", "upgrade-done", v, 100, "ok"},
	}
	if len(updater.calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(updater.calls))
	}
	for i := range want {
		if updater.calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, updater.calls[i], want[i])
		}
	}
}

func TestReporterClampsProgress(t *testing.T) {
	updater := &fakeUpdater{}
	reporter := lifecycle.NewReporter(updater, "tok", version.Vector{})
	for _, value := range []float64{-5, 150, math.NaN()} {
		if err := reporter.Progress(context.Background(), "ws", value, ""); err != nil {
			t.Fatalf("Progress: %v", err)
		}
	}
	got := []float64{updater.calls[0].progress, updater.calls[1].progress, updater.calls[2].progress}
	if got[0] != 0 || got[1] != 100 || got[2] != 0 {
		t.Fatalf("unexpected clamped values %v", got)
	}
}

func TestReporterPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	reporter := lifecycle.NewReporter(&fakeUpdater{err: boom}, "tok", version.Vector{})
	if err := reporter.Ping(context.Background(), "ws", 0); !errors.Is(err, boom) {
		t.Fatalf("expected updater error, got %v", err)
	}

	unconfigured := lifecycle.NewReporter(account.NewClient(account.Config{}), "tok", version.Vector{})
	err := unconfigured.CreateStarted(context.Background(), "ws")
	if !account.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestReporterOverAccountClient(t *testing.T) {
	var params []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "updateWorkspaceInfo" {
			t.Errorf("unexpected method %q", req.Method)
		}
		params = req.Params
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := account.NewClient(account.Config{URL: server.URL})
	reporter := lifecycle.NewReporter(client, "tok", version.MustParse("1.2.3"))
	if err := reporter.Progress(context.Background(), "ws-9", 42, "halfway"); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if len(params) != 6 || params[0] != "tok" || params[1] != "ws-9" || params[2] != "progress" || params[4] != float64(42) || params[5] != "halfway" {
		t.Fatalf("unexpected params %v", params)
	}
}

func TestParseEventAndOperationEvents(t *testing.T) {
	if event, err := lifecycle.ParseEvent(" Upgrade-Done "); err != nil || event != lifecycle.EventUpgradeDone {
		t.Fatalf("unexpected parse result %q %v", event, err)
	}
	if _, err := lifecycle.ParseEvent("deleted"); err == nil {
		t.Fatal("expected unknown event error")
	}
	if lifecycle.StartedEvent(account.OperationUpgrade) != lifecycle.EventUpgradeStarted {
		t.Fatal("upgrade should map to upgrade-started")
	}
	if lifecycle.DoneEvent(account.OperationCreate) != lifecycle.EventCreateDone {
		t.Fatal("create should map to create-done")
	}
}
