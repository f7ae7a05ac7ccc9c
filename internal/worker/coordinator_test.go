package worker_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"weft/internal/account"
	"weft/internal/authz"
	"weft/internal/journal"
	"weft/internal/lifecycle"
	"weft/internal/services"
	"weft/internal/testsupport"
	"weft/internal/version"
	"weft/internal/worker"
)

type fakeClaimer struct {
	mu         sync.Mutex
	pending    []*account.WorkspaceInfo
	endless    *account.WorkspaceInfo
	claimErr   error
	claims     int
	handshakes int
	hsErr      error
}

func (f *fakeClaimer) Claim(context.Context) (*account.WorkspaceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	if f.endless != nil {
		ws := *f.endless
		return &ws, nil
	}
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if len(f.pending) == 0 {
		return nil, nil
	}
	ws := f.pending[0]
	f.pending = f.pending[1:]
	return ws, nil
}

func (f *fakeClaimer) Handshake(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handshakes++
	return f.hsErr
}

func (f *fakeClaimer) claimCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims
}

func (f *fakeClaimer) handshakeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handshakes
}

type fakeResolver struct {
	endpoint string
	byToken  map[string]string
	err      error
	calls    int
	tokens   []string
}

func (f *fakeResolver) Resolve(_ context.Context, token string, _ account.EndpointKind, _ time.Duration) (string, error) {
	f.calls++
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return "", f.err
	}
	if f.byToken != nil {
		endpoint, ok := f.byToken[token]
		if !ok {
			return "", &account.Error{Kind: account.KindDecode, Method: "selectWorkspace", Err: errors.New("unknown token " + token)}
		}
		return endpoint, nil
	}
	return f.endpoint, nil
}

type workspaceTokens struct {
	err error
}

func (w workspaceTokens) WorkspaceToken(_ context.Context, ws account.WorkspaceInfo) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	return "token-for-" + ws.Workspace, nil
}

type brokenJournal struct{}

func (brokenJournal) NewJob(context.Context, string, string, string, string) (*journal.Job, error) {
	return nil, errors.New("disk I/O error")
}

func (brokenJournal) Update(context.Context, *journal.Job) error { return nil }

func (brokenJournal) RecordReport(context.Context, journal.Report) error { return nil }

func (brokenJournal) FailInterrupted(context.Context) (int64, error) { return 0, nil }

type reportCall struct {
	workspace string
	event     lifecycle.Event
	progress  float64
	message   string
}

type fakeReporter struct {
	mu     sync.Mutex
	calls  []reportCall
	failOn map[lifecycle.Event]error
}

func (f *fakeReporter) Report(_ context.Context, ws string, event lifecycle.Event, progress float64, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, reportCall{workspace: ws, event: event, progress: progress, message: message})
	return f.failOn[event]
}

func (f *fakeReporter) events() []lifecycle.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]lifecycle.Event, 0, len(f.calls))
	for _, call := range f.calls {
		out = append(out, call.event)
	}
	return out
}

type harness struct {
	claimer  *fakeClaimer
	resolver *fakeResolver
	reporter *fakeReporter
	store    *journal.Store
	settings worker.Settings
}

func newHarness(t *testing.T, pending ...*account.WorkspaceInfo) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return &harness{
		claimer:  &fakeClaimer{pending: pending},
		resolver: &fakeResolver{endpoint: "ws://transactor.internal:3333"},
		reporter: &fakeReporter{},
		store:    testsupport.MustOpenJournal(t, cfg),
		settings: worker.Settings{
			Token:            "worker-token",
			Region:           "test-region",
			Version:          version.Vector{Major: 0, Minor: 7, Patch: 1},
			Operation:        account.OperationAll,
			PollInterval:     10 * time.Millisecond,
			ProgressInterval: time.Hour,
		},
	}
}

func (h *harness) coordinator(executor worker.Executor, opts ...worker.Option) *worker.Coordinator {
	opts = append([]worker.Option{worker.WithJournal(h.store)}, opts...)
	return worker.New(h.settings, h.claimer, h.resolver, h.reporter, executor, opts...)
}

func (h *harness) onlyJob(t *testing.T) *journal.Job {
	t.Helper()
	jobs, err := h.store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 journaled job, got %d", len(jobs))
	}
	return jobs[0]
}

func TestProcessNextNothingPending(t *testing.T) {
	h := newHarness(t)
	coord := h.coordinator(worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
		t.Fatal("executor should not run")
		return nil
	}))

	claimed, err := coord.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if claimed {
		t.Fatal("expected no claim")
	}
	if got := h.reporter.events(); len(got) != 0 {
		t.Fatalf("expected no reports, got %v", got)
	}
}

func TestProcessNextCompletesCreate(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{WorkspaceID: "ws-1", Workspace: "alpha", Mode: "pending-creation"})
	var seen worker.Job
	coord := h.coordinator(worker.ExecutorFunc(func(_ context.Context, job worker.Job, progress worker.ProgressFunc) error {
		seen = job
		progress(42, "halfway")
		return nil
	}))

	claimed, err := coord.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if !claimed {
		t.Fatal("expected a claim")
	}
	if seen.Operation != account.OperationCreate {
		t.Fatalf("expected create operation, got %q", seen.Operation)
	}
	if seen.Endpoint != "ws://transactor.internal:3333" {
		t.Fatalf("unexpected endpoint %q", seen.Endpoint)
	}
	if len(h.resolver.tokens) != 1 || h.resolver.tokens[0] != "worker-token" {
		t.Fatalf("expected resolution with the worker token, got %v", h.resolver.tokens)
	}

	want := []lifecycle.Event{lifecycle.EventCreateStarted, lifecycle.EventProgress, lifecycle.EventCreateDone}
	got := h.reporter.events()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	progress := h.reporter.calls[1]
	if progress.workspace != "ws-1" || progress.progress != 42 || progress.message != "halfway" {
		t.Fatalf("unexpected progress report %+v", progress)
	}
	if done := h.reporter.calls[2]; done.progress != 100 {
		t.Fatalf("expected done at 100, got %v", done.progress)
	}

	job := h.onlyJob(t)
	if job.State != journal.StateCompleted {
		t.Fatalf("expected completed job, got %s", job.State)
	}
	if job.Endpoint != "ws://transactor.internal:3333" {
		t.Fatalf("endpoint not journaled: %q", job.Endpoint)
	}
	reports, err := h.store.Reports(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 journaled reports, got %d", len(reports))
	}

	status := coord.Status()
	if status.Processed != 1 || status.Failed != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.LastJob == nil || status.LastJob.Workspace != "ws-1" {
		t.Fatalf("expected last job ws-1, got %+v", status.LastJob)
	}
}

func TestProcessNextUpgradeModeUsesUpgradeEvents(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{WorkspaceID: "ws-2", Mode: "upgrading"})
	coord := h.coordinator(worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
		return nil
	}))

	if _, err := coord.ProcessNext(context.Background()); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	got := h.reporter.events()
	if len(got) != 2 || got[0] != lifecycle.EventUpgradeStarted || got[1] != lifecycle.EventUpgradeDone {
		t.Fatalf("unexpected events %v", got)
	}
	if job := h.onlyJob(t); job.Operation != string(account.OperationUpgrade) {
		t.Fatalf("expected upgrade job, got %q", job.Operation)
	}
}

func TestProcessNextExecutorFailureNeverReportsDone(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{WorkspaceID: "ws-3"})
	coord := h.coordinator(worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
		return errors.New("migration exploded")
	}))

	claimed, err := coord.ProcessNext(context.Background())
	if !claimed || err == nil {
		t.Fatalf("expected claimed job failure, got claimed=%v err=%v", claimed, err)
	}
	for _, event := range h.reporter.events() {
		if event == lifecycle.EventCreateDone || event == lifecycle.EventUpgradeDone {
			t.Fatalf("done event reported for failed job: %v", h.reporter.events())
		}
	}
	job := h.onlyJob(t)
	if job.State != journal.StateFailed {
		t.Fatalf("expected failed job, got %s", job.State)
	}
	if job.ErrorMessage == "" {
		t.Fatal("expected error message to be journaled")
	}
	if status := coord.Status(); status.Failed != 1 || status.LastError == "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestProcessNextDoneReportFailureFailsJob(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{WorkspaceID: "ws-4"})
	h.reporter.failOn = map[lifecycle.Event]error{
		lifecycle.EventCreateDone: &account.Error{Kind: account.KindConnectionReset},
	}
	coord := h.coordinator(worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
		return nil
	}))

	if _, err := coord.ProcessNext(context.Background()); err == nil {
		t.Fatal("expected error when done report fails")
	}
	if job := h.onlyJob(t); job.State != journal.StateFailed {
		t.Fatalf("expected failed job, got %s", job.State)
	}
}

func TestProcessNextStartedReportFailureIsBestEffort(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{WorkspaceID: "ws-5"})
	h.reporter.failOn = map[lifecycle.Event]error{
		lifecycle.EventCreateStarted: &account.Error{Kind: account.KindConnectionRefused},
	}
	coord := h.coordinator(worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
		return nil
	}))

	if _, err := coord.ProcessNext(context.Background()); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	job := h.onlyJob(t)
	if job.State != journal.StateCompleted {
		t.Fatalf("expected completed job, got %s", job.State)
	}
	reports, err := h.store.Reports(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(reports) == 0 || reports[0].Error == "" {
		t.Fatalf("expected failed started report to be journaled with its error, got %+v", reports)
	}
}

func TestProcessNextDeniedByAuthorizer(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{WorkspaceID: "ws-6"})
	registry := authz.NewRegistry()
	registry.Register(authz.ResourceWorkspace, authz.AuthorizerFunc(func(_ context.Context, req authz.Request) (authz.Decision, error) {
		if req.ResourceID != "ws-6" {
			t.Fatalf("unexpected resource %q", req.ResourceID)
		}
		return authz.Deny("region quarantined"), nil
	}))
	coord := h.coordinator(worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
		t.Fatal("executor should not run for denied workspace")
		return nil
	}), worker.WithAuthorizers(registry))

	if _, err := coord.ProcessNext(context.Background()); err == nil {
		t.Fatal("expected denial error")
	}
	if got := h.reporter.events(); len(got) != 0 {
		t.Fatalf("expected no reports for denied workspace, got %v", got)
	}
	if h.resolver.calls != 0 {
		t.Fatalf("expected no endpoint resolution, got %d", h.resolver.calls)
	}
	if job := h.onlyJob(t); job.State != journal.StateRejected {
		t.Fatalf("expected rejected job, got %s", job.State)
	}
}

func TestProcessNextResolveFailure(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{WorkspaceID: "ws-7"})
	h.resolver.err = &account.Error{Kind: account.KindDecode, Method: "selectWorkspace"}
	coord := h.coordinator(worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
		t.Fatal("executor should not run without an endpoint")
		return nil
	}))

	_, err := coord.ProcessNext(context.Background())
	var accErr *account.Error
	if !errors.As(err, &accErr) || accErr.Kind != account.KindDecode {
		t.Fatalf("expected decode error to be preserved, got %v", err)
	}
	if job := h.onlyJob(t); job.State != journal.StateFailed {
		t.Fatalf("expected failed job, got %s", job.State)
	}
}

func TestProcessNextResolvesWithWorkspaceToken(t *testing.T) {
	h := newHarness(t,
		&account.WorkspaceInfo{WorkspaceID: "ws-a", Workspace: "alpha"},
		&account.WorkspaceInfo{WorkspaceID: "ws-b", Workspace: "beta"},
	)
	h.resolver.byToken = map[string]string{
		"token-for-alpha": "ws://transactor-1:3333",
		"token-for-beta":  "ws://transactor-2:3333",
	}
	endpoints := map[string]string{}
	coord := h.coordinator(worker.ExecutorFunc(func(_ context.Context, job worker.Job, _ worker.ProgressFunc) error {
		endpoints[job.Workspace.ID()] = job.Endpoint
		return nil
	}), worker.WithTokenSource(workspaceTokens{}))

	for i := 0; i < 2; i++ {
		if _, err := coord.ProcessNext(context.Background()); err != nil {
			t.Fatalf("ProcessNext %d: %v", i, err)
		}
	}
	if endpoints["ws-a"] != "ws://transactor-1:3333" || endpoints["ws-b"] != "ws://transactor-2:3333" {
		t.Fatalf("expected per-workspace endpoints, got %v", endpoints)
	}
	for _, token := range h.resolver.tokens {
		if token == h.settings.Token {
			t.Fatalf("worker token used for endpoint resolution: %v", h.resolver.tokens)
		}
	}
}

func TestProcessNextUsesDescriptorEndpoint(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{
		WorkspaceID: "ws-d",
		Endpoint:    account.Endpoint{Internal: "ws://alpha.internal:3333", External: "wss://alpha.example.com"},
	})
	var seen string
	coord := h.coordinator(worker.ExecutorFunc(func(_ context.Context, job worker.Job, _ worker.ProgressFunc) error {
		seen = job.Endpoint
		return nil
	}))

	if _, err := coord.ProcessNext(context.Background()); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	if seen != "ws://alpha.internal:3333" {
		t.Fatalf("expected descriptor internal endpoint, got %q", seen)
	}
	if h.resolver.calls != 0 {
		t.Fatalf("expected no resolution, got %d calls", h.resolver.calls)
	}
}

func TestProcessNextTokenSourceFailureRejectsJob(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{WorkspaceID: "ws-t", Workspace: "tango"})
	coord := h.coordinator(worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
		t.Fatal("executor should not run without an endpoint")
		return nil
	}), worker.WithTokenSource(workspaceTokens{err: errors.New("no secret")}))

	claimed, err := coord.ProcessNext(context.Background())
	if !claimed || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected journaled configuration failure, got claimed=%v err=%v", claimed, err)
	}
	if h.resolver.calls != 0 {
		t.Fatalf("expected no resolution, got %d calls", h.resolver.calls)
	}
	if job := h.onlyJob(t); job.State != journal.StateRejected {
		t.Fatalf("expected rejected job, got %s", job.State)
	}
}

func TestProcessNextJournalFailureIsNotAClaim(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{WorkspaceID: "ws-j"})
	coord := worker.New(h.settings, h.claimer, h.resolver, h.reporter,
		worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
			t.Fatal("executor should not run without a journal entry")
			return nil
		}), worker.WithJournal(brokenJournal{}))

	claimed, err := coord.ProcessNext(context.Background())
	if claimed {
		t.Fatal("expected journal failure to be reported as no job started")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient journal error, got %v", err)
	}
	if status := coord.Status(); status.Failed != 1 || !strings.Contains(status.LastError, "disk I/O error") {
		t.Fatalf("expected failure to be counted, got %+v", status)
	}
}

func TestRunBacksOffWhenJournalFails(t *testing.T) {
	h := newHarness(t)
	h.claimer.endless = &account.WorkspaceInfo{WorkspaceID: "ws-loop"}
	h.settings.PollInterval = time.Second
	coord := worker.New(h.settings, h.claimer, h.resolver, h.reporter,
		worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
			return nil
		}), worker.WithJournal(brokenJournal{}))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := coord.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if claims := h.claimer.claimCount(); claims != 1 {
		t.Fatalf("expected a single claim within one poll interval, got %d", claims)
	}
	if got := h.reporter.events(); len(got) != 0 {
		t.Fatalf("expected no lifecycle reports, got %v", got)
	}
	if status := coord.Status(); status.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", status)
	}
}

func TestProgressReportsAreThrottled(t *testing.T) {
	h := newHarness(t, &account.WorkspaceInfo{WorkspaceID: "ws-8"})
	coord := h.coordinator(worker.ExecutorFunc(func(_ context.Context, _ worker.Job, progress worker.ProgressFunc) error {
		progress(10, "")
		progress(20, "")
		progress(130, "overshoot")
		return nil
	}))

	if _, err := coord.ProcessNext(context.Background()); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	progressReports := 0
	for _, call := range h.reporter.calls {
		if call.event == lifecycle.EventProgress {
			progressReports++
			if call.progress != 10 {
				t.Fatalf("expected first progress value to be sent, got %v", call.progress)
			}
		}
	}
	if progressReports != 1 {
		t.Fatalf("expected 1 throttled progress report, got %d", progressReports)
	}
}

func TestRunStopsOnConfigurationError(t *testing.T) {
	h := newHarness(t)
	h.claimer.claimErr = &account.Error{Kind: account.KindConfiguration, Err: account.ErrNotConfigured}
	coord := h.coordinator(worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := coord.Run(ctx)
	if !account.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if h.claimer.handshakeCount() != 1 {
		t.Fatalf("expected startup handshake, got %d", h.claimer.handshakeCount())
	}
}

func TestStartStop(t *testing.T) {
	h := newHarness(t)
	h.settings.HandshakeInterval = 5 * time.Millisecond
	coord := h.coordinator(worker.ExecutorFunc(func(context.Context, worker.Job, worker.ProgressFunc) error {
		return nil
	}))

	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := coord.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.claimer.handshakeCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected periodic handshakes, got %d", h.claimer.handshakeCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !coord.Status().Running {
		t.Fatal("expected running status")
	}

	coord.Stop()
	if coord.Status().Running {
		t.Fatal("expected stopped status")
	}
}
