package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"weft/internal/config"
)

const userAgent = "weft/0.1"

// Service defines the notification surface exposed to the worker.
type Service interface {
	NotifyWorkerStarted(ctx context.Context, region, operation string) error
	NotifyJobCompleted(ctx context.Context, workspace, operation string, duration time.Duration) error
	NotifyJobFailed(ctx context.Context, workspace, operation string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	errors    bool
}

func (n *ntfyService) NotifyWorkerStarted(ctx context.Context, region, operation string) error {
	region = strings.TrimSpace(region)
	if region == "" {
		region = "any region"
	}
	data := payload{
		title:    "weft - Worker Online",
		message:  fmt.Sprintf("Worker accepting %s jobs in %s", operation, region),
		tags:     []string{"weft", "worker", "started"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, workspace, operation string, duration time.Duration) error {
	if !n.completed {
		return nil
	}
	duration = max(duration.Round(time.Second), 0)
	data := payload{
		title:   "weft - " + operationLabel(operation) + " Complete",
		message: fmt.Sprintf("✅ Workspace %s finished %s in %s", strings.TrimSpace(workspace), operation, duration),
		tags:    []string{"weft", operation, "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, workspace, operation string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Workspace ")
	builder.WriteString(strings.TrimSpace(workspace))
	builder.WriteString(" failed ")
	builder.WriteString(operation)
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "weft - " + operationLabel(operation) + " Failed",
		message:  builder.String(),
		tags:     []string{"weft", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "weft - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"weft", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func operationLabel(operation string) string {
	switch strings.ToLower(strings.TrimSpace(operation)) {
	case "create":
		return "Create"
	case "upgrade":
		return "Upgrade"
	default:
		return "Job"
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyWorkerStarted(context.Context, string, string) error               { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, string, time.Duration) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string, error) error            { return nil }
func (noopService) TestNotification(context.Context) error                                  { return nil }
