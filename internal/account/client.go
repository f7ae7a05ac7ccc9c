package account

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"weft/internal/rpc"
	"weft/internal/version"
)

const (
	defaultHTTPTimeout       = 30 * time.Second
	defaultResponseBodyLimit = 10 << 20 // 10 MiB
	maxErrorSnippet          = 160
)

const (
	methodListWorkspaces      = "listWorkspaces"
	methodSelectWorkspace     = "selectWorkspace"
	methodGetPendingWorkspace = "getPendingWorkspace"
	methodUpdateWorkspaceInfo = "updateWorkspaceInfo"
	methodWorkerHandshake     = "workerHandshake"
)

// HTTPDoer describes the HTTP client used to reach the account service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config captures the settings required to talk to the account service.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client issues single-attempt RPC calls against the account service. It holds
// no per-call state; tokens are supplied on every call.
type Client struct {
	url          string
	httpClient   HTTPDoer
	maxBodyBytes int64
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithResponseBodyLimit caps how many response bytes are read per call.
func WithResponseBodyLimit(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

// NewClient constructs a client. An empty URL is accepted here and reported
// as a configuration error by every call.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &Client{
		url:          strings.TrimSpace(cfg.URL),
		httpClient:   &http.Client{Timeout: timeout},
		maxBodyBytes: defaultResponseBodyLimit,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// URL returns the configured account service address.
func (c *Client) URL() string {
	if c == nil {
		return ""
	}
	return c.url
}

// ListWorkspaces returns every workspace visible to token. A missing result is
// an empty list.
func (c *Client) ListWorkspaces(ctx context.Context, token string) ([]WorkspaceInfo, error) {
	body, err := c.callForBody(ctx, methodListWorkspaces, "", token)
	if err != nil {
		return nil, err
	}
	res, err := rpc.Decode(body)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Method: methodListWorkspaces, Err: err}
	}
	var workspaces []WorkspaceInfo
	if _, err := res.Into(&workspaces); err != nil {
		return nil, &Error{Kind: KindDecode, Method: methodListWorkspaces, Err: err}
	}
	if workspaces == nil {
		workspaces = []WorkspaceInfo{}
	}
	return workspaces, nil
}

// SelectWorkspace asks the account service which transactor serves the
// caller's workspace. The token travels in the Authorization header.
func (c *Client) SelectWorkspace(ctx context.Context, token string, kind EndpointKind) (string, error) {
	body, err := c.callForBody(ctx, methodSelectWorkspace, token, "", string(kind))
	if err != nil {
		return "", err
	}
	res, err := rpc.Decode(body)
	if err != nil {
		return "", &Error{Kind: KindDecode, Method: methodSelectWorkspace, Err: err}
	}
	var selected struct {
		Endpoint string `json:"endpoint"`
	}
	present, err := res.Into(&selected)
	if err != nil {
		return "", &Error{Kind: KindDecode, Method: methodSelectWorkspace, Err: err}
	}
	if !present || strings.TrimSpace(selected.Endpoint) == "" {
		return "", &Error{Kind: KindDecode, Method: methodSelectWorkspace, Err: errors.New("response has no endpoint")}
	}
	return selected.Endpoint, nil
}

// GetPendingWorkspace claims the next workspace awaiting operation in region.
// It returns nil when nothing is pending.
func (c *Client) GetPendingWorkspace(ctx context.Context, token, region string, v version.Vector, operation Operation) (*WorkspaceInfo, error) {
	body, err := c.callForBody(ctx, methodGetPendingWorkspace, "", token, region, v, string(operation))
	if err != nil {
		return nil, err
	}
	res, err := rpc.Decode(body)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Method: methodGetPendingWorkspace, Err: err}
	}
	var info WorkspaceInfo
	present, err := res.Into(&info)
	if err != nil {
		return nil, &Error{Kind: KindDecode, Method: methodGetPendingWorkspace, Err: err}
	}
	if !present {
		return nil, nil
	}
	return &info, nil
}

// UpdateWorkspaceInfo reports a lifecycle event. An empty message is sent as
// null so the params array always has six entries. The response body is
// drained and ignored, so an empty or malformed reply is not an error.
func (c *Client) UpdateWorkspaceInfo(ctx context.Context, token, workspaceID, event string, v version.Vector, progress float64, message string) error {
	var note any
	if message != "" {
		note = message
	}
	params := []any{token, workspaceID, event, v, progress, note}
	resp, err := c.post(ctx, methodUpdateWorkspaceInfo, "", params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, c.bodyLimit())); err != nil {
		return transportError(methodUpdateWorkspaceInfo, err)
	}
	return nil
}

// WorkerHandshake announces this worker to the account service. The response
// is never read.
func (c *Client) WorkerHandshake(ctx context.Context, token, region string, v version.Vector, operation Operation) error {
	resp, err := c.post(ctx, methodWorkerHandshake, "", []any{token, region, v, string(operation)})
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) callForBody(ctx context.Context, method, bearer string, params ...any) ([]byte, error) {
	resp, err := c.post(ctx, method, bearer, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := c.bodyLimit()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, transportError(method, err)
	}
	if int64(len(body)) > limit {
		return nil, &Error{Kind: KindTransport, Method: method, Err: fmt.Errorf("response body exceeds limit of %d bytes", limit)}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			Kind:       KindHTTPStatus,
			Method:     method,
			StatusCode: resp.StatusCode,
			Err:        errors.New(snippet(body)),
		}
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, method, bearer string, params []any) (*http.Response, error) {
	if c == nil || c.url == "" {
		return nil, configurationError(method)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := rpc.Encode(method, params...)
	if err != nil {
		return nil, &Error{Kind: KindEncode, Method: method, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Method: method, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(method, err)
	}
	return resp, nil
}

func (c *Client) bodyLimit() int64 {
	if c.maxBodyBytes > 0 {
		return c.maxBodyBytes
	}
	return defaultResponseBodyLimit
}

func snippet(body []byte) string {
	clean := strings.Join(strings.Fields(string(body)), " ")
	if clean == "" {
		return "<empty>"
	}
	runes := []rune(clean)
	if len(runes) > maxErrorSnippet {
		return string(runes[:maxErrorSnippet]) + "..."
	}
	return clean
}
