// Package worker is the HTTP client hooks use to reach the local memory
// worker.
//
// Every call is a single request/response with its own timeout and no
// connection reuse: hook processes live for one event, and many of them
// may hit the worker at once. The client never retries on its own; the
// only loop is the bounded spawn-and-poll inside EnsureRunning.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HendryAvila/memhook/internal/config"
)

// ErrUnavailable means the worker could not be reached (or started) within
// the retry budget for this invocation.
var ErrUnavailable = errors.New("worker unavailable")

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 64 << 10

// StatusError is returned when the worker answered with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: worker returned %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: worker returned %d: %s", e.Op, e.Code, body)
}

// Client talks to one worker.
type Client struct {
	cfg   config.Worker
	base  string
	http  *http.Client
	log   *slog.Logger
	spawn func(argv []string, env []string) error
}

// New creates a client for cfg.
func New(cfg config.Worker, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:  cfg,
		base: cfg.BaseURL(),
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:             nil, // the worker is always local
				DisableKeepAlives: true,
			},
		},
		log:   log,
		spawn: spawnDetached,
	}
}

// WithBaseURL points the client at a different root URL (tests use an
// httptest server).
func (c *Client) WithBaseURL(u string) *Client {
	cp := *c
	cp.base = strings.TrimSuffix(u, "/")
	return &cp
}

// BaseURL returns the worker root URL the client targets.
func (c *Client) BaseURL() string {
	return c.base
}

// --- Liveness ---

// Probe checks GET /health once. It never starts the worker.
func (c *Client) Probe(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drain(resp)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: health returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// EnsureRunning probes the worker and, when it is down, starts it as a
// detached background process and polls /health up to StartRetries times.
func (c *Client) EnsureRunning(ctx context.Context) error {
	if err := c.Probe(ctx); err == nil {
		return nil
	}

	if len(c.cfg.Command) == 0 {
		return fmt.Errorf("%w: not reachable at %s and no workerCommand configured", ErrUnavailable, c.base)
	}

	c.log.Info("starting worker", "command", c.cfg.Command)
	env := []string{fmt.Sprintf("%s=%d", config.EnvWorkerPort, c.cfg.Port)}
	if err := c.spawn(c.cfg.Command, env); err != nil {
		return fmt.Errorf("%w: starting %q: %v", ErrUnavailable, c.cfg.Command[0], err)
	}

	for attempt := 1; attempt <= c.cfg.StartRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}
		if err := c.Probe(ctx); err == nil {
			c.log.Info("worker ready", "attempts", attempt)
			return nil
		}
	}
	return fmt.Errorf("%w: not healthy after %d attempts", ErrUnavailable, c.cfg.StartRetries)
}

// --- Context ---

// FetchContext returns the formatted context text for project.
func (c *Client) FetchContext(ctx context.Context, project, format string) (string, error) {
	q := url.Values{}
	q.Set("project", project)
	if format != "" {
		q.Set("format", format)
	}

	resp, err := c.do(ctx, http.MethodGet, "/context?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("fetching context: %w", err)
	}
	defer drain(resp)

	if err := checkStatus("fetching context", resp); err != nil {
		return "", err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading context: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// --- Observations ---

// Observation is one captured tool use or file edit.
type Observation struct {
	SessionID  string          `json:"sessionId"`
	Project    string          `json:"project"`
	Host       string          `json:"host"`
	Kind       string          `json:"kind"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`
	ToolResult json.RawMessage `json:"toolResult,omitempty"`
	FilePath   string          `json:"filePath,omitempty"`
	Edits      []FileEdit      `json:"edits,omitempty"`
	CWD        string          `json:"cwd,omitempty"`
	CapturedAt string          `json:"capturedAt"`
}

// FileEdit is one replacement reported with a file-edit observation.
type FileEdit struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// SubmitObservation posts obs. The response body is discarded; only the
// status is checked so the caller can log failures.
func (c *Client) SubmitObservation(ctx context.Context, obs Observation) error {
	resp, err := c.postJSON(ctx, "/observations", obs)
	if err != nil {
		return fmt.Errorf("submitting observation: %w", err)
	}
	defer drain(resp)
	return checkStatus("submitting observation", resp)
}

// --- Summary ---

// Summary is the result of a summary request. Empty means the worker had
// nothing to summarize.
type Summary struct {
	Empty bool
	Text  string
}

type summaryBody struct {
	Summary string `json:"summary"`
	Skipped bool   `json:"skipped"`
}

// RequestSummary asks the worker to summarize a session.
func (c *Client) RequestSummary(ctx context.Context, sessionID, project string) (Summary, error) {
	resp, err := c.postJSON(ctx, "/summary", map[string]string{
		"sessionId": sessionID,
		"project":   project,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("requesting summary: %w", err)
	}
	defer drain(resp)

	if err := checkStatus("requesting summary", resp); err != nil {
		return Summary{}, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return Summary{Empty: true}, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Summary{}, fmt.Errorf("reading summary: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" || string(data) == "{}" {
		return Summary{Empty: true}, nil
	}

	var body summaryBody
	if err := json.Unmarshal(data, &body); err != nil {
		return Summary{}, fmt.Errorf("parsing summary: %w", err)
	}
	if body.Skipped || strings.TrimSpace(body.Summary) == "" {
		return Summary{Empty: true}, nil
	}
	return Summary{Text: body.Summary}, nil
}

// --- Sessions ---

// SessionInit registers a prompt with the worker at the start of a turn.
type SessionInit struct {
	SessionID string `json:"sessionId"`
	Project   string `json:"project"`
	Host      string `json:"host"`
	Prompt    string `json:"prompt"`
}

// SessionDecision is the worker's answer to a session init.
type SessionDecision struct {
	// Continue is nil unless the worker made an explicit policy decision.
	Continue   *bool  `json:"continue,omitempty"`
	StopReason string `json:"stopReason,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// InitSession posts the prompt that opens (or continues) a session.
func (c *Client) InitSession(ctx context.Context, in SessionInit) (SessionDecision, error) {
	resp, err := c.postJSON(ctx, "/sessions/init", in)
	if err != nil {
		return SessionDecision{}, fmt.Errorf("initializing session: %w", err)
	}
	defer drain(resp)

	if err := checkStatus("initializing session", resp); err != nil {
		return SessionDecision{}, err
	}

	var d SessionDecision
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return SessionDecision{}, fmt.Errorf("reading session decision: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return SessionDecision{}, fmt.Errorf("parsing session decision: %w", err)
	}
	return d, nil
}

// CompleteSession marks a session finished.
func (c *Client) CompleteSession(ctx context.Context, sessionID string) error {
	resp, err := c.postJSON(ctx, "/sessions/complete", map[string]string{"sessionId": sessionID})
	if err != nil {
		return fmt.Errorf("completing session: %w", err)
	}
	defer drain(resp)
	return checkStatus("completing session", resp)
}

// --- Plumbing ---

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

// do sends one request bounded by the per-request timeout. The response
// is returned with its body open; callers must drain it.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	timeout := c.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, Code: resp.StatusCode, Body: string(data)}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
