package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HendryAvila/memhook/internal/config"
)

func testConfig() config.Worker {
	cfg := config.Default(".").Worker
	cfg.StartRetries = 3
	cfg.PollInterval = time.Millisecond
	cfg.RequestTimeout = 2 * time.Second
	return cfg
}

// newTestClient starts an httptest server with handler and returns a
// client pointed at it. The server is closed when the test ends.
func newTestClient(t *testing.T, cfg config.Worker, handler http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(cfg, nil).WithBaseURL(ts.URL)
}

// --- Probe / EnsureRunning ---

func TestProbe_Healthy(t *testing.T) {
	c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s, want /health", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.Probe(context.Background()); err != nil {
		t.Errorf("Probe = %v, want nil", err)
	}
}

func TestProbe_Unreachable(t *testing.T) {
	c := New(testConfig(), nil).WithBaseURL("http://127.0.0.1:1")
	if err := c.Probe(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Probe = %v, want ErrUnavailable", err)
	}
}

func TestEnsureRunning_AlreadyHealthyDoesNotSpawn(t *testing.T) {
	c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	c.cfg.Command = []string{"worker"}
	c.spawn = func([]string, []string) error {
		t.Error("spawn called for a healthy worker")
		return nil
	}

	if err := c.EnsureRunning(context.Background()); err != nil {
		t.Errorf("EnsureRunning = %v", err)
	}
}

func TestEnsureRunning_NeverHealthy(t *testing.T) {
	var probes atomic.Int32
	c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	c.cfg.Command = []string{"worker", "--daemon"}

	var spawns int
	c.spawn = func(argv []string, env []string) error {
		spawns++
		if argv[0] != "worker" {
			t.Errorf("argv = %v", argv)
		}
		return nil
	}

	err := c.EnsureRunning(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("EnsureRunning = %v, want ErrUnavailable", err)
	}
	if spawns != 1 {
		t.Errorf("spawns = %d, want exactly 1", spawns)
	}
	// One initial probe plus one per retry.
	if got := probes.Load(); got != 4 {
		t.Errorf("probes = %d, want 4", got)
	}
}

func TestEnsureRunning_BecomesHealthyAfterSpawn(t *testing.T) {
	var up atomic.Bool
	c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if up.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	c.cfg.Command = []string{"worker"}
	c.spawn = func(_ []string, env []string) error {
		if len(env) != 1 || !strings.HasPrefix(env[0], config.EnvWorkerPort+"=") {
			t.Errorf("env = %v", env)
		}
		up.Store(true)
		return nil
	}

	if err := c.EnsureRunning(context.Background()); err != nil {
		t.Errorf("EnsureRunning = %v, want nil", err)
	}
}

func TestEnsureRunning_NoCommand(t *testing.T) {
	c := New(testConfig(), nil).WithBaseURL("http://127.0.0.1:1")
	err := c.EnsureRunning(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("EnsureRunning = %v, want ErrUnavailable", err)
	}
}

func TestEnsureRunning_SpawnFails(t *testing.T) {
	c := New(testConfig(), nil).WithBaseURL("http://127.0.0.1:1")
	c.cfg.Command = []string{"missing-binary"}
	c.spawn = func([]string, []string) error { return errors.New("exec: not found") }

	if err := c.EnsureRunning(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("EnsureRunning = %v, want ErrUnavailable", err)
	}
}

// --- FetchContext ---

func TestFetchContext_Success(t *testing.T) {
	c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/context" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("project"); got != "my app" {
			t.Errorf("project = %q", got)
		}
		if got := r.URL.Query().Get("format"); got != "markdown" {
			t.Errorf("format = %q", got)
		}
		_, _ = io.WriteString(w, "\n# Recent work\n- fixed bug\n")
	}))

	got, err := c.FetchContext(context.Background(), "my app", "markdown")
	if err != nil {
		t.Fatalf("FetchContext: %v", err)
	}
	if got != "# Recent work\n- fixed bug" {
		t.Errorf("context = %q", got)
	}
}

func TestFetchContext_StatusErrorCarriesBody(t *testing.T) {
	c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "database locked", http.StatusInternalServerError)
	}))

	_, err := c.FetchContext(context.Background(), "demo", "")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusInternalServerError {
		t.Errorf("Code = %d", se.Code)
	}
	if !strings.Contains(se.Body, "database locked") {
		t.Errorf("Body = %q", se.Body)
	}
}

func TestFetchContext_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	release := make(chan struct{})
	c := newTestClient(t, cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	start := time.Now()
	if _, err := c.FetchContext(context.Background(), "demo", ""); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("request was not bounded by RequestTimeout")
	}
}

// --- SubmitObservation ---

func TestSubmitObservation_PostsJSON(t *testing.T) {
	got := make(chan Observation, 1)
	c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/observations" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s", ct)
		}
		var obs Observation
		if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
			t.Errorf("decode: %v", err)
		}
		got <- obs
		w.WriteHeader(http.StatusAccepted)
	}))

	err := c.SubmitObservation(context.Background(), Observation{SessionID: "s", Project: "demo", ToolName: "Bash"})
	if err != nil {
		t.Fatalf("SubmitObservation: %v", err)
	}
	obs := <-got
	if obs.SessionID != "s" || obs.ToolName != "Bash" {
		t.Errorf("observation = %+v", obs)
	}
}

// --- RequestSummary ---

func TestRequestSummary(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantEmpty bool
		wantText  string
	}{
		{"no content", http.StatusNoContent, "", true, ""},
		{"empty body", http.StatusOK, "", true, ""},
		{"skipped", http.StatusOK, `{"skipped":true}`, true, ""},
		{"blank summary", http.StatusOK, `{"summary":"  "}`, true, ""},
		{"summary", http.StatusOK, `{"summary":"did things"}`, false, "did things"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				_ = json.NewDecoder(r.Body).Decode(&body)
				if body["sessionId"] != "s-9" {
					t.Errorf("sessionId = %q", body["sessionId"])
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			got, err := c.RequestSummary(context.Background(), "s-9", "demo")
			if err != nil {
				t.Fatalf("RequestSummary: %v", err)
			}
			if got.Empty != tt.wantEmpty || got.Text != tt.wantText {
				t.Errorf("got %+v, want Empty=%v Text=%q", got, tt.wantEmpty, tt.wantText)
			}
		})
	}
}

// --- InitSession ---

func TestInitSession_PolicyDecision(t *testing.T) {
	c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"continue":false,"stopReason":"quota exceeded"}`)
	}))

	d, err := c.InitSession(context.Background(), SessionInit{SessionID: "s", Project: "p", Prompt: "hi"})
	if err != nil {
		t.Fatalf("InitSession: %v", err)
	}
	if d.Continue == nil || *d.Continue {
		t.Errorf("Continue = %v, want explicit false", d.Continue)
	}
	if d.StopReason != "quota exceeded" {
		t.Errorf("StopReason = %q", d.StopReason)
	}
}

func TestInitSession_EmptyBodyHasNoDecision(t *testing.T) {
	c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	d, err := c.InitSession(context.Background(), SessionInit{SessionID: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Continue != nil {
		t.Errorf("Continue = %v, want nil", *d.Continue)
	}
}

func TestCompleteSession(t *testing.T) {
	c := newTestClient(t, testConfig(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/complete" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	var se *StatusError
	if err := c.CompleteSession(context.Background(), "s"); !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("err = %v, want 404 StatusError", err)
	}
}
