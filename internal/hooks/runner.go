// Package hooks holds the hook executors the host runs once per lifecycle
// event.
//
// Every executor is the same explicit state machine:
//
//	START -> ENSURE_WORKER -> CALL_WORKER -> EMIT_RESPONSE
//
// with EMIT_DEGRADED_RESPONSE reachable from every state. Blocking kinds
// always print a JSON response with continue:true unless a handler made a
// policy decision. Fire-and-forget kinds never print. Run returns 0 in
// every case, including a recovered panic.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/HendryAvila/memhook/internal/config"
	"github.com/HendryAvila/memhook/internal/event"
	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/registry"
	"github.com/HendryAvila/memhook/internal/worker"
)

// MaxPayload caps how much of stdin is read.
const MaxPayload = 1 << 20

// ErrPayloadTooLarge is returned when stdin exceeds MaxPayload.
var ErrPayloadTooLarge = errors.New("hook payload exceeds 1 MiB")

// Worker is the part of the worker client the executors use.
type Worker interface {
	EnsureRunning(ctx context.Context) error
	FetchContext(ctx context.Context, project, format string) (string, error)
	SubmitObservation(ctx context.Context, obs worker.Observation) error
	RequestSummary(ctx context.Context, sessionID, project string) (worker.Summary, error)
	InitSession(ctx context.Context, in worker.SessionInit) (worker.SessionDecision, error)
	CompleteSession(ctx context.Context, sessionID string) error
}

// Deps is everything one invocation needs.
type Deps struct {
	Host   platform.Host
	Config config.Config
	Worker Worker
	// Registry is read by the cursor context hook to refresh snippets.
	// Nil disables the refresh.
	Registry *registry.Store
	Log      *slog.Logger
	Now      func() time.Time
	// Budget overrides Kind.Budget when positive.
	Budget time.Duration
}

type state int

const (
	stateStart state = iota
	stateEnsureWorker
	stateCallWorker
	stateEmitResponse
	stateEmitDegraded
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "START"
	case stateEnsureWorker:
		return "ENSURE_WORKER"
	case stateCallWorker:
		return "CALL_WORKER"
	case stateEmitResponse:
		return "EMIT_RESPONSE"
	case stateEmitDegraded:
		return "EMIT_DEGRADED_RESPONSE"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// handler is the per-kind logic plugged into the machine.
type handler interface {
	// local runs in START, before any worker traffic. done skips the
	// worker entirely and emits resp.
	local(ev event.Event, d *Deps) (resp event.Response, done bool)
	// call runs in CALL_WORKER.
	call(ctx context.Context, ev event.Event, d *Deps) (event.Response, error)
}

// fallbacker is implemented by handlers that can answer without the
// worker once EMIT_DEGRADED_RESPONSE is reached.
type fallbacker interface {
	fallback(ev event.Event, d *Deps) (event.Response, bool)
}

// Run executes kind once against stdin and stdout.
func Run(ctx context.Context, kind Kind, d Deps, stdin io.Reader, stdout io.Writer) int {
	if d.Log == nil {
		d.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	d.Log = d.Log.With("hook", kind.Name, "host", string(d.Host))

	m := &machine{kind: kind, deps: &d, log: d.Log}
	resp := m.run(ctx, stdin)
	m.emit(stdout, resp)
	return 0
}

type machine struct {
	kind  Kind
	deps  *Deps
	log   *slog.Logger
	state state
}

func (m *machine) to(next state) {
	m.log.Debug("hook state", "from", m.state.String(), "to", next.String())
	m.state = next
}

func (m *machine) run(ctx context.Context, stdin io.Reader) (resp event.Response) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("hook panicked", "state", m.state.String(), "panic", fmt.Sprint(r))
			resp = m.degrade(fmt.Errorf("panic: %v", r))
		}
	}()

	ev, err := readEvent(stdin, m.kind.Fallback)
	if err != nil {
		return m.degrade(err)
	}
	if r, done := m.kind.h.local(ev, m.deps); done {
		m.to(stateEmitResponse)
		return r
	}

	budget := m.kind.Budget()
	if m.deps.Budget > 0 {
		budget = m.deps.Budget
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	m.to(stateEnsureWorker)
	if m.deps.Worker == nil {
		return m.degradeEvent(ev, worker.ErrUnavailable)
	}
	if err := m.deps.Worker.EnsureRunning(ctx); err != nil {
		return m.degradeEvent(ev, err)
	}

	m.to(stateCallWorker)
	r, err := m.kind.h.call(ctx, ev, m.deps)
	if err != nil {
		return m.degradeEvent(ev, err)
	}

	m.to(stateEmitResponse)
	return r
}

func (m *machine) degrade(err error) event.Response {
	m.log.Warn("hook degraded", "state", m.state.String(), "error", err)
	m.to(stateEmitDegraded)
	return event.Continue()
}

// degradeEvent is degrade for a decoded event: the handler's fallback
// answer is used when it has one.
func (m *machine) degradeEvent(ev event.Event, err error) event.Response {
	resp := m.degrade(err)
	if f, ok := m.kind.h.(fallbacker); ok {
		if r, ok := f.fallback(ev, m.deps); ok {
			m.log.Info("hook answered from fallback")
			return r
		}
	}
	return resp
}

func (m *machine) emit(w io.Writer, resp event.Response) {
	if m.kind.Class == FireAndForget {
		return
	}
	if err := resp.Write(w); err != nil {
		m.log.Error("writing hook response", "error", err)
	}
}

func readEvent(r io.Reader, fallback event.Kind) (event.Event, error) {
	if r == nil {
		return nil, event.ErrEmptyPayload
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxPayload+1))
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	return event.Decode(data, fallback)
}
