package hooks

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/HendryAvila/memhook/internal/event"
	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/snippet"
	"github.com/HendryAvila/memhook/internal/worker"
)

// defaultStopReason is shown when the worker blocks a prompt without
// saying why.
const defaultStopReason = "Prompt blocked by the memory worker."

// skippedTools are tool calls that carry no information worth remembering.
var skippedTools = map[string]bool{
	"TodoWrite":            true,
	"ListMcpResourcesTool": true,
	"SlashCommand":         true,
	"Skill":                true,
}

func excluded(ev event.Event, d *Deps) bool {
	project := ev.Base().Project()
	if d.Config.IsExcluded(project) {
		d.Log.Debug("project excluded", "project", project)
		return true
	}
	return false
}

func timestamp(d *Deps) string {
	return d.Now().UTC().Format(time.RFC3339)
}

// --- context ---

type contextHandler struct{}

func (contextHandler) local(ev event.Event, d *Deps) (event.Response, bool) {
	return event.Continue(), excluded(ev, d)
}

func (contextHandler) call(ctx context.Context, ev event.Event, d *Deps) (event.Response, error) {
	base := ev.Base()
	text, err := d.Worker.FetchContext(ctx, base.Project(), d.Config.ContextFormat)
	if err != nil {
		return event.Response{}, err
	}

	refreshSnippet(base, text, d)
	// Cursor has no prompt-injection channel; it reads the snippet file.
	if d.Host == platform.HostCursor || text == "" {
		return event.Continue(), nil
	}
	return injectContext(base, text), nil
}

func injectContext(base event.Envelope, text string) event.Response {
	name := base.HookEventName
	if name == "" {
		name = "SessionStart"
	}
	return event.WithContext(name, text)
}

// fallback injects the last context written to a Claude project's snippet
// when the worker cannot be reached. Claude Code does not read the file on
// its own.
func (contextHandler) fallback(ev event.Event, d *Deps) (event.Response, bool) {
	base := ev.Base()
	ws := base.Workspace()
	if d.Host != platform.HostClaude || ws == "" {
		return event.Response{}, false
	}
	data, err := os.ReadFile(snippet.Path(d.Host, filepath.Clean(ws)))
	if err != nil {
		return event.Response{}, false
	}
	text := snippet.Body(data)
	if text == "" || text == snippet.Placeholder {
		return event.Response{}, false
	}
	return injectContext(base, text), true
}

// refreshSnippet rewrites the snippet of a registered project. Projects
// installed at user or enterprise scope have no registry entry and no
// snippet.
func refreshSnippet(base event.Envelope, text string, d *Deps) {
	if d.Registry == nil {
		return
	}
	project := base.Project()
	entry, ok := d.Registry.Lookup(project)
	if !ok {
		return
	}
	ws := filepath.Clean(base.Workspace())
	if filepath.Clean(entry.WorkspacePath) != ws {
		// Two workspaces share this project name; the registry points at
		// the other one.
		d.Log.Warn("registry entry belongs to another workspace", "project", project, "registered", entry.WorkspacePath, "workspace", ws)
		return
	}
	path, err := snippet.Write(d.Host, entry.WorkspacePath, text)
	if err != nil {
		d.Log.Warn("refreshing context snippet", "project", project, "error", err)
		return
	}
	d.Log.Debug("context snippet refreshed", "path", path)
}

// --- session-init ---

type sessionInitHandler struct{}

func (sessionInitHandler) local(ev event.Event, d *Deps) (event.Response, bool) {
	if excluded(ev, d) {
		return event.Continue(), true
	}
	if p, ok := ev.(event.PromptSubmitEvent); ok && IsFullyPrivate(p.Prompt) {
		d.Log.Debug("prompt is private, not sent to worker")
		return event.Continue(), true
	}
	return event.Response{}, false
}

func (sessionInitHandler) call(ctx context.Context, ev event.Event, d *Deps) (event.Response, error) {
	base := ev.Base()
	var prompt string
	if p, ok := ev.(event.PromptSubmitEvent); ok {
		prompt = StripPrivate(p.Prompt)
	}

	dec, err := d.Worker.InitSession(ctx, worker.SessionInit{
		SessionID: base.Session(),
		Project:   base.Project(),
		Host:      string(d.Host),
		Prompt:    prompt,
	})
	if err != nil {
		return event.Response{}, err
	}
	if dec.Skipped {
		d.Log.Debug("session init skipped by worker", "reason", dec.Reason)
	}
	if dec.Continue != nil && !*dec.Continue {
		reason := dec.StopReason
		if reason == "" {
			reason = defaultStopReason
		}
		d.Log.Info("prompt blocked by worker policy", "reason", reason)
		return event.Deny(reason), nil
	}
	return event.Continue(), nil
}

// --- observation ---

type observationHandler struct{}

func (observationHandler) local(ev event.Event, d *Deps) (event.Response, bool) {
	t, ok := ev.(event.ToolUseEvent)
	if !ok {
		d.Log.Debug("observation hook got a non tool-use payload", "kind", string(ev.Kind()))
		return event.Continue(), true
	}
	if name, _, _ := t.Normalized(); name == "" || skippedTools[name] {
		return event.Continue(), true
	}
	return event.Continue(), excluded(ev, d)
}

func (observationHandler) call(ctx context.Context, ev event.Event, d *Deps) (event.Response, error) {
	t := ev.(event.ToolUseEvent)
	base := t.Base()
	name, input, result := t.Normalized()

	obs := worker.Observation{
		SessionID:  base.Session(),
		Project:    base.Project(),
		Host:       string(d.Host),
		Kind:       "tool-use",
		ToolName:   name,
		ToolInput:  stripPrivateJSON(input),
		ToolResult: stripPrivateJSON(result),
		CWD:        base.CWD,
		CapturedAt: timestamp(d),
	}
	return event.Continue(), d.Worker.SubmitObservation(ctx, obs)
}

// --- file-edit ---

type fileEditHandler struct{}

func (fileEditHandler) local(ev event.Event, d *Deps) (event.Response, bool) {
	f, ok := ev.(event.FileEditEvent)
	if !ok || f.FilePath == "" {
		return event.Continue(), true
	}
	return event.Continue(), excluded(ev, d)
}

func (fileEditHandler) call(ctx context.Context, ev event.Event, d *Deps) (event.Response, error) {
	f := ev.(event.FileEditEvent)
	base := f.Base()

	edits := make([]worker.FileEdit, 0, len(f.Edits))
	for _, e := range f.Edits {
		edits = append(edits, worker.FileEdit{Old: removeSpans(e.OldString), New: removeSpans(e.NewString)})
	}

	obs := worker.Observation{
		SessionID:  base.Session(),
		Project:    base.Project(),
		Host:       string(d.Host),
		Kind:       "file-edit",
		ToolName:   "FileEdit",
		FilePath:   f.FilePath,
		Edits:      edits,
		CWD:        base.CWD,
		CapturedAt: timestamp(d),
	}
	return event.Continue(), d.Worker.SubmitObservation(ctx, obs)
}

// --- summary ---

type summaryHandler struct{}

func (summaryHandler) local(ev event.Event, d *Deps) (event.Response, bool) {
	// A stop hook that already ran for this turn would loop.
	if s, ok := ev.(event.StopEvent); ok && s.StopHookActive {
		return event.Continue(), true
	}
	return event.Continue(), excluded(ev, d)
}

func (summaryHandler) call(ctx context.Context, ev event.Event, d *Deps) (event.Response, error) {
	base := ev.Base()
	sum, err := d.Worker.RequestSummary(ctx, base.Session(), base.Project())
	if err != nil {
		return event.Response{}, err
	}
	if sum.Empty {
		d.Log.Debug("nothing to summarize", "session", base.Session())
	} else {
		d.Log.Info("session summarized", "session", base.Session(), "chars", len(sum.Text))
	}
	return event.Continue(), nil
}

// --- session-end ---

type sessionEndHandler struct{}

func (sessionEndHandler) local(ev event.Event, d *Deps) (event.Response, bool) {
	if ev.Base().Session() == "" {
		return event.Continue(), true
	}
	return event.Continue(), excluded(ev, d)
}

func (sessionEndHandler) call(ctx context.Context, ev event.Event, d *Deps) (event.Response, error) {
	return event.Continue(), d.Worker.CompleteSession(ctx, ev.Base().Session())
}
