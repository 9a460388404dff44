package hooks

import (
	"fmt"
	"sort"
	"time"

	"github.com/HendryAvila/memhook/internal/event"
	"github.com/HendryAvila/memhook/internal/platform"
)

// Class decides what a hook prints when things go wrong.
type Class int

const (
	// Blocking hooks are awaited by the host and must always print a
	// response with continue:true unless a policy said otherwise.
	Blocking Class = iota
	// FireAndForget hooks print nothing and always exit 0.
	FireAndForget
)

func (c Class) String() string {
	if c == Blocking {
		return "blocking"
	}
	return "fire-and-forget"
}

// Kind is one hook executor.
type Kind struct {
	Name  string
	Class Class
	// HostTimeout is the timeout written into the host manifest.
	HostTimeout time.Duration
	// Fallback is the payload variant assumed when the host omits
	// hook_event_name.
	Fallback event.Kind

	h handler
}

// Budget is the time the executor allows itself for ENSURE_WORKER and
// CALL_WORKER. It is always strictly below the host timeout so the
// degraded response is written before the host kills the process.
func (k Kind) Budget() time.Duration {
	margin := k.HostTimeout / 5
	if margin < time.Second {
		margin = time.Second
	}
	return k.HostTimeout - margin
}

// TimeoutSeconds is HostTimeout in whole seconds for manifests.
func (k Kind) TimeoutSeconds() int {
	return int(k.HostTimeout / time.Second)
}

var kinds = map[string]Kind{
	"context":      {Name: "context", Class: Blocking, HostTimeout: 60 * time.Second, Fallback: event.SessionStart, h: contextHandler{}},
	"session-init": {Name: "session-init", Class: Blocking, HostTimeout: 30 * time.Second, Fallback: event.PromptSubmit, h: sessionInitHandler{}},
	"observation":  {Name: "observation", Class: FireAndForget, HostTimeout: 30 * time.Second, Fallback: event.ToolUse, h: observationHandler{}},
	"file-edit":    {Name: "file-edit", Class: FireAndForget, HostTimeout: 30 * time.Second, Fallback: event.FileEdit, h: fileEditHandler{}},
	"summary":      {Name: "summary", Class: Blocking, HostTimeout: 60 * time.Second, Fallback: event.Stop, h: summaryHandler{}},
	"session-end":  {Name: "session-end", Class: FireAndForget, HostTimeout: 30 * time.Second, Fallback: event.SessionEnd, h: sessionEndHandler{}},
}

// Lookup returns the kind registered under name.
func Lookup(name string) (Kind, error) {
	k, ok := kinds[name]
	if !ok {
		return Kind{}, fmt.Errorf("unknown hook kind %q", name)
	}
	return k, nil
}

// Names lists every kind name, sorted.
func Names() []string {
	names := make([]string, 0, len(kinds))
	for n := range kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Binding attaches kinds to one host lifecycle event, in execution order.
type Binding struct {
	Event string
	Kinds []Kind
}

// Bindings returns the lifecycle events memhook hooks into for host.
// Each host has exactly five.
func Bindings(host platform.Host) []Binding {
	k := func(names ...string) []Kind {
		out := make([]Kind, len(names))
		for i, n := range names {
			out[i] = kinds[n]
		}
		return out
	}

	if host == platform.HostClaude {
		return []Binding{
			{Event: "SessionStart", Kinds: k("context")},
			{Event: "UserPromptSubmit", Kinds: k("session-init")},
			{Event: "PostToolUse", Kinds: k("observation")},
			{Event: "Stop", Kinds: k("summary")},
			{Event: "SessionEnd", Kinds: k("session-end")},
		}
	}
	return []Binding{
		{Event: "beforeSubmitPrompt", Kinds: k("session-init", "context")},
		{Event: "afterMCPExecution", Kinds: k("observation")},
		{Event: "afterShellExecution", Kinds: k("observation")},
		{Event: "afterFileEdit", Kinds: k("file-edit")},
		{Event: "stop", Kinds: k("summary")},
	}
}

// KindsFor returns the distinct kinds used by host, in binding order.
func KindsFor(host platform.Host) []Kind {
	seen := map[string]bool{}
	var out []Kind
	for _, b := range Bindings(host) {
		for _, k := range b.Kinds {
			if !seen[k.Name] {
				seen[k.Name] = true
				out = append(out, k)
			}
		}
	}
	return out
}
