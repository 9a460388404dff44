// Package event models the JSON payloads exchanged with host runtimes.
//
// Input payloads are a tagged variant: the host's hook_event_name selects
// one concrete struct per lifecycle kind. Hook handlers type-switch on the
// variant instead of probing a loosely typed map.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmptyPayload is returned when stdin carried no JSON at all.
var ErrEmptyPayload = errors.New("empty hook payload")

// Kind is the canonical lifecycle kind, independent of host naming.
type Kind string

const (
	SessionStart Kind = "SessionStart"
	PromptSubmit Kind = "PromptSubmit"
	ToolUse      Kind = "ToolUse"
	FileEdit     Kind = "FileEdit"
	Stop         Kind = "Stop"
	SessionEnd   Kind = "SessionEnd"
)

// hostEvents maps the event names used by Claude Code (PascalCase) and
// Cursor (camelCase) to canonical kinds.
var hostEvents = map[string]Kind{
	// claude
	"SessionStart":     SessionStart,
	"UserPromptSubmit": PromptSubmit,
	"PostToolUse":      ToolUse,
	"Stop":             Stop,
	"SessionEnd":       SessionEnd,
	// cursor
	"beforeSubmitPrompt":  PromptSubmit,
	"afterMCPExecution":   ToolUse,
	"afterShellExecution": ToolUse,
	"afterFileEdit":       FileEdit,
	"stop":                Stop,
}

// KindOf maps a host event name to its canonical kind.
func KindOf(hostEvent string) (Kind, bool) {
	k, ok := hostEvents[hostEvent]
	return k, ok
}

// Envelope carries the fields every host payload shares.
type Envelope struct {
	SessionID      string   `json:"session_id,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	GenerationID   string   `json:"generation_id,omitempty"`
	HookEventName  string   `json:"hook_event_name,omitempty"`
	CWD            string   `json:"cwd,omitempty"`
	WorkspaceRoots []string `json:"workspace_roots,omitempty"`
	TranscriptPath string   `json:"transcript_path,omitempty"`
}

// Session returns the session identifier: session_id for claude,
// conversation_id for cursor.
func (e Envelope) Session() string {
	if e.SessionID != "" {
		return e.SessionID
	}
	return e.ConversationID
}

// Workspace returns the workspace root: the first of workspace_roots, then
// cwd, then the process working directory.
func (e Envelope) Workspace() string {
	for _, r := range e.WorkspaceRoots {
		if r != "" {
			return r
		}
	}
	if e.CWD != "" {
		return e.CWD
	}
	wd, _ := os.Getwd()
	return wd
}

// Project returns the project name derived from the workspace root.
func (e Envelope) Project() string {
	ws := e.Workspace()
	if ws == "" {
		return ""
	}
	return filepath.Base(filepath.Clean(ws))
}

// Event is implemented by every payload variant.
type Event interface {
	Kind() Kind
	Base() Envelope
}

// SessionStartEvent is sent when a host session begins.
type SessionStartEvent struct {
	Envelope
	Source string `json:"source,omitempty"`
}

// PromptSubmitEvent is sent before a user prompt is processed.
type PromptSubmitEvent struct {
	Envelope
	Prompt string `json:"prompt"`
}

// ToolUseEvent is sent after a tool ran. Claude sends tool_name,
// tool_input and tool_response; Cursor sends either an MCP call
// (tool_name, tool_input, result_json) or a shell call (command, output).
type ToolUseEvent struct {
	Envelope
	ToolName     string          `json:"tool_name,omitempty"`
	ToolInput    json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse json.RawMessage `json:"tool_response,omitempty"`
	ResultJSON   json.RawMessage `json:"result_json,omitempty"`
	Command      string          `json:"command,omitempty"`
	Output       string          `json:"output,omitempty"`
}

// Normalized returns tool name, input and result in one shape whatever
// the host sent.
func (e ToolUseEvent) Normalized() (name string, input, result json.RawMessage) {
	if e.ToolName == "" && e.Command != "" {
		in, _ := json.Marshal(map[string]string{"command": e.Command})
		out, _ := json.Marshal(e.Output)
		return "Shell", in, out
	}
	result = e.ToolResponse
	if len(result) == 0 {
		result = e.ResultJSON
	}
	return e.ToolName, e.ToolInput, result
}

// Edit is one replacement applied by a file edit.
type Edit struct {
	OldString string `json:"old_string"`
	NewString string `json:"new_string"`
}

// FileEditEvent is sent after the agent edited a file.
type FileEditEvent struct {
	Envelope
	FilePath string `json:"file_path"`
	Edits    []Edit `json:"edits,omitempty"`
}

// StopEvent is sent when the agent finishes a turn.
type StopEvent struct {
	Envelope
	Status         string `json:"status,omitempty"`
	StopHookActive bool   `json:"stop_hook_active,omitempty"`
}

// SessionEndEvent is sent when a host session ends.
type SessionEndEvent struct {
	Envelope
	Reason string `json:"reason,omitempty"`
}

func (e SessionStartEvent) Kind() Kind { return SessionStart }
func (e PromptSubmitEvent) Kind() Kind { return PromptSubmit }
func (e ToolUseEvent) Kind() Kind      { return ToolUse }
func (e FileEditEvent) Kind() Kind     { return FileEdit }
func (e StopEvent) Kind() Kind         { return Stop }
func (e SessionEndEvent) Kind() Kind   { return SessionEnd }

func (e SessionStartEvent) Base() Envelope { return e.Envelope }
func (e PromptSubmitEvent) Base() Envelope { return e.Envelope }
func (e ToolUseEvent) Base() Envelope      { return e.Envelope }
func (e FileEditEvent) Base() Envelope     { return e.Envelope }
func (e StopEvent) Base() Envelope         { return e.Envelope }
func (e SessionEndEvent) Base() Envelope   { return e.Envelope }

// Decode parses a host payload into its variant. The variant is chosen by
// hook_event_name; when the host omits it or uses an unknown name, fallback
// is used.
func Decode(data []byte, fallback Kind) (Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing hook payload: %w", err)
	}

	kind := fallback
	if k, ok := KindOf(env.HookEventName); ok {
		kind = k
	}

	var (
		ev  Event
		err error
	)
	switch kind {
	case SessionStart:
		var v SessionStartEvent
		err = json.Unmarshal(data, &v)
		ev = v
	case PromptSubmit:
		var v PromptSubmitEvent
		err = json.Unmarshal(data, &v)
		ev = v
	case ToolUse:
		var v ToolUseEvent
		err = json.Unmarshal(data, &v)
		ev = v
	case FileEdit:
		var v FileEditEvent
		err = json.Unmarshal(data, &v)
		ev = v
	case Stop:
		var v StopEvent
		err = json.Unmarshal(data, &v)
		ev = v
	case SessionEnd:
		var v SessionEndEvent
		err = json.Unmarshal(data, &v)
		ev = v
	default:
		return nil, fmt.Errorf("unknown hook event kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s payload: %w", kind, err)
	}
	return ev, nil
}
