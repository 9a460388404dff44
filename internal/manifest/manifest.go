// Package manifest reads and rewrites the host files that declare which
// command runs for which lifecycle event.
//
// Cursor keeps hooks in hooks.json:
//
//	{"version": 1, "hooks": {"stop": [{"command": "...", "timeout": 60}]}}
//
// Claude Code keeps them under the "hooks" key of settings.json, grouped
// by matcher:
//
//	{"hooks": {"Stop": [{"matcher": "", "hooks": [{"type": "command", "command": "...", "timeout": 60}]}]}}
//
// Only entries whose command points into the memhook script directory are
// ever touched. Every other key and entry round-trips unchanged.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/HendryAvila/memhook/internal/fsutil"
	"github.com/HendryAvila/memhook/internal/platform"
)

// OwnedDir is the script directory below the host target dir. Commands
// containing it belong to memhook.
const OwnedDir = "hooks/memhook"

// CursorSchemaVersion is the hooks.json version memhook writes.
const CursorSchemaVersion = 1

// ErrMalformed wraps parse failures of an existing manifest.
var ErrMalformed = errors.New("malformed hook manifest")

// Command is one invocation bound to an event.
type Command struct {
	Command string `json:"command"`
	// Timeout is in seconds.
	Timeout int `json:"timeout,omitempty"`
}

// FileName returns the manifest filename for host and scope.
func FileName(host platform.Host, scope platform.Scope) string {
	if host == platform.HostClaude {
		if scope == platform.ScopeEnterprise {
			return "managed-settings.json"
		}
		return "settings.json"
	}
	return "hooks.json"
}

// IsOwned reports whether command runs a memhook script.
func IsOwned(command string) bool {
	return strings.Contains(strings.ReplaceAll(command, `\`, "/"), OwnedDir+"/")
}

// Manifest is a loaded host manifest.
type Manifest struct {
	host platform.Host
	path string
	// top holds every top-level key except "hooks".
	top map[string]json.RawMessage
	// events holds the raw entries of each event, in file order.
	events map[string][]json.RawMessage
}

// Load reads the manifest at path. A missing file yields an empty
// manifest. A malformed file yields an empty manifest and an error
// wrapping ErrMalformed; saving it replaces the broken file.
func Load(host platform.Host, path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Parse(host, path, nil)
	}
	if err != nil {
		m, _ := Parse(host, path, nil)
		return m, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(host, path, data)
}

// Parse decodes manifest bytes as Load does, without touching the disk.
func Parse(host platform.Host, path string, data []byte) (*Manifest, error) {
	m := &Manifest{
		host:   host,
		path:   path,
		top:    map[string]json.RawMessage{},
		events: map[string][]json.RawMessage{},
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return m, nil
	}

	if err := json.Unmarshal(data, &m.top); err != nil {
		m.top = map[string]json.RawMessage{}
		return m, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if raw, ok := m.top["hooks"]; ok {
		delete(m.top, "hooks")
		if err := json.Unmarshal(raw, &m.events); err != nil {
			m.top = map[string]json.RawMessage{}
			m.events = map[string][]json.RawMessage{}
			return m, fmt.Errorf("%w: %s: hooks: %v", ErrMalformed, path, err)
		}
		for ev, entries := range m.events {
			if len(entries) == 0 {
				delete(m.events, ev)
			}
		}
	}
	return m, nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return m.path
}

// Set replaces memhook's commands for event with cmds, keeping foreign
// entries in place. An empty cmds only removes memhook's commands.
func (m *Manifest) Set(event string, cmds []Command) error {
	kept, err := m.strip(m.events[event])
	if err != nil {
		return fmt.Errorf("event %s: %w", event, err)
	}
	if len(cmds) > 0 {
		added, err := m.encode(cmds)
		if err != nil {
			return fmt.Errorf("event %s: %w", event, err)
		}
		kept = append(kept, added...)
	}
	m.setEvent(event, kept)
	return nil
}

// StripOwned removes every memhook command from every event.
func (m *Manifest) StripOwned() error {
	for _, ev := range m.Events() {
		if err := m.Set(ev, nil); err != nil {
			return err
		}
	}
	return nil
}

// Events lists the events that have at least one entry, sorted.
func (m *Manifest) Events() []string {
	out := make([]string, 0, len(m.events))
	for ev := range m.events {
		out = append(out, ev)
	}
	sort.Strings(out)
	return out
}

// Commands returns every command bound to event, memhook's and foreign.
func (m *Manifest) Commands(event string) []Command {
	var out []Command
	for _, raw := range m.events[event] {
		out = append(out, m.decode(raw)...)
	}
	return out
}

// Owned returns memhook's commands for event.
func (m *Manifest) Owned(event string) []Command {
	var out []Command
	for _, c := range m.Commands(event) {
		if IsOwned(c.Command) {
			out = append(out, c)
		}
	}
	return out
}

// HasOwned reports whether any event has a memhook command.
func (m *Manifest) HasOwned() bool {
	for ev := range m.events {
		if len(m.Owned(ev)) > 0 {
			return true
		}
	}
	return false
}

// Empty reports whether saving would leave nothing worth keeping: no
// events and, for Claude settings, no other keys.
func (m *Manifest) Empty() bool {
	if len(m.events) > 0 {
		return false
	}
	for k := range m.top {
		if m.host == platform.HostCursor && k == "version" {
			continue
		}
		return false
	}
	return true
}

// Equivalent reports whether m and o declare the same content, ignoring
// formatting, key order, empty event lists and the cursor version key
// memhook adds when it is missing.
func (m *Manifest) Equivalent(o *Manifest) bool {
	a, err := m.canonical()
	if err != nil {
		return false
	}
	b, err := o.canonical()
	if err != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func (m *Manifest) canonical() (map[string]any, error) {
	out := map[string]any{}
	for k, raw := range m.top {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if m.host == platform.HostCursor && k == "version" && v == float64(CursorSchemaVersion) {
			continue
		}
		out[k] = v
	}
	if len(m.events) > 0 {
		events := map[string]any{}
		for ev, entries := range m.events {
			list := make([]any, len(entries))
			for i, raw := range entries {
				if err := json.Unmarshal(raw, &list[i]); err != nil {
					return nil, err
				}
			}
			events[ev] = list
		}
		out["hooks"] = events
	}
	return out, nil
}

// Save writes the manifest atomically, or removes the file when Empty.
func (m *Manifest) Save() error {
	if m.Empty() {
		if err := fsutil.Remove(m.path); err != nil {
			return fmt.Errorf("removing %s: %w", m.path, err)
		}
		return nil
	}
	return m.Write()
}

// Write encodes and writes the manifest atomically even when it is Empty,
// keeping the mode of an existing file.
func (m *Manifest) Write() error {
	out := make(map[string]json.RawMessage, len(m.top)+1)
	for k, v := range m.top {
		out[k] = v
	}
	if m.host == platform.HostCursor {
		if _, ok := out["version"]; !ok {
			out["version"] = json.RawMessage(fmt.Sprint(CursorSchemaVersion))
		}
	}
	if len(m.events) > 0 {
		hooks, err := json.Marshal(m.events)
		if err != nil {
			return fmt.Errorf("encoding hooks: %w", err)
		}
		out["hooks"] = hooks
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", m.path, err)
	}
	data = append(data, '\n')
	return fsutil.WriteFileAtomic(m.path, data, fsutil.ModeOf(m.path, 0o644))
}

// Restore puts data back at the manifest path byte for byte.
func (m *Manifest) Restore(data []byte) error {
	return fsutil.WriteFileAtomic(m.path, data, fsutil.ModeOf(m.path, 0o644))
}

// Backup copies a malformed manifest aside before it is replaced, and
// returns the backup path.
func (m *Manifest) Backup() (string, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", m.path, err)
	}
	dst := BackupPath(m.path)
	if err := fsutil.WriteFileAtomic(dst, data, 0o600); err != nil {
		return "", err
	}
	return dst, nil
}

// BackupPath is where Backup copies the manifest at path.
func BackupPath(path string) string {
	return path + ".memhook.bak"
}

func (m *Manifest) setEvent(event string, entries []json.RawMessage) {
	if len(entries) == 0 {
		delete(m.events, event)
		return
	}
	m.events[event] = entries
}

// --- Host formats ---

type cursorEntry struct {
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

type claudeGroup struct {
	Matcher string            `json:"matcher"`
	Hooks   []json.RawMessage `json:"hooks"`
}

type claudeHook struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

// strip drops memhook commands from entries. Entries that cannot be
// decoded are foreign by definition and kept verbatim.
func (m *Manifest) strip(entries []json.RawMessage) ([]json.RawMessage, error) {
	var kept []json.RawMessage
	for _, raw := range entries {
		if m.host == platform.HostCursor {
			var e cursorEntry
			if json.Unmarshal(raw, &e) == nil && IsOwned(e.Command) {
				continue
			}
			kept = append(kept, raw)
			continue
		}

		var g claudeGroup
		if json.Unmarshal(raw, &g) != nil {
			kept = append(kept, raw)
			continue
		}
		var rest []json.RawMessage
		for _, h := range g.Hooks {
			var ch claudeHook
			if json.Unmarshal(h, &ch) == nil && IsOwned(ch.Command) {
				continue
			}
			rest = append(rest, h)
		}
		switch {
		case len(rest) == len(g.Hooks):
			kept = append(kept, raw)
		case len(rest) > 0:
			rewritten, err := rewriteGroup(raw, rest)
			if err != nil {
				return nil, err
			}
			kept = append(kept, rewritten)
		}
	}
	return kept, nil
}

// rewriteGroup replaces the hooks list of a matcher group, keeping any
// other keys the group has.
func rewriteGroup(raw json.RawMessage, hooks []json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding matcher group: %w", err)
	}
	list, err := json.Marshal(hooks)
	if err != nil {
		return nil, err
	}
	fields["hooks"] = list
	return json.Marshal(fields)
}

func (m *Manifest) encode(cmds []Command) ([]json.RawMessage, error) {
	if m.host == platform.HostCursor {
		out := make([]json.RawMessage, 0, len(cmds))
		for _, c := range cmds {
			raw, err := json.Marshal(cursorEntry(c))
			if err != nil {
				return nil, err
			}
			out = append(out, raw)
		}
		return out, nil
	}

	g := claudeGroup{Matcher: ""}
	for _, c := range cmds {
		raw, err := json.Marshal(claudeHook{Type: "command", Command: c.Command, Timeout: c.Timeout})
		if err != nil {
			return nil, err
		}
		g.Hooks = append(g.Hooks, raw)
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return []json.RawMessage{raw}, nil
}

func (m *Manifest) decode(raw json.RawMessage) []Command {
	if m.host == platform.HostCursor {
		var e cursorEntry
		if json.Unmarshal(raw, &e) != nil || e.Command == "" {
			return nil
		}
		return []Command{Command(e)}
	}

	var g claudeGroup
	if json.Unmarshal(raw, &g) != nil {
		return nil
	}
	var out []Command
	for _, h := range g.Hooks {
		var ch claudeHook
		if json.Unmarshal(h, &ch) == nil && ch.Command != "" {
			out = append(out, Command{Command: ch.Command, Timeout: ch.Timeout})
		}
	}
	return out
}

// Path joins the manifest filename onto a host target dir.
func Path(targetDir string, host platform.Host, scope platform.Scope) string {
	return filepath.Join(targetDir, FileName(host, scope))
}
