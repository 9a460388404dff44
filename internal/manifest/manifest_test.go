package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/memhook/internal/platform"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("%s is not JSON: %v", path, err)
	}
	return v
}

// --- FileName / ownership ---

func TestFileName(t *testing.T) {
	tests := []struct {
		host  platform.Host
		scope platform.Scope
		want  string
	}{
		{platform.HostCursor, platform.ScopeProject, "hooks.json"},
		{platform.HostCursor, platform.ScopeEnterprise, "hooks.json"},
		{platform.HostClaude, platform.ScopeUser, "settings.json"},
		{platform.HostClaude, platform.ScopeEnterprise, "managed-settings.json"},
	}
	for _, tt := range tests {
		if got := FileName(tt.host, tt.scope); got != tt.want {
			t.Errorf("FileName(%s, %s) = %s, want %s", tt.host, tt.scope, got, tt.want)
		}
	}
}

func TestIsOwned(t *testing.T) {
	owned := []string{
		".cursor/hooks/memhook/context.sh",
		"'/home/dev/My Home/.claude/hooks/memhook/summary.sh'",
		`powershell.exe -NoProfile -ExecutionPolicy Bypass -File "C:\Users\dev\.cursor\hooks\memhook\context.ps1"`,
	}
	for _, c := range owned {
		if !IsOwned(c) {
			t.Errorf("IsOwned(%q) = false", c)
		}
	}
	for _, c := range []string{"entire hooks cursor stop", "./hooks/memhook-fork.sh", ""} {
		if IsOwned(c) {
			t.Errorf("IsOwned(%q) = true", c)
		}
	}
}

// --- Cursor ---

func TestCursor_RoundTripKeepsForeignEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.json")
	writeFile(t, path, `{"version":1,"hooks":{"stop":[{"command":"./lint.sh","extra":true}],"afterFileEdit":[{"command":"fmt"}]}}`)

	m, err := Load(platform.HostCursor, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Set("stop", []Command{{Command: ".cursor/hooks/memhook/summary.sh", Timeout: 60}}); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	m, _ = Load(platform.HostCursor, path)
	cmds := m.Commands("stop")
	if len(cmds) != 2 || cmds[0].Command != "./lint.sh" || cmds[1].Timeout != 60 {
		t.Errorf("stop commands = %+v", cmds)
	}
	if len(m.Owned("stop")) != 1 {
		t.Errorf("owned = %+v", m.Owned("stop"))
	}

	// Re-setting is idempotent.
	_ = m.Set("stop", []Command{{Command: ".cursor/hooks/memhook/summary.sh", Timeout: 60}})
	if len(m.Commands("stop")) != 2 {
		t.Errorf("second Set duplicated entries: %+v", m.Commands("stop"))
	}

	if err := m.StripOwned(); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	v := readJSON(t, path)
	stop := v["hooks"].(map[string]any)["stop"].([]any)
	if len(stop) != 1 || stop[0].(map[string]any)["extra"] != true {
		t.Errorf("foreign entry not preserved: %v", stop)
	}
}

func TestCursor_EmptyAfterStripRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.json")

	m, err := Load(platform.HostCursor, path)
	if err != nil {
		t.Fatal(err)
	}
	_ = m.Set("stop", []Command{{Command: ".cursor/hooks/memhook/summary.sh", Timeout: 60}})
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	if v := readJSON(t, path); v["version"] != float64(1) {
		t.Errorf("version = %v, want 1", v["version"])
	}

	_ = m.StripOwned()
	if !m.Empty() {
		t.Fatal("manifest should be empty")
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("manifest still exists: %v", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.json")
	writeFile(t, path, `{"version":1,"hooks":`)

	m, err := Load(platform.HostCursor, path)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if len(m.Events()) != 0 {
		t.Error("malformed manifest should load empty")
	}

	bak, err := m.Backup()
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(bak)
	if string(data) != `{"version":1,"hooks":` {
		t.Errorf("backup = %q", data)
	}
}

// --- Claude ---

func TestClaude_PreservesSettingsAndGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	writeFile(t, path, `{
  "model": "opus",
  "permissions": {"allow": ["Bash(ls)"]},
  "hooks": {
    "Stop": [{"matcher": "", "hooks": [{"type": "command", "command": "say done"}]}]
  }
}`)

	m, err := Load(platform.HostClaude, path)
	if err != nil {
		t.Fatal(err)
	}
	_ = m.Set("Stop", []Command{{Command: ".claude/hooks/memhook/summary.sh", Timeout: 60}})
	_ = m.Set("SessionStart", []Command{{Command: ".claude/hooks/memhook/context.sh", Timeout: 60}})
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	v := readJSON(t, path)
	if v["model"] != "opus" || v["permissions"] == nil {
		t.Errorf("settings keys lost: %v", v)
	}
	hooks := v["hooks"].(map[string]any)
	start := hooks["SessionStart"].([]any)[0].(map[string]any)
	inner := start["hooks"].([]any)[0].(map[string]any)
	if inner["type"] != "command" || inner["timeout"] != float64(60) {
		t.Errorf("SessionStart hook = %v", inner)
	}
	if len(hooks["Stop"].([]any)) != 2 {
		t.Errorf("Stop groups = %v", hooks["Stop"])
	}

	m, _ = Load(platform.HostClaude, path)
	_ = m.StripOwned()
	if m.Empty() {
		t.Fatal("settings with other keys must not be empty")
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	v = readJSON(t, path)
	hooks = v["hooks"].(map[string]any)
	if _, ok := hooks["SessionStart"]; ok {
		t.Error("memhook-only event not removed")
	}
	if cmds := m.Commands("Stop"); len(cmds) != 1 || cmds[0].Command != "say done" {
		t.Errorf("Stop = %+v", cmds)
	}
}

func TestClaude_MixedGroupKeepsForeignHooks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	writeFile(t, path, `{"hooks":{"PostToolUse":[{"matcher":"Edit","hooks":[`+
		`{"type":"command","command":"/x/.claude/hooks/memhook/observation.sh"},`+
		`{"type":"command","command":"prettier"}]}]}}`)

	m, err := Load(platform.HostClaude, path)
	if err != nil {
		t.Fatal(err)
	}
	_ = m.StripOwned()
	cmds := m.Commands("PostToolUse")
	if len(cmds) != 1 || cmds[0].Command != "prettier" {
		t.Errorf("commands = %+v", cmds)
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	v := readJSON(t, path)
	group := v["hooks"].(map[string]any)["PostToolUse"].([]any)[0].(map[string]any)
	if group["matcher"] != "Edit" {
		t.Errorf("matcher lost: %v", group)
	}
}

func TestClaude_OnlyMemhookRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".claude", "settings.json")
	m, _ := Load(platform.HostClaude, path)
	_ = m.Set("Stop", []Command{{Command: ".claude/hooks/memhook/summary.sh", Timeout: 60}})
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	m, _ = Load(platform.HostClaude, path)
	_ = m.StripOwned()
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("settings.json still exists: %v", err)
	}
}

// --- Equivalence / restore ---

func TestEquivalent(t *testing.T) {
	tests := []struct {
		name string
		host platform.Host
		a, b string
		want bool
	}{
		{"formatting and key order", platform.HostClaude, `{"model":"opus","permissions":{"allow":["Bash"]}}`, "{\n  \"permissions\": {\"allow\": [\"Bash\"]},\n  \"model\": \"opus\"\n}", true},
		{"empty hooks object", platform.HostClaude, `{"model":"opus","hooks":{}}`, `{"model":"opus"}`, true},
		{"empty event list", platform.HostCursor, `{"version":1,"hooks":{"stop":[]}}`, `{"version":1}`, true},
		{"cursor version added", platform.HostCursor, `{"hooks":{}}`, `{"version":1}`, true},
		{"other cursor version", platform.HostCursor, `{"version":2}`, `{"version":1}`, false},
		{"changed value", platform.HostClaude, `{"model":"opus"}`, `{"model":"sonnet"}`, false},
		{"extra event", platform.HostCursor, `{"version":1}`, `{"version":1,"hooks":{"stop":[{"command":"say"}]}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.host, "a.json", []byte(tt.a))
			if err != nil {
				t.Fatal(err)
			}
			b, err := Parse(tt.host, "b.json", []byte(tt.b))
			if err != nil {
				t.Fatal(err)
			}
			if got := a.Equivalent(b); got != tt.want {
				t.Errorf("Equivalent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRestore_KeepsBytesAndMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	orig := `{"model":"opus","permissions":{"allow":["Bash"]}}`
	writeFile(t, path, orig)
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := Load(platform.HostClaude, path)
	if err != nil {
		t.Fatal(err)
	}
	_ = m.Set("Stop", []Command{{Command: "/home/dev/.claude/hooks/memhook/summary.sh"}})
	if !m.HasOwned() {
		t.Fatal("HasOwned = false after Set")
	}
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	_ = m.StripOwned()
	if m.HasOwned() {
		t.Fatal("HasOwned = true after StripOwned")
	}

	if err := m.Restore([]byte(orig)); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != orig {
		t.Errorf("restored = %q, want %q", data, orig)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestWrite_KeepsEmptyManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooks.json")
	m, _ := Parse(platform.HostCursor, path, []byte(`{"version":1,"hooks":{}}`))
	if !m.Empty() {
		t.Fatal("manifest should be empty")
	}
	if err := m.Write(); err != nil {
		t.Fatal(err)
	}
	if v := readJSON(t, path); v["version"] != float64(1) {
		t.Errorf("version = %v, want 1", v["version"])
	}
}
