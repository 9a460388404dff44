package snippet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/memhook/internal/platform"
)

func TestPath(t *testing.T) {
	ws := filepath.Join("w", "app")
	if got := Path(platform.HostCursor, ws); got != filepath.Join(ws, ".cursor", "rules", "memhook-context.mdc") {
		t.Errorf("cursor path = %s", got)
	}
	if got := Path(platform.HostClaude, ws); got != filepath.Join(ws, ".claude", "memhook-context.md") {
		t.Errorf("claude path = %s", got)
	}
}

func TestRender_Frontmatter(t *testing.T) {
	data, err := Render("# Recent\n- shipped v2")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := string(data)
	if !strings.HasPrefix(s, "---\n") {
		t.Fatalf("missing frontmatter:\n%s", s)
	}

	head, _, ok := strings.Cut(strings.TrimPrefix(s, "---\n"), "\n---\n")
	if !ok {
		t.Fatalf("unterminated frontmatter:\n%s", s)
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
		t.Fatalf("frontmatter is not YAML: %v", err)
	}
	if !fm.AlwaysApply {
		t.Error("alwaysApply = false, want true")
	}
	if Body(data) != "# Recent\n- shipped v2" {
		t.Errorf("Body = %q", Body(data))
	}
}

func TestRender_EmptyUsesPlaceholder(t *testing.T) {
	data, err := Render("  \n")
	if err != nil {
		t.Fatal(err)
	}
	if Body(data) != Placeholder {
		t.Errorf("Body = %q, want placeholder", Body(data))
	}
}

func TestWrite_CreatesDirectories(t *testing.T) {
	ws := t.TempDir()

	path, err := Write(platform.HostCursor, ws, "ctx")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading snippet: %v", err)
	}
	if Body(data) != "ctx" {
		t.Errorf("Body = %q", Body(data))
	}

	// Rewrites replace the whole file.
	if _, err := Write(platform.HostCursor, ws, "newer"); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if Body(data) != "newer" {
		t.Errorf("Body after rewrite = %q", Body(data))
	}
}
