package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return New(filepath.Join(t.TempDir(), "cursor-projects.json")).WithClock(func() time.Time { return fixed })
}

// --- Read ---

func TestRead_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)

	reg := s.Read()
	if reg == nil {
		t.Fatal("Read() returned nil map")
	}
	if len(reg) != 0 {
		t.Errorf("len = %d, want 0", len(reg))
	}
}

func TestRead_MalformedFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.Path(), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if reg := s.Read(); len(reg) != 0 {
		t.Errorf("Read() = %v, want empty", reg)
	}
	if _, err := s.Load(); err == nil {
		t.Error("Load() should report the malformed file")
	}

	// Self-heals on next write.
	if _, err := s.Register("demo", "/work/demo"); err != nil {
		t.Fatalf("Register after malformed: %v", err)
	}
	if _, err := s.Load(); err != nil {
		t.Errorf("Load() after register: %v", err)
	}
}

// --- Register / Unregister ---

func TestRegister_CreatesFile(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Register("demo", "/work/demo"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Fatalf("registry file not created: %v", err)
	}

	e, ok := s.Lookup("demo")
	if !ok {
		t.Fatal("Lookup(demo) missing")
	}
	if e.WorkspacePath != "/work/demo" {
		t.Errorf("WorkspacePath = %s", e.WorkspacePath)
	}
	if e.InstalledAt != "2026-03-01T12:00:00Z" {
		t.Errorf("InstalledAt = %s", e.InstalledAt)
	}
}

func TestUnregister_RemovesOnlyThatEntry(t *testing.T) {
	s := newTestStore(t)
	for name, path := range map[string]string{"a": "/w/a", "b": "/w/b", "c": "/w/c"} {
		if _, err := s.Register(name, path); err != nil {
			t.Fatal(err)
		}
	}
	before := s.Read()

	if err := s.Unregister("b"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	after := s.Read()
	if _, ok := after["b"]; ok {
		t.Error("b still registered")
	}
	if len(after) != 2 {
		t.Errorf("len = %d, want 2", len(after))
	}
	for _, name := range []string{"a", "c"} {
		if after[name] != before[name] {
			t.Errorf("%s changed: %+v → %+v", name, before[name], after[name])
		}
	}
}

func TestUnregister_AbsentIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.Unregister("ghost"); err != nil {
		t.Errorf("Unregister(ghost) = %v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("Unregister of absent name must not create the file")
	}
}

func TestUnregister_LastEntryRemovesFile(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Register("demo", "/work/demo"); err != nil {
		t.Fatal(err)
	}
	if err := s.Unregister("demo"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("registry file should be removed once empty")
	}
}

func TestRegister_SameNameLastWriteWins(t *testing.T) {
	s := newTestStore(t)

	replaced, err := s.Register("app", "/team-a/app")
	if err != nil {
		t.Fatal(err)
	}
	if replaced != nil {
		t.Errorf("first registration replaced = %+v, want nil", replaced)
	}

	replaced, err = s.Register("app", "/team-b/app")
	if err != nil {
		t.Fatal(err)
	}
	if replaced == nil || replaced.WorkspacePath != "/team-a/app" {
		t.Errorf("replaced = %+v, want /team-a/app", replaced)
	}

	e, _ := s.Lookup("app")
	if e.WorkspacePath != "/team-b/app" {
		t.Errorf("WorkspacePath = %s, want /team-b/app", e.WorkspacePath)
	}
	if len(s.Read()) != 1 {
		t.Error("collision must not create a second entry")
	}
}

func TestRegister_SamePathNotReportedAsReplaced(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.Register("app", "/w/app")
	replaced, err := s.Register("app", "/w/app")
	if err != nil {
		t.Fatal(err)
	}
	if replaced != nil {
		t.Errorf("re-registering same path reported replaced = %+v", replaced)
	}
}

// --- ProjectName ---

func TestProjectName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/work/demo", "demo"},
		{"/work/demo/", "demo"},
		{"relative/app", "app"},
	}
	for _, tt := range tests {
		if got := ProjectName(tt.in); got != tt.want {
			t.Errorf("ProjectName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
