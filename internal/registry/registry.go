// Package registry persists which projects have memhook installed.
//
// The registry is one JSON file per host mapping project name to install
// metadata. Every mutation rewrites the whole file atomically, so
// concurrent installers resolve to last-writer-wins. Hook executors only
// ever read it.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/HendryAvila/memhook/internal/fsutil"
)

// Entry is the install metadata for one project.
type Entry struct {
	WorkspacePath string `json:"workspacePath"`
	InstalledAt   string `json:"installedAt"`
}

// Registry maps project name to its entry.
type Registry map[string]Entry

// Store owns the on-disk registry file.
type Store struct {
	path string
	now  func() time.Time
}

// New creates a store backed by path. The file is created lazily.
func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// WithClock returns a copy of the store using now for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{path: s.path, now: now}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// ProjectName derives the registry key for a workspace: its base name.
// Two workspaces sharing a base name share a key.
func ProjectName(workspacePath string) string {
	return filepath.Base(filepath.Clean(workspacePath))
}

// Load reads the registry strictly: a missing file is an empty registry,
// but unreadable or malformed files are reported.
func (s *Store) Load() (Registry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Registry{}, nil
		}
		return Registry{}, fmt.Errorf("reading registry: %w", err)
	}

	reg := Registry{}
	if err := json.Unmarshal(data, &reg); err != nil {
		return Registry{}, fmt.Errorf("parsing registry %s: %w", s.path, err)
	}
	if reg == nil {
		reg = Registry{}
	}
	return reg, nil
}

// Read returns the full mapping. It never fails: a missing, unreadable or
// malformed file reads as empty and is replaced on the next write.
func (s *Store) Read() Registry {
	reg, err := s.Load()
	if err != nil {
		return Registry{}
	}
	return reg
}

// Write replaces the registry file atomically. Writing an empty registry
// removes the file.
func (s *Store) Write(reg Registry) error {
	if len(reg) == 0 {
		if err := fsutil.Remove(s.path); err != nil {
			return fmt.Errorf("removing empty registry: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}

// Register upserts name → workspacePath with the current timestamp.
// When an existing entry for name pointed at a different workspace, that
// entry is returned so the caller can warn about the overwrite.
func (s *Store) Register(name, workspacePath string) (*Entry, error) {
	reg := s.Read()

	var replaced *Entry
	if prev, ok := reg[name]; ok && prev.WorkspacePath != workspacePath {
		replaced = &prev
	}

	reg[name] = Entry{
		WorkspacePath: workspacePath,
		InstalledAt:   s.now().UTC().Format(time.RFC3339),
	}
	if err := s.Write(reg); err != nil {
		return nil, err
	}
	return replaced, nil
}

// Unregister removes name if present. Absent names are a no-op and do not
// touch the file.
func (s *Store) Unregister(name string) error {
	reg := s.Read()
	if _, ok := reg[name]; !ok {
		return nil
	}
	delete(reg, name)
	return s.Write(reg)
}

// Lookup returns the entry registered under name.
func (s *Store) Lookup(name string) (Entry, bool) {
	e, ok := s.Read()[name]
	return e, ok
}
