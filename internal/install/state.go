package install

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/HendryAvila/memhook/internal/fsutil"
)

// StateFile records, inside the script dir, what the first install found
// so that uninstall can put it back.
const StateFile = ".install-state.json"

// state is what existed before memhook's first install at a target.
type state struct {
	// ManifestExisted is true when a manifest was present; Manifest then
	// holds its original bytes.
	ManifestExisted bool   `json:"manifestExisted"`
	Manifest        []byte `json:"manifest,omitempty"`
	// CreatedDirs are the directories install created, relative to the
	// prune root and slash-separated.
	CreatedDirs []string `json:"createdDirs,omitempty"`
}

func statePath(target string) string {
	return filepath.Join(ScriptDir(target), StateFile)
}

// loadState reads the install state. ok is false when none was recorded.
func loadState(target string) (st state, ok bool, err error) {
	data, err := os.ReadFile(statePath(target))
	if errors.Is(err, fs.ErrNotExist) {
		return state{}, false, nil
	}
	if err != nil {
		return state{}, false, fmt.Errorf("reading install state: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return state{}, false, fmt.Errorf("parsing install state: %w", err)
	}
	return st, true, nil
}

func saveState(target string, st state) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding install state: %w", err)
	}
	return fsutil.WriteFileAtomic(statePath(target), append(data, '\n'), 0o644)
}

// noteMissing records every directory install is about to create below
// root for writing into dirs.
func (st *state) noteMissing(root string, dirs ...string) {
	seen := map[string]bool{}
	for _, d := range st.CreatedDirs {
		seen[d] = true
	}
	for _, dir := range dirs {
		for _, missing := range fsutil.MissingDirs(dir, root) {
			rel, err := filepath.Rel(root, missing)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !seen[rel] {
				seen[rel] = true
				st.CreatedDirs = append(st.CreatedDirs, rel)
			}
		}
	}
}

// createdDirs resolves CreatedDirs against root.
func (st state) createdDirs(root string) []string {
	out := make([]string, 0, len(st.CreatedDirs))
	for _, rel := range st.CreatedDirs {
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			continue
		}
		out = append(out, filepath.Join(root, filepath.FromSlash(rel)))
	}
	return out
}
