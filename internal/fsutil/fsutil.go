// Package fsutil holds the small filesystem primitives shared by the
// installer, the registry and the manifest writers.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WriteFileAtomic writes data to a temp file in the destination directory
// and renames it over path, so readers never observe a partial file.
// Missing parent directories are created.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }() // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// Remove deletes path. A missing path is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// PruneEmptyDirs removes dir and then each parent while they are empty,
// stopping before stop (which is never removed). Missing directories are
// skipped and the first non-empty one ends the walk.
func PruneEmptyDirs(dir, stop string) error {
	dir = filepath.Clean(dir)
	stop = filepath.Clean(stop)
	for dir != stop && dir != filepath.Dir(dir) {
		rel, err := filepath.Rel(stop, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			dir = filepath.Dir(dir)
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", dir, err)
		}
		if len(entries) > 0 {
			return nil
		}
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ModeOf returns the permission bits of path, or fallback when it does
// not exist.
func ModeOf(path string, fallback fs.FileMode) fs.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return fallback
}

// MissingDirs returns dir and each parent below stop that does not exist
// yet, deepest first. Writing a file into dir would create exactly these.
func MissingDirs(dir, stop string) []string {
	dir = filepath.Clean(dir)
	stop = filepath.Clean(stop)
	var out []string
	for dir != stop && dir != filepath.Dir(dir) {
		rel, err := filepath.Rel(stop, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			break
		}
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		out = append(out, dir)
		dir = filepath.Dir(dir)
	}
	return out
}

// RemoveEmptyDirs removes each of dirs that exists and is empty, deepest
// path first so that parents emptied by their children go too.
func RemoveEmptyDirs(dirs []string) error {
	sorted := append([]string(nil), dirs...)
	sort.Slice(sorted, func(i, j int) bool {
		di, dj := strings.Count(sorted[i], string(filepath.Separator)), strings.Count(sorted[j], string(filepath.Separator))
		if di != dj {
			return di > dj
		}
		return sorted[i] > sorted[j]
	})
	for _, dir := range sorted {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", dir, err)
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}
	return nil
}
