// Package install materializes and removes memhook's hook artifacts for a
// host and scope: wrapper scripts, the host manifest, and for project
// scope the context snippet and registry entry.
//
// Install and Uninstall are both safe to re-run. Uninstall after Install
// leaves the filesystem as it was, and Uninstall with nothing installed
// succeeds.
package install

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/memhook/internal/config"
	"github.com/HendryAvila/memhook/internal/fsutil"
	"github.com/HendryAvila/memhook/internal/hooks"
	"github.com/HendryAvila/memhook/internal/manifest"
	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/registry"
	"github.com/HendryAvila/memhook/internal/scripts"
	"github.com/HendryAvila/memhook/internal/snippet"
)

// ContextSource provides the text written into the project snippet.
type ContextSource interface {
	EnsureRunning(ctx context.Context) error
	FetchContext(ctx context.Context, project, format string) (string, error)
}

// Installer installs and uninstalls hooks.
type Installer struct {
	Resolver *platform.Resolver
	Config   config.Config
	// Worker may be nil; the snippet then gets placeholder text.
	Worker ContextSource
	// Binary is the memhook executable the wrapper scripts exec.
	Binary string
	Log    *slog.Logger
}

// Options selects what to install.
type Options struct {
	Host  platform.Host
	Scope platform.Scope
	// Source overrides the embedded script templates.
	Source fs.FS
}

// Result describes what an install or uninstall did.
type Result struct {
	Host      platform.Host
	Scope     platform.Scope
	TargetDir string
	Manifest  string
	Scripts   []string
	// Missing lists kinds skipped because no script template was found.
	Missing  []string
	Snippet  string
	Project  string
	Warnings []string
}

func (r *Result) warn(log *slog.Logger, msg string, args ...any) {
	log.Warn(msg, args...)
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	r.Warnings = append(r.Warnings, b.String())
}

// ScriptDir returns the directory holding memhook's scripts under a host
// target dir.
func ScriptDir(targetDir string) string {
	return filepath.Join(targetDir, filepath.FromSlash(manifest.OwnedDir))
}

func (in *Installer) log() *slog.Logger {
	if in.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return in.Log
}

func (in *Installer) registry(host platform.Host) *registry.Store {
	return registry.New(config.RegistryPath(in.Config.DataDir, string(host)))
}

// Install writes scripts and the manifest for opts.Host at opts.Scope.
// Unexpected panics are returned as errors.
func (in *Installer) Install(ctx context.Context, opts Options) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("install failed unexpectedly: %v", r)
		}
	}()

	log := in.log().With("host", string(opts.Host), "scope", string(opts.Scope))
	target, err := in.Resolver.TargetDir(opts.Host, opts.Scope)
	if err != nil {
		return nil, err
	}
	res = &Result{
		Host:      opts.Host,
		Scope:     opts.Scope,
		TargetDir: target,
		Manifest:  manifest.Path(target, opts.Host, opts.Scope),
	}

	root := ""
	if opts.Scope.RelativePaths() {
		if root, err = in.Resolver.WorkspaceRoot(); err != nil {
			return nil, err
		}
	}

	if err := in.recordState(opts.Host, opts.Scope, target, res.Manifest, root); err != nil {
		return res, err
	}

	installed, err := in.writeScripts(opts, target, root, res, log)
	if err != nil {
		return res, err
	}

	if err := in.writeManifest(opts, res, installed, log); err != nil {
		return res, err
	}
	log.Info("manifest written", "path", res.Manifest, "scripts", len(res.Scripts))

	if opts.Scope == platform.ScopeProject {
		if err := in.installProject(ctx, opts.Host, root, res, log); err != nil {
			return res, err
		}
	}
	return res, nil
}

// recordState notes, on the first install at target, whether the manifest
// existed and its bytes. Every install adds the directories it is about to
// create.
func (in *Installer) recordState(host platform.Host, scope platform.Scope, target, manifestPath, root string) error {
	st, ok, err := loadState(target)
	if err != nil {
		return err
	}
	if !ok {
		data, err := os.ReadFile(manifestPath)
		switch {
		case err == nil:
			st.ManifestExisted = true
			st.Manifest = data
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("reading %s: %w", manifestPath, err)
		}
	}

	stop, err := in.Resolver.PruneRoot(host, scope)
	if err != nil {
		return err
	}
	dirs := []string{ScriptDir(target), filepath.Dir(manifestPath)}
	if scope == platform.ScopeProject {
		dirs = append(dirs, filepath.Dir(snippet.Path(host, root)))
	}
	st.noteMissing(stop, dirs...)
	return saveState(target, st)
}

// writeScripts renders every kind the host needs and returns the
// invocation path of each script written, keyed by kind.
func (in *Installer) writeScripts(opts Options, target, root string, res *Result, log *slog.Logger) (map[string]string, error) {
	r := scripts.NewRenderer(opts.Source)
	ext := in.Resolver.ScriptExt()
	dir := ScriptDir(target)
	installed := map[string]string{}

	for _, k := range hooks.KindsFor(opts.Host) {
		data, err := r.Render(ext, scripts.Data{
			Kind:     k.Name,
			Host:     string(opts.Host),
			Binary:   in.Binary,
			Blocking: k.Class == hooks.Blocking,
		})
		if errors.Is(err, scripts.ErrMissing) {
			res.Missing = append(res.Missing, k.Name)
			res.warn(log, "hook script missing, skipping", "kind", k.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("rendering %s script: %w", k.Name, err)
		}

		path := filepath.Join(dir, k.Name+ext)
		if err := fsutil.WriteFileAtomic(path, data, 0o755); err != nil {
			return nil, fmt.Errorf("writing %s script: %w", k.Name, err)
		}
		res.Scripts = append(res.Scripts, path)

		ref := path
		if root != "" {
			if rel, err := filepath.Rel(root, path); err == nil {
				ref = rel
			}
		}
		installed[k.Name] = ref
	}
	return installed, nil
}

func (in *Installer) writeManifest(opts Options, res *Result, installed map[string]string, log *slog.Logger) error {
	m, err := manifest.Load(opts.Host, res.Manifest)
	if errors.Is(err, manifest.ErrMalformed) {
		bak, berr := m.Backup()
		if berr != nil {
			return fmt.Errorf("%w (backup failed: %v)", err, berr)
		}
		res.warn(log, "existing manifest is malformed, replaced", "backup", bak)
	} else if err != nil {
		return err
	}

	for _, b := range hooks.Bindings(opts.Host) {
		var cmds []manifest.Command
		for _, k := range b.Kinds {
			path, ok := installed[k.Name]
			if !ok {
				continue
			}
			cmds = append(cmds, manifest.Command{
				Command: in.Resolver.Render(platform.Invocation{Path: path}),
				Timeout: k.TimeoutSeconds(),
			})
		}
		if err := m.Set(b.Event, cmds); err != nil {
			return err
		}
	}
	return m.Save()
}

func (in *Installer) installProject(ctx context.Context, host platform.Host, root string, res *Result, log *slog.Logger) error {
	res.Project = registry.ProjectName(root)

	text := ""
	if in.Worker != nil {
		fetched, err := in.fetchContext(ctx, res.Project)
		if err != nil {
			res.warn(log, "could not fetch context, snippet has placeholder text", "error", err)
		} else {
			text = fetched
		}
	}
	path, err := snippet.Write(host, root, text)
	if err != nil {
		return err
	}
	res.Snippet = path

	replaced, err := in.registry(host).Register(res.Project, root)
	if err != nil {
		return err
	}
	if replaced != nil {
		res.warn(log, "project name was registered for another workspace, overwritten",
			"project", res.Project, "previous", replaced.WorkspacePath)
	}
	return nil
}

func (in *Installer) fetchContext(ctx context.Context, project string) (string, error) {
	if err := in.Worker.EnsureRunning(ctx); err != nil {
		return "", err
	}
	return in.Worker.FetchContext(ctx, project, in.Config.ContextFormat)
}

// Uninstall removes everything Install wrote for host at scope. Each step
// tolerates the artifact being absent already.
func (in *Installer) Uninstall(ctx context.Context, host platform.Host, scope platform.Scope) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("uninstall failed unexpectedly: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := in.log().With("host", string(host), "scope", string(scope))
	target, err := in.Resolver.TargetDir(host, scope)
	if err != nil {
		return nil, err
	}
	stop, err := in.Resolver.PruneRoot(host, scope)
	if err != nil {
		return nil, err
	}
	res = &Result{Host: host, Scope: scope, TargetDir: target, Manifest: manifest.Path(target, host, scope)}

	st, recorded, err := loadState(target)
	if err != nil {
		res.warn(log, "install state unreadable, directories kept", "error", err)
	}
	if err := in.restoreManifest(host, res, st, recorded, log); err != nil {
		return res, err
	}

	dir := ScriptDir(target)
	if err := os.RemoveAll(dir); err != nil {
		return res, fmt.Errorf("removing %s: %w", dir, err)
	}

	if scope == platform.ScopeProject {
		if err := in.uninstallProject(host, stop, res, log); err != nil {
			return res, err
		}
	}
	if recorded {
		if err := fsutil.RemoveEmptyDirs(st.createdDirs(stop)); err != nil {
			return res, err
		}
	}
	log.Info("uninstalled", "target", target)
	return res, nil
}

// restoreManifest strips memhook's commands. When the manifest existed
// before the first install and the result still means the same as the
// original, the original bytes are written back. A manifest memhook never
// touched is left alone.
func (in *Installer) restoreManifest(host platform.Host, res *Result, st state, recorded bool, log *slog.Logger) error {
	m, err := manifest.Load(host, res.Manifest)
	switch {
	case errors.Is(err, manifest.ErrMalformed):
		res.warn(log, "manifest is malformed, left untouched", "path", res.Manifest)
		return nil
	case err != nil:
		return err
	case !m.HasOwned():
		return nil
	}
	if err := m.StripOwned(); err != nil {
		return err
	}
	if !recorded || !st.ManifestExisted {
		return m.Save()
	}

	orig, perr := manifest.Parse(host, res.Manifest, st.Manifest)
	switch {
	case perr == nil && m.Equivalent(orig):
		return m.Restore(st.Manifest)
	case perr != nil && m.Empty():
		// Install replaced a malformed file and kept a backup.
		if err := m.Restore(st.Manifest); err != nil {
			return err
		}
		return fsutil.Remove(manifest.BackupPath(res.Manifest))
	}
	// Edited since install: keep the edits, and the file.
	return m.Write()
}

func (in *Installer) uninstallProject(host platform.Host, root string, res *Result, log *slog.Logger) error {
	res.Project = registry.ProjectName(root)

	res.Snippet = snippet.Path(host, root)
	if err := fsutil.Remove(res.Snippet); err != nil {
		return fmt.Errorf("removing context snippet: %w", err)
	}

	store := in.registry(host)
	entry, ok := store.Lookup(res.Project)
	if ok && filepath.Clean(entry.WorkspacePath) != filepath.Clean(root) {
		res.warn(log, "registry entry belongs to another workspace, kept",
			"project", res.Project, "registered", entry.WorkspacePath)
		return nil
	}
	if err := store.Unregister(res.Project); err != nil {
		return err
	}
	regDir := filepath.Dir(store.Path())
	return fsutil.PruneEmptyDirs(regDir, filepath.Dir(regDir))
}
