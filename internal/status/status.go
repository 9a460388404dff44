// Package status builds the read-only diagnostic report behind
// `memhook status` and the memhook_status MCP tool.
//
// Nothing here mutates state: the worker is probed but never started, the
// registry and manifest are only read, and the worker database is opened
// read-only. Problems go into the report body; Collect only fails when the
// report itself cannot be produced.
package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/HendryAvila/memhook/internal/config"
	"github.com/HendryAvila/memhook/internal/fsutil"
	"github.com/HendryAvila/memhook/internal/hooks"
	"github.com/HendryAvila/memhook/internal/install"
	"github.com/HendryAvila/memhook/internal/manifest"
	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/registry"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Prober is the non-mutating part of the worker client.
type Prober interface {
	Probe(ctx context.Context) error
	BaseURL() string
}

// Report is the full diagnostic snapshot.
type Report struct {
	Host        string         `json:"host"`
	Scope       string         `json:"scope"`
	TargetDir   string         `json:"targetDir,omitempty"`
	TargetError string         `json:"targetError,omitempty"`
	Manifest    ManifestStatus `json:"manifest"`
	Scripts     []ScriptStatus `json:"scripts"`
	Worker      WorkerStatus   `json:"worker"`
	Registry    RegistryStatus `json:"registry"`
	Database    DatabaseStatus `json:"database"`
	GeneratedAt string         `json:"generatedAt"`
}

// ManifestStatus describes the host manifest.
type ManifestStatus struct {
	Path    string        `json:"path,omitempty"`
	Present bool          `json:"present"`
	Error   string        `json:"error,omitempty"`
	Events  []EventStatus `json:"events,omitempty"`
	// Missing lists events memhook binds that have no memhook command.
	Missing []string `json:"missing,omitempty"`
}

// EventStatus counts the commands bound to one event.
type EventStatus struct {
	Name     string `json:"name"`
	Commands int    `json:"commands"`
	Owned    int    `json:"owned"`
}

// ScriptStatus describes one installed wrapper script.
type ScriptStatus struct {
	Kind       string `json:"kind"`
	Path       string `json:"path"`
	Present    bool   `json:"present"`
	Executable bool   `json:"executable"`
}

// WorkerStatus is the result of a single health probe.
type WorkerStatus struct {
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// RegistryStatus is the current project's registry membership.
type RegistryStatus struct {
	Path          string `json:"path"`
	Project       string `json:"project,omitempty"`
	Registered    bool   `json:"registered"`
	WorkspacePath string `json:"workspacePath,omitempty"`
	InstalledAt   string `json:"installedAt,omitempty"`
	// Matches is false when the project name is registered for a
	// different workspace.
	Matches bool   `json:"matches"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

// DatabaseStatus summarizes the worker's SQLite database.
type DatabaseStatus struct {
	Path      string        `json:"path"`
	Present   bool          `json:"present"`
	SizeBytes int64         `json:"sizeBytes,omitempty"`
	Tables    []TableStatus `json:"tables,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// TableStatus is the row count of one table.
type TableStatus struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// Healthy reports whether memhook is fully installed and the worker is up.
func (r *Report) Healthy() bool {
	if r.TargetError != "" || !r.Manifest.Present || r.Manifest.Error != "" || len(r.Manifest.Missing) > 0 {
		return false
	}
	for _, s := range r.Scripts {
		if !s.Present {
			return false
		}
	}
	return r.Worker.Healthy
}

// Reporter collects reports.
type Reporter struct {
	Resolver *platform.Resolver
	Config   config.Config
	Worker   Prober
	Now      func() time.Time
}

// Collect runs every check concurrently and assembles the report.
func (r *Reporter) Collect(ctx context.Context, host platform.Host, scope platform.Scope) (*Report, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	rep := &Report{
		Host:        string(host),
		Scope:       string(scope),
		GeneratedAt: now().UTC().Format(time.RFC3339),
	}

	target, err := r.Resolver.TargetDir(host, scope)
	if err != nil {
		rep.TargetError = err.Error()
	}
	rep.TargetDir = target

	g, gctx := errgroup.WithContext(ctx)
	if target != "" {
		g.Go(func() error {
			rep.Manifest = checkManifest(host, manifest.Path(target, host, scope))
			return nil
		})
		g.Go(func() error {
			rep.Scripts = r.checkScripts(host, target)
			return nil
		})
	}
	g.Go(func() error {
		rep.Worker = r.checkWorker(gctx)
		return nil
	})
	g.Go(func() error {
		rep.Registry = r.checkRegistry(host)
		return nil
	})
	g.Go(func() error {
		rep.Database = inspectDB(gctx, r.Config.DBPath())
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collecting status: %w", err)
	}
	return rep, nil
}

func checkManifest(host platform.Host, path string) ManifestStatus {
	st := ManifestStatus{Path: path, Present: fsutil.Exists(path)}
	m, err := manifest.Load(host, path)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	for _, ev := range m.Events() {
		st.Events = append(st.Events, EventStatus{
			Name:     ev,
			Commands: len(m.Commands(ev)),
			Owned:    len(m.Owned(ev)),
		})
	}
	for _, b := range hooks.Bindings(host) {
		if len(m.Owned(b.Event)) == 0 {
			st.Missing = append(st.Missing, b.Event)
		}
	}
	return st
}

func (r *Reporter) checkScripts(host platform.Host, target string) []ScriptStatus {
	dir := install.ScriptDir(target)
	ext := r.Resolver.ScriptExt()

	var out []ScriptStatus
	for _, k := range hooks.KindsFor(host) {
		st := ScriptStatus{Kind: k.Name, Path: filepath.Join(dir, k.Name+ext)}
		if info, err := os.Stat(st.Path); err == nil && info.Mode().IsRegular() {
			st.Present = true
			st.Executable = r.Resolver.IsWindows() || info.Mode().Perm()&0o111 != 0
		}
		out = append(out, st)
	}
	return out
}

func (r *Reporter) checkWorker(ctx context.Context) WorkerStatus {
	if r.Worker == nil {
		return WorkerStatus{URL: r.Config.Worker.BaseURL(), Error: "no worker client configured"}
	}
	st := WorkerStatus{URL: r.Worker.BaseURL()}
	if err := r.Worker.Probe(ctx); err != nil {
		st.Error = err.Error()
	} else {
		st.Healthy = true
	}
	return st
}

func (r *Reporter) checkRegistry(host platform.Host) RegistryStatus {
	store := registry.New(config.RegistryPath(r.Config.DataDir, string(host)))
	st := RegistryStatus{Path: store.Path()}

	reg, err := store.Load()
	if err != nil {
		st.Error = err.Error()
	}
	st.Entries = len(reg)

	root, err := r.Resolver.WorkspaceRoot()
	if err != nil {
		if st.Error == "" {
			st.Error = err.Error()
		}
		return st
	}
	st.Project = registry.ProjectName(root)
	if e, ok := reg[st.Project]; ok {
		st.Registered = true
		st.WorkspacePath = e.WorkspacePath
		st.InstalledAt = e.InstalledAt
		st.Matches = filepath.Clean(e.WorkspacePath) == filepath.Clean(root)
	}
	return st
}

// inspectDB opens the worker database read-only and counts rows per
// table.
func inspectDB(ctx context.Context, path string) DatabaseStatus {
	st := DatabaseStatus{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			st.Error = err.Error()
		}
		return st
	}
	st.Present = true
	st.SizeBytes = info.Size()

	db, err := openDB("sqlite", "file:"+filepath.ToSlash(path)+"?mode=ro")
	if err != nil {
		st.Error = fmt.Sprintf("open database: %v", err)
		return st
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 2000"); err != nil {
		st.Error = fmt.Sprintf("pragma: %v", err)
		return st
	}

	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		st.Error = fmt.Sprintf("list tables: %v", err)
		return st
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			_ = rows.Close()
			st.Error = fmt.Sprintf("scan table name: %v", err)
			return st
		}
		names = append(names, n)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		st.Error = fmt.Sprintf("list tables: %v", err)
		return st
	}

	for _, n := range names {
		var count int64
		q := `SELECT COUNT(*) FROM "` + strings.ReplaceAll(n, `"`, `""`) + `"`
		if err := db.QueryRowContext(ctx, q).Scan(&count); err != nil {
			st.Error = fmt.Sprintf("count %s: %v", n, err)
			return st
		}
		st.Tables = append(st.Tables, TableStatus{Name: n, Rows: count})
	}
	return st
}
