// Package platform resolves where hook artifacts live for a host and scope,
// and renders hook invocations into the command-line form the host expects
// on the current operating system.
//
// All shell quoting lives here. Callers build an Invocation and never
// concatenate command strings themselves.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Sentinel errors returned by the resolver.
var (
	ErrInvalidScope       = errors.New("invalid install scope")
	ErrInvalidHost        = errors.New("unknown host")
	ErrNoEnterpriseTarget = errors.New("no enterprise target known for this operating system")
)

// Scope is the installation breadth.
type Scope string

const (
	ScopeProject    Scope = "project"
	ScopeUser       Scope = "user"
	ScopeEnterprise Scope = "enterprise"
)

// AllScopes lists the scopes in the order the CLI documents them.
var AllScopes = []Scope{ScopeProject, ScopeUser, ScopeEnterprise}

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeProject:
		return ScopeProject, nil
	case ScopeUser:
		return ScopeUser, nil
	case ScopeEnterprise:
		return ScopeEnterprise, nil
	}
	return "", fmt.Errorf("%w: %q (want project, user or enterprise)", ErrInvalidScope, s)
}

// RelativePaths reports whether manifests for this scope reference scripts
// relative to the workspace root.
func (s Scope) RelativePaths() bool {
	return s == ScopeProject
}

// Host identifies the editor runtime that invokes hooks.
type Host string

const (
	// HostCursor is the IDE hook runtime (.cursor/hooks.json).
	HostCursor Host = "cursor"
	// HostClaude is the plugin-hook runtime (.claude/settings.json).
	HostClaude Host = "claude"
)

// ParseHost validates a host name.
func ParseHost(s string) (Host, error) {
	switch Host(strings.ToLower(strings.TrimSpace(s))) {
	case HostCursor:
		return HostCursor, nil
	case HostClaude:
		return HostClaude, nil
	}
	return "", fmt.Errorf("%w: %q (want cursor or claude)", ErrInvalidHost, s)
}

// DirName is the per-workspace and per-user config directory of the host.
func (h Host) DirName() string {
	if h == HostClaude {
		return ".claude"
	}
	return ".cursor"
}

// Resolver answers platform questions. The zero value is not usable; use
// Default or fill every field (tests inject GOOS and directories).
type Resolver struct {
	GOOS        string
	Getwd       func() (string, error)
	UserHomeDir func() (string, error)
	// SystemRoot, when set, is prepended to enterprise paths.
	SystemRoot string
}

// Default returns a resolver for the running process.
func Default() *Resolver {
	return &Resolver{
		GOOS:        runtime.GOOS,
		Getwd:       os.Getwd,
		UserHomeDir: os.UserHomeDir,
	}
}

// IsWindows reports whether the target OS is Windows.
func (r *Resolver) IsWindows() bool {
	return r.GOOS == "windows"
}

// ScriptExt returns the hook script extension for the target OS.
func (r *Resolver) ScriptExt() string {
	if r.IsWindows() {
		return ".ps1"
	}
	return ".sh"
}

// WorkspaceRoot is the directory project scope installs into.
func (r *Resolver) WorkspaceRoot() (string, error) {
	wd, err := r.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	return wd, nil
}

// TargetDir returns the absolute directory holding the host's manifest for
// the given scope.
func (r *Resolver) TargetDir(h Host, s Scope) (string, error) {
	switch s {
	case ScopeProject:
		root, err := r.WorkspaceRoot()
		if err != nil {
			return "", err
		}
		return filepath.Join(root, h.DirName()), nil
	case ScopeUser:
		home, err := r.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, h.DirName()), nil
	case ScopeEnterprise:
		return r.enterpriseDir(h)
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScope, string(s))
}

func (r *Resolver) enterpriseDir(h Host) (string, error) {
	name := map[Host][3]string{
		// linux, darwin, windows
		HostCursor: {"/etc/cursor", "/Library/Application Support/Cursor", `C:\ProgramData\Cursor`},
		HostClaude: {"/etc/claude-code", "/Library/Application Support/ClaudeCode", `C:\ProgramData\ClaudeCode`},
	}[h]

	var dir string
	switch r.GOOS {
	case "linux":
		dir = name[0]
	case "darwin":
		dir = name[1]
	case "windows":
		dir = name[2]
	default:
		return "", fmt.Errorf("%w: %s", ErrNoEnterpriseTarget, r.GOOS)
	}
	if r.SystemRoot != "" {
		dir = filepath.Join(r.SystemRoot, filepath.FromSlash(dir))
	}
	return dir, nil
}

// PruneRoot is the directory memhook never removes while cleaning up after
// an uninstall: the workspace root, the home directory, or the parent of
// the enterprise target.
func (r *Resolver) PruneRoot(h Host, s Scope) (string, error) {
	switch s {
	case ScopeProject:
		return r.WorkspaceRoot()
	case ScopeUser:
		home, err := r.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return home, nil
	}
	dir, err := r.TargetDir(h, s)
	if err != nil {
		return "", err
	}
	return filepath.Dir(dir), nil
}

// Invocation describes a hook command independent of shell syntax.
type Invocation struct {
	// Path is the script path, relative to the workspace root for project
	// scope and absolute otherwise.
	Path string
	Args []string
}

// Render turns an invocation into the command string written into a host
// manifest.
//
// Unix hosts run commands through /bin/sh, so words are POSIX-quoted.
// Windows hosts get the script wrapped in a PowerShell call that bypasses
// the execution policy for this one script only.
func (r *Resolver) Render(inv Invocation) string {
	if r.IsWindows() {
		parts := []string{"powershell.exe", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", windowsQuote(inv.Path, true)}
		for _, a := range inv.Args {
			parts = append(parts, windowsQuote(a, false))
		}
		return strings.Join(parts, " ")
	}
	words := append([]string{filepath.ToSlash(inv.Path)}, inv.Args...)
	return shellquote.Join(words...)
}

// windowsQuote double-quotes s when needed. Embedded quotes are escaped by
// doubling, which both cmd.exe and PowerShell's -File parser accept.
func windowsQuote(s string, always bool) string {
	if !always && s != "" && !strings.ContainsAny(s, " \t\"&|<>^") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Remediation returns platform-specific guidance printed when an operation
// fails for a reason the user can fix.
func (r *Resolver) Remediation(err error) string {
	switch {
	case errors.Is(err, ErrInvalidScope):
		return "Use one of: project, user, enterprise."
	case errors.Is(err, ErrNoEnterpriseTarget):
		return "Enterprise installs are supported on Linux, macOS and Windows only. Install with the user scope instead."
	case errors.Is(err, os.ErrPermission):
		if r.IsWindows() {
			return "Re-run from an elevated PowerShell (Run as Administrator)."
		}
		return "Re-run with sudo, or choose the user scope."
	}
	return ""
}
