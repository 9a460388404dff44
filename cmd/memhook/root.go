package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memhook/internal/config"
	"github.com/HendryAvila/memhook/internal/logging"
	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/server"
	"github.com/HendryAvila/memhook/internal/status"
	"github.com/HendryAvila/memhook/internal/worker"
)

// app holds the process-level collaborators so tests can swap them.
type app struct {
	resolver   *platform.Resolver
	getenv     func(string) string
	executable func() (string, error)
	newWorker  func(cfg config.Config, log *slog.Logger) *worker.Client
	isTerminal func(w io.Writer) bool
	verbose    bool
}

func defaultApp() *app {
	return &app{
		resolver:   platform.Default(),
		getenv:     os.Getenv,
		executable: os.Executable,
		newWorker: func(cfg config.Config, log *slog.Logger) *worker.Client {
			return worker.New(cfg.Worker, log)
		},
		isTerminal: func(w io.Writer) bool {
			f, ok := w.(*os.File)
			return ok && status.IsTerminal(f)
		},
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "memhook",
		Short: "Connect editor hooks to a local memory worker",
		Long: `memhook installs lifecycle hooks into Cursor and Claude Code so that
prompts, tool use and session summaries reach a local memory worker, and
the worker's context flows back into new sessions.`,
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("memhook v{{.Version}}\n")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "log progress to stderr")
	root.SetFlagErrorFunc(usageError)

	root.AddCommand(
		newInstallCmd(a),
		newUninstallCmd(a),
		newStatusCmd(a),
		newHookCmd(a),
		newMCPCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the memhook version",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "memhook v%s\n", server.Version)
		},
	}
}

// --- Shared helpers ---

func usageError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n\n%s", err, cmd.UsageString())
	return NewExitCodeError(NewSilentError(err), usageExitCode)
}

func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError(cmd, err)
		}
		return nil
	}
}

// fail prints err with a remediation hint when one applies.
func (a *app) fail(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	if hint := a.resolver.Remediation(err); hint != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Hint: %s\n", hint)
	}
	return NewSilentError(err)
}

// loadConfig returns the configuration. A malformed settings file is
// reported on stderr and the defaults are used.
func (a *app) loadConfig(cmd *cobra.Command) config.Config {
	cfg, err := a.readConfig()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
	return cfg
}

func (a *app) readConfig() (config.Config, error) {
	cfg, err := config.LoadFrom(a.getenv)
	cfg.Worker.UserAgent = "memhook/" + server.Version
	return cfg, err
}

func (a *app) logger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	if !a.verbose {
		return logging.Discard()
	}
	return logging.New(cmd.ErrOrStderr(), min(cfg.LogLevel, slog.LevelInfo))
}

// binary returns the path wrapper scripts should exec. When it cannot be
// resolved the scripts fall back to memhook on PATH.
func (a *app) binary() string {
	exe, err := a.executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe
}

func parseTarget(hostFlag, scopeArg string) (platform.Host, platform.Scope, error) {
	host, err := platform.ParseHost(hostFlag)
	if err != nil {
		return "", "", err
	}
	scope, err := platform.ParseScope(scopeArg)
	if err != nil {
		return "", "", err
	}
	return host, scope, nil
}

func addHostFlag(cmd *cobra.Command, p *string) {
	cmd.Flags().StringVar(p, "host", string(platform.HostCursor), "editor host: cursor or claude")
}

func scopeNames() []string {
	out := make([]string, len(platform.AllScopes))
	for i, s := range platform.AllScopes {
		out[i] = string(s)
	}
	return out
}
