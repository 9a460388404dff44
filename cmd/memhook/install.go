package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memhook/internal/install"
)

func newInstallCmd(a *app) *cobra.Command {
	var hostFlag, source string
	cmd := &cobra.Command{
		Use:   "install <scope>",
		Short: "Install memhook hooks for a scope (project, user or enterprise)",
		Long: `Install writes memhook's wrapper scripts and binds them in the host's hook
manifest. Project scope also writes a context snippet into the workspace and
records the project in the registry. Re-running install is safe.`,
		Example: `  memhook install project
  memhook install user --host claude
  sudo memhook install enterprise`,
		Args:      usageArgs(cobra.ExactArgs(1)),
		ValidArgs: scopeNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, scope, err := parseTarget(hostFlag, args[0])
			if err != nil {
				return a.fail(cmd, err)
			}
			cfg := a.loadConfig(cmd)
			log := a.logger(cmd, cfg)

			in := &install.Installer{
				Resolver: a.resolver,
				Config:   cfg,
				Worker:   a.newWorker(cfg, log),
				Binary:   a.binary(),
				Log:      log,
			}
			opts := install.Options{Host: host, Scope: scope}
			if source != "" {
				info, err := os.Stat(source)
				if err != nil || !info.IsDir() {
					return a.fail(cmd, fmt.Errorf("script source %s is not a directory", source))
				}
				opts.Source = os.DirFS(source)
			}

			res, err := in.Install(cmd.Context(), opts)
			if err != nil {
				return a.fail(cmd, err)
			}
			printResult(cmd.OutOrStdout(), "Installed", res)
			return nil
		},
	}
	addHostFlag(cmd, &hostFlag)
	cmd.Flags().StringVar(&source, "source", "", "directory of hook script templates overriding the built-in set")
	return cmd
}

func newUninstallCmd(a *app) *cobra.Command {
	var hostFlag string
	cmd := &cobra.Command{
		Use:   "uninstall <scope>",
		Short: "Remove memhook hooks for a scope",
		Long: `Uninstall removes everything install wrote for the scope and leaves other
hooks in the manifest untouched. Uninstalling when nothing is installed
succeeds.`,
		Args:      usageArgs(cobra.ExactArgs(1)),
		ValidArgs: scopeNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, scope, err := parseTarget(hostFlag, args[0])
			if err != nil {
				return a.fail(cmd, err)
			}
			cfg := a.loadConfig(cmd)

			in := &install.Installer{Resolver: a.resolver, Config: cfg, Log: a.logger(cmd, cfg)}
			res, err := in.Uninstall(cmd.Context(), host, scope)
			if err != nil {
				return a.fail(cmd, err)
			}
			printResult(cmd.OutOrStdout(), "Uninstalled", res)
			return nil
		},
	}
	addHostFlag(cmd, &hostFlag)
	return cmd
}

func printResult(w io.Writer, verb string, res *install.Result) {
	fmt.Fprintf(w, "%s memhook hooks for %s (%s scope)\n", verb, res.Host, res.Scope)
	fmt.Fprintf(w, "  manifest: %s\n", res.Manifest)
	if len(res.Scripts) > 0 {
		fmt.Fprintf(w, "  scripts:  %d in %s\n", len(res.Scripts), install.ScriptDir(res.TargetDir))
	}
	if res.Snippet != "" {
		fmt.Fprintf(w, "  snippet:  %s\n", res.Snippet)
	}
	if res.Project != "" {
		fmt.Fprintf(w, "  project:  %s\n", res.Project)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning:  %s\n", warn)
	}
}
