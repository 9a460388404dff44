package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/status"
)

func newStatusCmd(a *app) *cobra.Command {
	var hostFlag, scopeFlag string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report installation and worker health",
		Long: `Status inspects the manifest, wrapper scripts, worker, registry and worker
database without changing anything. The worker is probed but never started.
The exit code reflects whether the report was produced, not whether the
setup is healthy.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, scope, err := parseTarget(hostFlag, scopeFlag)
			if err != nil {
				return a.fail(cmd, err)
			}
			cfg := a.loadConfig(cmd)

			r := &status.Reporter{
				Resolver: a.resolver,
				Config:   cfg,
				Worker:   a.newWorker(cfg, a.logger(cmd, cfg)),
				Now:      time.Now,
			}
			rep, err := r.Collect(cmd.Context(), host, scope)
			if err != nil {
				return a.fail(cmd, err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return status.WriteJSON(out, rep)
			}
			return status.WriteText(out, rep, a.isTerminal(out))
		},
	}
	addHostFlag(cmd, &hostFlag)
	cmd.Flags().StringVar(&scopeFlag, "scope", string(platform.ScopeProject), "scope to inspect: project, user or enterprise")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
