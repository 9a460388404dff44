package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memhook/internal/config"
	"github.com/HendryAvila/memhook/internal/event"
	"github.com/HendryAvila/memhook/internal/hooks"
	"github.com/HendryAvila/memhook/internal/logging"
	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/registry"
)

// newHookCmd is the entry point of the installed wrapper scripts. It is
// hidden because hosts, not people, invoke it.
func newHookCmd(a *app) *cobra.Command {
	var hostFlag string
	cmd := &cobra.Command{
		Use:       "hook <kind>",
		Short:     "Run a hook executor (invoked by the editor)",
		Long:      "Run a hook executor. Kinds: " + strings.Join(hooks.Names(), ", ") + ".",
		Hidden:    true,
		Args:      usageArgs(cobra.ExactArgs(1)),
		ValidArgs: hooks.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgErr := a.readConfig()
			log, cleanup := logging.ForHook(cmd.ErrOrStderr(), config.LogDir(cfg.DataDir), cfg.LogLevel)
			defer cleanup()
			if cfgErr != nil {
				log.Warn("settings ignored", "error", cfgErr)
			}

			kind, err := hooks.Lookup(args[0])
			if err == nil {
				var host platform.Host
				if host, err = platform.ParseHost(hostFlag); err == nil {
					code := hooks.Run(cmd.Context(), kind, hooks.Deps{
						Host:     host,
						Config:   cfg,
						Worker:   a.newWorker(cfg, log),
						Registry: registry.New(config.RegistryPath(cfg.DataDir, string(host))),
						Log:      log,
					}, cmd.InOrStdin(), cmd.OutOrStdout())
					if code != 0 {
						return NewExitCodeError(NewSilentError(fmt.Errorf("hook %s exited %d", kind.Name, code)), code)
					}
					return nil
				}
			}

			// A stale script naming an unknown kind or host must not
			// block the editor.
			log.Warn("hook not run", "kind", args[0], "host", hostFlag, "error", err)
			_ = event.Continue().Write(cmd.OutOrStdout())
			return nil
		},
	}
	addHostFlag(cmd, &hostFlag)
	return cmd
}
