package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/server"
	"github.com/HendryAvila/memhook/internal/status"
)

func newMCPCmd(a *app) *cobra.Command {
	var hostFlag string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve memory context and status over MCP (stdio transport)",
		Long: `Serve an MCP server on stdin/stdout exposing the memory_context and
memhook_status tools and the memhook://status resource.

Add it to the editor's MCP config:

  {"mcpServers": {"memhook": {"command": "memhook", "args": ["mcp"]}}}`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, err := platform.ParseHost(hostFlag)
			if err != nil {
				return a.fail(cmd, err)
			}
			cfg := a.loadConfig(cmd)
			w := a.newWorker(cfg, a.logger(cmd, cfg))

			s := server.New(server.Deps{
				Resolver: a.resolver,
				Config:   cfg,
				Worker:   w,
				Status: &status.Reporter{
					Resolver: a.resolver,
					Config:   cfg,
					Worker:   w,
					Now:      time.Now,
				},
				Host: host,
			})
			return server.ServeStdio(s)
		},
	}
	addHostFlag(cmd, &hostFlag)
	return cmd
}
