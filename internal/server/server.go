// Package server wires memhook's MCP surface: a stdio server exposing the
// worker's context and the installation status to the editor's agent.
//
// This is a composition root. The tools and resources depend on small
// interfaces; New injects the concrete implementations.
package server

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/memhook/internal/config"
	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/status"
)

// Version is set at build time via ldflags.
var Version = "dev"

// ContextFetcher is the worker surface the context tool needs.
type ContextFetcher interface {
	EnsureRunning(ctx context.Context) error
	FetchContext(ctx context.Context, project, format string) (string, error)
}

// StatusCollector produces diagnostic reports.
type StatusCollector interface {
	Collect(ctx context.Context, host platform.Host, scope platform.Scope) (*status.Report, error)
}

// Deps are the collaborators of the MCP server.
type Deps struct {
	Resolver *platform.Resolver
	Config   config.Config
	Worker   ContextFetcher
	Status   StatusCollector
	// Host is the default host for status queries.
	Host platform.Host
}

// New creates the MCP server with every tool and resource registered.
func New(d Deps) *server.MCPServer {
	if d.Host == "" {
		d.Host = platform.HostCursor
	}

	s := server.NewMCPServer(
		"memhook",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Tools ---

	contextTool := NewContextTool(d.Worker, d.Resolver, d.Config)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	statusTool := NewStatusTool(d.Status, d.Host)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	// --- Resources ---

	res := NewResourceHandler(d.Status, d.Config, d.Host)
	s.AddResource(res.StatusResource(), res.HandleStatus)
	for _, h := range []platform.Host{platform.HostCursor, platform.HostClaude} {
		s.AddResource(res.RegistryResource(h), res.HandleRegistry(h))
	}

	return s
}

// ServeStdio serves s over stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func serverInstructions() string {
	return `memhook connects this editor to a local memory worker.

- Call memory_context at the start of a task to load what previous sessions
  learned about the current project. Pass "project" to read another one.
- Call memhook_status when hooks seem not to fire, or when memory_context
  reports the worker is unreachable. The report shows which hook scripts,
  manifest entries and registry records are missing.

Hooks capture tool use and summaries automatically. There is no need to
save observations by hand.`
}
