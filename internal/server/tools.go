package server

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/memhook/internal/config"
	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/registry"
	"github.com/HendryAvila/memhook/internal/status"
)

// ContextTool handles the memory_context MCP tool.
type ContextTool struct {
	worker   ContextFetcher
	resolver *platform.Resolver
	cfg      config.Config
}

// NewContextTool creates a ContextTool.
func NewContextTool(w ContextFetcher, r *platform.Resolver, cfg config.Config) *ContextTool {
	return &ContextTool{worker: w, resolver: r, cfg: cfg}
}

// Definition returns the MCP tool definition for memory_context.
func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_context",
		mcp.WithDescription(
			"Get the memory worker's context for a project: recent sessions, summaries and "+
				"observations captured by memhook's hooks.",
		),
		mcp.WithString("project",
			mcp.Description("Project name (default: the current workspace's directory name)"),
		),
		mcp.WithString("format",
			mcp.Description("Context format requested from the worker (default: the configured format)"),
		),
	)
}

// Handle processes the memory_context tool call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	if project == "" {
		root, err := t.resolver.WorkspaceRoot()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		project = registry.ProjectName(root)
	}
	if t.cfg.IsExcluded(project) {
		return mcp.NewToolResultText(fmt.Sprintf("Project %q is excluded from memory capture.", project)), nil
	}
	if t.worker == nil {
		return mcp.NewToolResultError("no memory worker configured"), nil
	}

	format := req.GetString("format", t.cfg.ContextFormat)
	if err := t.worker.EnsureRunning(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("memory worker unavailable: %v", err)), nil
	}
	text, err := t.worker.FetchContext(ctx, project, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetching context for %s: %v", project, err)), nil
	}
	if text == "" {
		return mcp.NewToolResultText(fmt.Sprintf("No memory context for %s yet.", project)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// StatusTool handles the memhook_status MCP tool.
type StatusTool struct {
	status StatusCollector
	host   platform.Host
}

// NewStatusTool creates a StatusTool. host is used when the call names
// none.
func NewStatusTool(s StatusCollector, host platform.Host) *StatusTool {
	return &StatusTool{status: s, host: host}
}

// Definition returns the MCP tool definition for memhook_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("memhook_status",
		mcp.WithDescription(
			"Report memhook's installation health as JSON: manifest entries, hook scripts, "+
				"worker reachability, project registration and the worker database.",
		),
		mcp.WithString("host",
			mcp.Description("Editor host: cursor or claude"),
			mcp.Enum(string(platform.HostCursor), string(platform.HostClaude)),
		),
		mcp.WithString("scope",
			mcp.Description("Install scope: project (default), user or enterprise"),
			mcp.Enum(string(platform.ScopeProject), string(platform.ScopeUser), string(platform.ScopeEnterprise)),
		),
	)
}

// Handle processes the memhook_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	host, err := platform.ParseHost(req.GetString("host", string(t.host)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scope, err := platform.ParseScope(req.GetString("scope", string(platform.ScopeProject)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if t.status == nil {
		return mcp.NewToolResultError("status reporting is not configured"), nil
	}

	rep, err := t.status.Collect(ctx, host, scope)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("collecting status: %v", err)), nil
	}
	var buf bytes.Buffer
	if err := status.WriteJSON(&buf, rep); err != nil {
		return nil, fmt.Errorf("encoding status: %w", err)
	}
	return mcp.NewToolResultText(buf.String()), nil
}
