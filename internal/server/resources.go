package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/memhook/internal/config"
	"github.com/HendryAvila/memhook/internal/platform"
	"github.com/HendryAvila/memhook/internal/registry"
	"github.com/HendryAvila/memhook/internal/status"
)

// StatusURI addresses the project-scope status report.
const StatusURI = "memhook://status"

// RegistryURI returns the address of a host's project registry.
func RegistryURI(h platform.Host) string {
	return "memhook://registry/" + string(h)
}

// ResourceHandler serves memhook's read-only resources.
type ResourceHandler struct {
	status StatusCollector
	cfg    config.Config
	host   platform.Host
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(s StatusCollector, cfg config.Config, host platform.Host) *ResourceHandler {
	return &ResourceHandler{status: s, cfg: cfg, host: host}
}

// StatusResource returns the resource definition for the status report.
func (h *ResourceHandler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"memhook status",
		mcp.WithResourceDescription("Project-scope installation health for the default host"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the project-scope report as JSON.
func (h *ResourceHandler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.status == nil {
		return errorResource(req.Params.URI, "status reporting is not configured"), nil
	}
	rep, err := h.status.Collect(ctx, h.host, platform.ScopeProject)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	var buf bytes.Buffer
	if err := status.WriteJSON(&buf, rep); err != nil {
		return nil, fmt.Errorf("encoding status: %w", err)
	}
	return jsonResource(req.Params.URI, buf.String()), nil
}

// RegistryResource returns the resource definition for host's registry.
func (h *ResourceHandler) RegistryResource(host platform.Host) mcp.Resource {
	return mcp.NewResource(
		RegistryURI(host),
		fmt.Sprintf("memhook %s projects", host),
		mcp.WithResourceDescription(fmt.Sprintf("Projects with memhook installed for %s, keyed by name", host)),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleRegistry returns a handler serving host's registry file.
func (h *ResourceHandler) HandleRegistry(host platform.Host) server.ResourceHandlerFunc {
	return func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		reg, err := registry.New(config.RegistryPath(h.cfg.DataDir, string(host))).Load()
		if err != nil {
			return errorResource(req.Params.URI, err.Error()), nil
		}
		if reg == nil {
			reg = registry.Registry{}
		}
		data, err := json.MarshalIndent(reg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling registry: %w", err)
		}
		return jsonResource(req.Params.URI, string(data)), nil
	}
}

func jsonResource(uri, text string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		},
	}
}

func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
