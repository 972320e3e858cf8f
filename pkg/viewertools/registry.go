package viewertools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/showermat/mapview/pkg/rendermanager"
	"github.com/showermat/mapview/pkg/tracing"
)

// Registry binds the MCP tool/resource surface to a running render
// manager. Unlike the teacher's package-level tool functions (which
// reach into package-global OSM clients), every handler here is a
// Registry method, since each handler needs the specific manager
// instance the server was started with.
type Registry struct {
	logger  *slog.Logger
	manager *rendermanager.Manager
}

// NewRegistry creates a tool registry bound to manager.
func NewRegistry(logger *slog.Logger, manager *rendermanager.Manager) *Registry {
	return &Registry{logger: logger, manager: manager}
}

// ToolDefinition is one MCP tool's schema and handler.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// GetToolDefinitions returns every tool this registry exposes.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "list_maps",
			Description: "List the map files currently loaded, with their geographic bounds and zoom range.",
			Tool:        ListMapsTool(),
			Handler:     r.HandleListMaps,
		},
		{
			Name:        "map_bounds",
			Description: "Get the geographic bounds and supported zoom range for a loaded map. Parameters: map (string)",
			Tool:        MapBoundsTool(),
			Handler:     r.HandleMapBounds,
		},
		{
			Name:        "request_tile",
			Description: "Parse and theme a single tile from a loaded map file. Parameters: map (string), zoom (number), x (number), y (number)",
			Tool:        RequestTileTool(),
			Handler:     r.HandleRequestTile,
		},
		{
			Name:        "render_viewport",
			Description: "Enumerate and render every tile needed to cover a viewport at a given window width. Parameters: min_lat, min_lon, max_lat, max_lon (numbers), window_width_px (number)",
			Tool:        RenderViewportTool(),
			Handler:     r.HandleRenderViewport,
		},
		{
			Name:        "jump_to",
			Description: "Resolve a human-entered location (MGRS, UTM, DMS, or decimal degrees) to latitude/longitude. Parameters: location (string)",
			Tool:        JumpToTool(),
			Handler:     r.HandleJumpTo,
		},
	}
}

// RegisterTools registers every tool with mcpServer, wrapping each
// handler with a tracing span the way the teacher's registry traces
// every MCP tool call.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, r.wrapWithTracing(def.Name, def.Handler))
	}
}

// RegisterResources registers the mapview://tile resource template.
func (r *Registry) RegisterResources(mcpServer *server.MCPServer) {
	r.logger.Info("registering tile resource template")
	RegisterTileResource(mcpServer, r.manager, r.logger)
}

// RegisterAll registers every tool and resource with mcpServer.
func (r *Registry) RegisterAll(mcpServer *server.MCPServer) {
	r.RegisterTools(mcpServer)
	r.RegisterResources(mcpServer)
}

// GetToolNames returns the names of every registered tool.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

func (r *Registry) wrapWithTracing(toolName string, handler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		spanName := fmt.Sprintf("mcp.tool.%s", toolName)
		ctx, span := tracing.StartSpan(ctx, spanName, trace.WithAttributes(
			attribute.String(tracing.AttrMCPToolName, toolName),
		))
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(start)

		status := tracing.StatusSuccess
		if err != nil {
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(
			attribute.String(tracing.AttrMCPToolStatus, status),
			attribute.Int64(tracing.AttrMCPToolDuration, duration.Milliseconds()),
			attribute.Int(tracing.AttrMCPResultSize, resultSize),
		)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}
