// Package viewertools exposes the map-viewer core (registered map
// files, the tile cache, and the render manager) as MCP tools and
// resources, so any MCP client can drive the same viewer the desktop
// window drives.
package viewertools

import (
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolError represents a failure while servicing a viewer tool call,
// with enough context to tell an agent how to recover.
type ToolError struct {
	Tool       string
	StatusCode int
	Message    string
	Guidance   string
}

func (e *ToolError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Tool, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Message)
}

// NewToolError builds a ToolError, filling in guidance from the status
// code when none is supplied.
func NewToolError(tool string, statusCode int, message, guidance string) *ToolError {
	if guidance == "" {
		switch statusCode {
		case http.StatusNotFound:
			guidance = "Check the map name against list_maps and the tile coordinates against map_bounds."
		case http.StatusBadRequest:
			guidance = "Check your parameters and try again."
		default:
			guidance = "Please try again later or modify your request parameters."
		}
	}
	return &ToolError{Tool: tool, StatusCode: statusCode, Message: message, Guidance: guidance}
}

// ErrorResponse returns a tool result carrying a plain error message,
// matching the MCP convention of reporting tool failures as result
// content rather than a transport-level error.
func ErrorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// ErrorResponseWithGuidance returns a tool result formatted with both
// the failure and the suggested recovery.
func ErrorResponseWithGuidance(err *ToolError) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("Error: %s\n\nGuidance: %s", err.Message, err.Guidance))
}
