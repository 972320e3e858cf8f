package viewertools

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

// isErrorResult reports whether result represents a tool failure.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

func assertErrorResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if !isErrorResult(result) {
		t.Error(message)
	}
}

func assertSuccessResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if isErrorResult(result) {
		var errorText string
		for _, content := range result.Content {
			if text, ok := content.(mcp.TextContent); ok {
				errorText = text.Text
				break
			}
		}
		t.Errorf("%s. Got error: %s", message, errorText)
	}
}

func parseResultJSON(result *mcp.CallToolResult, out interface{}) error {
	var content string
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			content = text.Text
			break
		}
	}
	return json.Unmarshal([]byte(content), out)
}

func newToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments,omitempty"`
			Meta      *mcp.Meta      `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	}
}
