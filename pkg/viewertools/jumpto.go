package viewertools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/showermat/mapview/pkg/coords"
)

// JumpToTool describes the jump_to tool.
func JumpToTool() mcp.Tool {
	return mcp.NewTool("jump_to",
		mcp.WithDescription("Resolve a human-entered location (MGRS, UTM, DMS, or decimal degrees) to latitude/longitude"),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("A coordinate in MGRS, UTM, DMS, or decimal-degree form"),
		),
	)
}

// JumpToInput is the input for jump_to.
type JumpToInput struct {
	Location string `json:"location"`
}

// JumpToResult is the resolved location returned by jump_to.
type JumpToResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Format    string  `json:"format"`
}

// HandleJumpTo implements jump_to.
func (r *Registry) HandleJumpTo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "jump_to")

	var input JumpToInput
	inputJSON, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		logger.Error("failed to marshal input", "error", err)
		return ErrorResponse("Invalid input format"), nil
	}
	if err := json.Unmarshal(inputJSON, &input); err != nil {
		logger.Error("failed to parse input", "error", err)
		return ErrorResponse("Invalid input format"), nil
	}

	parsed, err := coords.Parse(input.Location)
	if err != nil {
		return ErrorResponseWithGuidance(NewToolError("jump_to", 400, err.Error(),
			"Supported formats: MGRS (47QNB8598697460), UTM (47N 485986 2197460), DMS (19°51'22\"N 99°48'59\"E), or decimal degrees (19.856, 99.816).")), nil
	}

	result := JumpToResult{
		Latitude:  parsed.Location.Latitude,
		Longitude: parsed.Location.Longitude,
		Format:    parsed.Format.String(),
	}
	resultBytes, err := json.Marshal(result)
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		return ErrorResponse("Failed to generate result"), nil
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}
