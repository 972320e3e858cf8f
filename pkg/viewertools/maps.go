package viewertools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/showermat/mapview/pkg/rendermanager"
)

// MapSummary describes one loaded map for list_maps and map_bounds.
type MapSummary struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	MinLat  float64 `json:"min_lat"`
	MinLon  float64 `json:"min_lon"`
	MaxLat  float64 `json:"max_lat"`
	MaxLon  float64 `json:"max_lon"`
	ZoomMin uint8   `json:"zoom_min"`
	ZoomMax uint8   `json:"zoom_max"`
	Comment string  `json:"comment,omitempty"`
}

// ListMapsTool describes the list_maps tool.
func ListMapsTool() mcp.Tool {
	return mcp.NewTool("list_maps",
		mcp.WithDescription("List the map files currently loaded, with their geographic bounds and zoom range"),
	)
}

// HandleListMaps implements list_maps.
func (r *Registry) HandleListMaps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "list_maps")

	entries := r.manager.Maps()
	summaries := make([]MapSummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, summarize(e))
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })

	resultBytes, err := json.Marshal(summaries)
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		return ErrorResponse("Failed to generate result"), nil
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}

// MapBoundsTool describes the map_bounds tool.
func MapBoundsTool() mcp.Tool {
	return mcp.NewTool("map_bounds",
		mcp.WithDescription("Get the geographic bounds and zoom range for a loaded map"),
		mcp.WithString("map",
			mcp.Required(),
			mcp.Description("The registered name of the map"),
		),
	)
}

// MapBoundsInput is the input for map_bounds.
type MapBoundsInput struct {
	Map string `json:"map"`
}

// HandleMapBounds implements map_bounds.
func (r *Registry) HandleMapBounds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "map_bounds")

	var input MapBoundsInput
	inputJSON, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		logger.Error("failed to marshal input", "error", err)
		return ErrorResponse("Invalid input format"), nil
	}
	if err := json.Unmarshal(inputJSON, &input); err != nil {
		logger.Error("failed to parse input", "error", err)
		return ErrorResponse("Invalid input format"), nil
	}

	entry, ok := r.manager.Lookup(input.Map)
	if !ok {
		return ErrorResponseWithGuidance(NewToolError("map_bounds", 404,
			fmt.Sprintf("map %q is not registered", input.Map), "")), nil
	}

	resultBytes, err := json.Marshal(summarize(entry))
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		return ErrorResponse("Failed to generate result"), nil
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}

func summarize(e rendermanager.MapEntry) MapSummary {
	h := e.File.Header()
	minLL, maxLL := h.Bounds.MinMax()

	var zoomMin, zoomMax uint8 = 255, 0
	for _, zi := range h.ZoomIntervals {
		if zi.Min < zoomMin {
			zoomMin = zi.Min
		}
		if zi.Max > zoomMax {
			zoomMax = zi.Max
		}
	}

	return MapSummary{
		Name:    e.Name,
		Path:    e.File.Path(),
		MinLat:  float64(minLL.Lat) / 1e6,
		MinLon:  float64(minLL.Lon) / 1e6,
		MaxLat:  float64(maxLL.Lat) / 1e6,
		MaxLon:  float64(maxLL.Lon) / 1e6,
		ZoomMin: zoomMin,
		ZoomMax: zoomMax,
		Comment: h.Comment,
	}
}
