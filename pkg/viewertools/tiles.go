package viewertools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/showermat/mapview/pkg/geometry"
	"github.com/showermat/mapview/pkg/projection"
	"github.com/showermat/mapview/pkg/rendermanager"
	"github.com/showermat/mapview/pkg/rendertile"
)

// viewportDrainTimeout bounds how long render_viewport waits for the
// worker pool to deliver every dispatched tile before returning
// whatever arrived.
const viewportDrainTimeout = 10 * time.Second

// TileSummary describes one rendered tile without its full geometry,
// which would be far too large for a tool result.
type TileSummary struct {
	Map          string         `json:"map"`
	Zoom         uint8          `json:"zoom"`
	X            uint32         `json:"x"`
	Y            uint32         `json:"y"`
	LayerCounts  map[int8]int   `json:"layer_counts"`
	Materials    map[string]int `json:"materials"`
	FeatureTotal int            `json:"feature_total"`
}

func summarizeTile(mapName string, rt *rendertile.RenderTile) TileSummary {
	s := TileSummary{
		Map:         mapName,
		Zoom:        rt.Zoom,
		X:           rt.X,
		Y:           rt.Y,
		LayerCounts: make(map[int8]int),
		Materials:   make(map[string]int),
	}
	for layer, objs := range rt.Layers {
		s.LayerCounts[layer] = len(objs)
		for _, o := range objs {
			s.Materials[o.Material.Name]++
			s.FeatureTotal++
		}
	}
	return s
}

// RequestTileTool describes the request_tile tool.
func RequestTileTool() mcp.Tool {
	return mcp.NewTool("request_tile",
		mcp.WithDescription("Parse and theme a single tile from a loaded map file, returning a summary of its features"),
		mcp.WithString("map", mcp.Required(), mcp.Description("The registered name of the map")),
		mcp.WithNumber("zoom", mcp.Required(), mcp.Description("Zoom level")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Tile X index at this zoom level")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Tile Y index at this zoom level")),
	)
}

// RequestTileInput is the input for request_tile.
type RequestTileInput struct {
	Map  string `json:"map"`
	Zoom uint8  `json:"zoom"`
	X    uint32 `json:"x"`
	Y    uint32 `json:"y"`
}

// HandleRequestTile implements request_tile.
func (r *Registry) HandleRequestTile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "request_tile")

	var input RequestTileInput
	inputJSON, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		logger.Error("failed to marshal input", "error", err)
		return ErrorResponse("Invalid input format"), nil
	}
	if err := json.Unmarshal(inputJSON, &input); err != nil {
		logger.Error("failed to parse input", "error", err)
		return ErrorResponse("Invalid input format"), nil
	}

	tile, err := r.manager.RequestTile(ctx, input.Map, input.Zoom, input.X, input.Y)
	if err != nil {
		return ErrorResponseWithGuidance(NewToolError("request_tile", 404, err.Error(), "")), nil
	}

	resultBytes, err := json.Marshal(summarizeTile(input.Map, tile))
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		return ErrorResponse("Failed to generate result"), nil
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}

// RenderViewportTool describes the render_viewport tool.
func RenderViewportTool() mcp.Tool {
	return mcp.NewTool("render_viewport",
		mcp.WithDescription("Enumerate and render every tile needed to cover a geographic viewport at a given window width, across every loaded map that intersects it"),
		mcp.WithNumber("min_lat", mcp.Required(), mcp.Description("Minimum latitude, decimal degrees")),
		mcp.WithNumber("min_lon", mcp.Required(), mcp.Description("Minimum longitude, decimal degrees")),
		mcp.WithNumber("max_lat", mcp.Required(), mcp.Description("Maximum latitude, decimal degrees")),
		mcp.WithNumber("max_lon", mcp.Required(), mcp.Description("Maximum longitude, decimal degrees")),
		mcp.WithNumber("window_width_px", mcp.Required(), mcp.Description("Width in pixels of the window the viewport is rendered into")),
	)
}

// RenderViewportInput is the input for render_viewport.
type RenderViewportInput struct {
	MinLat        float64 `json:"min_lat"`
	MinLon        float64 `json:"min_lon"`
	MaxLat        float64 `json:"max_lat"`
	MaxLon        float64 `json:"max_lon"`
	WindowWidthPx int     `json:"window_width_px"`
}

// HandleRenderViewport implements render_viewport.
func (r *Registry) HandleRenderViewport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := r.logger.With("tool", "render_viewport")

	var input RenderViewportInput
	inputJSON, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		logger.Error("failed to marshal input", "error", err)
		return ErrorResponse("Invalid input format"), nil
	}
	if err := json.Unmarshal(inputJSON, &input); err != nil {
		logger.Error("failed to parse input", "error", err)
		return ErrorResponse("Invalid input format"), nil
	}
	if input.WindowWidthPx <= 0 {
		return ErrorResponseWithGuidance(NewToolError("render_viewport", 400,
			"window_width_px must be positive", "")), nil
	}

	minLL := projection.NewLatLon(int32(input.MinLat*1e6), int32(input.MinLon*1e6))
	maxLL := projection.NewLatLon(int32(input.MaxLat*1e6), int32(input.MaxLon*1e6))
	viewport := geometry.NewBox(minLL.ToCoord(), maxLL.ToCoord())

	updates := make(chan rendermanager.Update, 256)
	generation := r.manager.Generation() + 1
	expected, err := r.manager.Request(ctx, viewport, input.WindowWidthPx, generation, updates)
	if err != nil {
		return ErrorResponseWithGuidance(NewToolError("render_viewport", 400, err.Error(), "")), nil
	}

	summaries := r.drainViewport(ctx, updates, generation, expected)

	resultBytes, err := json.Marshal(summaries)
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		return ErrorResponse("Failed to generate result"), nil
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}

// drainViewport collects exactly expected tile summaries for the given
// generation, or gives up once viewportDrainTimeout passes without a
// delivery — a safety net for a job whose generation goes stale and so
// never arrives.
func (r *Registry) drainViewport(ctx context.Context, updates chan rendermanager.Update, generation uint64, expected int) []TileSummary {
	summaries := make([]TileSummary, 0, expected)
	if expected == 0 {
		return summaries
	}
	timer := time.NewTimer(viewportDrainTimeout)
	defer timer.Stop()
	for len(summaries) < expected {
		select {
		case u := <-updates:
			if u.Generation != generation {
				continue
			}
			summaries = append(summaries, summarizeTile(u.MapName, u.Tile))
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(viewportDrainTimeout)
		case <-timer.C:
			return summaries
		case <-ctx.Done():
			return summaries
		}
	}
	return summaries
}
