package viewertools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/showermat/mapview/pkg/rendermanager"
)

// TileResourceScheme is the URI scheme for the tile summary resource.
const TileResourceScheme = "mapview"

// RegisterTileResource registers the mapview://tile/{map}/{z}/{x}/{y}
// resource template, which resolves to a JSON summary of a parsed
// tile's materials, feature counts, and layers — not the raw
// geometry, which would be far too large for a resource read.
func RegisterTileResource(mcpServer *server.MCPServer, manager *rendermanager.Manager, logger *slog.Logger) {
	log := logger.With("component", "tile_resource")

	template := mcp.NewResourceTemplate(
		"mapview://tile/{map}/{z}/{x}/{y}",
		"Map tile summary",
		mcp.WithTemplateDescription("A JSON summary of one parsed and themed map tile: its material and feature counts grouped by layer"),
		mcp.WithTemplateMIMEType("application/json"),
	)

	mcpServer.AddResourceTemplate(template, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		mapName, zoom, x, y, err := parseTileResourceURI(req.Params.URI)
		if err != nil {
			log.Warn("invalid tile resource URI", "uri", req.Params.URI, "error", err)
			return nil, err
		}

		tile, err := manager.RequestTile(ctx, mapName, zoom, x, y)
		if err != nil {
			log.Warn("tile resource request failed", "map", mapName, "zoom", zoom, "x", x, "y", y, "error", err)
			return nil, err
		}

		summary := summarizeTile(mapName, tile)
		body, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("mapview: failed to serialize tile summary: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(body),
			},
		}, nil
	})
}

// parseTileResourceURI parses a mapview://tile/{map}/{z}/{x}/{y} URI.
func parseTileResourceURI(uri string) (mapName string, zoom uint8, x, y uint32, err error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("mapview: invalid resource URI: %w", err)
	}
	if parsed.Scheme != TileResourceScheme {
		return "", 0, 0, 0, fmt.Errorf("mapview: invalid scheme: expected %s, got %s", TileResourceScheme, parsed.Scheme)
	}

	full := strings.Trim(parsed.Opaque, "/")
	if full == "" {
		full = strings.Trim(parsed.Host+parsed.Path, "/")
	}
	parts := strings.Split(full, "/")
	if len(parts) != 5 || parts[0] != "tile" {
		return "", 0, 0, 0, fmt.Errorf("mapview: invalid tile resource path: expected tile/{map}/{z}/{x}/{y}, got %q", full)
	}

	mapName = parts[1]
	zoomVal, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("mapview: invalid zoom: %w", err)
	}
	xVal, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("mapview: invalid x coordinate: %w", err)
	}
	yVal, err := strconv.ParseUint(parts[4], 10, 32)
	if err != nil {
		return "", 0, 0, 0, fmt.Errorf("mapview: invalid y coordinate: %w", err)
	}

	return mapName, uint8(zoomVal), uint32(xVal), uint32(yVal), nil
}
