package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for MCP operations
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// Map file attributes
	AttrMapName = "mapview.map.name"
	AttrMapFile = "mapview.map.file"
	AttrZoom    = "mapview.tile.zoom"
	AttrTileX   = "mapview.tile.x"
	AttrTileY   = "mapview.tile.y"

	// Cache attributes
	AttrCacheType = "mapview.cache.type"
	AttrCacheHit  = "mapview.cache.hit"
	AttrCacheKey  = "mapview.cache.key"

	// Render manager attributes
	AttrGeneration    = "mapview.render.generation"
	AttrWorkerService = "mapview.render.service"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPSessionID  = "http.session_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate_limited"
)

// Cache types
const (
	CacheTypeTile = "tile"
)

// Helper functions for common attributes

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// TileAttributes returns attributes for a single tile parse/render operation
func TileAttributes(mapName string, zoom uint8, x, y uint32) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMapName, mapName),
		attribute.Int(AttrZoom, int(zoom)),
		attribute.Int64(AttrTileX, int64(x)),
		attribute.Int64(AttrTileY, int64(y)),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
