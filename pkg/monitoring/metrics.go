package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "mapview"
)

var (
	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapview_mcp_requests_total",
			Help: "Total number of MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mapview_mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// Tile parse/render metrics
	TileParseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mapview_tile_parse_duration_seconds",
			Help:    "Time spent parsing and theming one tile from a map file",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"map"},
	)

	TilesParsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapview_tiles_parsed_total",
			Help: "Total number of tiles parsed from map files",
		},
		[]string{"map", "status"},
	)

	// Worker pool / generation metrics
	WorkerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapview_worker_queue_depth",
			Help: "Number of tile jobs currently queued for the render worker pool",
		},
	)

	GenerationStaleDiscardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapview_generation_stale_discards_total",
			Help: "Total number of queued jobs discarded because a newer viewport generation superseded them",
		},
		[]string{"map"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapview_cache_hits_total",
			Help: "Total number of tile cache hits",
		},
		[]string{"map"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapview_cache_misses_total",
			Help: "Total number of tile cache misses",
		},
		[]string{"map"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mapview_cache_size",
			Help: "Current number of tiles held in a cache partition",
		},
		[]string{"map"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mapview_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport", "type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapview_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mapview_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapview_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapview_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapview_gc_runs_total",
			Help: "Total number of garbage collection runs",
		},
	)

	LoadedMaps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapview_loaded_maps",
			Help: "Number of map files currently loaded and registered",
		},
	)
)

// TransportInfo holds transport configuration and status
type TransportInfo struct {
	Type           string `json:"type"`                      // "http_streaming" or "stdio"
	HTTPAddr       string `json:"http_addr,omitempty"`       // HTTP address if enabled
	ActiveSessions int    `json:"active_sessions,omitempty"` // Active streaming sessions
}

// Service health and info structures
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime        time.Duration          `json:"uptime"`
	UptimeSeconds int64                  `json:"uptime_seconds"`       // Uptime in seconds for spec compliance
	StartTime     time.Time              `json:"start_time,omitempty"` // Optional field
	Connections   map[string]ConnStatus  `json:"connections"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`   // Optional field
	Transport     *TransportInfo         `json:"transport,omitempty"` // Transport info for monitoring
}

// ConnStatus is the health of one monitored resource: a loaded map
// file or the render worker pool.
type ConnStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`             // "connected", "disconnected", "error"
	Latency int64  `json:"latency_ms,omitempty"` // Optional latency in milliseconds
	Error   string `json:"last_error,omitempty"` // Last error message if any
}

// Helper functions for common metric updates
func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	MCPRequestsTotal.WithLabelValues(tool, status).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordTileParse(mapName string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	TileParseDuration.WithLabelValues(mapName).Observe(duration.Seconds())
	TilesParsedTotal.WithLabelValues(mapName, status).Inc()
}

func RecordGenerationStaleDiscard(mapName string) {
	GenerationStaleDiscardsTotal.WithLabelValues(mapName).Inc()
}

func SetWorkerQueueDepth(depth int) {
	WorkerQueueDepth.Set(float64(depth))
}

func RecordCacheHit(mapName string) {
	CacheHits.WithLabelValues(mapName).Inc()
}

func RecordCacheMiss(mapName string) {
	CacheMisses.WithLabelValues(mapName).Inc()
}

func UpdateCacheSize(mapName string, size int) {
	CacheSize.WithLabelValues(mapName).Set(float64(size))
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport, connType string, count int) {
	ActiveConnections.WithLabelValues(transport, connType).Set(float64(count))
}

func SetLoadedMaps(count int) {
	LoadedMaps.Set(float64(count))
}
