// Package server provides the MCP server implementation for the map viewer.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/showermat/mapview/pkg/rendermanager"
	"github.com/showermat/mapview/pkg/tilecache"
	"github.com/showermat/mapview/pkg/viewertools"
)

const (
	// ServerName is the name of the MCP server
	ServerName = "mapview-server"

	// ServerVersion is the version of the MCP server
	ServerVersion = "0.1.0"

	// defaultWorkers is the worker pool size NewServer uses when the
	// caller doesn't provide its own render manager.
	defaultWorkers = 4

	// defaultCachePartitionSize is the per-map-per-zoom LRU size
	// NewServer's default cache uses.
	defaultCachePartitionSize = 256
)

// Server encapsulates the MCP server with map viewer tools.
type Server struct {
	srv          *mcpserver.MCPServer
	logger       *slog.Logger
	manager      *rendermanager.Manager
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
	mu           sync.Mutex
	once         sync.Once // Ensure we only close stopCh once
	ctxCancel    context.CancelFunc
	ctxGoroutine sync.Once // Ensure we only start one context goroutine
}

// NewServer creates a new map viewer MCP server with all tools
// registered, backed by a freshly constructed render manager with no
// maps loaded yet. Callers that need a specific worker count or a
// manager with maps already registered should use NewServerWithManager.
func NewServer() (*Server, error) {
	logger := slog.Default()
	cache := tilecache.New(logger, defaultCachePartitionSize)
	manager := rendermanager.New(logger, cache, defaultWorkers)
	return NewServerWithManager(logger, manager)
}

// NewServerWithManager creates a map viewer MCP server backed by an
// already-configured render manager (worker count, maps registered).
func NewServerWithManager(logger *slog.Logger, manager *rendermanager.Manager) (*Server, error) {
	logger.Info("initializing map viewer MCP server",
		"name", ServerName,
		"version", ServerVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		ServerVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	registry := viewertools.NewRegistry(logger, manager)
	registry.RegisterAll(srv)

	return &Server{
		srv:     srv,
		logger:  logger,
		manager: manager,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Manager returns the render manager backing this server, so a caller
// can register or unregister maps after construction.
func (s *Server) Manager() *rendermanager.Manager {
	return s.manager
}

// Run starts the MCP server using stdin/stdout for communication.
// This method blocks until the server is stopped or an error occurs.
func (s *Server) Run() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	// Run the server in a goroutine
	go func() {
		defer close(s.doneCh)
		err := mcpserver.ServeStdio(s.srv)
		if err != nil && err != io.EOF {
			s.logger.Error("MCP server error", "error", err)
		} else if err == io.EOF {
			s.logger.Info("stdin closed, shutting down server gracefully")
		}

		// Ensure the main Run loop is notified that the
		// server has finished processing.
		s.Shutdown()
	}()

	// Wait for stop signal
	<-s.stopCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	// Wait for server to finish before returning
	<-s.doneCh
	return nil
}

// RunWithContext starts the MCP server and allows for graceful shutdown via context.
// This method blocks until the context is canceled or an error occurs.
func (s *Server) RunWithContext(ctx context.Context) error {
	// Create a goroutine to watch the context for cancellation
	s.ctxGoroutine.Do(func() {
		// Create a derived context that we can cancel
		derived, cancel := context.WithCancel(ctx)
		s.ctxCancel = cancel

		go func() {
			select {
			case <-derived.Done():
				s.Shutdown()
			case <-s.stopCh:
				// Already being shut down
			}
		}()

		// Start parent process monitoring as a fallback for stdio transport
		// This ensures the server shuts down if the parent process exits unexpectedly
		go s.monitorParentProcess()
	})

	return s.Run()
}

// Shutdown initiates a graceful shutdown of the server.
// It does not block and returns immediately.
// Using sync.Once to ensure we don't close an already closed channel.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	// Signal the server to stop using sync.Once to avoid panics
	// on double close of the channel
	s.once.Do(func() {
		close(s.stopCh)
	})

	// Cancel the context if we have one
	if s.ctxCancel != nil {
		s.ctxCancel()
	}
}

// WaitForShutdown blocks until the server has fully shut down.
func (s *Server) WaitForShutdown() {
	<-s.doneCh
}

// GetMCPServer returns the underlying MCP server instance for HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}

// Handler represents the HTTP server handler exposing the map viewer
// tools as plain REST endpoints, built the same way the MCP tool
// handlers are: constructing a mcp.CallToolRequest from query
// parameters and extracting the text content from the result.
type Handler struct {
	logger   *slog.Logger
	registry *viewertools.Registry
}

// NewHandler creates a new server handler bound to manager.
func NewHandler(logger *slog.Logger, manager *rendermanager.Manager) *Handler {
	return &Handler{
		logger:   logger,
		registry: viewertools.NewRegistry(logger, manager),
	}
}

// ServeHTTP implements the http.Handler interface
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	path := r.URL.Path
	method := r.Method

	// Add request ID to context
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = generateRequestID()
	}

	// Log request
	h.logger.Info("request started",
		"request_id", reqID,
		"method", method,
		"path", path,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent())

	// Handle request
	var status int
	var err error

	switch {
	case path == "/health":
		status, err = h.handleHealth(w, r)
	case path == "/maps":
		status, err = h.handleMaps(w, r)
	case path == "/bounds":
		status, err = h.handleBounds(w, r)
	case path == "/tile":
		status, err = h.handleTile(w, r)
	default:
		status = http.StatusNotFound
		err = nil
	}

	// Log response
	duration := time.Since(start)
	if err != nil {
		h.logger.Error("request failed",
			"request_id", reqID,
			"method", method,
			"path", path,
			"status", status,
			"duration", duration,
			"error", err)
	} else {
		h.logger.Info("request completed",
			"request_id", reqID,
			"method", method,
			"path", path,
			"status", status,
			"duration", duration)
	}
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) (int, error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		h.logger.Error("failed to write health response", "error", err)
		return http.StatusOK, err // Status already written, but return error for logging
	}

	return http.StatusOK, nil
}

// handleMaps handles list_maps requests
func (h *Handler) handleMaps(w http.ResponseWriter, r *http.Request) (int, error) {
	req := mcp.CallToolRequest{
		Params: struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments,omitempty"`
			Meta      *mcp.Meta      `json:"_meta,omitempty"`
		}{
			Name: "list_maps",
		},
	}

	result, err := h.registry.HandleListMaps(r.Context(), req)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return h.writeToolResult(w, result)
}

// handleBounds handles map_bounds requests
func (h *Handler) handleBounds(w http.ResponseWriter, r *http.Request) (int, error) {
	q := r.URL.Query()
	req := mcp.CallToolRequest{
		Params: struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments,omitempty"`
			Meta      *mcp.Meta      `json:"_meta,omitempty"`
		}{
			Name: "map_bounds",
			Arguments: map[string]any{
				"map": q.Get("map"),
			},
		},
	}

	result, err := h.registry.HandleMapBounds(r.Context(), req)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return h.writeToolResult(w, result)
}

// handleTile handles request_tile requests
func (h *Handler) handleTile(w http.ResponseWriter, r *http.Request) (int, error) {
	q := r.URL.Query()
	req := mcp.CallToolRequest{
		Params: struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments,omitempty"`
			Meta      *mcp.Meta      `json:"_meta,omitempty"`
		}{
			Name: "request_tile",
			Arguments: map[string]any{
				// request_tile takes numbers; json.Number marshals unquoted.
				"map":  q.Get("map"),
				"zoom": json.Number(q.Get("zoom")),
				"x":    json.Number(q.Get("x")),
				"y":    json.Number(q.Get("y")),
			},
		},
	}

	result, err := h.registry.HandleRequestTile(r.Context(), req)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return h.writeToolResult(w, result)
}

// writeToolResult extracts the text content from an MCP tool result
// and writes it as the HTTP response body.
func (h *Handler) writeToolResult(w http.ResponseWriter, result *mcp.CallToolResult) (int, error) {
	var content string
	for _, c := range result.Content {
		if t, ok := c.(mcp.TextContent); ok {
			content = t.Text
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK
	if result.IsError {
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)

	if _, err := w.Write([]byte(content)); err != nil {
		h.logger.Error("failed to write response", "error", err)
		return status, err
	}

	return status, nil
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return time.Now().Format("20060102150405.000000000")
}

// monitorParentProcess monitors the parent process and shuts down the server
// when the parent process exits. This serves as a fallback mechanism in case
// stdin EOF detection fails. The primary shutdown mechanism should be EOF on stdin.
func (s *Server) monitorParentProcess() {
	ppid := os.Getppid()
	s.logger.Debug("starting parent process monitor as fallback", "ppid", ppid)

	// Check parent process every 30 seconds (less aggressive than primary EOF detection)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			// Server is already shutting down
			return
		case <-ticker.C:
			// Check if parent process still exists
			if !isProcessRunning(ppid) {
				s.logger.Info("parent process has exited (fallback detection), shutting down server", "ppid", ppid)
				s.Shutdown()
				return
			}
		}
	}
}

// isProcessRunning checks if a process with the given PID is still running
func isProcessRunning(pid int) bool {
	// On Unix systems, sending signal 0 to a process checks if it exists
	// without actually sending a signal
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 (syscall.Signal(0)) to check if process exists
	// This is a Unix convention - signal 0 checks process existence without sending a real signal
	err = process.Signal(syscall.Signal(0))
	if err != nil {
		// Process doesn't exist or we don't have permission
		return false
	}

	return true
}
