// Command mapview opens one or more mapsforge map files and serves
// them: as Prometheus metrics/health endpoints, as an MCP tool/resource
// surface for an agent to drive, or both at once. There is no native
// windowing toolkit anywhere in the corpus this was built from, so the
// "camera" a human or agent drives is the render surface exposed over
// MCP (request_tile/render_viewport), not a graphical window.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/showermat/mapview/pkg/mapsforge"
	"github.com/showermat/mapview/pkg/monitoring"
	"github.com/showermat/mapview/pkg/rendermanager"
	"github.com/showermat/mapview/pkg/server"
	"github.com/showermat/mapview/pkg/theme"
	"github.com/showermat/mapview/pkg/tilecache"
	"github.com/showermat/mapview/pkg/tracing"
	ver "github.com/showermat/mapview/pkg/version"
)

var (
	workers          int
	themeName        string
	enableMonitoring bool
	monitoringAddr   string
	enableMCP        bool
	mcpAddr          string
	dumpSchema       bool
	debug            bool
)

func init() {
	flag.IntVar(&workers, "workers", 4, "Number of tile-rendering workers")
	flag.StringVar(&themeName, "theme", "basic", "Rendering theme: basic or outline")
	flag.BoolVar(&enableMonitoring, "enable-monitoring", false, "Enable Prometheus metrics and health endpoints")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")
	flag.BoolVar(&enableMCP, "enable-mcp", false, "Expose the viewer as an MCP tool/resource surface over HTTP+SSE")
	flag.StringVar(&mcpAddr, "mcp-addr", ":7090", "MCP HTTP+SSE transport address")
	flag.BoolVar(&dumpSchema, "dump-schema", false, "Dump each map's tag schema to stdout and exit")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
}

func main() {
	flag.Parse()
	paths := flag.Args()

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if len(paths) == 0 {
		fmt.Println("mapview: no map files given; pass one or more .mapsforge paths to load")
		return
	}

	th, err := resolveTheme(themeName)
	if err != nil {
		logger.Error("invalid theme", "error", err)
		os.Exit(1)
	}

	files := make([]*mapsforge.MapFile, 0, len(paths))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	ctx := context.Background()
	shutdownTracing, err := tracing.InitTracing(ctx, ver.Version)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
	}

	cache := tilecache.New(logger, 256)
	manager := rendermanager.New(logger, cache, workers)
	defer manager.Close()

	for _, path := range paths {
		file, err := mapsforge.Open(path)
		if err != nil {
			logger.Error("failed to open map file", "path", path, "error", err)
			os.Exit(1)
		}
		files = append(files, file)

		if dumpSchema {
			fmt.Printf("=== %s ===\n", path)
			if err := file.DebugDumpSchema(os.Stdout); err != nil {
				logger.Error("failed to dump schema", "path", path, "error", err)
			}
			continue
		}

		name := mapName(path)
		manager.Register(name, file, th)
		logger.Info("loaded map", "name", name, "path", path)
	}
	monitoring.SetLoadedMaps(len(files))

	if dumpSchema {
		return
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var healthChecker *monitoring.HealthChecker
	if enableMonitoring {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.Version)
		defer healthChecker.Shutdown()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/health", healthChecker.HealthHandler())
		mux.Handle("/ready", healthChecker.ReadinessHandler())
		mux.Handle("/live", healthChecker.LivenessHandler())

		monitoringServer := &http.Server{
			Addr:              monitoringAddr,
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second,
		}
		go func() {
			logger.Info("starting monitoring server", "addr", monitoringAddr)
			if err := monitoringServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("monitoring server error", "error", err)
			}
		}()
		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			monitoringServer.Shutdown(shutdownCtx)
		}()
	}

	if enableMCP {
		s, err := server.NewServerWithManager(logger, manager)
		if err != nil {
			logger.Error("failed to create MCP server", "error", err)
			os.Exit(1)
		}

		config := server.DefaultHTTPTransportConfig()
		config.Addr = mcpAddr
		transport := server.NewHTTPTransport(s.GetMCPServer(), config, logger)
		if healthChecker != nil {
			transport.SetHealthChecker(healthChecker)
		}

		go func() {
			logger.Info("starting MCP HTTP+SSE transport", "addr", mcpAddr)
			if err := transport.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("MCP transport error", "error", err)
			}
		}()
		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			transport.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("mapview ready", "maps", len(files), "monitoring", enableMonitoring, "mcp", enableMCP)
	<-runCtx.Done()
	logger.Info("shutdown signal received")
}

func resolveTheme(name string) (*theme.Theme, error) {
	switch strings.ToLower(name) {
	case "basic", "":
		return theme.Basic(), nil
	case "outline":
		return theme.Outline(), nil
	default:
		return nil, fmt.Errorf("unknown theme %q (want basic or outline)", name)
	}
}

func mapName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
