// Command mapview-mcp runs only the MCP transport (stdio by default,
// HTTP+SSE when requested) over one or more loaded mapsforge files --
// useful when an agent, not a human, drives the viewer.
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
	"github.com/showermat/mapview/pkg/registration"
	"github.com/showermat/mapview/pkg/rendermanager"
	"github.com/showermat/mapview/pkg/server"
	"github.com/showermat/mapview/pkg/theme"
	"github.com/showermat/mapview/pkg/tilecache"
	"github.com/showermat/mapview/pkg/tracing"
	ver "github.com/showermat/mapview/pkg/version"
	"github.com/showermat/mapview/pkg/viewertools"
)

var (
	workers          int
	themeName        string
	enableMonitoring bool
	monitoringAddr   string
	enableHTTP       bool
	httpAddr         string
	debug            bool

	enableRegistration bool
	registryURL        string
	serviceURL         string
	internalURL        string
)

func init() {
	flag.IntVar(&workers, "workers", 4, "Number of tile-rendering workers")
	flag.StringVar(&themeName, "theme", "basic", "Rendering theme: basic or outline")
	flag.BoolVar(&enableMonitoring, "enable-monitoring", false, "Enable Prometheus metrics and health endpoints")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")
	flag.BoolVar(&enableHTTP, "enable-http", false, "Enable HTTP+SSE transport in addition to stdio")
	flag.StringVar(&httpAddr, "http-addr", ":7090", "HTTP+SSE transport address")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")

	flag.BoolVar(&enableRegistration, "enable-registration", false, "Enable service registration with an external service monitor")
	flag.StringVar(&registryURL, "registry-url", "", "Service registry URL (e.g., http://registry.internal:7083)")
	flag.StringVar(&serviceURL, "service-url", "", "External URL where this service is accessible")
	flag.StringVar(&internalURL, "internal-url", "", "Internal URL for container environments")
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
		fmt.Println("mapview-mcp: no map files given; pass one or more .mapsforge paths to load")
		return
	}

	th, err := resolveTheme(themeName)
	if err != nil {
		logger.Error("invalid theme", "error", err)
		os.Exit(1)
	}

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

	type loadedMap struct {
		name, path string
	}
	var loadedMaps []loadedMap
	for _, path := range paths {
		file, err := mapsforge.Open(path)
		if err != nil {
			logger.Error("failed to open map file", "path", path, "error", err)
			os.Exit(1)
		}
		defer file.Close()

		name := mapName(path)
		manager.Register(name, file, th)
		logger.Info("loaded map", "name", name, "path", path)
		loadedMaps = append(loadedMaps, loadedMap{name: name, path: path})
	}
	monitoring.SetLoadedMaps(len(loadedMaps))
	loaded := len(loadedMaps)

	s, err := server.NewServerWithManager(logger, manager)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var regClient *registration.Client
	if enableRegistration {
		toolNames := viewertools.NewRegistry(logger, manager).GetToolNames()

		svcURL := serviceURL
		healthURL := serviceURL + "/health"
		if serviceURL == "" && enableHTTP {
			svcURL = fmt.Sprintf("http://localhost%s", httpAddr)
			healthURL = fmt.Sprintf("http://localhost%s/health", httpAddr)
		}

		regClient = registration.NewClient(registration.Config{
			Enabled:           enableRegistration,
			RegistryURL:       registryURL,
			ServiceName:       "mapview",
			ServiceType:       "mcp",
			ServiceURL:        svcURL,
			HealthURL:         healthURL,
			InternalURL:       internalURL,
			InternalHealthURL: internalURL + "/health",
			Version:           ver.Version,
			Capabilities:      []string{"mapping", "tile-rendering"},
			Tools:             toolNames,
			Metadata:          map[string]interface{}{"transport": map[string]bool{"stdio": true, "http": enableHTTP}},
			MapSnapshot:       mapSnapshot(manager),
		}, logger)
		regClient.Start(runCtx)
		defer regClient.Stop()

		logger.Info("registration client initialized", "registry_url", registryURL, "service_url", svcURL, "tool_count", len(toolNames))
	}

	var healthChecker *monitoring.HealthChecker
	if enableMonitoring {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.Version)
		defer healthChecker.Shutdown()

		for _, lm := range loadedMaps {
			path := lm.path
			mon := monitoring.NewConnectionMonitor(lm.name, healthChecker, func() error {
				_, err := os.Stat(path)
				return err
			}, 30*time.Second)
			mon.Start()
			defer mon.Stop()
		}

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

	var httpTransport *server.HTTPTransport
	if enableHTTP {
		config := server.DefaultHTTPTransportConfig()
		config.Addr = httpAddr
		httpTransport = server.NewHTTPTransport(s.GetMCPServer(), config, logger)
		if healthChecker != nil {
			httpTransport.SetHealthChecker(healthChecker)
		}

		go func() {
			logger.Info("starting HTTP+SSE transport", "addr", httpAddr)
			if err := httpTransport.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP transport error", "error", err)
			}
		}()
		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			httpTransport.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("mapview-mcp ready", "maps", loaded, "http_enabled", enableHTTP)
	if err := s.RunWithContext(runCtx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
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

// mapSnapshot returns a closure reporting the names and generation of
// the maps currently loaded in manager, called fresh on every
// registration heartbeat so the registry's view of this instance
// never drifts from what it actually has registered.
func mapSnapshot(manager *rendermanager.Manager) func() map[string]interface{} {
	return func() map[string]interface{} {
		entries := manager.Maps()
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		return map[string]interface{}{
			"maps":       names,
			"map_count":  len(names),
			"generation": manager.Generation(),
		}
	}
}
