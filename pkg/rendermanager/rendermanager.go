// Package rendermanager is the async orchestrator: on every viewport
// request it enumerates needed tiles, dedupes against the tile cache,
// dispatches parse+project work to a worker pool, and delivers
// results back to the caller keyed by a monotonically increasing
// generation, so a camera move can discard stale in-flight work
// without ever cancelling a worker.
package rendermanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/showermat/mapview/pkg/geometry"
	"github.com/showermat/mapview/pkg/mapsforge"
	"github.com/showermat/mapview/pkg/monitoring"
	"github.com/showermat/mapview/pkg/projection"
	"github.com/showermat/mapview/pkg/rendertile"
	"github.com/showermat/mapview/pkg/theme"
	"github.com/showermat/mapview/pkg/tilecache"
	"github.com/showermat/mapview/pkg/tracing"
)

// MapEntry is one loaded map file registered with the manager.
type MapEntry struct {
	Name  string
	File  *mapsforge.MapFile
	Theme *theme.Theme
}

// Update is one tile delivery to the caller's updater channel.
type Update struct {
	Generation uint64
	MapName    string
	Zoom       uint8
	X, Y       uint32
	Tile       *rendertile.RenderTile
}

// Updater is the thread-safe one-way sink workers deliver tiles to.
// The caller (the UI event loop) drains it and filters by generation.
type Updater chan<- Update

type job struct {
	entry      MapEntry
	zoom       uint8
	x, y       uint32
	generation uint64
	updater    Updater
}

// Manager owns the registered maps, the tile cache, and the worker
// pool, and answers viewport requests by dispatching jobs.
type Manager struct {
	log        *slog.Logger
	cache      *tilecache.Cache
	jobs       chan job
	wg         sync.WaitGroup
	generation atomic.Uint64

	mu       sync.Mutex
	maps     map[string]MapEntry
	limiters map[string]*rate.Limiter
}

// New starts numWorkers workers and returns a ready Manager. Call
// Close to stop the workers once no further requests will be made.
func New(log *slog.Logger, cache *tilecache.Cache, numWorkers int) *Manager {
	if numWorkers < 1 {
		numWorkers = 1
	}
	m := &Manager{
		log:      log,
		cache:    cache,
		jobs:     make(chan job, numWorkers*4),
		maps:     make(map[string]MapEntry),
		limiters: make(map[string]*rate.Limiter),
	}
	for i := 0; i < numWorkers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

// Close stops accepting new jobs and waits for outstanding workers to
// drain. Jobs already queued are still run before this returns.
func (m *Manager) Close() {
	close(m.jobs)
	m.wg.Wait()
}

// Register adds or replaces a map under name, rate-limited to a
// sustained one full viewport enumeration every 50ms (20/s, with
// bursts of up to 4) so a pan/zoom thrash can't
// flood the worker pool ahead of the cheap staleness check.
func (m *Manager) Register(name string, file *mapsforge.MapFile, th *theme.Theme) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maps[name] = MapEntry{Name: name, File: file, Theme: th}
	m.limiters[name] = rate.NewLimiter(rate.Limit(20), 4)
	m.cache.Invalidate(name)
}

// Unregister removes a map and drops its cached tiles.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.maps, name)
	delete(m.limiters, name)
	m.cache.Invalidate(name)
}

func (m *Manager) entries() []MapEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MapEntry, 0, len(m.maps))
	for _, e := range m.maps {
		out = append(out, e)
	}
	return out
}

// Maps returns every currently registered map, for tools that need to
// list or inspect loaded maps without driving a viewport request.
func (m *Manager) Maps() []MapEntry {
	return m.entries()
}

// Lookup returns the registered entry for name, if any.
func (m *Manager) Lookup(name string) (MapEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.maps[name]
	return e, ok
}

// RequestTile synchronously resolves a single tile through the cache,
// parsing and theming it on a cache miss. Unlike Request, this does
// not touch the generation counter or dispatch to the worker pool; it
// is meant for direct, one-off tile fetches (e.g. an MCP tool call)
// rather than viewport-driven rendering.
func (m *Manager) RequestTile(ctx context.Context, mapName string, zoom uint8, x, y uint32) (*rendertile.RenderTile, error) {
	entry, ok := m.Lookup(mapName)
	if !ok {
		return nil, fmt.Errorf("rendermanager: map %q not registered", mapName)
	}
	result, err := m.cache.GetOrLoad(ctx, mapName, zoom, x, y, m.generation.Load(), func(ctx context.Context) (*rendertile.RenderTile, error) {
		return parseAndBuild(ctx, entry, zoom, x, y)
	})
	if err != nil {
		return nil, err
	}
	return result.Tile, nil
}

func (m *Manager) limiterFor(name string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limiters[name]
}

// Generation returns the current published generation.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

// Request enumerates the tiles needed to cover viewport at the
// resolution implied by windowWidthPx, dedupes against the cache, and
// dispatches misses to the worker pool. generation becomes the new
// current generation (release semantics); any in-flight worker job
// from an older generation discovers this on its staleness check and
// returns without doing further work. It returns the number of tiles
// dispatched to updater (synchronously for off-map indices, or
// asynchronously via the worker pool), so a caller can drain exactly
// that many deliveries instead of guessing from a timeout.
func (m *Manager) Request(ctx context.Context, viewport geometry.BoundingBox, windowWidthPx int, generation uint64, updater Updater) (int, error) {
	if windowWidthPx <= 0 {
		return 0, fmt.Errorf("rendermanager: windowWidthPx must be positive, got %d", windowWidthPx)
	}
	m.generation.Store(generation)

	degLonPerPx := float64(viewport.Width()) * 360.0 / (float64(windowWidthPx) * float64(projection.CoordMax))

	dispatched := 0
	for _, entry := range m.entries() {
		minB, maxB := entry.File.Bounds()
		bounds := geometry.NewBox(minB, maxB)
		if !bounds.Intersects(viewport) {
			continue
		}
		zoom, ok := entry.File.DesiredZoomLevel(degLonPerPx)
		if !ok {
			continue
		}
		// Throttles how often a pan/zoom thrash re-enumerates this map,
		// not what a tile resolves to: a throttled call returns a lower
		// dispatched count for the caller to drain against, it never
		// serves a tile identity with different content than the last
		// call that actually dispatched it.
		if lim := m.limiterFor(entry.Name); lim != nil && !lim.Allow() {
			continue
		}
		dispatched += m.dispatchViewport(ctx, entry, zoom, viewport, generation, updater)
	}
	return dispatched, nil
}

func (m *Manager) dispatchViewport(ctx context.Context, entry MapEntry, zoom uint8, viewport geometry.BoundingBox, generation uint64, updater Updater) int {
	tilesPerSide := int64(1) << zoom
	tileSpan := projection.CoordMax / tilesPerSide

	minX := floorDiv(viewport.Min.X, tileSpan)
	minY := floorDiv(viewport.Min.Y, tileSpan)
	maxX := floorDiv(viewport.Max.X, tileSpan)
	maxY := floorDiv(viewport.Max.Y, tileSpan)

	dispatched := 0
	for ty := minY; ty <= maxY; ty++ {
		for tx := minX; tx <= maxX; tx++ {
			if tx < 0 || ty < 0 || tx >= tilesPerSide || ty >= tilesPerSide {
				updater <- Update{
					Generation: generation,
					MapName:    entry.Name,
					Zoom:       zoom,
					X:          uint32(tx),
					Y:          uint32(ty),
					Tile:       rendertile.Empty(zoom, uint32(tx), uint32(ty)),
				}
				dispatched++
				continue
			}
			select {
			case m.jobs <- job{entry: entry, zoom: zoom, x: uint32(tx), y: uint32(ty), generation: generation, updater: updater}:
				monitoring.SetWorkerQueueDepth(len(m.jobs))
				dispatched++
			case <-ctx.Done():
				return dispatched
			}
		}
	}
	return dispatched
}

// floorDiv computes floor(a/b) for a possibly-negative a, matching
// the viewport→tile-index rule in spec §4.6 (a pan past the map edge
// yields negative tile indices, which dispatchViewport then reports
// as off-map).
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for j := range m.jobs {
		monitoring.SetWorkerQueueDepth(len(m.jobs))
		m.runJob(j)
	}
}

func (m *Manager) runJob(j job) {
	if j.generation < m.generation.Load() {
		monitoring.RecordGenerationStaleDiscard(j.entry.Name)
		m.log.Debug("rendermanager: job stale before start", "map", j.entry.Name, "generation", j.generation)
		return
	}
	entry, zoom, x, y, generation := j.entry, j.zoom, j.x, j.y, j.generation

	result, err := m.cache.GetOrLoad(context.Background(), entry.Name, zoom, x, y, generation, func(ctx context.Context) (*rendertile.RenderTile, error) {
		return parseAndBuild(ctx, entry, zoom, x, y)
	})
	if err != nil {
		m.log.Error("rendermanager: cache load failed", "map", entry.Name, "zoom", zoom, "x", x, "y", y, "err", err)
		return
	}

	if j.generation < m.generation.Load() {
		monitoring.RecordGenerationStaleDiscard(j.entry.Name)
		m.log.Debug("rendermanager: job stale after parse, discarding", "map", entry.Name, "generation", j.generation)
		return
	}

	j.updater <- Update{Generation: generation, MapName: entry.Name, Zoom: zoom, X: x, Y: y, Tile: result.Tile}
}

// parseAndBuild parses one tile from entry's map file and themes it,
// recording a trace span and parse-duration metric around the work.
// A parse error is not propagated to the caller: it is recorded on the
// trace span and an empty tile is substituted, so the job still
// delivers a tile for the requested index.
func parseAndBuild(ctx context.Context, entry MapEntry, zoom uint8, x, y uint32) (*rendertile.RenderTile, error) {
	_, span := tracing.StartSpan(ctx, "rendermanager.parse_tile", trace.WithAttributes(
		tracing.TileAttributes(entry.Name, zoom, x, y)...,
	))
	defer span.End()

	start := time.Now()
	tile, err := entry.File.Tile(zoom, x, y)
	duration := time.Since(start)
	monitoring.RecordTileParse(entry.Name, duration, err == nil)

	if err != nil {
		span.RecordError(err)
		return rendertile.Empty(zoom, x, y), nil
	}
	return rendertile.Build(tile, entry.Theme), nil
}
