// Package tilecache holds rendered tiles in a partitioned, bounded,
// generation-aware cache: one bounded LRU per (map, zoom) pair, with
// concurrent misses for the same tile collapsed via singleflight so
// simultaneous requests parse and theme a tile only once; a tile that
// was evicted or invalidated is parsed again on its next miss.
package tilecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/showermat/mapview/pkg/monitoring"
	"github.com/showermat/mapview/pkg/rendertile"
)

// partitionKey identifies one (map, zoom) cache partition.
type partitionKey struct {
	mapName string
	zoom    uint8
}

// tileKey identifies one tile within a partition.
type tileKey [2]uint32

// Entry pairs a cached tile with the generation it was produced for.
// A caller that already knows the current generation can reject a
// stale hit without touching the render manager at all.
type Entry struct {
	Tile       *rendertile.RenderTile
	Generation uint64
}

// Loader produces a fresh RenderTile for a cache miss.
type Loader func(ctx context.Context) (*rendertile.RenderTile, error)

const defaultPartitionSize = 2048

// Cache is a partitioned, bounded tile cache safe for concurrent use.
type Cache struct {
	log            *slog.Logger
	partitionSize  int
	mu             sync.Mutex
	partitions     map[partitionKey]*lru.Cache[tileKey, Entry]
	group          singleflight.Group
}

// New returns an empty Cache. partitionSize bounds each (map, zoom)
// partition independently; pass 0 to use a sensible default.
func New(log *slog.Logger, partitionSize int) *Cache {
	if partitionSize <= 0 {
		partitionSize = defaultPartitionSize
	}
	return &Cache{
		log:           log,
		partitionSize: partitionSize,
		partitions:    make(map[partitionKey]*lru.Cache[tileKey, Entry]),
	}
}

func (c *Cache) partition(mapName string, zoom uint8) *lru.Cache[tileKey, Entry] {
	key := partitionKey{mapName, zoom}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.partitions[key]
	if ok {
		return p
	}
	p, err := lru.New[tileKey, Entry](c.partitionSize)
	if err != nil {
		// Only returns an error for a non-positive size, which New
		// already guards against.
		panic(fmt.Sprintf("tilecache: lru.New: %v", err))
	}
	c.partitions[key] = p
	return p
}

// Get returns the cached entry for (mapName, zoom, x, y), if any.
func (c *Cache) Get(mapName string, zoom uint8, x, y uint32) (Entry, bool) {
	p := c.partition(mapName, zoom)
	return p.Get(tileKey{x, y})
}

// GetFresh returns the cached entry only if its generation is at
// least currentGen, rejecting stale hits without invoking a loader.
func (c *Cache) GetFresh(mapName string, zoom uint8, x, y uint32, currentGen uint64) (Entry, bool) {
	e, ok := c.Get(mapName, zoom, x, y)
	if !ok || e.Generation < currentGen {
		return Entry{}, false
	}
	return e, true
}

// GetOrLoad returns the cached entry if present, otherwise calls load
// exactly once even under concurrent callers for the same key, and
// caches the result tagged with generation.
func (c *Cache) GetOrLoad(ctx context.Context, mapName string, zoom uint8, x, y uint32, generation uint64, load Loader) (Entry, error) {
	if e, ok := c.Get(mapName, zoom, x, y); ok {
		monitoring.RecordCacheHit(mapName)
		return e, nil
	}
	monitoring.RecordCacheMiss(mapName)
	sfKey := fmt.Sprintf("%s/%d/%d/%d", mapName, zoom, x, y)
	v, err, _ := c.group.Do(sfKey, func() (any, error) {
		tile, err := load(ctx)
		if err != nil {
			return nil, err
		}
		e := Entry{Tile: tile, Generation: generation}
		c.partition(mapName, zoom).Add(tileKey{x, y}, e)
		monitoring.UpdateCacheSize(mapName, c.PartitionLen(mapName, zoom))
		c.log.Debug("tilecache: filled", "map", mapName, "zoom", zoom, "x", x, "y", y, "generation", generation)
		return e, nil
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

// Invalidate drops every cached tile for mapName across all zooms,
// used when a map file is reloaded.
func (c *Cache) Invalidate(mapName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.partitions {
		if key.mapName == mapName {
			delete(c.partitions, key)
		}
	}
}

// PartitionLen returns the number of cached tiles for (mapName, zoom),
// used by monitoring to report cache partition sizes.
func (c *Cache) PartitionLen(mapName string, zoom uint8) int {
	return c.partition(mapName, zoom).Len()
}
