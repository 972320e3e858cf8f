package tilecache

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/showermat/mapview/pkg/rendertile"
)

func newTestCache() *Cache {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), 4)
}

func TestGetOrLoadFillsOnMiss(t *testing.T) {
	c := newTestCache()
	var calls int32
	load := func(ctx context.Context) (*rendertile.RenderTile, error) {
		atomic.AddInt32(&calls, 1)
		return rendertile.Empty(8, 1, 1), nil
	}
	e, err := c.GetOrLoad(context.Background(), "test", 8, 1, 1, 3, load)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if e.Generation != 3 {
		t.Errorf("generation = %d, want 3", e.Generation)
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}

	if _, err := c.GetOrLoad(context.Background(), "test", 8, 1, 1, 3, load); err != nil {
		t.Fatalf("second GetOrLoad: %v", err)
	}
	if calls != 1 {
		t.Errorf("loader called %d times after cache hit, want 1", calls)
	}
}

func TestGetOrLoadCollapsesConcurrentMisses(t *testing.T) {
	c := newTestCache()
	var calls int32
	release := make(chan struct{})
	load := func(ctx context.Context) (*rendertile.RenderTile, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return rendertile.Empty(8, 2, 2), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrLoad(context.Background(), "test", 8, 2, 2, 1, load)
		}()
	}
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("loader called %d times under concurrent miss, want 1", calls)
	}
}

func TestGetFreshRejectsStale(t *testing.T) {
	c := newTestCache()
	load := func(ctx context.Context) (*rendertile.RenderTile, error) {
		return rendertile.Empty(8, 0, 0), nil
	}
	if _, err := c.GetOrLoad(context.Background(), "test", 8, 0, 0, 5, load); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if _, ok := c.GetFresh("test", 8, 0, 0, 6); ok {
		t.Error("expected stale entry (gen 5) to be rejected against current gen 6")
	}
	if _, ok := c.GetFresh("test", 8, 0, 0, 5); !ok {
		t.Error("expected entry at exactly the current generation to be accepted")
	}
}

func TestInvalidateClearsMap(t *testing.T) {
	c := newTestCache()
	load := func(ctx context.Context) (*rendertile.RenderTile, error) {
		return rendertile.Empty(8, 0, 0), nil
	}
	c.GetOrLoad(context.Background(), "m", 8, 0, 0, 1, load)
	c.Invalidate("m")
	if _, ok := c.Get("m", 8, 0, 0); ok {
		t.Error("expected cache to be empty after Invalidate")
	}
}

func TestPartitionEviction(t *testing.T) {
	c := newTestCache() // partition size 4
	load := func(ctx context.Context) (*rendertile.RenderTile, error) {
		return rendertile.Empty(8, 0, 0), nil
	}
	for x := uint32(0); x < 8; x++ {
		c.GetOrLoad(context.Background(), "m", 8, x, 0, 1, load)
	}
	if n := c.PartitionLen("m", 8); n > 4 {
		t.Errorf("partition len = %d, want <= 4", n)
	}
}
