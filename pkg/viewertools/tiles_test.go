package viewertools

import (
	"context"
	"testing"

	"github.com/showermat/mapview/pkg/rendertile"
	"github.com/showermat/mapview/pkg/theme"
)

func TestSummarizeTile(t *testing.T) {
	rt := rendertile.Empty(10, 5, 6)
	rt.Layers[0] = []rendertile.Object{
		{Name: "a", Material: theme.Material{Name: "water"}},
		{Name: "b", Material: theme.Material{Name: "water"}},
	}
	rt.Layers[3] = []rendertile.Object{
		{Name: "c", Material: theme.Material{Name: "road"}},
	}

	s := summarizeTile("citymap", rt)
	if s.Map != "citymap" || s.Zoom != 10 || s.X != 5 || s.Y != 6 {
		t.Fatalf("unexpected summary identity: %+v", s)
	}
	if s.FeatureTotal != 3 {
		t.Errorf("FeatureTotal = %d, want 3", s.FeatureTotal)
	}
	if s.LayerCounts[0] != 2 || s.LayerCounts[3] != 1 {
		t.Errorf("LayerCounts = %+v, want {0:2, 3:1}", s.LayerCounts)
	}
	if s.Materials["water"] != 2 || s.Materials["road"] != 1 {
		t.Errorf("Materials = %+v, want {water:2, road:1}", s.Materials)
	}
}

func TestHandleRequestTileUnregisteredMap(t *testing.T) {
	r := newTestRegistry(t)
	req := newToolRequest("request_tile", map[string]any{
		"map": "nonexistent", "zoom": 10, "x": 0, "y": 0,
	})

	result, err := r.HandleRequestTile(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorResult(t, result, "expected request_tile to fail for an unregistered map")
}

func TestHandleRenderViewportRejectsNonPositiveWidth(t *testing.T) {
	r := newTestRegistry(t)
	req := newToolRequest("render_viewport", map[string]any{
		"min_lat": 0.0, "min_lon": 0.0, "max_lat": 1.0, "max_lon": 1.0, "window_width_px": 0,
	})

	result, err := r.HandleRenderViewport(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorResult(t, result, "expected render_viewport to reject a non-positive window width")
}

func TestHandleRenderViewportNoMapsRegistered(t *testing.T) {
	r := newTestRegistry(t)
	req := newToolRequest("render_viewport", map[string]any{
		"min_lat": 40.0, "min_lon": -74.1, "max_lat": 40.1, "max_lon": -74.0, "window_width_px": 800,
	})

	result, err := r.HandleRenderViewport(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSuccessResult(t, result, "expected render_viewport to succeed even with no maps intersecting")

	var summaries []TileSummary
	if err := parseResultJSON(result, &summaries); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("summaries = %d, want 0 with no registered maps", len(summaries))
	}
}
