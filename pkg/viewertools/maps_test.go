package viewertools

import (
	"context"
	"testing"
)

func TestHandleListMapsEmpty(t *testing.T) {
	r := newTestRegistry(t)
	req := newToolRequest("list_maps", nil)

	result, err := r.HandleListMaps(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSuccessResult(t, result, "expected list_maps to succeed with no maps registered")

	var summaries []MapSummary
	if err := parseResultJSON(result, &summaries); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("summaries = %d, want 0", len(summaries))
	}
}

func TestHandleMapBoundsNotFound(t *testing.T) {
	r := newTestRegistry(t)
	req := newToolRequest("map_bounds", map[string]any{"map": "nonexistent"})

	result, err := r.HandleMapBounds(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorResult(t, result, "expected map_bounds to fail for an unregistered map")
}
