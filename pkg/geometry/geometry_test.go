package geometry

import (
	"testing"

	"github.com/showermat/mapview/pkg/projection"
)

func coord(x, y int64) projection.Coord {
	return projection.Coord{X: x, Y: y}
}

func TestNewBoxNormalizesCorners(t *testing.T) {
	b := NewBox(coord(10, 10), coord(0, 0))
	if b.Min != coord(0, 0) || b.Max != coord(10, 10) {
		t.Errorf("NewBox did not normalize corners: min=%v max=%v", b.Min, b.Max)
	}
}

func TestEmptyBox(t *testing.T) {
	b := EmptyBox()
	if !b.IsEmpty() {
		t.Error("EmptyBox().IsEmpty() = false, want true")
	}
	if b.Width() != 0 || b.Height() != 0 {
		t.Errorf("EmptyBox width/height = %d/%d, want 0/0", b.Width(), b.Height())
	}
}

func TestInclude(t *testing.T) {
	b := EmptyBox().Include(coord(5, 5))
	if b.IsEmpty() {
		t.Fatal("Include on empty box produced an empty result")
	}
	if b.Min != coord(5, 5) || b.Max != coord(5, 5) {
		t.Errorf("Include(empty, p) = %v..%v, want p..p", b.Min, b.Max)
	}

	b = b.Include(coord(-1, 8))
	if b.Min != coord(-1, 5) || b.Max != coord(5, 8) {
		t.Errorf("Include grew incorrectly: min=%v max=%v", b.Min, b.Max)
	}
}

func TestUnion(t *testing.T) {
	tests := []struct {
		name     string
		a, b     BoundingBox
		wantMin  projection.Coord
		wantMax  projection.Coord
		wantZero bool
	}{
		{"both empty", EmptyBox(), EmptyBox(), projection.Coord{}, projection.Coord{}, true},
		{"a empty", EmptyBox(), NewBox(coord(0, 0), coord(1, 1)), coord(0, 0), coord(1, 1), false},
		{"b empty", NewBox(coord(0, 0), coord(1, 1)), EmptyBox(), coord(0, 0), coord(1, 1), false},
		{"disjoint", NewBox(coord(0, 0), coord(1, 1)), NewBox(coord(5, 5), coord(6, 6)), coord(0, 0), coord(6, 6), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Union(tt.b)
			if tt.wantZero {
				if !got.IsEmpty() {
					t.Errorf("Union() = %v, want empty", got)
				}
				return
			}
			if got.Min != tt.wantMin || got.Max != tt.wantMax {
				t.Errorf("Union() = %v..%v, want %v..%v", got.Min, got.Max, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestIntersection(t *testing.T) {
	a := NewBox(coord(0, 0), coord(10, 10))
	b := NewBox(coord(5, 5), coord(15, 15))
	got := a.Intersection(b)
	if got.Min != coord(5, 5) || got.Max != coord(10, 10) {
		t.Errorf("Intersection() = %v..%v, want (5,5)..(10,10)", got.Min, got.Max)
	}

	disjoint := NewBox(coord(20, 20), coord(30, 30))
	if !a.Intersection(disjoint).IsEmpty() {
		t.Error("Intersection() of disjoint boxes should be empty")
	}
}

func TestIntersects(t *testing.T) {
	a := NewBox(coord(0, 0), coord(10, 10))
	overlapping := NewBox(coord(5, 5), coord(15, 15))
	disjoint := NewBox(coord(20, 20), coord(30, 30))

	if !a.Intersects(overlapping) {
		t.Error("Intersects() = false for overlapping boxes, want true")
	}
	if a.Intersects(disjoint) {
		t.Error("Intersects() = true for disjoint boxes, want false")
	}
}

func TestMidpoint(t *testing.T) {
	b := NewBox(coord(0, 0), coord(10, 20))
	mid := b.Midpoint()
	if mid != coord(5, 10) {
		t.Errorf("Midpoint() = %v, want (5,10)", mid)
	}

	if got := EmptyBox().Midpoint(); got != (projection.Coord{}) {
		t.Errorf("Midpoint() of empty box = %v, want zero value", got)
	}
}

func TestWidthHeight(t *testing.T) {
	b := NewBox(coord(2, 3), coord(12, 20))
	if b.Width() != 10 {
		t.Errorf("Width() = %d, want 10", b.Width())
	}
	if b.Height() != 17 {
		t.Errorf("Height() = %d, want 17", b.Height())
	}
}
