// Package geometry provides axis-aligned bounding boxes over the
// planar Coord space used by pkg/projection.
package geometry

import "github.com/showermat/mapview/pkg/projection"

// BoundingBox is either empty or a (min, max) pair with min <= max on
// both axes. The zero value is the degenerate box at the origin, not
// the empty box; EmptyBox returns the empty box.
type BoundingBox struct {
	Empty bool             `json:"empty"`
	Min   projection.Coord `json:"min"`
	Max   projection.Coord `json:"max"`
}

// EmptyBox returns the empty bounding box.
func EmptyBox() BoundingBox {
	return BoundingBox{Empty: true}
}

// NewBox returns the bounding box spanning min and max, normalizing
// the corners if passed in the wrong order.
func NewBox(a, b projection.Coord) BoundingBox {
	min := projection.Coord{X: minI64(a.X, b.X), Y: minI64(a.Y, b.Y)}
	max := projection.Coord{X: maxI64(a.X, b.X), Y: maxI64(a.Y, b.Y)}
	return BoundingBox{Min: min, Max: max}
}

// IsEmpty reports whether b is the empty box.
func (b BoundingBox) IsEmpty() bool {
	return b.Empty
}

// Include returns the smallest box covering b and p.
func (b BoundingBox) Include(p projection.Coord) BoundingBox {
	if b.Empty {
		return BoundingBox{Min: p, Max: p}
	}
	return BoundingBox{
		Min: projection.Coord{X: minI64(b.Min.X, p.X), Y: minI64(b.Min.Y, p.Y)},
		Max: projection.Coord{X: maxI64(b.Max.X, p.X), Y: maxI64(b.Max.Y, p.Y)},
	}
}

// Union returns the smallest box covering both b and other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	if b.Empty {
		return other
	}
	if other.Empty {
		return b
	}
	return BoundingBox{
		Min: projection.Coord{X: minI64(b.Min.X, other.Min.X), Y: minI64(b.Min.Y, other.Min.Y)},
		Max: projection.Coord{X: maxI64(b.Max.X, other.Max.X), Y: maxI64(b.Max.Y, other.Max.Y)},
	}
}

// Intersection returns the overlap of b and other, or the empty box
// if they don't overlap.
func (b BoundingBox) Intersection(other BoundingBox) BoundingBox {
	if b.Empty || other.Empty {
		return EmptyBox()
	}
	min := projection.Coord{X: maxI64(b.Min.X, other.Min.X), Y: maxI64(b.Min.Y, other.Min.Y)}
	max := projection.Coord{X: minI64(b.Max.X, other.Max.X), Y: minI64(b.Max.Y, other.Max.Y)}
	if min.X > max.X || min.Y > max.Y {
		return EmptyBox()
	}
	return BoundingBox{Min: min, Max: max}
}

// Width returns max.X - min.X, or 0 if empty.
func (b BoundingBox) Width() int64 {
	if b.Empty {
		return 0
	}
	return b.Max.X - b.Min.X
}

// Height returns max.Y - min.Y, or 0 if empty.
func (b BoundingBox) Height() int64 {
	if b.Empty {
		return 0
	}
	return b.Max.Y - b.Min.Y
}

// Midpoint returns the center of the box. It is undefined (returns
// the zero Coord) on an empty box; callers must check IsEmpty first.
func (b BoundingBox) Midpoint() projection.Coord {
	if b.Empty {
		return projection.Coord{}
	}
	return projection.Coord{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2}
}

// Intersects reports whether b and other overlap; boxes that only
// touch along an edge or at a corner count as intersecting.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return !b.Intersection(other).IsEmpty()
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
