// Package rendertile builds the themed, projected representation of a
// single map tile from a raw mapsforge.Tile, grouping objects by layer
// so a canvas collaborator can paint back-to-front without re-sorting.
package rendertile

import (
	"sort"

	"github.com/showermat/mapview/pkg/mapsforge"
	"github.com/showermat/mapview/pkg/projection"
	"github.com/showermat/mapview/pkg/theme"
)

// GeometryKind distinguishes a point feature from a path/area one.
type GeometryKind int

const (
	GeomPoint GeometryKind = iota
	GeomPath
)

// Geometry is the projected shape of one object: a single point, or a
// list of rings (each ring a closed or open polyline) for a way.
type Geometry struct {
	Kind  GeometryKind
	Point projection.Coord
	Rings [][]projection.Coord
}

// Object is one themed, projected feature ready to paint.
type Object struct {
	Geometry Geometry
	Name     string
	Material theme.Material
}

// RenderTile is the themed content of one map tile, with objects
// grouped by their original mapsforge layer (typically -5..10).
type RenderTile struct {
	Zoom   uint8
	X, Y   uint32
	Layers map[int8][]Object
}

// Empty returns a RenderTile with no objects.
func Empty(zoom uint8, x, y uint32) *RenderTile {
	return &RenderTile{Zoom: zoom, X: x, Y: y, Layers: map[int8][]Object{}}
}

// SortedLayers returns this tile's layer keys in ascending order, the
// order a canvas collaborator should paint them in.
func (r *RenderTile) SortedLayers() []int8 {
	keys := make([]int8, 0, len(r.Layers))
	for k := range r.Layers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Build classifies and projects every way and POI in tile against th,
// dropping unmatched features, and groups the result by each
// feature's own layer field.
func Build(tile mapsforge.Tile, th *theme.Theme) *RenderTile {
	rt := Empty(tile.Zoom, tile.X, tile.Y)
	for i := range tile.Ways {
		w := &tile.Ways[i]
		mat, ok := th.MatchWay(w)
		if !ok {
			continue
		}
		for _, block := range w.Blocks {
			rings := make([][]projection.Coord, len(block))
			for j, polygon := range block {
				rings[j] = mapsforge.Project(tile.Zoom, tile.X, tile.Y, polygon)
			}
			obj := Object{
				Geometry: Geometry{Kind: GeomPath, Rings: rings},
				Name:     w.Name,
				Material: mat,
			}
			rt.Layers[w.Layer] = append(rt.Layers[w.Layer], obj)
		}
	}
	for i := range tile.POIs {
		p := &tile.POIs[i]
		mat, ok := th.MatchPOI(p)
		if !ok {
			continue
		}
		coords := mapsforge.Project(tile.Zoom, tile.X, tile.Y, []projection.LatLon{p.Offset})
		obj := Object{
			Geometry: Geometry{Kind: GeomPoint, Point: coords[0]},
			Name:     p.Name,
			Material: mat,
		}
		rt.Layers[p.Layer] = append(rt.Layers[p.Layer], obj)
	}
	return rt
}
