// Package projection implements the Web-Mercator-like projection and
// tile-indexing math shared by the mapsforge parser and the render
// manager: conversion between geographic microdegree coordinates and
// a planar coordinate space of side 2^32, and between planar
// coordinates and tile indices at a given zoom level.
package projection

import "math"

const (
	// LonMax and LatMax bound the legal range of the projection; the
	// mapsforge format and this projection do not define behavior
	// outside them.
	LonMax = 179.9999
	LatMax = 85.0511

	// CoordMax is the side length, in planar units, of the square the
	// whole world projects into.
	CoordMax int64 = 1 << 32
)

// Coord is a planar (x, y) pair. Values outside [0, CoordMax) are
// legal and represent off-map regions; they are clamped only when
// used for tile indexing.
type Coord struct {
	X, Y int64
}

// Add returns the component-wise sum of c and other.
func (c Coord) Add(other Coord) Coord {
	return Coord{X: c.X + other.X, Y: c.Y + other.Y}
}

// LatLon is a geographic coordinate in signed microdegrees.
type LatLon struct {
	Lat, Lon int32
}

// NewLatLon constructs a LatLon from microdegree components.
func NewLatLon(lat, lon int32) LatLon {
	return LatLon{Lat: lat, Lon: lon}
}

// Add returns the component-wise sum of l and other, used to offset
// a tile origin by a way/POI's stored LatLon delta.
func (l LatLon) Add(other LatLon) LatLon {
	return LatLon{Lat: l.Lat + other.Lat, Lon: l.Lon + other.Lon}
}

// Constrain clamps l's components to the legal projection range.
func (l LatLon) Constrain() LatLon {
	return LatLon{
		Lat: clampI32(l.Lat, int32(-LatMax*1e6), int32(LatMax*1e6)),
		Lon: clampI32(l.Lon, int32(-LonMax*1e6), int32(LonMax*1e6)),
	}
}

// ToCoord projects l into planar Coord space using
// y = (1 - ln(tan(lat) + sec(lat)) / pi) / 2 * CoordMax, the
// ln(tan+sec) form used consistently throughout this package (see
// the projection formula note in this module's design ledger).
func (l LatLon) ToCoord() Coord {
	latRad := toRadians(clampF64(float64(l.Lat)/1e6, -LatMax, LatMax))
	x := int64(l.Lon+180_000_000) * CoordMax / 360_000_000
	y := int64((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * float64(CoordMax))
	return Coord{X: x, Y: y}
}

// LatLonBounds is a geographic bounding box in microdegrees, as
// stored directly in the map header (lat_min, lon_min, lat_max,
// lon_max fields, not yet normalized into a min/max Coord pair).
type LatLonBounds struct {
	LatMin, LonMin, LatMax, LonMax int32
}

// MinMax returns the (top-left, bottom-right) LatLon corners: the
// top-left carries the maximum latitude and minimum longitude, since
// latitude decreases downward in tile/pixel space.
func (b LatLonBounds) MinMax() (LatLon, LatLon) {
	return NewLatLon(b.LatMax, b.LonMin), NewLatLon(b.LatMin, b.LonMax)
}

// TileOrigin returns the geographic top-left corner of tile (xtile,
// ytile) at the given zoom level — the inverse of the tile-indexing
// projection below.
func TileOrigin(level uint8, xtile, ytile uint32) LatLon {
	n := math.Pow(2, float64(level))
	lon := float64(xtile)/n*360.0 - 180.0
	lat := toDegrees(math.Atan(math.Sinh(math.Pi * (1.0 - 2.0*float64(ytile)/n))))
	return NewLatLon(int32(lat*1e6), int32(lon*1e6))
}

// BiasedCoord2Tile computes the tile index covering coord at the
// given zoom level, using the asinh(tan(lat)) form internally (the
// same mathematically-equivalent-but-distinct formula the original
// source uses at this call site, kept intentionally distinct from
// ToCoord's ln(tan+sec) form). When biasLow is set, a coordinate
// sitting exactly on a tile boundary is assigned to the tile
// above/left rather than below/right — used only for the inclusive
// max-corner tile of a bounding box.
func BiasedCoord2Tile(level uint8, coord LatLon, biasLow bool) (uint32, uint32) {
	latRad := toRadians(clampF64(float64(coord.Lat)/1e6, -LatMax, LatMax))
	n := math.Pow(2, float64(level))
	xtile := uint32((clampF64(float64(coord.Lon)/1e6, -LonMax, LonMax) + 180.0) / 360.0 * n)
	ytile := uint32((1.0 - math.Asinh(math.Tan(latRad))/math.Pi) / 2.0 * n)
	if biasLow {
		origin := TileOrigin(level, xtile, ytile)
		if origin.Lat == coord.Lat && ytile > 0 {
			ytile--
		}
		if origin.Lon == coord.Lon && xtile > 0 {
			xtile--
		}
	}
	maxtile := uint32(1<<level) - 1
	return minU32(xtile, maxtile), minU32(ytile, maxtile)
}

// Coord2Tile computes the tile index covering coord, without bias —
// the cheaper default used when boundary bias doesn't matter.
func Coord2Tile(level uint8, coord LatLon) (uint32, uint32) {
	return BiasedCoord2Tile(level, coord, false)
}

// NumTiles returns the (width, height) in tiles of the box that
// exactly covers bounds at the given zoom level.
func NumTiles(level uint8, bounds LatLonBounds) (uint32, uint32) {
	minCoord, maxCoord := bounds.MinMax()
	minX, minY := BiasedCoord2Tile(level, minCoord, false)
	maxX, maxY := BiasedCoord2Tile(level, maxCoord, true)
	return maxX - minX + 1, maxY - minY + 1
}

// TileIdxInBox computes the reading-order index of tile (xtile,
// ytile) among all tiles covered by bounds at the given zoom level —
// the position that tile would have if every covered tile were
// counted off from zero in row-major order — or false if the tile
// lies outside bounds.
func TileIdxInBox(level uint8, bounds LatLonBounds, xtile, ytile uint32) (uint32, bool) {
	minCoord, maxCoord := bounds.MinMax()
	minX, minY := BiasedCoord2Tile(level, minCoord, false)
	maxX, maxY := BiasedCoord2Tile(level, maxCoord, true)
	if xtile < minX || xtile > maxX || ytile < minY || ytile > maxY {
		return 0, false
	}
	rowlen := maxX - minX + 1
	return (ytile-minY)*rowlen + (xtile - minX), true
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180.0 }
func toDegrees(rad float64) float64 { return rad * 180.0 / math.Pi }
