// Package mapsforge parses the mapsforge binary map file format: a
// memory-mapped, multi-subfile layout with a global header, one tile
// index per zoom interval, and per-tile records of POIs and ways with
// delta-encoded polygon geometry.
package mapsforge

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/showermat/mapview/pkg/codec"
	"github.com/showermat/mapview/pkg/projection"
)

// MapFile is an open, memory-mapped map file. A MapFile's data and
// header are shared read-only with every Tile it parses; the mapping
// must outlive any render job holding a parsed Tile.
type MapFile struct {
	path            string
	data            []byte
	header          *MapHeader
	zoomIntervalMap map[uint8]uint8 // zoom level -> index into header.ZoomIntervals
	indices         []*TileIndex    // one per zoom interval, parallel to header.ZoomIntervals
}

// Open memory-maps path, parses the global header, and builds the
// tile-index table for each subfile.
func Open(path string) (*MapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		return nil, &ParseError{Path: path, Reason: "empty file", Err: io.EOF}
	}

	data, err := mmapFile(f.Fd(), int(fi.Size()))
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	header, err := parseHeader(codec.NewReader(data))
	if err != nil {
		munmapFile(data)
		return nil, &ParseError{Path: path, Reason: "header", Err: err}
	}

	zoomMap := make(map[uint8]uint8, len(header.ZoomIntervals))
	for idx, zi := range header.ZoomIntervals {
		for level := zi.Min; level <= zi.Max; level++ {
			zoomMap[level] = uint8(idx)
		}
	}

	indices := make([]*TileIndex, len(header.ZoomIntervals))
	for idx, zi := range header.ZoomIntervals {
		n := numTilesFor(zi.Base, header.Bounds)
		if int(zi.Start) > len(data) {
			munmapFile(data)
			return nil, &ParseError{Path: path, Reason: "zoom interval start past end of file", Err: io.ErrUnexpectedEOF}
		}
		index, err := parseTileIndex(int(n), header.Debug, zi.Start, codec.NewReader(data[zi.Start:]))
		if err != nil {
			munmapFile(data)
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("tile index for zoom interval %d", idx), Err: err}
		}
		indices[idx] = index
	}

	return &MapFile{path: path, data: data, header: header, zoomIntervalMap: zoomMap, indices: indices}, nil
}

// Close releases the memory mapping. The MapFile and any Tile parsed
// from it must not be used afterward.
func (m *MapFile) Close() error {
	return munmapFile(m.data)
}

// Path returns the filesystem path the map was opened from.
func (m *MapFile) Path() string {
	return m.path
}

// Header returns the parsed global header.
func (m *MapFile) Header() *MapHeader {
	return m.header
}

func numTilesFor(base uint8, bounds projection.LatLonBounds) uint32 {
	w, h := projection.NumTiles(base, bounds)
	return w * h
}

// Bounds returns the projected planar bounds of the map's declared
// geographic coverage.
func (m *MapFile) Bounds() (projection.Coord, projection.Coord) {
	min, max := m.header.Bounds.MinMax()
	return min.Constrain().ToCoord(), max.Constrain().ToCoord()
}

// DesiredZoomLevel picks the base zoom of the subfile whose zoom
// range covers the resolution implied by degLonPerPx, or false if no
// subfile covers it.
func (m *MapFile) DesiredZoomLevel(degLonPerPx float64) (uint8, bool) {
	idealDegPerTile := degLonPerPx * float64(m.header.TileSize)
	target := clamp(math.Round(math.Log2(360.0/idealDegPerTile)), 0, 22)
	idx, ok := m.zoomIntervalMap[uint8(target)]
	if !ok {
		return 0, false
	}
	return m.header.ZoomIntervals[idx].Base, true
}

// Tile resolves (zoom, x, y) to a tile record. zoom must be the base
// zoom of the interval that covers it; requesting any other zoom
// within a covered interval returns an UnsupportedZoomError. An
// (x, y) outside the map's tile range, or marked water-only in the
// tile index, yields an empty Tile with no parsing performed.
func (m *MapFile) Tile(zoom uint8, x, y uint32) (Tile, error) {
	subfileIdx, ok := m.zoomIntervalMap[zoom]
	if !ok {
		return Tile{}, fmt.Errorf("mapsforge: zoom %d is not covered by any subfile", zoom)
	}
	zi := m.header.ZoomIntervals[subfileIdx]
	if zi.Base != zoom {
		return Tile{}, &UnsupportedZoomError{Requested: zoom, Base: zi.Base}
	}
	tileIdx, ok := projection.TileIdxInBox(zoom, m.header.Bounds, x, y)
	if !ok {
		return Empty(zoom, x, y), nil
	}
	index := m.indices[subfileIdx]
	if int(tileIdx) >= len(index.TileOffsets) {
		return Empty(zoom, x, y), nil
	}
	if index.IsWater(int(tileIdx)) {
		return Empty(zoom, x, y), nil
	}
	offset := index.Offset(int(tileIdx))
	if int(offset) >= len(m.data) {
		return Tile{}, fmt.Errorf("mapsforge: tile offset %d past end of file", offset)
	}
	r := codec.NewReader(m.data[offset:])
	nzoom := zi.Max - zi.Min + 1
	tileHeader, err := parseTileHeader(m.header.Debug, nzoom, r)
	if err != nil {
		return Tile{}, fmt.Errorf("mapsforge: tile (%d,%d,%d) header: %w", zoom, x, y, err)
	}
	var numPOI, numWay uint64
	for _, c := range tileHeader.ZoomTable {
		numPOI += c[0]
		numWay += c[1]
	}
	pois := make([]POI, 0, numPOI)
	for i := uint64(0); i < numPOI; i++ {
		p, err := parsePOI(m.header.Debug, m.header.POITags, r)
		if err != nil {
			return Tile{}, fmt.Errorf("mapsforge: tile (%d,%d,%d) poi %d: %w", zoom, x, y, i, err)
		}
		pois = append(pois, p)
	}
	ways := make([]Way, 0, numWay)
	for i := uint64(0); i < numWay; i++ {
		w, err := parseWay(m.header.Debug, m.header.WayTags, r)
		if err != nil {
			return Tile{}, fmt.Errorf("mapsforge: tile (%d,%d,%d) way %d: %w", zoom, x, y, i, err)
		}
		ways = append(ways, w)
	}
	return Tile{Zoom: zoom, X: x, Y: y, Ways: ways, POIs: pois}, nil
}

// Project translates a list of LatLon offsets relative to the given
// tile's origin into absolute planar Coords.
func Project(zoom uint8, x, y uint32, offsets []projection.LatLon) []projection.Coord {
	origin := projection.TileOrigin(zoom, x, y)
	out := make([]projection.Coord, len(offsets))
	for i, off := range offsets {
		out[i] = origin.Add(off).ToCoord()
	}
	return out
}

// DebugDumpSchema writes the POI and way tag schemas to w, one
// descriptor per line, matching the original source's debug `test()`
// output — handy for inspecting an unfamiliar map file's tag schema
// from the CLI.
func (m *MapFile) DebugDumpSchema(w io.Writer) error {
	for _, d := range m.header.WayTags {
		if _, err := fmt.Fprintf(w, "way\t%s\t%s\n", d.Name, describeTagDesc(d)); err != nil {
			return err
		}
	}
	for _, d := range m.header.POITags {
		if _, err := fmt.Fprintf(w, "poi\t%s\t%s\n", d.Name, describeTagDesc(d)); err != nil {
			return err
		}
	}
	return nil
}

func describeTagDesc(d TagDescriptor) string {
	switch d.Kind {
	case TagLiteral:
		return "Literal(" + d.Literal + ")"
	case TagByte:
		return "Byte"
	case TagShort:
		return "Short"
	case TagInt:
		return "Int"
	case TagFloat:
		return "Float"
	case TagString:
		return "String"
	default:
		return "?"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
