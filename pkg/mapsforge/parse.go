package mapsforge

import (
	"bytes"
	"fmt"

	"github.com/showermat/mapview/pkg/codec"
	"github.com/showermat/mapview/pkg/projection"
)

var magic = []byte("mapsforge binary OSM")

// header flag bits, per spec §4.1.
const (
	flagDebug      = 0x80
	flagStartPos   = 0x40
	flagStartZoom  = 0x20
	flagPrefLang   = 0x10
	flagComment    = 0x08
	flagCreator    = 0x04
)

// POI/Way flag bits, per spec §4.1.
const (
	flagName        = 0x80
	flagHouseNumber = 0x40
	flagElevation   = 0x20 // POI only

	flagWayReference   = 0x20
	flagWayLabelPos    = 0x10
	flagWayNumBlocks   = 0x08
	flagWayDoubleDelta = 0x04
)

func parseHeader(r *codec.Reader) (*MapHeader, error) {
	magicBuf, err := r.Bytes(len(magic))
	if err != nil {
		return nil, fmt.Errorf("header magic: %w", err)
	}
	if !bytes.Equal(magicBuf, magic) {
		return nil, fmt.Errorf("header magic: got %q, want %q", magicBuf, magic)
	}
	if _, err := r.U32(); err != nil { // header size, unused
		return nil, fmt.Errorf("header size: %w", err)
	}
	version, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	size, err := r.U64()
	if err != nil {
		return nil, fmt.Errorf("file size: %w", err)
	}
	created, err := r.U64()
	if err != nil {
		return nil, fmt.Errorf("creation date: %w", err)
	}
	latMin, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("bounds lat_min: %w", err)
	}
	lonMin, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("bounds lon_min: %w", err)
	}
	latMax, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("bounds lat_max: %w", err)
	}
	lonMax, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("bounds lon_max: %w", err)
	}
	tileSize, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("tile size: %w", err)
	}
	proj, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	flags, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}

	h := &MapHeader{
		Version:    version,
		Size:       size,
		Created:    created,
		Bounds:     projection.LatLonBounds{LatMin: latMin, LonMin: lonMin, LatMax: latMax, LonMax: lonMax},
		TileSize:   tileSize,
		Projection: proj,
		Debug:      flags&flagDebug != 0,
	}

	if flags&flagStartPos != 0 {
		lat, err := r.I32()
		if err != nil {
			return nil, fmt.Errorf("start position lat: %w", err)
		}
		lon, err := r.I32()
		if err != nil {
			return nil, fmt.Errorf("start position lon: %w", err)
		}
		h.StartPos, h.HasStartPos = projection.NewLatLon(lat, lon), true
	}
	if flags&flagStartZoom != 0 {
		z, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("start zoom: %w", err)
		}
		h.StartZoom, h.HasStartZoom = z, true
	}
	if flags&flagPrefLang != 0 {
		s, err := r.String()
		if err != nil {
			return nil, fmt.Errorf("preferred language: %w", err)
		}
		h.PrefLang, h.HasPrefLang = s, true
	}
	if flags&flagComment != 0 {
		s, err := r.String()
		if err != nil {
			return nil, fmt.Errorf("comment: %w", err)
		}
		h.Comment, h.HasComment = s, true
	}
	if flags&flagCreator != 0 {
		s, err := r.String()
		if err != nil {
			return nil, fmt.Errorf("creator: %w", err)
		}
		h.Creator, h.HasCreator = s, true
	}

	poiTags, err := parseTagDescList(r)
	if err != nil {
		return nil, fmt.Errorf("poi tag schema: %w", err)
	}
	h.POITags = poiTags

	wayTags, err := parseTagDescList(r)
	if err != nil {
		return nil, fmt.Errorf("way tag schema: %w", err)
	}
	h.WayTags = wayTags

	nzoom, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("zoom interval count: %w", err)
	}
	intervals := make([]ZoomInterval, nzoom)
	for i := range intervals {
		base, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("zoom interval %d base: %w", i, err)
		}
		min, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("zoom interval %d min: %w", i, err)
		}
		max, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("zoom interval %d max: %w", i, err)
		}
		start, err := r.U64()
		if err != nil {
			return nil, fmt.Errorf("zoom interval %d start: %w", i, err)
		}
		length, err := r.U64()
		if err != nil {
			return nil, fmt.Errorf("zoom interval %d length: %w", i, err)
		}
		intervals[i] = ZoomInterval{Base: base, Min: min, Max: max, Start: start, Len: length}
	}
	h.ZoomIntervals = intervals

	return h, nil
}

func parseTagDescList(r *codec.Reader) ([]TagDescriptor, error) {
	n, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	descs := make([]TagDescriptor, n)
	for i := range descs {
		s, err := r.String()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		desc, err := ParseTagDescriptor(s)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		descs[i] = desc
	}
	return descs, nil
}

func parseTileIndex(num int, debug bool, base uint64, r *codec.Reader) (*TileIndex, error) {
	if debug {
		if err := r.Skip(16); err != nil {
			return nil, fmt.Errorf("debug signature: %w", err)
		}
	}
	offsets := make([]uint64, num)
	for i := 0; i < num; i++ {
		b, err := r.Bytes(5)
		if err != nil {
			return nil, fmt.Errorf("tile offset %d: %w", i, err)
		}
		raw := uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
		offsets[i] = raw + base
	}
	return &TileIndex{TileOffsets: offsets}, nil
}

func parseTileHeader(debug bool, nzoom uint8, r *codec.Reader) (*TileHeader, error) {
	if debug {
		if err := r.Skip(32); err != nil {
			return nil, fmt.Errorf("debug signature: %w", err)
		}
	}
	table := make([][2]uint64, nzoom)
	for i := range table {
		poiCount, err := r.VarUint()
		if err != nil {
			return nil, fmt.Errorf("zoom table %d poi count: %w", i, err)
		}
		wayCount, err := r.VarUint()
		if err != nil {
			return nil, fmt.Errorf("zoom table %d way count: %w", i, err)
		}
		table[i] = [2]uint64{poiCount, wayCount}
	}
	if _, err := r.VarUint(); err != nil {
		return nil, fmt.Errorf("poi block size: %w", err)
	}
	return &TileHeader{ZoomTable: table}, nil
}

func tagValue(desc TagDescriptor, r *codec.Reader) (TagValue, error) {
	switch desc.Kind {
	case TagLiteral:
		return TagValue{Kind: ValLiteral, Literal: desc.Literal}, nil
	case TagByte:
		v, err := r.I8()
		return TagValue{Kind: ValByte, Byte: v}, err
	case TagShort:
		v, err := r.I16()
		return TagValue{Kind: ValShort, Short: v}, err
	case TagInt:
		v, err := r.I32()
		return TagValue{Kind: ValInt, Int: v}, err
	case TagFloat:
		v, err := r.F32()
		return TagValue{Kind: ValFloat, Float: v}, err
	case TagString:
		v, err := r.String()
		return TagValue{Kind: ValString, String: v}, err
	default:
		return TagValue{}, fmt.Errorf("unknown tag descriptor kind %d", desc.Kind)
	}
}

func parseTagMap(ntags uint8, schema []TagDescriptor, r *codec.Reader) (map[string]TagValue, error) {
	ids := make([]uint64, ntags)
	for i := range ids {
		id, err := r.VarUint()
		if err != nil {
			return nil, fmt.Errorf("tag id %d: %w", i, err)
		}
		ids[i] = id
	}
	out := make(map[string]TagValue, ntags)
	for _, id := range ids {
		if int(id) >= len(schema) {
			return nil, fmt.Errorf("tag id %d out of range of schema (len %d)", id, len(schema))
		}
		desc := schema[id]
		v, err := tagValue(desc, r)
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", desc.Name, err)
		}
		out[desc.Name] = v
	}
	return out, nil
}

func parsePOI(debug bool, schema []TagDescriptor, r *codec.Reader) (POI, error) {
	if debug {
		if err := r.Skip(32); err != nil {
			return POI{}, fmt.Errorf("debug signature: %w", err)
		}
	}
	lat, lon, err := r.LatLonPair()
	if err != nil {
		return POI{}, fmt.Errorf("offset: %w", err)
	}
	layerTags, err := r.U8()
	if err != nil {
		return POI{}, fmt.Errorf("layer/tag count: %w", err)
	}
	layer := int8(layerTags>>4) - 5
	ntags := layerTags & 0x0f
	tags, err := parseTagMap(ntags, schema, r)
	if err != nil {
		return POI{}, fmt.Errorf("tags: %w", err)
	}
	flags, err := r.U8()
	if err != nil {
		return POI{}, fmt.Errorf("flags: %w", err)
	}
	p := POI{Offset: projection.NewLatLon(lat, lon), Layer: layer, Tags: tags}
	if flags&flagName != 0 {
		s, err := r.String()
		if err != nil {
			return POI{}, fmt.Errorf("name: %w", err)
		}
		p.Name, p.HasName = s, true
	}
	if flags&flagHouseNumber != 0 {
		s, err := r.String()
		if err != nil {
			return POI{}, fmt.Errorf("house number: %w", err)
		}
		p.HouseNumber, p.HasHouseNum = s, true
	}
	if flags&flagElevation != 0 {
		e, err := r.VarInt()
		if err != nil {
			return POI{}, fmt.Errorf("elevation: %w", err)
		}
		p.Elevation, p.HasElev = e, true
	}
	return p, nil
}

// decodeSingleDelta turns a list of stored offsets into absolute
// LatLon values by running sum, seeded at (0, 0).
func decodeSingleDelta(points []projection.LatLon) []projection.LatLon {
	cur := projection.NewLatLon(0, 0)
	ret := make([]projection.LatLon, len(points))
	for i, p := range points {
		cur = cur.Add(p)
		ret[i] = cur
	}
	return ret
}

// decodeDoubleDelta decodes second-differences: the first point is
// the stored value itself; each subsequent point adds both the
// running offset (the previous step's delta) and the stored value,
// then the offset is updated to the step just taken.
func decodeDoubleDelta(points []projection.LatLon) []projection.LatLon {
	cur := projection.NewLatLon(0, 0)
	offset := projection.NewLatLon(0, 0)
	ret := make([]projection.LatLon, len(points))
	for i, p := range points {
		last := cur
		cur = cur.Add(offset).Add(p)
		if i > 0 {
			offset = projection.NewLatLon(cur.Lat-last.Lat, cur.Lon-last.Lon)
		}
		ret[i] = cur
	}
	return ret
}

func parseCoordBlock(r *codec.Reader) ([]projection.LatLon, error) {
	n, err := r.VarUint()
	if err != nil {
		return nil, fmt.Errorf("point count: %w", err)
	}
	pts := make([]projection.LatLon, n)
	for i := range pts {
		lat, lon, err := r.LatLonPair()
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		pts[i] = projection.NewLatLon(lat, lon)
	}
	return pts, nil
}

func parseWayBlock(doubleDelta bool, r *codec.Reader) ([][]projection.LatLon, error) {
	n, err := r.VarUint()
	if err != nil {
		return nil, fmt.Errorf("polygon count: %w", err)
	}
	polys := make([][]projection.LatLon, n)
	for i := range polys {
		raw, err := parseCoordBlock(r)
		if err != nil {
			return nil, fmt.Errorf("polygon %d: %w", i, err)
		}
		if doubleDelta {
			polys[i] = decodeDoubleDelta(raw)
		} else {
			polys[i] = decodeSingleDelta(raw)
		}
	}
	return polys, nil
}

func parseWay(debug bool, schema []TagDescriptor, r *codec.Reader) (Way, error) {
	if debug {
		if err := r.Skip(32); err != nil {
			return Way{}, fmt.Errorf("debug signature: %w", err)
		}
	}
	size, err := r.VarUint()
	if err != nil {
		return Way{}, fmt.Errorf("size: %w", err)
	}
	subtileMap, err := r.U16()
	if err != nil {
		return Way{}, fmt.Errorf("subtile map: %w", err)
	}
	layerTags, err := r.U8()
	if err != nil {
		return Way{}, fmt.Errorf("layer/tag count: %w", err)
	}
	layer := int8(layerTags>>4) - 5
	ntags := layerTags & 0x0f
	tags, err := parseTagMap(ntags, schema, r)
	if err != nil {
		return Way{}, fmt.Errorf("tags: %w", err)
	}
	flags, err := r.U8()
	if err != nil {
		return Way{}, fmt.Errorf("flags: %w", err)
	}
	w := Way{Size: size, SubtileMap: subtileMap, Layer: layer, Tags: tags}
	if flags&flagName != 0 {
		s, err := r.String()
		if err != nil {
			return Way{}, fmt.Errorf("name: %w", err)
		}
		w.Name, w.HasName = s, true
	}
	if flags&flagHouseNumber != 0 {
		s, err := r.String()
		if err != nil {
			return Way{}, fmt.Errorf("house number: %w", err)
		}
		w.HouseNumber, w.HasHouseNum = s, true
	}
	if flags&flagWayReference != 0 {
		s, err := r.String()
		if err != nil {
			return Way{}, fmt.Errorf("reference: %w", err)
		}
		w.Reference, w.HasRef = s, true
	}
	if flags&flagWayLabelPos != 0 {
		lat, lon, err := r.LatLonPair()
		if err != nil {
			return Way{}, fmt.Errorf("label position: %w", err)
		}
		w.LabelPos, w.HasLabel = projection.NewLatLon(lat, lon), true
	}
	nblocks := uint64(1)
	if flags&flagWayNumBlocks != 0 {
		n, err := r.VarUint()
		if err != nil {
			return Way{}, fmt.Errorf("block count: %w", err)
		}
		nblocks = n
	}
	doubleDelta := flags&flagWayDoubleDelta != 0
	blocks := make([][][]projection.LatLon, nblocks)
	for i := range blocks {
		b, err := parseWayBlock(doubleDelta, r)
		if err != nil {
			return Way{}, fmt.Errorf("block %d: %w", i, err)
		}
		blocks[i] = b
	}
	w.Blocks = blocks
	return w, nil
}
