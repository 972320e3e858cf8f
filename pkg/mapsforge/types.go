package mapsforge

import "github.com/showermat/mapview/pkg/projection"

// TagDescKind identifies whether a TagDescriptor slot holds a fixed
// literal value or a dynamically-typed one.
type TagDescKind int

const (
	TagLiteral TagDescKind = iota
	TagByte
	TagShort
	TagInt
	TagFloat
	TagString
)

// TagDescriptor is a schema entry for one tag slot, parsed from a
// "name=value" string in the map header's tag schema. If value starts
// with '%' followed by a single type sigil (b/h/i/f/s), the slot is
// dynamically typed; otherwise it's a literal name=value constant.
type TagDescriptor struct {
	Name    string
	Kind    TagDescKind
	Literal string // valid when Kind == TagLiteral
}

// ParseTagDescriptor splits a "name=value" schema string into its
// name and descriptor.
func ParseTagDescriptor(s string) (TagDescriptor, error) {
	idx := indexByte(s, '=')
	if idx < 0 {
		return TagDescriptor{}, &ParseError{Reason: "tag descriptor missing '='", Err: errInvalidTagDesc(s)}
	}
	name, val := s[:idx], s[idx+1:]
	if len(val) == 2 && val[0] == '%' {
		switch val[1] {
		case 'b':
			return TagDescriptor{Name: name, Kind: TagByte}, nil
		case 'h':
			return TagDescriptor{Name: name, Kind: TagShort}, nil
		case 'i':
			return TagDescriptor{Name: name, Kind: TagInt}, nil
		case 'f':
			return TagDescriptor{Name: name, Kind: TagFloat}, nil
		case 's':
			return TagDescriptor{Name: name, Kind: TagString}, nil
		default:
			return TagDescriptor{}, &ParseError{Reason: "unknown tag type sigil", Err: errInvalidTagDesc(s)}
		}
	}
	return TagDescriptor{Name: name, Kind: TagLiteral, Literal: val}, nil
}

type errInvalidTagDesc string

func (e errInvalidTagDesc) Error() string { return "invalid tag descriptor: " + string(e) }

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// TagValueKind mirrors TagDescKind for a decoded value.
type TagValueKind int

const (
	ValLiteral TagValueKind = iota
	ValByte
	ValShort
	ValInt
	ValFloat
	ValString
)

// TagValue is a decoded tag value: exactly one of the fields
// indicated by Kind is meaningful.
type TagValue struct {
	Kind    TagValueKind
	Literal string
	Byte    int8
	Short   int16
	Int     int32
	Float   float32
	String  string
}

// IsLiteral reports whether v is a Literal tag holding s.
func (v TagValue) IsLiteral(s string) bool {
	return v.Kind == ValLiteral && v.Literal == s
}

// ZoomInterval describes one subfile: the zoom range it covers and
// its byte range within the map file.
type ZoomInterval struct {
	Base, Min, Max uint8
	Start, Len     uint64
}

// TileIndex holds the per-tile absolute file offsets for one subfile,
// in the subfile's bounding-box reading order.
type TileIndex struct {
	TileOffsets []uint64
}

// tileIndexWaterMask is the high bit (bit 39) of the decoded 40-bit
// tile offset, marking a tile as empty/water-only.
const tileIndexWaterMask = uint64(1) << 39

// IsWater reports whether the tile at idx is marked empty/water-only.
func (t *TileIndex) IsWater(idx int) bool {
	return t.TileOffsets[idx]&tileIndexWaterMask != 0
}

// Offset returns the absolute file offset of the tile at idx, with
// the water-mask bit cleared.
func (t *TileIndex) Offset(idx int) uint64 {
	return t.TileOffsets[idx] &^ tileIndexWaterMask
}

// POI is a single point of interest within a tile.
type POI struct {
	Offset      projection.LatLon // relative to tile origin
	Layer       int8              // in [-5, 10]
	Tags        map[string]TagValue
	Name        string
	HasName     bool
	HouseNumber string
	HasHouseNum bool
	Elevation   int64
	HasElev     bool
}

// Way is a single linear or area feature within a tile. Blocks is a
// list of blocks, each a list of polygons, each a list of absolute
// (post-delta-decode) LatLon offsets from the tile origin.
type Way struct {
	Size        uint64
	SubtileMap  uint16
	Layer       int8
	Tags        map[string]TagValue
	Name        string
	HasName     bool
	HouseNumber string
	HasHouseNum bool
	Reference   string
	HasRef      bool
	LabelPos    projection.LatLon
	HasLabel    bool
	Blocks      [][][]projection.LatLon
}

// TileHeader is the parsed header of one tile record: the per-zoom
// POI/way counts. POIs and ways follow immediately after in the same
// stream and are always read sequentially, never seeked to.
type TileHeader struct {
	ZoomTable [][2]uint64 // (poi_count, way_count) per zoom level in the subfile's interval
}

// Tile is the raw, unprojected content of one map tile.
type Tile struct {
	Zoom       uint8
	X, Y       uint32
	Ways       []Way
	POIs       []POI
}

// Empty returns an empty tile at the given index — used for
// off-map or water-marked tile requests, which never touch the parser.
func Empty(zoom uint8, x, y uint32) Tile {
	return Tile{Zoom: zoom, X: x, Y: y}
}

// MapHeader is the parsed global header of a map file.
type MapHeader struct {
	Version       uint32
	Size          uint64
	Created       uint64
	Bounds        projection.LatLonBounds
	TileSize      uint16
	Projection    string
	Debug         bool
	StartPos      projection.LatLon
	HasStartPos   bool
	StartZoom     uint8
	HasStartZoom  bool
	PrefLang      string
	HasPrefLang   bool
	Comment       string
	HasComment    bool
	Creator       string
	HasCreator    bool
	POITags       []TagDescriptor
	WayTags       []TagDescriptor
	ZoomIntervals []ZoomInterval
}
