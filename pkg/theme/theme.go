// Package theme classifies map features (ways and POIs) into a small
// set of semantic materials by matching their tags against an ordered
// list of rules, mirroring original_source/src/theme.rs.
package theme

import (
	"regexp"

	"github.com/showermat/mapview/pkg/mapsforge"
)

// EntityType is the shape a matcher applies to.
type EntityType int

const (
	EntityAny EntityType = iota
	EntityPath
	EntityArea
	EntityPoint
)

// Color is a simple RGBA color in [0, 1] components, carried by a
// Material for the canvas collaborator to build a paint from.
type Color struct {
	R, G, B, A float64
}

// Material carries the optional fill and stroke colors used to paint
// an object of this material.
type Material struct {
	Name   string
	Fill   *Color
	Stroke *Color
}

// TagMatchKind distinguishes the three ways a matcher can test a tag.
type TagMatchKind int

const (
	MatchPresent TagMatchKind = iota
	MatchLiteral
	MatchRegex
)

// TagMatch is one test against a single tag: Present matches any
// value, Literal matches a Literal-kind TagValue against a fixed set
// of strings, Regex matches a Literal-kind TagValue's string against
// a compiled pattern.
type TagMatch struct {
	Kind    TagMatchKind
	Values  map[string]struct{} // MatchLiteral
	Pattern *regexp.Regexp      // MatchRegex
}

// Present returns a TagMatch that matches any value for its tag.
func Present() TagMatch {
	return TagMatch{Kind: MatchPresent}
}

// Literal returns a TagMatch that matches a Literal tag whose value
// is one of values.
func Literal(values ...string) TagMatch {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return TagMatch{Kind: MatchLiteral, Values: set}
}

// Regex returns a TagMatch that matches a Literal tag whose value
// satisfies pattern.
func Regex(pattern string) TagMatch {
	return TagMatch{Kind: MatchRegex, Pattern: regexp.MustCompile(pattern)}
}

func (m TagMatch) matches(v mapsforge.TagValue) bool {
	switch m.Kind {
	case MatchPresent:
		return true
	case MatchLiteral:
		if v.Kind != mapsforge.ValLiteral {
			return false
		}
		_, ok := m.Values[v.Literal]
		return ok
	case MatchRegex:
		if v.Kind != mapsforge.ValLiteral {
			return false
		}
		return m.Pattern.MatchString(v.Literal)
	default:
		return false
	}
}

// Matcher is one rule in a Theme's ordered matcher list.
type Matcher struct {
	EntityType EntityType
	Tags       map[string]TagMatch
	Material   string
}

// Theme is a named set of materials plus an ordered list of matchers
// that assign a material to a way or POI based on its tags and shape.
type Theme struct {
	Materials map[string]Material
	Matchers  []Matcher
}

// isArea reports whether a way's tags mark it as a closed area
// (area=yes), per the entity-shape rule in spec §4.4.
func isArea(tags map[string]mapsforge.TagValue) bool {
	v, ok := tags["area"]
	return ok && v.IsLiteral("yes")
}

func entityCompatible(matcherType EntityType, way bool, area bool) bool {
	switch matcherType {
	case EntityAny:
		return true
	case EntityPoint:
		return !way
	case EntityArea:
		return way && area
	case EntityPath:
		return way && !area
	default:
		return false
	}
}

// MatchWay returns the material the first compatible, tag-matching
// matcher assigns to way, or false if none match. A matcher with no
// tag tests matches every compatible way.
func (t *Theme) MatchWay(way *mapsforge.Way) (Material, bool) {
	area := isArea(way.Tags)
	for _, m := range t.Matchers {
		if !entityCompatible(m.EntityType, true, area) {
			continue
		}
		if len(m.Tags) == 0 {
			mat, ok := t.Materials[m.Material]
			return mat, ok
		}
		for tagName, tm := range m.Tags {
			v, ok := way.Tags[tagName]
			if !ok {
				continue
			}
			if tm.matches(v) {
				mat, ok := t.Materials[m.Material]
				return mat, ok
			}
		}
	}
	return Material{}, false
}

// MatchPOI returns the material assigned to poi, or false if none
// match. POIs are always Point-shaped.
func (t *Theme) MatchPOI(poi *mapsforge.POI) (Material, bool) {
	for _, m := range t.Matchers {
		if !entityCompatible(m.EntityType, false, false) {
			continue
		}
		if len(m.Tags) == 0 {
			mat, ok := t.Materials[m.Material]
			return mat, ok
		}
		for tagName, tm := range m.Tags {
			v, ok := poi.Tags[tagName]
			if !ok {
				continue
			}
			if tm.matches(v) {
				mat, ok := t.Materials[m.Material]
				return mat, ok
			}
		}
	}
	return Material{}, false
}

func color(r, g, b, a float64) *Color {
	return &Color{R: r, G: g, B: b, A: a}
}

// Outline returns a theme that strokes every feature the same way,
// ignoring tags entirely — useful for a quick structural view of an
// unfamiliar map file.
func Outline() *Theme {
	return &Theme{
		Materials: map[string]Material{
			"outline": {Name: "outline", Stroke: color(1, 1, 1, 1)},
		},
		Matchers: []Matcher{
			{EntityType: EntityAny, Tags: map[string]TagMatch{}, Material: "outline"},
		},
	}
}

// Basic returns the default theme: water, land, road, building,
// barrier, greenspace, and rail materials, with the matcher table
// ported from original_source/src/theme.rs (fixing that source's
// "bsrrier" material-name typo, which silently orphaned the barrier
// matcher there).
func Basic() *Theme {
	const opacity = 0.8
	materials := map[string]Material{
		"water_path":  {Name: "water_path", Stroke: color(0.2, 0.2, 1.0, opacity)},
		"water_area":  {Name: "water_area", Fill: color(0.5, 0.5, 1.0, opacity)},
		"land":        {Name: "land", Fill: color(0.8, 0.8, 0.8, opacity)},
		"road":        {Name: "road", Stroke: color(0.2, 0.2, 0.2, opacity)},
		"building":    {Name: "building", Fill: color(0.6, 0.6, 0.6, opacity)},
		"barrier":     {Name: "barrier", Stroke: color(0.4, 0.2, 0.2, opacity)},
		"greenspace":  {Name: "greenspace", Fill: color(0.8, 1.0, 0.8, opacity)},
		"rail":        {Name: "rail", Stroke: color(0.2, 0.2, 0.8, opacity)},
	}
	matchers := []Matcher{
		{
			EntityType: EntityArea,
			Tags: map[string]TagMatch{
				"natural":  Literal("sea", "water"),
				"waterway": Present(),
			},
			Material: "water_area",
		},
		{
			EntityType: EntityArea,
			Tags:       map[string]TagMatch{"natural": Literal("nosea")},
			Material:   "land",
		},
		{
			EntityType: EntityPath,
			Tags: map[string]TagMatch{
				"natural":  Literal("sea", "water"),
				"waterway": Present(),
			},
			Material: "water_path",
		},
		{
			EntityType: EntityPath,
			Tags: map[string]TagMatch{
				"highway": Present(),
				"bridge":  Present(),
				"aeroway": Literal("apron", "runway", "taxiway"),
			},
			Material: "road",
		},
		{
			EntityType: EntityPath,
			Tags:       map[string]TagMatch{"barrier": Present()},
			Material:   "barrier",
		},
		{
			EntityType: EntityAny,
			Tags:       map[string]TagMatch{"building": Present()},
			Material:   "building",
		},
		{
			EntityType: EntityArea,
			Tags: map[string]TagMatch{
				"landuse": Literal("brownfield", "cemetery", "farm", "farmland", "farmyard",
					"forest", "grass", "meadow", "orchard", "recreation_ground", "village_green",
					"vineyard", "wood"),
				"leisure": Literal("dog_park", "garden", "nature_reserve", "park", "pitch", "playground"),
				"natural": Literal("grassland", "heath", "land", "marsh", "scrub", "wetland"),
			},
			Material: "greenspace",
		},
		{
			EntityType: EntityPath,
			Tags:       map[string]TagMatch{"railway": Literal("rail")},
			Material:   "rail",
		},
	}
	return &Theme{Materials: materials, Matchers: matchers}
}
