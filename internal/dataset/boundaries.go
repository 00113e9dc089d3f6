package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/gunhoflash/Project-ComputerGraphics/internal/business/districtstats"
	"github.com/gunhoflash/Project-ComputerGraphics/pkg/model"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// DefaultNameProperty is the feature property carrying the Korean district name
// in the SIG boundary files.
const DefaultNameProperty = "SIG_KOR_NM"

// BoundaryLayer holds the decoded boundary features in file order.
type BoundaryLayer struct {
	features []*geojson.Feature
	names    []string
	polygons map[string][]*geom.Polygon
	bboxes   map[string]*geom.Bounds
}

// DecodeBoundaries parses a GeoJSON FeatureCollection, or a plain JSON array of
// {"name": ...} objects, into a boundary layer. nameProperty selects the feature
// property holding the district name.
func DecodeBoundaries(data []byte, nameProperty string) (*BoundaryLayer, error) {
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return decodeNameList(trimmed)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(trimmed, &fc); err != nil {
		return nil, fmt.Errorf("decode boundaries geojson: %w", err)
	}

	layer := &BoundaryLayer{
		features: fc.Features,
		names:    make([]string, len(fc.Features)),
		polygons: make(map[string][]*geom.Polygon),
		bboxes:   make(map[string]*geom.Bounds),
	}
	for i, f := range fc.Features {
		name := propertyString(f.Properties, nameProperty)
		layer.names[i] = name
		if f.Geometry == nil || name == "" {
			continue
		}
		polys := polygonsOf(f.Geometry)
		layer.polygons[name] = append(layer.polygons[name], polys...)
		b := f.Geometry.Bounds()
		if existing, ok := layer.bboxes[name]; ok {
			b = existing.Extend(f.Geometry)
		}
		layer.bboxes[name] = b
	}
	return layer, nil
}

func decodeNameList(data []byte) (*BoundaryLayer, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode boundaries list: %w", err)
	}
	layer := &BoundaryLayer{
		names:    make([]string, len(items)),
		polygons: make(map[string][]*geom.Polygon),
		bboxes:   make(map[string]*geom.Bounds),
	}
	for i, item := range items {
		layer.names[i] = rawString(item["name"])
	}
	return layer, nil
}

// Boundaries returns one descriptor per feature, in file order.
func (l *BoundaryLayer) Boundaries() []districtstats.Boundary {
	out := make([]districtstats.Boundary, len(l.names))
	for i, n := range l.names {
		out[i] = districtstats.Boundary{Name: n}
	}
	return out
}

// Len returns the number of boundary entries.
func (l *BoundaryLayer) Len() int { return len(l.names) }

// Centroid returns the area-weighted centroid of the district's polygons.
func (l *BoundaryLayer) Centroid(name string) (lng, lat float64, ok bool) {
	polys := l.polygons[name]
	if len(polys) == 0 {
		return math.NaN(), math.NaN(), false
	}
	var c geom.Coord
	var err error
	if len(polys) == 1 {
		c, err = xy.Centroid(polys[0])
	} else {
		mp := geom.NewMultiPolygon(geom.XY)
		for _, p := range polys {
			if err := mp.Push(p); err != nil {
				return math.NaN(), math.NaN(), false
			}
		}
		c, err = xy.Centroid(mp)
	}
	if err != nil || len(c) < 2 {
		return math.NaN(), math.NaN(), false
	}
	return c[0], c[1], true
}

// Locate returns the district whose polygons contain the point.
func (l *BoundaryLayer) Locate(lng, lat float64) (string, bool) {
	pt := geom.Coord{lng, lat}
	for _, name := range l.names {
		b, ok := l.bboxes[name]
		if !ok || !b.OverlapsPoint(geom.XY, pt) {
			continue
		}
		for _, p := range l.polygons[name] {
			if polygonContains(p, pt) {
				return name, true
			}
		}
	}
	return "", false
}

// FeatureCollection re-emits the boundary features with the snapshot's stats
// merged into each feature's properties. Features of unknown districts are
// emitted unchanged.
func (l *BoundaryLayer) FeatureCollection(snap model.Snapshot) ([]byte, error) {
	byName := make(map[string]model.DistrictStats, len(snap.Districts))
	for _, d := range snap.Districts {
		byName[d.District] = d
	}

	out := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(l.features))}
	for i, f := range l.features {
		props := make(map[string]interface{}, len(f.Properties)+6)
		for k, v := range f.Properties {
			props[k] = v
		}
		if d, ok := byName[l.names[i]]; ok {
			props["n_confirmed"] = d.ConfirmedCount
			props["population"] = d.Population
			props["area"] = d.Area
			props["density"] = d.Density
			props["confirmedRatio"] = d.ConfirmedRatio
			props["confirmedRatioAdjusted"] = d.ConfirmedRatioAdjusted
		}
		out.Features = append(out.Features, &geojson.Feature{
			ID:         f.ID,
			BBox:       f.BBox,
			Geometry:   f.Geometry,
			Properties: props,
		})
	}
	return json.Marshal(&out)
}

func polygonsOf(g geom.T) []*geom.Polygon {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}
	case *geom.MultiPolygon:
		polys := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
		return polys
	default:
		return nil
	}
}

func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(p.Layout(), pt, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

func propertyString(props map[string]interface{}, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
