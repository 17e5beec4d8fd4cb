// Package geojson provides GeoJSON geometry types and the bounding-box
// utilities used to derive download footprints from scene geometries.
package geojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrEmptyGeometry is returned when an inward AOI shrink consumes the
// entire polygon.
var ErrEmptyGeometry = errors.New("geometry is empty")

// meanEarthRadiusM is the IUGG mean Earth radius in meters, used for the
// local equidistant projection in Shrink.
const meanEarthRadiusM = 6371008.8

// Geometry represents a GeoJSON geometry object. Coordinates are kept
// raw because ASF returns Polygon or MultiPolygon depending on product,
// and the bbox walk does not care which.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ComputeBBox computes the bounding box of a geometry as
// [west, south, east, north]. It recursively walks the coordinate
// arrays at whatever nesting depth they arrive, so Polygon,
// MultiPolygon and anything GeoJSON-shaped are handled uniformly.
// Returns nil if the geometry holds no coordinate pairs.
func ComputeBBox(g *Geometry) []float64 {
	if g == nil || len(g.Coordinates) == 0 {
		return nil
	}

	var coords any
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	found := false

	var walk func(x any)
	walk = func(x any) {
		arr, ok := x.([]any)
		if !ok {
			return
		}
		if lon, lat, ok := asPosition(arr); ok {
			minLon = math.Min(minLon, lon)
			maxLon = math.Max(maxLon, lon)
			minLat = math.Min(minLat, lat)
			maxLat = math.Max(maxLat, lat)
			found = true
			return
		}
		for _, y := range arr {
			walk(y)
		}
	}
	walk(coords)

	if !found {
		return nil
	}
	return []float64{minLon, minLat, maxLon, maxLat}
}

// asPosition reports whether arr is a GeoJSON position: two or three
// numbers, [lon, lat] or [lon, lat, elevation].
func asPosition(arr []any) (lon, lat float64, ok bool) {
	if len(arr) != 2 && len(arr) != 3 {
		return 0, 0, false
	}
	nums := make([]float64, 0, len(arr))
	for _, v := range arr {
		f, isNum := v.(float64)
		if !isNum {
			return 0, 0, false
		}
		nums = append(nums, f)
	}
	return nums[0], nums[1], true
}

// UnionBBox returns the component-wise union of the non-nil input
// boxes, or nil if none are usable.
func UnionBBox(boxes [][]float64) []float64 {
	var out []float64
	for _, b := range boxes {
		if len(b) != 4 {
			continue
		}
		if out == nil {
			out = []float64{b[0], b[1], b[2], b[3]}
			continue
		}
		out[0] = math.Min(out[0], b[0])
		out[1] = math.Min(out[1], b[1])
		out[2] = math.Max(out[2], b[2])
		out[3] = math.Max(out[3], b[3])
	}
	return out
}

// PolygonFromBBox creates a rectangular polygon geometry from a
// bounding box [west, south, east, north].
func PolygonFromBBox(bbox []float64) (*Geometry, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values [west, south, east, north], got %d", len(bbox))
	}

	west, south, east, north := bbox[0], bbox[1], bbox[2], bbox[3]

	coords := [][][]float64{
		{
			{west, south},
			{east, south},
			{east, north},
			{west, north},
			{west, south}, // close the ring
		},
	}

	coordsJSON, err := json.Marshal(coords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon coordinates: %w", err)
	}

	return &Geometry{
		Type:        "Polygon",
		Coordinates: coordsJSON,
	}, nil
}

// Shrink returns bbox inset on every side by shrinkMeters, measured in
// a local azimuthal-equidistant plane centered on the bbox centroid.
// shrinkMeters <= 0 returns the bbox unchanged. Returns
// ErrEmptyGeometry if the inset consumes the whole box.
func Shrink(bbox []float64, shrinkMeters float64) ([]float64, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values [west, south, east, north], got %d", len(bbox))
	}
	if shrinkMeters <= 0 {
		return bbox, nil
	}

	west, south, east, north := bbox[0], bbox[1], bbox[2], bbox[3]
	centerLat := (south + north) / 2

	// Meters per degree in the local equidistant plane. For an
	// axis-aligned rectangle the inward buffer reduces to an edge inset.
	mPerDegLat := meanEarthRadiusM * math.Pi / 180
	mPerDegLon := mPerDegLat * math.Cos(centerLat*math.Pi/180)
	if mPerDegLon <= 0 {
		return nil, fmt.Errorf("cannot shrink AOI at latitude %g: %w", centerLat, ErrEmptyGeometry)
	}

	dLat := shrinkMeters / mPerDegLat
	dLon := shrinkMeters / mPerDegLon

	out := []float64{west + dLon, south + dLat, east - dLon, north - dLat}
	if out[0] >= out[2] || out[1] >= out[3] {
		return nil, fmt.Errorf("aoi_shrink_m too large: %g m consumes the AOI: %w", shrinkMeters, ErrEmptyGeometry)
	}
	return out, nil
}

// ShrinkToWKT builds the AOI polygon for catalog search: the bbox,
// optionally shrunk inward by shrinkMeters, rendered as a WKT POLYGON.
func ShrinkToWKT(bbox []float64, shrinkMeters float64) (string, error) {
	shrunk, err := Shrink(bbox, shrinkMeters)
	if err != nil {
		return "", err
	}
	poly, err := PolygonFromBBox(shrunk)
	if err != nil {
		return "", err
	}
	return ToWKT(poly)
}

// ToWKT converts a GeoJSON geometry to WKT format. Supports Polygon
// and MultiPolygon.
func ToWKT(g *Geometry) (string, error) {
	if g == nil {
		return "", fmt.Errorf("geometry is nil")
	}

	switch g.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return "", fmt.Errorf("failed to unmarshal Polygon coordinates: %w", err)
		}
		return polygonWKT(coords)
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return "", fmt.Errorf("failed to unmarshal MultiPolygon coordinates: %w", err)
		}
		polygons := make([]string, 0, len(coords))
		for _, polygon := range coords {
			p, err := polygonWKT(polygon)
			if err != nil {
				return "", err
			}
			polygons = append(polygons, strings.TrimPrefix(p, "POLYGON"))
		}
		return "MULTIPOLYGON(" + strings.Join(polygons, ",") + ")", nil
	default:
		return "", fmt.Errorf("unsupported geometry type for WKT conversion: %s", g.Type)
	}
}

func polygonWKT(coords [][][]float64) (string, error) {
	var rings []string
	for _, ring := range coords {
		points := make([]string, len(ring))
		for i, point := range ring {
			if len(point) < 2 {
				return "", fmt.Errorf("invalid point in polygon ring: expected at least 2 coordinates")
			}
			points[i] = formatFloat(point[0]) + " " + formatFloat(point[1])
		}
		rings = append(rings, "("+strings.Join(points, ",")+")")
	}
	return "POLYGON(" + strings.Join(rings, ",") + ")", nil
}

// formatFloat formats a float64 for WKT output without unnecessary decimals.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
