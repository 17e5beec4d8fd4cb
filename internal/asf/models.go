package asf

import (
	"strconv"

	"github.com/geranium-0019/sbas-pipeline/pkg/geojson"
)

// SearchResponse represents ASF's GeoJSON FeatureCollection response.
type SearchResponse struct {
	Type     string    `json:"type"` // "FeatureCollection"
	Features []Feature `json:"features"`
}

// Feature represents a single ASF search result granule.
type Feature struct {
	Type       string            `json:"type"` // "Feature"
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties Properties        `json:"properties"`
}

// Properties is the granule property bag. ASF metadata key names vary
// by product and API version (relativeOrbit vs pathNumber, frameNumber
// vs frame, ...), so the bag stays a generic map probed by
// priority-ordered alias lists instead of a fixed struct.
type Properties map[string]any

// First returns the value of the first candidate key that is present
// and non-nil.
func (p Properties) First(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// String returns the canonical string form of the first present
// candidate key, or "" if none is set. JSON numbers render without
// trailing zeros so that 447 and "447" compare equal.
func (p Properties) String(keys ...string) string {
	v, ok := p.First(keys...)
	if !ok {
		return ""
	}
	return canonical(v)
}

// SceneID returns the best available scene identifier, trying the
// names ASF has used across metadata versions.
func (p Properties) SceneID() string {
	return p.String("sceneName", "fileID", "granuleName", "productName")
}

// URL returns the granule download URL, if any.
func (p Properties) URL() string {
	return p.String("url")
}

// FileName returns the granule file name, if any.
func (p Properties) FileName() string {
	return p.String("fileName")
}

func canonical(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
