package asf

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SearchParams represents parameters for ASF search queries.
type SearchParams struct {
	// Dataset filters
	Dataset  []string // ASF dataset names (e.g., "SENTINEL-1")
	Platform []string // Platform names (e.g., "Sentinel-1A")

	// Spatial filter
	IntersectsWith string // WKT geometry string

	// Temporal filters
	Start *time.Time // Start datetime (inclusive)
	End   *time.Time // End datetime (inclusive)

	// SAR-specific filters
	BeamMode        []string // Beam modes (e.g., "IW", "EW")
	ProcessingLevel []string // Processing levels (e.g., "SLC", "GRD")

	// Orbital filter
	FlightDirection string // "ASCENDING" or "DESCENDING"

	// Result limiting
	MaxResults int    // Maximum number of results to return
	Output     string // Output format (default: "geojson")
}

// ToQueryString converts SearchParams to a URL query string.
func (p *SearchParams) ToQueryString() string {
	return p.ToURLValues().Encode()
}

// ToURLValues converts SearchParams to url.Values for query string building.
func (p *SearchParams) ToURLValues() url.Values {
	values := url.Values{}

	for _, d := range p.Dataset {
		values.Add("dataset", d)
	}

	for _, pl := range p.Platform {
		values.Add("platform", pl)
	}

	if p.IntersectsWith != "" {
		values.Set("intersectsWith", p.IntersectsWith)
	}

	if p.Start != nil {
		values.Set("start", formatASFTime(p.Start))
	}
	if p.End != nil {
		values.Set("end", formatASFTime(p.End))
	}

	for _, bm := range p.BeamMode {
		values.Add("beamMode", bm)
	}

	// Processing level is comma-separated
	if len(p.ProcessingLevel) > 0 {
		values.Set("processingLevel", strings.Join(p.ProcessingLevel, ","))
	}

	if p.FlightDirection != "" {
		values.Set("flightDirection", p.FlightDirection)
	}

	if p.MaxResults > 0 {
		values.Set("maxResults", strconv.Itoa(p.MaxResults))
	}

	if p.Output != "" {
		values.Set("output", p.Output)
	} else {
		values.Set("output", "geojson")
	}

	return values
}

// formatASFTime formats a time.Time for ASF API queries.
// ASF expects ISO 8601 format: YYYY-MM-DDTHH:MM:SSZ
func formatASFTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
