// Package venue holds the building and patio data the engine consumes, with
// the repository contract the shadow engine and scheduler query through.
// Venue CRUD, validation and GIS import live outside this service.
package venue

import (
	"errors"

	"github.com/paulmach/orb"
)

// Repository errors.
var (
	ErrPatioNotFound    = errors.New("patio not found")
	ErrBuildingNotFound = errors.New("building not found")
)

// HeightSource records where a building's height figure came from, which
// feeds the shadow confidence model.
type HeightSource string

const (
	// HeightMeasured is survey or LIDAR derived.
	HeightMeasured HeightSource = "measured"

	// HeightEstimated is derived from floor counts or similar heuristics.
	HeightEstimated HeightSource = "estimated"

	// HeightDefault is a fallback figure with no per-building data.
	HeightDefault HeightSource = "default"
)

// Reliability returns the confidence multiplier for the height source.
func (s HeightSource) Reliability() float64 {
	switch s {
	case HeightMeasured:
		return 1.0
	case HeightEstimated:
		return 0.8
	default:
		return 0.6
	}
}

// Building is a shadow-casting structure near one or more patios.
type Building struct {
	ID           string
	Name         string
	Footprint    orb.Polygon
	HeightM      float64
	HeightSource HeightSource
}

// Patio is an outdoor seating area whose sun exposure the engine estimates.
type Patio struct {
	ID      string
	VenueID string
	Name    string

	// Polygon is the patio footprint in WGS84 lon/lat.
	Polygon orb.Polygon

	// Latitude and Longitude locate the patio centroid for solar math.
	Latitude  float64
	Longitude float64

	// PolygonQuality in [0,1] reflects how well the footprint was traced,
	// set at import time.
	PolygonQuality float64
}

// HasGeometry reports whether the patio carries a usable footprint.
func (p *Patio) HasGeometry() bool {
	return len(p.Polygon) > 0 && len(p.Polygon[0]) >= 4
}
