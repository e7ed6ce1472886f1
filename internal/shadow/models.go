// Package shadow projects building footprints into ground shadows for a
// given solar position and aggregates them into a per-patio shadow split.
package shadow

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/rthunborg/sunnyseat-sub000/internal/solar"
)

// Engine tuning constants. A shadow below the elevation threshold or from a
// building below the height threshold is too diffuse to model reliably, so
// those projections are skipped rather than failed.
const (
	// MinReliableElevationDeg is the lowest sun elevation a projection is
	// attempted for.
	MinReliableElevationDeg = 0.5

	// MinBuildingHeightM is the shortest building worth projecting.
	MinBuildingHeightM = 2.0

	// MaxShadowLengthM clamps the projected shadow length and bounds the
	// buffer used when gathering candidate buildings.
	MaxShadowLengthM = 500.0
)

// Projection is one building's ground shadow for one solar position.
// Projections are transient, created per calculation and never persisted
// individually.
type Projection struct {
	BuildingID string

	// Polygon is the ground area swept by the silhouette.
	Polygon orb.Polygon

	// LengthM is the clamped shadow length in metres.
	LengthM float64

	// DirectionDeg is the shadow direction: azimuth + 180, mod 360.
	DirectionDeg float64

	// BuildingHeightM is the height figure the projection used.
	BuildingHeightM float64

	// Solar is the position the shadow was cast for.
	Solar *solar.Position

	// HeightReliability in [0,1] reflects the building's height source.
	HeightReliability float64

	// Confidence in [0,1], from sun elevation and height reliability.
	Confidence float64
}

// PatioShadowInfo is the shadowed/sunlit split of one patio at one instant.
// ShadowedPercent + SunlitPercent is 100 within geometric tolerance.
type PatioShadowInfo struct {
	PatioID string

	ShadowedPercent float64
	SunlitPercent   float64

	// Shadows are the projections that reach the patio.
	Shadows []Projection

	// ShadowedGeometry holds each contributing shadow clipped to the patio
	// footprint. SunlitGeometry is the full footprint when nothing shades
	// the patio; for partial shade the split is carried by the percentages
	// and areas.
	ShadowedGeometry orb.MultiPolygon
	SunlitGeometry   orb.MultiPolygon

	// Confidence is the mean of the contributing shadow confidences, or
	// 1.0 when no shadow reaches the patio.
	Confidence float64

	Solar     *solar.Position
	Timestamp time.Time
}
