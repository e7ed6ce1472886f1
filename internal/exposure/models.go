// Package exposure composes the solar, shadow and confidence engines into
// point-in-time, batch and timeline sun exposure queries, and derives sun
// windows from timelines.
package exposure

import (
	"errors"
	"time"

	"github.com/rthunborg/sunnyseat-sub000/internal/confidence"
	"github.com/rthunborg/sunnyseat-sub000/internal/shadow"
	"github.com/rthunborg/sunnyseat-sub000/internal/solar"
	"github.com/rthunborg/sunnyseat-sub000/internal/weather"
)

// ErrInvalidArgument marks requests rejected before any computation.
var ErrInvalidArgument = solar.ErrInvalidArgument

// ErrBatchTooLarge is returned for batch requests over the patio ceiling.
var ErrBatchTooLarge = errors.New("batch exceeds maximum patio count")

// MaxBatchPatios bounds a single batch request.
const MaxBatchPatios = 100

// State is the discrete exposure classification.
type State string

const (
	// StateNoSun means the sun is below the horizon.
	StateNoSun State = "no_sun"

	// StateShaded means sunlit share below 30%.
	StateShaded State = "shaded"

	// StatePartial means sunlit share in [30, 70).
	StatePartial State = "partial"

	// StateSunny means sunlit share at or above 70%.
	StateSunny State = "sunny"
)

// ClassifyState maps a sunlit percentage to its discrete state. It never
// returns StateNoSun; the no-sun shortcut is decided from sun elevation
// before classification.
func ClassifyState(sunlitPercent float64) State {
	switch {
	case sunlitPercent >= 70:
		return StateSunny
	case sunlitPercent >= 30:
		return StatePartial
	default:
		return StateShaded
	}
}

// Source tags how a result was produced.
type Source string

const (
	SourceRealtime      Source = "realtime"
	SourceRealtimeBatch Source = "realtime_batch"
	SourcePrecomputed   Source = "precomputed"
)

// PatioSunExposure is the full result of one exposure calculation.
type PatioSunExposure struct {
	PatioID   string    `json:"patioId"`
	Timestamp time.Time `json:"timestamp"`
	LocalTime time.Time `json:"localTime"`

	// SunExposurePercent in [0,100].
	SunExposurePercent float64 `json:"sunExposurePercent"`

	State State `json:"state"`

	// Confidence is the display score in [0,100].
	Confidence float64 `json:"confidence"`

	SunlitAreaM2 float64 `json:"sunlitAreaM2"`
	ShadedAreaM2 float64 `json:"shadedAreaM2"`

	Solar   *SolarSummary `json:"solar,omitempty"`
	Shadows []ContributingShadow `json:"shadows,omitempty"`

	Factors *confidence.Factors `json:"factors,omitempty"`
	Weather *weather.Snapshot   `json:"weather,omitempty"`

	CalculationTime time.Duration `json:"calculationTime"`
	Source          Source        `json:"source"`
}

// ContributingShadow is the wire-friendly summary of one shadow projection.
type ContributingShadow struct {
	BuildingID   string  `json:"buildingId"`
	LengthM      float64 `json:"lengthM"`
	DirectionDeg float64 `json:"directionDeg"`
	Confidence   float64 `json:"confidence"`
}

// SolarSummary carries the solar angles without the heavy geometry.
type SolarSummary struct {
	Azimuth         float64 `json:"azimuth"`
	Elevation       float64 `json:"elevation"`
	Declination     float64 `json:"declination"`
	EarthDistanceAU float64 `json:"earthDistanceAu"`
}

func summarizeSolar(p *solar.Position) *SolarSummary {
	if p == nil {
		return nil
	}
	return &SolarSummary{
		Azimuth:         p.Azimuth,
		Elevation:       p.Elevation,
		Declination:     p.Declination,
		EarthDistanceAU: p.EarthDistanceAU,
	}
}

func summarizeShadows(projections []shadow.Projection) []ContributingShadow {
	if len(projections) == 0 {
		return nil
	}
	out := make([]ContributingShadow, 0, len(projections))
	for _, p := range projections {
		out = append(out, ContributingShadow{
			BuildingID:   p.BuildingID,
			LengthM:      p.LengthM,
			DirectionDeg: p.DirectionDeg,
			Confidence:   p.Confidence,
		})
	}
	return out
}
