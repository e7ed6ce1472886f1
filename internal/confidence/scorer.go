// Package confidence turns the heterogeneous inputs of an exposure
// calculation (building data, patio geometry, shadow set, solar angle,
// optional weather) into a single capped confidence score with
// human-readable quality annotations.
package confidence

import (
	"math"
	"time"

	"github.com/rthunborg/sunnyseat-sub000/internal/weather"
)

// Category is the coarse confidence bucket exposed to clients.
type Category string

const (
	CategoryHigh   Category = "high"   // overall >= 0.70
	CategoryMedium Category = "medium" // overall >= 0.40
	CategoryLow    Category = "low"
)

// Blend weights for the canonical weather-aware formula.
const (
	geometryWeight = 0.6
	cloudWeight    = 0.4

	buildingGeomWeight = 0.5
	patioGeomWeight    = 0.3
	shadowGeomWeight   = 0.2
)

// Legacy weighted-sum weights, kept for compatibility output only.
const (
	legacyBuildingWeight = 0.40
	legacyGeometryWeight = 0.25
	legacySolarWeight    = 0.20
	legacyShadowWeight   = 0.15
)

// Hard ceilings applied after blending. The effective cap is the minimum of
// every applicable one.
const (
	capForecastWeather = 0.90
	capNowcastWeather  = 0.95
	capMissingWeather  = 0.60
	capPoorBuildings   = 0.70
)

// Factors is the complete scoring breakdown for one calculation. Values are
// recomputed every call and never mutated in place.
type Factors struct {
	BuildingDataQuality float64
	GeometryPrecision   float64
	SolarAccuracy       float64
	ShadowAccuracy      float64

	// GeometryQuality is the composite of building, patio and shadow terms.
	GeometryQuality float64

	// CloudCertainty is the weather-derived term; zero without weather.
	CloudCertainty float64

	// Overall is the canonical capped score in [0,1].
	Overall float64

	// LegacyOverall is the deprecated four-factor weighted sum, reported
	// for comparison but never used as the exposed confidence.
	LegacyOverall float64

	Category Category

	QualityIssues []string
	Improvements  []string
}

// Input carries everything the scorer needs for one calculation.
type Input struct {
	// BuildingDataQuality in [0,1]: mean height-source reliability of the
	// contributing buildings, or the caller's default when none contribute.
	BuildingDataQuality float64

	// PatioPolygonQuality in [0,1], from the patio record.
	PatioPolygonQuality float64

	// ShadowConfidence is the combined shadow confidence in [0,1].
	ShadowConfidence float64

	// ShadowCount is the number of contributing shadow projections.
	ShadowCount int

	// SunElevation in degrees.
	SunElevation float64

	// Weather is optional; nil caps the overall score.
	Weather *weather.Snapshot

	// Now anchors the weather freshness decay.
	Now time.Time
}

// Score computes the confidence factors for one calculation.
func Score(in Input) Factors {
	f := Factors{
		BuildingDataQuality: clamp01(in.BuildingDataQuality),
		GeometryPrecision:   clamp01(in.PatioPolygonQuality),
		SolarAccuracy:       solarAccuracy(in.SunElevation),
		ShadowAccuracy:      shadowAccuracy(in.ShadowConfidence, in.ShadowCount, in.SunElevation),
	}

	f.GeometryQuality = f.BuildingDataQuality*buildingGeomWeight +
		f.GeometryPrecision*patioGeomWeight +
		clamp01(in.ShadowConfidence)*shadowGeomWeight

	f.CloudCertainty = cloudCertainty(in.Weather, in.Now)

	f.LegacyOverall = f.BuildingDataQuality*legacyBuildingWeight +
		f.GeometryPrecision*legacyGeometryWeight +
		f.SolarAccuracy*legacySolarWeight +
		f.ShadowAccuracy*legacyShadowWeight

	overall := f.GeometryQuality*geometryWeight + f.CloudCertainty*cloudWeight
	f.Overall = clamp01(math.Min(overall, ceilingFor(in)))
	f.Category = Categorize(f.Overall)

	f.QualityIssues, f.Improvements = annotate(in, f)
	return f
}

// FreshnessFactor returns the decay multiplier for weather data of the given
// age. Monotonically non-increasing in age.
func FreshnessFactor(age time.Duration) float64 {
	switch {
	case age < 5*time.Minute:
		return 1.00
	case age < 15*time.Minute:
		return 0.95
	case age < 30*time.Minute:
		return 0.90
	case age < time.Hour:
		return 0.85
	case age < 2*time.Hour:
		return 0.75
	case age < 6*time.Hour:
		return 0.60
	default:
		return 0.40
	}
}

// SourceReliability returns the reliability multiplier for a weather source.
func SourceReliability(source string) float64 {
	switch source {
	case weather.SourcePrimary:
		return 0.95
	case weather.SourceFallback:
		return 0.85
	default:
		return 0.80
	}
}

func cloudCertainty(w *weather.Snapshot, now time.Time) float64 {
	if w == nil {
		return 0
	}
	base := 0.95
	if w.IsForecast {
		base = 0.90
	}
	return base * FreshnessFactor(w.Age(now)) * SourceReliability(w.Source)
}

func ceilingFor(in Input) float64 {
	ceiling := 1.0
	if in.Weather == nil {
		ceiling = math.Min(ceiling, capMissingWeather)
	} else if in.Weather.IsForecast {
		ceiling = math.Min(ceiling, capForecastWeather)
	} else {
		ceiling = math.Min(ceiling, capNowcastWeather)
	}
	if in.BuildingDataQuality < 0.6 {
		ceiling = math.Min(ceiling, capPoorBuildings)
	}
	return ceiling
}

func solarAccuracy(elevation float64) float64 {
	switch {
	case elevation > 30:
		return 0.98
	case elevation > 15:
		return 0.95
	case elevation > 5:
		return 0.85
	case elevation > 0:
		return 0.70
	default:
		return 0.50
	}
}

func shadowAccuracy(base float64, shadowCount int, elevation float64) float64 {
	acc := clamp01(base)

	complexity := 0.03 * float64(shadowCount)
	if complexity > 0.15 {
		complexity = 0.15
	}
	acc -= complexity

	if elevation < 10 {
		acc -= 0.10
	}

	if acc < 0.30 {
		acc = 0.30
	}
	return acc
}

// Categorize buckets an overall score into its coarse category.
func Categorize(overall float64) Category {
	switch {
	case overall >= 0.70:
		return CategoryHigh
	case overall >= 0.40:
		return CategoryMedium
	default:
		return CategoryLow
	}
}

func annotate(in Input, f Factors) (issues, improvements []string) {
	if in.Weather == nil {
		issues = append(issues, "no weather data available, confidence capped")
		improvements = append(improvements, "wait for the next weather snapshot")
	} else {
		if in.Weather.IsForecast {
			issues = append(issues, "weather is forecast, not observed")
		}
		if age := in.Weather.Age(in.Now); age > time.Hour {
			issues = append(issues, "weather data is over an hour old")
			improvements = append(improvements, "refresh weather data")
		}
	}

	if in.BuildingDataQuality < 0.6 {
		issues = append(issues, "building height data is low quality, confidence capped")
		improvements = append(improvements, "import measured building heights for this area")
	}
	if in.PatioPolygonQuality < 0.6 {
		issues = append(issues, "patio footprint is coarsely traced")
		improvements = append(improvements, "re-trace the patio footprint")
	}
	if in.SunElevation > 0 && in.SunElevation < 10 {
		issues = append(issues, "sun is low on the horizon, shadow edges are diffuse")
	}
	if in.ShadowCount > 5 {
		issues = append(issues, "many overlapping shadows increase geometric uncertainty")
	}
	return issues, improvements
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
