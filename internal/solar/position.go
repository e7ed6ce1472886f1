// Package solar computes the apparent position of the sun for a place and
// UTC instant, plus sunrise/sunset/solar-noon searches and timeline tick
// generation. The position math is the NOAA closed-form algorithm: Julian
// century, mean longitude and anomaly, orbital eccentricity, equation of
// center, apparent longitude, corrected obliquity, declination, equation of
// time, hour angle, refraction-corrected elevation and azimuth, and the
// Earth-Sun distance from the eccentric anomaly.
package solar

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// ErrInvalidArgument marks inputs rejected before any computation. Wrapped
// errors carry the specific reason.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	minYear = 1000
	maxYear = 3000
)

// Position is the sun's apparent position for one place and instant.
// Values are immutable once computed.
type Position struct {
	// Azimuth in degrees, 0 north, clockwise.
	Azimuth float64

	// Elevation in degrees above the horizon, refraction corrected.
	// Positive iff the sun is visible.
	Elevation float64

	// Declination in degrees.
	Declination float64

	// HourAngle in degrees, negative before local solar noon.
	HourAngle float64

	// EarthDistanceAU is the Earth-Sun distance in astronomical units.
	EarthDistanceAU float64

	// Timestamp is the UTC instant the position was computed for.
	Timestamp time.Time

	// LocalTime is the mean solar time at the longitude (UTC offset by
	// 4 minutes per degree), used for display only.
	LocalTime time.Time

	Latitude  float64
	Longitude float64
}

// SunVisible reports whether the sun is above the horizon.
func (p *Position) SunVisible() bool {
	return p.Elevation > 0
}

// Calculate returns the sun's position for the UTC timestamp and coordinates.
// It fails with ErrInvalidArgument when the latitude or longitude is out of
// range, the timestamp is not in UTC, or the year is outside [1000, 3000].
func Calculate(ts time.Time, lat, lon float64) (*Position, error) {
	if lat < -90 || lat > 90 {
		return nil, fmt.Errorf("%w: latitude %.4f outside [-90, 90]", ErrInvalidArgument, lat)
	}
	if lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: longitude %.4f outside [-180, 180]", ErrInvalidArgument, lon)
	}
	if ts.Location() != time.UTC {
		return nil, fmt.Errorf("%w: timestamp must be UTC", ErrInvalidArgument)
	}
	if y := ts.Year(); y < minYear || y > maxYear {
		return nil, fmt.Errorf("%w: year %d outside [%d, %d]", ErrInvalidArgument, y, minYear, maxYear)
	}

	jd := julian.TimeToJD(ts)
	T := (jd - 2451545.0) / 36525.0 // centuries since J2000

	// Solar coordinates.
	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032)) // mean longitude
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))  // mean anomaly
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)       // eccentricity
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289 // equation of center
	trueLong := L0 + C
	omega := 125.04 - 1934.136*T
	lambda := trueLong - 0.00569 - 0.00478*math.Sin(degToRad(omega)) // apparent longitude

	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60 // mean obliquity
	eps := eps0 + 0.00256*math.Cos(degToRad(omega))                    // corrected obliquity

	declRad := math.Asin(math.Sin(degToRad(eps)) * math.Sin(degToRad(lambda)))

	// Equation of time, minutes.
	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	eqTimeMin := radToDeg(y*math.Sin(degToRad(2*L0))-
		2*e*math.Sin(degToRad(M))+
		4*e*y*math.Sin(degToRad(M))*math.Cos(degToRad(2*L0))-
		0.5*y*y*math.Sin(degToRad(4*L0))-
		1.25*e*e*math.Sin(degToRad(2*M))) * 4

	// Hour angle from true solar time.
	utcMin := float64(ts.Hour()*60+ts.Minute()) + float64(ts.Second())/60.0
	tst := utcMin + 4*lon + eqTimeMin
	ha := tst/4 - 180
	if ha < -180 {
		ha += 360
	} else if ha > 180 {
		ha -= 360
	}
	haRad := degToRad(ha)

	// Zenith, elevation, refraction.
	latRad := degToRad(lat)
	cosZen := math.Sin(latRad)*math.Sin(declRad) + math.Cos(latRad)*math.Cos(declRad)*math.Cos(haRad)
	cosZen = math.Max(-1, math.Min(1, cosZen))
	zenRad := math.Acos(cosZen)
	elevation := 90 - radToDeg(zenRad)
	elevation += refractionCorrection(elevation)

	// Azimuth, 0 north clockwise.
	azimuth := 0.0
	azDen := math.Cos(latRad) * math.Sin(zenRad)
	if math.Abs(azDen) > 1e-9 {
		azCos := (math.Sin(declRad) - math.Sin(latRad)*cosZen) / azDen
		azCos = math.Max(-1, math.Min(1, azCos))
		azimuth = radToDeg(math.Acos(azCos))
		if ha > 0 {
			azimuth = 360 - azimuth
		}
	}

	// Earth-Sun distance via the eccentric anomaly.
	mRad := degToRad(M)
	ecc := 0.016708617 - T*(0.000042037+T*0.0000001236)
	E := mRad + ecc*math.Sin(mRad)*(1+ecc*math.Cos(mRad))
	v := 2 * math.Atan(math.Sqrt((1+ecc)/(1-ecc))*math.Tan(E/2))
	distAU := (1 - ecc*ecc) / (1 + ecc*math.Cos(v))

	return &Position{
		Azimuth:         azimuth,
		Elevation:       elevation,
		Declination:     radToDeg(declRad),
		HourAngle:       ha,
		EarthDistanceAU: distAU,
		Timestamp:       ts,
		LocalTime:       ts.Add(time.Duration(4*lon) * time.Minute),
		Latitude:        lat,
		Longitude:       lon,
	}, nil
}

// refractionCorrection returns the atmospheric refraction adjustment in
// degrees for the given geometric elevation (NOAA piecewise fit).
func refractionCorrection(elevation float64) float64 {
	if elevation > 85 {
		return 0
	}
	te := math.Tan(degToRad(elevation))
	var correction float64
	switch {
	case elevation > 5:
		correction = 58.1/te - 0.07/(te*te*te) + 0.000086/(te*te*te*te*te)
	case elevation > -0.575:
		correction = 1735 + elevation*(-518.2+elevation*(103.4+elevation*(-12.79+elevation*0.711)))
	default:
		correction = -20.774 / te
	}
	return correction / 3600
}

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }

func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// fixAngle normalizes an angle to [0, 360).
func fixAngle(a float64) float64 { return a - 360.0*math.Floor(a/360.0) }
