package solar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rthunborg/sunnyseat-sub000/internal/solar"
)

// Stockholm, where most of the seeded patios live.
const (
	stockholmLat = 59.3293
	stockholmLon = 18.0686
)

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestCalculateValidation(t *testing.T) {
	valid := utc(2025, 6, 21, 12, 0)

	tests := []struct {
		name string
		ts   time.Time
		lat  float64
		lon  float64
	}{
		{"latitude too high", valid, 90.1, 0},
		{"latitude too low", valid, -90.1, 0},
		{"longitude too high", valid, 0, 180.1},
		{"longitude too low", valid, 0, -180.1},
		{"non-UTC timestamp", valid.In(time.FixedZone("CET", 3600)), 59, 18},
		{"year before 1000", utc(999, 1, 1, 0, 0), 59, 18},
		{"year after 3000", utc(3001, 1, 1, 0, 0), 59, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := solar.Calculate(tt.ts, tt.lat, tt.lon)
			require.Error(t, err)
			assert.ErrorIs(t, err, solar.ErrInvalidArgument)
		})
	}
}

func TestCalculateSummerNoon(t *testing.T) {
	pos, err := solar.Calculate(utc(2025, 6, 21, 11, 0), stockholmLat, stockholmLon)
	require.NoError(t, err)

	// Near the June solstice the declination is close to +23.4 and the sun
	// stands high in the southern sky around local noon.
	assert.InDelta(t, 23.4, pos.Declination, 0.3)
	assert.Greater(t, pos.Elevation, 50.0)
	assert.InDelta(t, 180.0, pos.Azimuth, 15.0)
	assert.True(t, pos.SunVisible())
}

func TestCalculateWinterDeclination(t *testing.T) {
	pos, err := solar.Calculate(utc(2025, 12, 21, 11, 0), stockholmLat, stockholmLon)
	require.NoError(t, err)

	assert.InDelta(t, -23.4, pos.Declination, 0.3)
	assert.Less(t, pos.Elevation, 10.0)
}

func TestCalculateMidnight(t *testing.T) {
	pos, err := solar.Calculate(utc(2025, 3, 20, 0, 0), stockholmLat, stockholmLon)
	require.NoError(t, err)

	assert.Less(t, pos.Elevation, 0.0)
	assert.False(t, pos.SunVisible())
}

func TestCalculateMorningAzimuthEast(t *testing.T) {
	pos, err := solar.Calculate(utc(2025, 3, 20, 6, 0), stockholmLat, stockholmLon)
	require.NoError(t, err)

	// Around the equinox the sun rises close to due east.
	assert.InDelta(t, 100.0, pos.Azimuth, 20.0)
	assert.Less(t, pos.HourAngle, 0.0)
}

func TestEarthDistanceSeasonal(t *testing.T) {
	january, err := solar.Calculate(utc(2025, 1, 3, 12, 0), 0, 0)
	require.NoError(t, err)
	july, err := solar.Calculate(utc(2025, 7, 4, 12, 0), 0, 0)
	require.NoError(t, err)

	// Perihelion in early January, aphelion in early July.
	assert.InDelta(t, 0.983, january.EarthDistanceAU, 0.005)
	assert.InDelta(t, 1.017, july.EarthDistanceAU, 0.005)
	assert.Less(t, january.EarthDistanceAU, july.EarthDistanceAU)
}

func TestLocalTimeFollowsLongitude(t *testing.T) {
	ts := utc(2025, 6, 1, 12, 0)
	pos, err := solar.Calculate(ts, stockholmLat, stockholmLon)
	require.NoError(t, err)

	// 4 minutes per degree east of Greenwich.
	expected := ts.Add(time.Duration(4 * stockholmLon * float64(time.Minute)))
	assert.WithinDuration(t, expected, pos.LocalTime, time.Second)
}
