package exposure_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
	"github.com/rthunborg/sunnyseat-sub000/internal/venue"
	"github.com/rthunborg/sunnyseat-sub000/internal/weather"
)

// points builds a 10-minute timeline from (percent, confidence) pairs
// starting at 10:00 UTC.
func points(t *testing.T, samples ...[2]float64) []*exposure.PatioSunExposure {
	t.Helper()
	start := time.Date(2025, 6, 21, 10, 0, 0, 0, time.UTC)
	out := make([]*exposure.PatioSunExposure, 0, len(samples))
	for i, s := range samples {
		out = append(out, &exposure.PatioSunExposure{
			PatioID:            "patio-1",
			Timestamp:          start.Add(time.Duration(i) * 10 * time.Minute),
			SunExposurePercent: s[0],
			State:              exposure.ClassifyState(s[0]),
			Confidence:         s[1],
		})
	}
	return out
}

func TestSegmentWindowsSingleRun(t *testing.T) {
	windows := exposure.SegmentWindows("patio-1", points(t,
		[2]float64{5, 80},
		[2]float64{60, 80},
		[2]float64{90, 85},
		[2]float64{75, 80},
		[2]float64{10, 80},
	))
	require.Len(t, windows, 1)

	w := windows[0]
	assert.Equal(t, "patio-1", w.PatioID)
	assert.Equal(t, 20*time.Minute, w.Duration())
	assert.InDelta(t, 90, w.PeakExposure, 1e-9)
	assert.InDelta(t, 75, w.AverageExposure, 1e-9)
	assert.InDelta(t, (80+85+80)/3.0, w.Confidence, 1e-9)
	assert.Equal(t, w.Start.Add(10*time.Minute), w.PeakTime)
}

func TestSegmentWindowsSplitsOnGap(t *testing.T) {
	windows := exposure.SegmentWindows("patio-1", points(t,
		[2]float64{80, 80},
		[2]float64{80, 80},
		[2]float64{80, 80},
		[2]float64{5, 80}, // gap
		[2]float64{60, 80},
		[2]float64{60, 80},
		[2]float64{60, 80},
	))
	require.Len(t, windows, 2)
	assert.True(t, windows[0].End.Before(windows[1].Start))
}

func TestSegmentWindowsDropsShortRuns(t *testing.T) {
	// A lone tick above threshold spans zero minutes; two adjacent ticks
	// span ten. Neither reaches the fifteen-minute floor.
	windows := exposure.SegmentWindows("patio-1", points(t,
		[2]float64{80, 80},
		[2]float64{5, 80},
		[2]float64{80, 80},
		[2]float64{80, 80},
		[2]float64{5, 80},
	))
	assert.Empty(t, windows)
}

func TestSegmentWindowsIgnoresNoSunTicks(t *testing.T) {
	pts := points(t,
		[2]float64{80, 80},
		[2]float64{80, 80},
		[2]float64{80, 80},
	)
	// A no-sun tick never extends a window even with a stale percentage.
	pts[1].State = exposure.StateNoSun
	assert.Empty(t, exposure.SegmentWindows("patio-1", pts))
}

func TestWindowQualityTiers(t *testing.T) {
	hours := func(h float64) int { return int(h*6) + 1 } // ticks per h hours at 10 min

	flat := func(n int, percent, conf float64) []*exposure.PatioSunExposure {
		samples := make([][2]float64, n)
		for i := range samples {
			samples[i] = [2]float64{percent, conf}
		}
		return points(t, samples...)
	}

	cases := []struct {
		name string
		pts  []*exposure.PatioSunExposure
		want exposure.Quality
	}{
		{"excellent", flat(hours(2), 85, 80), exposure.QualityExcellent},
		{"excellent needs confidence", flat(hours(2), 85, 50), exposure.QualityGood},
		{"good", flat(hours(1), 60, 80), exposure.QualityGood},
		{"fair", flat(hours(0.5), 35, 80), exposure.QualityFair},
		{"poor short", flat(3, 35, 80), exposure.QualityPoor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			windows := exposure.SegmentWindows("patio-1", tc.pts)
			require.Len(t, windows, 1)
			assert.Equal(t, tc.want, windows[0].Quality)
			if tc.want == exposure.QualityExcellent || tc.want == exposure.QualityGood {
				assert.True(t, windows[0].Recommended)
				assert.NotEmpty(t, windows[0].RecommendationReason)
			} else {
				assert.False(t, windows[0].Recommended)
			}
		})
	}
}

func TestPriorityScoreOrdersWindows(t *testing.T) {
	strong := exposure.SegmentWindows("a", points(t,
		[2]float64{90, 85}, [2]float64{90, 85}, [2]float64{90, 85},
		[2]float64{90, 85}, [2]float64{90, 85}, [2]float64{90, 85},
		[2]float64{90, 85}, [2]float64{90, 85}, [2]float64{90, 85},
		[2]float64{90, 85}, [2]float64{90, 85}, [2]float64{90, 85},
		[2]float64{90, 85},
	))
	weak := exposure.SegmentWindows("b", points(t,
		[2]float64{35, 60}, [2]float64{35, 60}, [2]float64{35, 60}, [2]float64{35, 60},
	))
	require.Len(t, strong, 1)
	require.Len(t, weak, 1)
	assert.Greater(t, strong[0].PriorityScore, weak[0].PriorityScore)
}

// addDayWeather covers a whole UTC date with fresh nowcasts so timeline
// confidence is not dominated by stale or missing snapshots.
func addDayWeather(f *fixture, date time.Time) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	for m := 0; m < 24*60; m += 30 {
		f.weather.Add(&weather.Snapshot{
			CloudCoverPercent: 10,
			IsForecast:        false,
			Source:            weather.SourcePrimary,
			CreatedAt:         day.Add(time.Duration(m) * time.Minute),
		})
	}
}

func TestSunWindowsSummerDay(t *testing.T) {
	f := newFixture(t)
	date := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)
	addDayWeather(f, date)

	windows, err := f.svc.SunWindows(context.Background(), "patio-1", date)
	require.NoError(t, err)
	require.NotEmpty(t, windows)

	// An unobstructed patio at midsummer gets one long daytime window.
	best := windows[0]
	assert.Greater(t, best.Duration(), 10*time.Hour)
	assert.Greater(t, best.AverageExposure, 90.0)
	assert.Equal(t, exposure.QualityExcellent, best.Quality)
	assert.True(t, best.Recommended)
}

func TestBestWindowsRanksAcrossPatios(t *testing.T) {
	f := newFixture(t)
	date := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)
	addDayWeather(f, date)

	// patio-2 sits tight against a tall southern building and spends the
	// day mostly shaded.
	f.venues.AddPatio(&venue.Patio{
		ID:             "patio-2",
		Polygon:        rectM(100, 0, 10, 10),
		Latitude:       baseLat,
		Longitude:      baseLon,
		PolygonQuality: 0.8,
	})
	f.venues.AddBuilding(&venue.Building{
		ID:           "wall",
		Footprint:    rectM(80, -15, 50, 14),
		HeightM:      60,
		HeightSource: venue.HeightMeasured,
	})

	windows, err := f.svc.BestWindows(context.Background(), []string{"patio-1", "patio-2", "ghost"}, date)
	require.NoError(t, err)
	require.NotEmpty(t, windows)

	for i := 1; i < len(windows); i++ {
		assert.GreaterOrEqual(t, windows[i-1].PriorityScore, windows[i].PriorityScore)
	}
	assert.Equal(t, "patio-1", windows[0].PatioID)
}
