package solar

import (
	"fmt"
	"time"
)

const (
	// horizonElevation is the target elevation for sunrise and sunset,
	// accounting for refraction and the solar disc radius.
	horizonElevation = -0.833

	// eventTolerance bounds the sunrise/sunset bisection.
	eventTolerance = 10 * time.Second

	// noonTolerance bounds the solar noon search.
	noonTolerance = time.Second

	// maxTimelinePoints caps a single timeline request.
	maxTimelinePoints = 10000

	// maxTimelineRange caps the span of a single timeline request.
	maxTimelineRange = 48 * time.Hour

	// maxTimelineInterval caps the tick spacing.
	maxTimelineInterval = 24 * time.Hour
)

// DayEvents holds the sun events for one UTC date at a location. Sunrise and
// Sunset are nil when the sun never crosses the horizon that day (polar day
// or night).
type DayEvents struct {
	Date      time.Time
	Latitude  float64
	Longitude float64
	Sunrise   *time.Time
	Sunset    *time.Time
	SolarNoon time.Time
}

// EventsForDate computes sunrise, sunset and solar noon for the UTC date.
func EventsForDate(date time.Time, lat, lon float64) (*DayEvents, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	noon, err := FindSolarNoon(dayStart, lat, lon)
	if err != nil {
		return nil, err
	}

	sunrise, err := FindSunEvent(dayStart, noon, lat, lon)
	if err != nil {
		return nil, err
	}
	sunset, err := FindSunEvent(noon, dayEnd, lat, lon)
	if err != nil {
		return nil, err
	}

	return &DayEvents{
		Date:      dayStart,
		Latitude:  lat,
		Longitude: lon,
		Sunrise:   sunrise,
		Sunset:    sunset,
		SolarNoon: noon,
	}, nil
}

// FindSunEvent locates the instant within [start, end] where the sun's
// elevation crosses the horizon target, by bisection to a 10 second
// tolerance. Elevation must be monotone over the window, which holds for the
// morning and afternoon halves of a day. Returns nil when the elevation does
// not cross the target inside the window.
func FindSunEvent(start, end time.Time, lat, lon float64) (*time.Time, error) {
	lowAbove, err := elevationAbove(start, lat, lon)
	if err != nil {
		return nil, err
	}
	highAbove, err := elevationAbove(end, lat, lon)
	if err != nil {
		return nil, err
	}
	if lowAbove == highAbove {
		return nil, nil
	}

	lo, hi := start, end
	for hi.Sub(lo) > eventTolerance {
		mid := lo.Add(hi.Sub(lo) / 2)
		midAbove, err := elevationAbove(mid, lat, lon)
		if err != nil {
			return nil, err
		}
		if midAbove == lowAbove {
			lo = mid
		} else {
			hi = mid
		}
	}
	event := lo.Add(hi.Sub(lo) / 2)
	return &event, nil
}

// FindSolarNoon locates the instant of maximum elevation on the UTC date of
// dayStart via a ternary-style bisection, to a 1 second tolerance.
func FindSolarNoon(dayStart time.Time, lat, lon float64) (time.Time, error) {
	lo := dayStart
	hi := dayStart.Add(24 * time.Hour)

	for hi.Sub(lo) > noonTolerance {
		third := hi.Sub(lo) / 3
		m1 := lo.Add(third)
		m2 := hi.Add(-third)

		e1, err := Calculate(m1, lat, lon)
		if err != nil {
			return time.Time{}, err
		}
		e2, err := Calculate(m2, lat, lon)
		if err != nil {
			return time.Time{}, err
		}

		if e1.Elevation < e2.Elevation {
			lo = m1
		} else {
			hi = m2
		}
	}
	return lo.Add(hi.Sub(lo) / 2), nil
}

// Timeline generates the tick instants for [start, end] inclusive at the
// given interval. It fails with ErrInvalidArgument before any computation on
// a non-positive or oversized interval, an inverted or oversized range, or a
// request that would exceed the point ceiling.
func Timeline(start, end time.Time, interval time.Duration) ([]time.Time, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidArgument)
	}
	if interval > maxTimelineInterval {
		return nil, fmt.Errorf("%w: interval exceeds %s", ErrInvalidArgument, maxTimelineInterval)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidArgument)
	}
	if end.Sub(start) > maxTimelineRange {
		return nil, fmt.Errorf("%w: range exceeds %s", ErrInvalidArgument, maxTimelineRange)
	}

	points := int(end.Sub(start)/interval) + 1
	if points > maxTimelinePoints {
		return nil, fmt.Errorf("%w: %d points exceeds maximum %d", ErrInvalidArgument, points, maxTimelinePoints)
	}

	ticks := make([]time.Time, 0, points+1)
	for t := start; !t.After(end); t = t.Add(interval) {
		ticks = append(ticks, t)
	}
	return ticks, nil
}

func elevationAbove(ts time.Time, lat, lon float64) (bool, error) {
	pos, err := Calculate(ts, lat, lon)
	if err != nil {
		return false, err
	}
	return pos.Elevation > horizonElevation, nil
}
