// Package weather holds the weather snapshot contract the confidence scorer
// consumes. The external provider clients and their fallback chain live
// outside this service; only their persisted snapshots are read here, and a
// missing snapshot is a valid lower-confidence state, not an error.
package weather

import (
	"errors"
	"time"
)

// ErrNoSnapshot is returned when no snapshot exists near the requested time.
var ErrNoSnapshot = errors.New("no weather snapshot available")

// Known snapshot sources, in reliability order.
const (
	SourcePrimary  = "smhi"
	SourceFallback = "openweathermap"
)

// Snapshot is one persisted weather observation or forecast.
type Snapshot struct {
	// CloudCoverPercent in [0,100].
	CloudCoverPercent float64

	// PrecipitationProbability in [0,1].
	PrecipitationProbability float64

	// IsForecast is true for predicted conditions, false for a nowcast.
	IsForecast bool

	// Source names the upstream provider.
	Source string

	// CreatedAt is when the snapshot was fetched, used for freshness decay.
	CreatedAt time.Time
}

// Age returns how old the snapshot is at the given instant.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}
