// Package worker provides background job processing for SunnySeat.
package worker

import (
	"time"
)

// PrecomputeConfig holds configuration for the precomputation job.
type PrecomputeConfig struct {
	// DaysAhead is how many dates to precompute, starting from today.
	// Default: 3
	DaysAhead int

	// Concurrency is the number of dates processed concurrently.
	// Default: 2
	Concurrency int

	// Timeout bounds the work for a single date.
	// Default: 10 minutes
	Timeout time.Duration

	// WarmCache pulls freshly written records through the cache tiers
	// after each date completes.
	// Default: true
	WarmCache bool
}

// DefaultPrecomputeConfig returns the default precomputation configuration.
func DefaultPrecomputeConfig() PrecomputeConfig {
	return PrecomputeConfig{
		DaysAhead:   3,
		Concurrency: 2,
		Timeout:     10 * time.Minute,
		WarmCache:   true,
	}
}

// Dates returns the UTC dates the job covers, starting from now's date.
func (c PrecomputeConfig) Dates(now time.Time) []time.Time {
	days := c.DaysAhead
	if days <= 0 {
		days = 1
	}
	day := now.UTC().Truncate(24 * time.Hour)
	dates := make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, day.AddDate(0, 0, i))
	}
	return dates
}
