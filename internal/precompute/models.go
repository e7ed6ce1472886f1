package precompute

import (
	"errors"
	"time"

	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
)

// ComputationVersion tags every stored record; bumping it invalidates the
// whole precomputed dataset on the next read.
const ComputationVersion = 1

// Daily computation grid. One record per patio per slot, 08:00 up to and
// including 20:00 UTC at ten-minute spacing.
const (
	SlotStartHour = 8
	SlotEndHour   = 20
	SlotInterval  = 10 * time.Minute

	// SlotsPerDay is the inclusive tick count of the daily grid.
	SlotsPerDay = (SlotEndHour-SlotStartHour)*6 + 1
)

const (
	// RecordTTL is how long a stored record stays servable.
	RecordTTL = 48 * time.Hour

	// IntegrityThreshold is the minimum percentage of expected records a
	// completed run must have produced to be considered valid.
	IntegrityThreshold = 95.0
)

var (
	ErrRecordNotFound   = errors.New("precomputed record not found")
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrScheduleNotRunnable is returned when Execute is called on a
	// schedule that already ran or was cancelled.
	ErrScheduleNotRunnable = errors.New("schedule is not in a runnable state")
)

// ScheduleState is the lifecycle state of a precomputation run.
type ScheduleState string

const (
	StateScheduled ScheduleState = "scheduled"
	StateRunning   ScheduleState = "running"
	StateCompleted ScheduleState = "completed"
	StateFailed    ScheduleState = "failed"
	StateCancelled ScheduleState = "cancelled"
)

// Schedule tracks one precomputation run over a set of patios for a single
// UTC date.
type Schedule struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`

	PatioIDs []string      `json:"patioIds"`
	State    ScheduleState `json:"state"`

	// CompletedPatios is the checkpoint: patios whose whole day has been
	// stored. A resumed run skips them.
	CompletedPatios int `json:"completedPatios"`

	RecordsWritten int `json:"recordsWritten"`

	// ErrorMessage is set when State is failed.
	ErrorMessage string `json:"errorMessage,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Terminal reports whether the schedule can no longer transition.
func (s *Schedule) Terminal() bool {
	switch s.State {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// ExpectedRecords is the record count a fully successful run produces.
func (s *Schedule) ExpectedRecords() int {
	return len(s.PatioIDs) * SlotsPerDay
}

// Record is one stored exposure result on the daily grid.
type Record struct {
	PatioID   string    `json:"patioId"`
	Timestamp time.Time `json:"timestamp"`

	Version int `json:"version"`

	Exposure *exposure.PatioSunExposure `json:"exposure"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Stale reports whether the record must not be served at the given time.
func (r *Record) Stale(now time.Time) bool {
	return r.Version != ComputationVersion || !now.Before(r.ExpiresAt)
}

// DaySlots returns the computation grid for one UTC date.
func DaySlots(date time.Time) []time.Time {
	start := time.Date(date.Year(), date.Month(), date.Day(), SlotStartHour, 0, 0, 0, time.UTC)
	slots := make([]time.Time, 0, SlotsPerDay)
	for i := 0; i < SlotsPerDay; i++ {
		slots = append(slots, start.Add(time.Duration(i)*SlotInterval))
	}
	return slots
}
