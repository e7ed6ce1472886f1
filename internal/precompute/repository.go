package precompute

import (
	"context"
	"time"
)

// Store persists precomputed exposure records and the schedules that
// produced them.
type Store interface {
	// GetRecord returns the record nearest ts within the tolerance, or
	// ErrRecordNotFound. Staleness is the caller's concern.
	GetRecord(ctx context.Context, patioID string, ts time.Time, tolerance time.Duration) (*Record, error)

	// BulkInsert stores records, replacing any existing record with the
	// same patio and timestamp.
	BulkInsert(ctx context.Context, records []*Record) error

	// CountRecords counts current-version records for the patios on one
	// UTC date.
	CountRecords(ctx context.Context, date time.Time, patioIDs []string) (int, error)

	// DeleteRecords removes records for one patio inside [from, to).
	// A zero range removes the patio's records entirely.
	DeleteRecords(ctx context.Context, patioID string, from, to time.Time) (int, error)

	CreateSchedule(ctx context.Context, s *Schedule) error
	UpdateSchedule(ctx context.Context, s *Schedule) error

	// GetSchedule returns a schedule by ID or ErrScheduleNotFound.
	GetSchedule(ctx context.Context, id string) (*Schedule, error)

	// FindScheduleForDate returns the newest schedule covering the date
	// that did not fail or get cancelled, or ErrScheduleNotFound. Used
	// for idempotent scheduling.
	FindScheduleForDate(ctx context.Context, date time.Time) (*Schedule, error)
}
