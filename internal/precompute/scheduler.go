package precompute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
)

const (
	// batchSize is how many patios are computed between checkpoints.
	batchSize = 10

	// insertRetries bounds the backoff-retried bulk insert.
	insertRetries = 3

	// batchConcurrency bounds the per-batch fan-out over patios.
	batchConcurrency = 4
)

// Scheduler runs precomputation batches over the daily slot grid and
// checkpoints progress so an interrupted run can resume.
type Scheduler struct {
	store    Store
	exposure *exposure.Service
	logger   zerolog.Logger
	clock    func() time.Time
}

// SchedulerConfig holds configuration for creating a Scheduler.
type SchedulerConfig struct {
	Store    Store
	Exposure *exposure.Service
	Logger   zerolog.Logger

	// Clock is injectable for tests (default time.Now).
	Clock func() time.Time
}

// NewScheduler creates a new precompute scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{
		store:    cfg.Store,
		exposure: cfg.Exposure,
		logger:   cfg.Logger.With().Str("component", "precompute").Logger(),
		clock:    clock,
	}
}

// Progress reports per-batch advancement to an Execute observer.
type Progress struct {
	ScheduleID      string
	CompletedPatios int
	TotalPatios     int
	RecordsWritten  int
}

// Schedule registers a precomputation run for the date. Scheduling is
// idempotent per date: an existing schedule that did not fail is returned
// instead of creating a duplicate.
func (s *Scheduler) Schedule(ctx context.Context, date time.Time, patioIDs []string) (*Schedule, error) {
	existing, err := s.store.FindScheduleForDate(ctx, date)
	if err == nil {
		s.logger.Debug().
			Str("schedule_id", existing.ID).
			Str("state", string(existing.State)).
			Msg("reusing existing schedule")
		return existing, nil
	}
	if !errors.Is(err, ErrScheduleNotFound) {
		return nil, err
	}

	sched := &Schedule{
		ID:        uuid.NewString(),
		Date:      time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		PatioIDs:  patioIDs,
		State:     StateScheduled,
		CreatedAt: s.clock(),
	}
	if err := s.store.CreateSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	s.logger.Info().
		Str("schedule_id", sched.ID).
		Time("date", sched.Date).
		Int("patios", len(patioIDs)).
		Msg("precomputation scheduled")
	return sched, nil
}

// Status returns the schedule's current state.
func (s *Scheduler) Status(ctx context.Context, scheduleID string) (*Schedule, error) {
	return s.store.GetSchedule(ctx, scheduleID)
}

// Execute runs the schedule to completion, checkpointing after every batch.
// Context cancellation leaves the schedule cancelled with its checkpoint
// intact; any other failure marks it failed. The progress callback is
// optional.
func (s *Scheduler) Execute(ctx context.Context, scheduleID string, onProgress func(Progress)) error {
	sched, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrScheduleNotRunnable, sched.ID, sched.State)
	}

	now := s.clock()
	sched.State = StateRunning
	sched.StartedAt = &now
	if err := s.store.UpdateSchedule(ctx, sched); err != nil {
		return fmt.Errorf("mark schedule running: %w", err)
	}

	s.logger.Info().
		Str("schedule_id", sched.ID).
		Int("patios", len(sched.PatioIDs)).
		Int("resume_from", sched.CompletedPatios).
		Msg("precomputation run starting")

	slots := DaySlots(sched.Date)

	for start := sched.CompletedPatios; start < len(sched.PatioIDs); start += batchSize {
		if err := ctx.Err(); err != nil {
			return s.finish(sched, StateCancelled, "")
		}

		end := start + batchSize
		if end > len(sched.PatioIDs) {
			end = len(sched.PatioIDs)
		}

		written, err := s.computeBatch(ctx, sched.PatioIDs[start:end], slots)
		if err != nil {
			if ctx.Err() != nil {
				return s.finish(sched, StateCancelled, "")
			}
			s.logger.Error().Err(err).
				Str("schedule_id", sched.ID).
				Int("batch_start", start).
				Msg("precomputation batch failed")
			return s.finish(sched, StateFailed, err.Error())
		}

		sched.CompletedPatios = end
		sched.RecordsWritten += written
		if err := s.store.UpdateSchedule(ctx, sched); err != nil {
			return s.finish(sched, StateFailed, fmt.Sprintf("checkpoint: %v", err))
		}

		if onProgress != nil {
			onProgress(Progress{
				ScheduleID:      sched.ID,
				CompletedPatios: sched.CompletedPatios,
				TotalPatios:     len(sched.PatioIDs),
				RecordsWritten:  sched.RecordsWritten,
			})
		}
	}

	if err := s.finish(sched, StateCompleted, ""); err != nil {
		return err
	}

	s.logger.Info().
		Str("schedule_id", sched.ID).
		Int("records", sched.RecordsWritten).
		Msg("precomputation run completed")
	return nil
}

// computeBatch computes the full day for a group of patios, fanning the
// patios out over a bounded worker pool, and stores the records through a
// single backoff-retried bulk insert. The insert stays sequential so the
// checkpoint either covers the whole batch or none of it.
func (s *Scheduler) computeBatch(ctx context.Context, patioIDs []string, slots []time.Time) (int, error) {
	now := s.clock()

	type patioResult struct {
		patioID string
		points  []*exposure.PatioSunExposure
		err     error
	}

	work := make(chan string, len(patioIDs))
	results := make(chan patioResult, len(patioIDs))

	concurrency := batchConcurrency
	if concurrency > len(patioIDs) {
		concurrency = len(patioIDs)
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for patioID := range work {
				points, err := s.exposure.Timeline(ctx, patioID, slots[0], slots[len(slots)-1], SlotInterval)
				results <- patioResult{patioID: patioID, points: points, err: err}
			}
		}()
	}

	for _, patioID := range patioIDs {
		work <- patioID
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	byPatio := make(map[string][]*exposure.PatioSunExposure, len(patioIDs))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("compute patio %s: %w", res.patioID, res.err)
			}
			continue
		}
		byPatio[res.patioID] = res.points
	}
	if firstErr != nil {
		return 0, firstErr
	}

	// Assemble in input order so the insert is deterministic.
	records := make([]*Record, 0, len(patioIDs)*len(slots))
	for _, patioID := range patioIDs {
		for _, p := range byPatio[patioID] {
			p.Source = exposure.SourcePrecomputed
			records = append(records, &Record{
				PatioID:   patioID,
				Timestamp: p.Timestamp,
				Version:   ComputationVersion,
				Exposure:  p,
				CreatedAt: now,
				ExpiresAt: now.Add(RecordTTL),
			})
		}
	}

	insert := func() error {
		return s.store.BulkInsert(ctx, records)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), insertRetries), ctx)
	if err := backoff.Retry(insert, policy); err != nil {
		return 0, fmt.Errorf("store batch: %w", err)
	}
	return len(records), nil
}

func (s *Scheduler) finish(sched *Schedule, state ScheduleState, message string) error {
	now := s.clock()
	sched.State = state
	sched.ErrorMessage = message
	sched.FinishedAt = &now

	// The run context may already be cancelled; finalizing the schedule
	// row must still go through.
	if err := s.store.UpdateSchedule(context.Background(), sched); err != nil {
		return fmt.Errorf("finalize schedule as %s: %w", state, err)
	}

	switch state {
	case StateCancelled:
		return context.Canceled
	case StateFailed:
		return fmt.Errorf("precomputation failed: %s", message)
	}
	return nil
}

// IntegrityReport summarizes stored coverage for one schedule. Coverage is
// a percentage on the same 0-100 scale exposure values use.
type IntegrityReport struct {
	ScheduleID      string  `json:"scheduleId"`
	ExpectedRecords int     `json:"expectedRecords"`
	ActualRecords   int     `json:"actualRecords"`
	CoveragePercent float64 `json:"coveragePercent"`
	Valid           bool    `json:"valid"`
}

// ValidateIntegrity compares stored record counts against what a complete
// run would have produced.
func (s *Scheduler) ValidateIntegrity(ctx context.Context, scheduleID string) (*IntegrityReport, error) {
	sched, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	actual, err := s.store.CountRecords(ctx, sched.Date, sched.PatioIDs)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	report := &IntegrityReport{
		ScheduleID:      sched.ID,
		ExpectedRecords: sched.ExpectedRecords(),
		ActualRecords:   actual,
	}
	if report.ExpectedRecords > 0 {
		report.CoveragePercent = float64(actual) / float64(report.ExpectedRecords) * 100
	}
	report.Valid = report.CoveragePercent >= IntegrityThreshold
	return report, nil
}
