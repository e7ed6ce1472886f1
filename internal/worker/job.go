package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rthunborg/sunnyseat-sub000/internal/cache"
	"github.com/rthunborg/sunnyseat-sub000/internal/precompute"
	"github.com/rthunborg/sunnyseat-sub000/internal/venue"
)

// PrecomputeJob drives scheduled exposure precomputation for upcoming dates.
type PrecomputeJob struct {
	config    PrecomputeConfig
	logger    zerolog.Logger
	scheduler *precompute.Scheduler
	venues    venue.Repository

	// Cache is optional; when present, completed dates are pulled through
	// the tiers so the first reads don't pay the deep lookup.
	cache *cache.Layered

	metrics *JobMetrics
}

// JobMetrics tracks precompute job statistics.
type JobMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns          int64
	SchedulesCompleted int64
	SchedulesFailed    int64
	RecordsWritten     int64
	KeysWarmed         int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// PrecomputeJobConfig holds configuration for creating a PrecomputeJob.
type PrecomputeJobConfig struct {
	Config    PrecomputeConfig
	Logger    zerolog.Logger
	Scheduler *precompute.Scheduler
	Venues    venue.Repository
	Cache     *cache.Layered
}

// NewPrecomputeJob creates a new precompute job processor.
func NewPrecomputeJob(cfg PrecomputeJobConfig) *PrecomputeJob {
	config := cfg.Config
	if config.DaysAhead == 0 && config.Concurrency == 0 && config.Timeout == 0 {
		config = DefaultPrecomputeConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Minute
	}

	return &PrecomputeJob{
		config:    config,
		logger:    cfg.Logger,
		scheduler: cfg.Scheduler,
		venues:    cfg.Venues,
		cache:     cfg.Cache,
		metrics:   &JobMetrics{},
	}
}

// RunResult contains the result of a precomputation run.
type RunResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	Dates          int
	Completed      int
	Failed         int
	RecordsWritten int
	KeysWarmed     int
	Errors         []DateError
}

// DateError represents a failure for a single date.
type DateError struct {
	Date  time.Time
	Error string
}

// Run precomputes all configured dates, fanning out across workers.
func (j *PrecomputeJob) Run(ctx context.Context) *RunResult {
	startTime := time.Now()
	dates := j.config.Dates(startTime)
	result := &RunResult{
		StartTime: startTime,
		Dates:     len(dates),
	}

	j.logger.Info().
		Int("dates", len(dates)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting precompute job")

	patioIDs, err := j.listPatios(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to list patios")
		result.Failed = len(dates)
		for _, d := range dates {
			result.Errors = append(result.Errors, DateError{Date: d, Error: err.Error()})
		}
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		j.updateMetrics(result)
		return result
	}

	datesChan := make(chan time.Time, len(dates))
	resultsChan := make(chan dateResult, len(dates))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.dateWorker(ctx, patioIDs, datesChan, resultsChan)
		}()
	}

	for _, d := range dates {
		datesChan <- d
	}
	close(datesChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for dr := range resultsChan {
		if dr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, DateError{Date: dr.date, Error: dr.err.Error()})
		} else {
			result.Completed++
		}
		result.RecordsWritten += dr.records
		result.KeysWarmed += dr.warmed
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("completed", result.Completed).
		Int("failed", result.Failed).
		Int("records_written", result.RecordsWritten).
		Int("keys_warmed", result.KeysWarmed).
		Msg("precompute job completed")

	return result
}

type dateResult struct {
	date    time.Time
	records int
	warmed  int
	err     error
}

func (j *PrecomputeJob) dateWorker(ctx context.Context, patioIDs []string, dates <-chan time.Time, results chan<- dateResult) {
	for date := range dates {
		select {
		case <-ctx.Done():
			results <- dateResult{date: date, err: ctx.Err()}
		default:
			results <- j.runDate(ctx, date, patioIDs)
		}
	}
}

// RunDate precomputes a single date for the given patios. An empty patio
// list means every patio with geometry.
func (j *PrecomputeJob) RunDate(ctx context.Context, date time.Time, patioIDs []string) (*RunResult, error) {
	startTime := time.Now()
	if len(patioIDs) == 0 {
		var err error
		patioIDs, err = j.listPatios(ctx)
		if err != nil {
			return nil, err
		}
	}

	dr := j.runDate(ctx, date, patioIDs)

	result := &RunResult{
		StartTime:      startTime,
		EndTime:        time.Now(),
		Dates:          1,
		RecordsWritten: dr.records,
		KeysWarmed:     dr.warmed,
	}
	result.Duration = result.EndTime.Sub(startTime)
	if dr.err != nil {
		result.Failed = 1
		result.Errors = append(result.Errors, DateError{Date: date, Error: dr.err.Error()})
	} else {
		result.Completed = 1
	}

	j.updateMetrics(result)
	return result, dr.err
}

func (j *PrecomputeJob) runDate(ctx context.Context, date time.Time, patioIDs []string) dateResult {
	dr := dateResult{date: date}

	dateCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	sched, err := j.scheduler.Schedule(dateCtx, date, patioIDs)
	if err != nil {
		dr.err = fmt.Errorf("schedule %s: %w", date.Format("2006-01-02"), err)
		return dr
	}

	if sched.State == precompute.StateCompleted {
		j.logger.Debug().
			Str("schedule_id", sched.ID).
			Str("date", date.Format("2006-01-02")).
			Msg("date already precomputed")
		return dr
	}

	before := sched.RecordsWritten
	if err := j.scheduler.Execute(dateCtx, sched.ID, nil); err != nil {
		dr.err = fmt.Errorf("execute %s: %w", sched.ID, err)
		return dr
	}

	if final, err := j.scheduler.Status(dateCtx, sched.ID); err == nil {
		dr.records = final.RecordsWritten - before
	}

	if j.config.WarmCache && j.cache != nil {
		dr.warmed = j.warmDate(dateCtx, date, patioIDs)
	}

	return dr
}

// warmDate reads the day's grid through the cache so precomputed records
// land in the faster tiers. Misses are fine; warming is best-effort.
func (j *PrecomputeJob) warmDate(ctx context.Context, date time.Time, patioIDs []string) int {
	day := date.UTC().Truncate(24 * time.Hour)
	start := day.Add(time.Duration(precompute.SlotStartHour) * time.Hour)
	end := day.Add(time.Duration(precompute.SlotEndHour) * time.Hour)

	warmed := 0
	for _, patioID := range patioIDs {
		var keys []cache.Key
		for ts := start; !ts.After(end); ts = ts.Add(cache.KeyInterval) {
			keys = append(keys, cache.NewKey(patioID, ts))
		}
		warmed += len(j.cache.BatchGet(ctx, keys))
	}
	return warmed
}

// HealthCheck verifies the job's dependencies are reachable.
func (j *PrecomputeJob) HealthCheck(ctx context.Context) error {
	j.logger.Debug().Msg("running health check")

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := j.listPatios(checkCtx); err != nil {
		return fmt.Errorf("venue store: %w", err)
	}

	if j.cache != nil {
		if health := j.cache.Health(checkCtx); health.Status == cache.StatusCritical {
			return fmt.Errorf("cache critical: %v", health.Tiers)
		}
	}

	j.logger.Debug().Msg("health check passed")
	return nil
}

func (j *PrecomputeJob) listPatios(ctx context.Context) ([]string, error) {
	patios, err := j.venues.ListPatiosWithGeometry(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(patios))
	for _, p := range patios {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (j *PrecomputeJob) updateMetrics(result *RunResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SchedulesCompleted += int64(result.Completed)
	j.metrics.SchedulesFailed += int64(result.Failed)
	j.metrics.RecordsWritten += int64(result.RecordsWritten)
	j.metrics.KeysWarmed += int64(result.KeysWarmed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *PrecomputeJob) GetMetrics() JobMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return JobMetrics{
		TotalRuns:          j.metrics.TotalRuns,
		SchedulesCompleted: j.metrics.SchedulesCompleted,
		SchedulesFailed:    j.metrics.SchedulesFailed,
		RecordsWritten:     j.metrics.RecordsWritten,
		KeysWarmed:         j.metrics.KeysWarmed,
		LastRunAt:          j.metrics.LastRunAt,
		LastRunDuration:    j.metrics.LastRunDuration,
		TotalDuration:      j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *PrecomputeJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":          m.TotalRuns,
		"schedules_completed": m.SchedulesCompleted,
		"schedules_failed":    m.SchedulesFailed,
		"records_written":     m.RecordsWritten,
		"keys_warmed":         m.KeysWarmed,
		"last_run_at":         m.LastRunAt,
		"last_run_duration":   m.LastRunDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}
