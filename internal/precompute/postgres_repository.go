package precompute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
)

// PostgresStore is a PostgreSQL implementation of Store. Exposure payloads
// are stored as JSONB; lookups key on (patio_id, ts, version).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL precompute store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetRecord returns the record nearest ts within the tolerance, preferring
// the current computation version over superseded ones.
func (s *PostgresStore) GetRecord(ctx context.Context, patioID string, ts time.Time, tolerance time.Duration) (*Record, error) {
	query := `
		SELECT patio_id, ts, version, exposure, created_at, expires_at
		FROM precomputed_exposures
		WHERE patio_id = $1
		  AND ts BETWEEN $2 AND $3
		ORDER BY (version = $5) DESC,
			abs(extract(epoch FROM ts - $4::timestamptz)),
			version DESC
		LIMIT 1
	`

	var (
		r          Record
		rawPayload []byte
	)
	err := s.pool.QueryRow(ctx, query, patioID, ts.Add(-tolerance), ts.Add(tolerance), ts, ComputationVersion).Scan(
		&r.PatioID,
		&r.Timestamp,
		&r.Version,
		&rawPayload,
		&r.CreatedAt,
		&r.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	r.Exposure = &exposure.PatioSunExposure{}
	if err := json.Unmarshal(rawPayload, r.Exposure); err != nil {
		return nil, fmt.Errorf("decode record %s@%s: %w", patioID, r.Timestamp.Format(time.RFC3339), err)
	}
	return &r, nil
}

// BulkInsert appends records in a single batch. Rows are keyed by
// (patio_id, ts, version): a new computation version lands next to the
// superseded rows instead of rewriting them, and re-running the same
// version is idempotent.
func (s *PostgresStore) BulkInsert(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO precomputed_exposures (patio_id, ts, version, exposure, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (patio_id, ts, version) DO UPDATE SET
			exposure = EXCLUDED.exposure,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`

	batch := &pgx.Batch{}
	for _, r := range records {
		payload, err := json.Marshal(r.Exposure)
		if err != nil {
			return fmt.Errorf("encode record %s@%s: %w", r.PatioID, r.Timestamp.Format(time.RFC3339), err)
		}
		batch.Queue(query, r.PatioID, r.Timestamp, r.Version, payload, r.CreatedAt, r.ExpiresAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

// CountRecords counts current-version records on one UTC date.
func (s *PostgresStore) CountRecords(ctx context.Context, date time.Time, patioIDs []string) (int, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	query := `
		SELECT count(*)
		FROM precomputed_exposures
		WHERE patio_id = ANY($1)
		  AND ts >= $2 AND ts < $3
		  AND version = $4
	`

	var count int
	err := s.pool.QueryRow(ctx, query, patioIDs, dayStart, dayStart.Add(24*time.Hour), ComputationVersion).Scan(&count)
	return count, err
}

// DeleteRecords removes records for one patio inside [from, to).
func (s *PostgresStore) DeleteRecords(ctx context.Context, patioID string, from, to time.Time) (int, error) {
	if from.IsZero() && to.IsZero() {
		tag, err := s.pool.Exec(ctx, `DELETE FROM precomputed_exposures WHERE patio_id = $1`, patioID)
		return int(tag.RowsAffected()), err
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM precomputed_exposures WHERE patio_id = $1 AND ts >= $2 AND ts < $3`,
		patioID, from, to)
	return int(tag.RowsAffected()), err
}

// CreateSchedule inserts a new schedule.
func (s *PostgresStore) CreateSchedule(ctx context.Context, sched *Schedule) error {
	query := `
		INSERT INTO precompute_schedules
			(id, date, patio_ids, state, completed_patios, records_written, error_message, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.pool.Exec(ctx, query,
		sched.ID, sched.Date, sched.PatioIDs, string(sched.State),
		sched.CompletedPatios, sched.RecordsWritten, sched.ErrorMessage,
		sched.CreatedAt, sched.StartedAt, sched.FinishedAt)
	return err
}

// UpdateSchedule persists the mutable schedule fields.
func (s *PostgresStore) UpdateSchedule(ctx context.Context, sched *Schedule) error {
	query := `
		UPDATE precompute_schedules
		SET state = $2, completed_patios = $3, records_written = $4,
		    error_message = $5, started_at = $6, finished_at = $7
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		sched.ID, string(sched.State), sched.CompletedPatios, sched.RecordsWritten,
		sched.ErrorMessage, sched.StartedAt, sched.FinishedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// GetSchedule retrieves a schedule by ID.
func (s *PostgresStore) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	query := `
		SELECT id, date, patio_ids, state, completed_patios, records_written,
		       error_message, created_at, started_at, finished_at
		FROM precompute_schedules
		WHERE id = $1
	`
	return s.scanSchedule(s.pool.QueryRow(ctx, query, id))
}

// FindScheduleForDate returns the newest non-failed schedule for the date.
func (s *PostgresStore) FindScheduleForDate(ctx context.Context, date time.Time) (*Schedule, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	query := `
		SELECT id, date, patio_ids, state, completed_patios, records_written,
		       error_message, created_at, started_at, finished_at
		FROM precompute_schedules
		WHERE date >= $1 AND date < $2
		  AND state NOT IN ('failed', 'cancelled')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanSchedule(s.pool.QueryRow(ctx, query, dayStart, dayStart.Add(24*time.Hour)))
}

func (s *PostgresStore) scanSchedule(row pgx.Row) (*Schedule, error) {
	var (
		sched Schedule
		state string
	)
	err := row.Scan(
		&sched.ID, &sched.Date, &sched.PatioIDs, &state,
		&sched.CompletedPatios, &sched.RecordsWritten, &sched.ErrorMessage,
		&sched.CreatedAt, &sched.StartedAt, &sched.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	sched.State = ScheduleState(state)
	return &sched, nil
}
