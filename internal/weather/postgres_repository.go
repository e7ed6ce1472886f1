package weather

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL weather repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Latest retrieves the newest snapshot at or before the given time.
func (r *PostgresRepository) Latest(ctx context.Context, at time.Time) (*Snapshot, error) {
	query := `
		SELECT cloud_cover_percent, precipitation_probability, is_forecast, source, created_at
		FROM weather_snapshots
		WHERE created_at <= $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var s Snapshot
	err := r.pool.QueryRow(ctx, query, at).Scan(
		&s.CloudCoverPercent,
		&s.PrecipitationProbability,
		&s.IsForecast,
		&s.Source,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return &s, nil
}
