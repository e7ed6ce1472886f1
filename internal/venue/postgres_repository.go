package venue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// PostgresRepository is a PostgreSQL implementation of Repository. Footprints
// are stored as GeoJSON alongside denormalized bound columns so the
// bounding-area query stays a plain index-range scan without PostGIS.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL venue repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetPatio retrieves a patio by ID.
func (r *PostgresRepository) GetPatio(ctx context.Context, id string) (*Patio, error) {
	query := `
		SELECT id, venue_id, name, footprint, latitude, longitude, polygon_quality
		FROM patios
		WHERE id = $1
	`

	var (
		patio   Patio
		rawGeom []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&patio.ID,
		&patio.VenueID,
		&patio.Name,
		&rawGeom,
		&patio.Latitude,
		&patio.Longitude,
		&patio.PolygonQuality,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatioNotFound
		}
		return nil, err
	}

	patio.Polygon, err = decodePolygon(rawGeom)
	if err != nil {
		return nil, fmt.Errorf("decode patio %s footprint: %w", id, err)
	}
	return &patio, nil
}

// ListPatiosWithGeometry retrieves all patios carrying a footprint.
func (r *PostgresRepository) ListPatiosWithGeometry(ctx context.Context) ([]*Patio, error) {
	query := `
		SELECT id, venue_id, name, footprint, latitude, longitude, polygon_quality
		FROM patios
		WHERE footprint IS NOT NULL
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patios []*Patio
	for rows.Next() {
		var (
			patio   Patio
			rawGeom []byte
		)
		if err := rows.Scan(
			&patio.ID,
			&patio.VenueID,
			&patio.Name,
			&rawGeom,
			&patio.Latitude,
			&patio.Longitude,
			&patio.PolygonQuality,
		); err != nil {
			return nil, err
		}
		patio.Polygon, err = decodePolygon(rawGeom)
		if err != nil {
			return nil, fmt.Errorf("decode patio %s footprint: %w", patio.ID, err)
		}
		patios = append(patios, &patio)
	}
	return patios, rows.Err()
}

// ListBuildingsWithin retrieves buildings overlapping the area at or above
// the minimum height.
func (r *PostgresRepository) ListBuildingsWithin(ctx context.Context, area orb.Bound, minHeightM float64) ([]*Building, error) {
	query := `
		SELECT id, name, footprint, height_m, height_source
		FROM buildings
		WHERE height_m >= $1
		  AND bound_min_lon <= $2 AND bound_max_lon >= $3
		  AND bound_min_lat <= $4 AND bound_max_lat >= $5
	`

	rows, err := r.pool.Query(ctx, query, minHeightM, area.Max[0], area.Min[0], area.Max[1], area.Min[1])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buildings []*Building
	for rows.Next() {
		var (
			b       Building
			rawGeom []byte
			source  string
		)
		if err := rows.Scan(&b.ID, &b.Name, &rawGeom, &b.HeightM, &source); err != nil {
			return nil, err
		}
		b.HeightSource = HeightSource(source)
		b.Footprint, err = decodePolygon(rawGeom)
		if err != nil {
			return nil, fmt.Errorf("decode building %s footprint: %w", b.ID, err)
		}
		buildings = append(buildings, &b)
	}
	return buildings, rows.Err()
}

func decodePolygon(raw []byte) (orb.Polygon, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	poly, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("geometry is %s, want Polygon", g.Type)
	}
	return poly, nil
}
