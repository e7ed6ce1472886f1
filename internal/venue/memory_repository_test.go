package venue_test

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rthunborg/sunnyseat-sub000/internal/venue"
)

func unitSquare(x, y float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x, y}, {x + 0.001, y}, {x + 0.001, y + 0.001}, {x, y + 0.001}, {x, y},
	}}
}

func TestMemoryRepository_GetPatio(t *testing.T) {
	repo := venue.NewMemoryRepository()
	repo.AddPatio(&venue.Patio{ID: "p1", Polygon: unitSquare(18.0, 59.3)})

	got, err := repo.GetPatio(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func TestMemoryRepository_GetPatio_NotFound(t *testing.T) {
	repo := venue.NewMemoryRepository()

	_, err := repo.GetPatio(context.Background(), "missing")
	assert.ErrorIs(t, err, venue.ErrPatioNotFound)
}

func TestMemoryRepository_ListPatiosWithGeometry(t *testing.T) {
	repo := venue.NewMemoryRepository()
	repo.AddPatio(&venue.Patio{ID: "b", Polygon: unitSquare(18.0, 59.3)})
	repo.AddPatio(&venue.Patio{ID: "a", Polygon: unitSquare(18.1, 59.3)})
	repo.AddPatio(&venue.Patio{ID: "no-geom"})

	patios, err := repo.ListPatiosWithGeometry(context.Background())
	require.NoError(t, err)
	require.Len(t, patios, 2)

	// Stable ID order, footprint-less patios excluded.
	assert.Equal(t, "a", patios[0].ID)
	assert.Equal(t, "b", patios[1].ID)
}

func TestMemoryRepository_ListBuildingsWithin(t *testing.T) {
	repo := venue.NewMemoryRepository()
	repo.AddBuilding(&venue.Building{ID: "tall", Footprint: unitSquare(18.0, 59.3), HeightM: 30})
	repo.AddBuilding(&venue.Building{ID: "low", Footprint: unitSquare(18.0, 59.3), HeightM: 1})
	repo.AddBuilding(&venue.Building{ID: "far", Footprint: unitSquare(19.0, 60.3), HeightM: 30})

	area := unitSquare(18.0, 59.3).Bound()
	buildings, err := repo.ListBuildingsWithin(context.Background(), area, 2)
	require.NoError(t, err)
	require.Len(t, buildings, 1)
	assert.Equal(t, "tall", buildings[0].ID)
}

func TestPatio_HasGeometry(t *testing.T) {
	assert.True(t, (&venue.Patio{Polygon: unitSquare(0, 0)}).HasGeometry())
	assert.False(t, (&venue.Patio{}).HasGeometry())
	assert.False(t, (&venue.Patio{Polygon: orb.Polygon{orb.Ring{{0, 0}, {1, 1}}}}).HasGeometry())
}

func TestHeightSource_Reliability(t *testing.T) {
	assert.Equal(t, 1.0, venue.HeightMeasured.Reliability())
	assert.Equal(t, 0.8, venue.HeightEstimated.Reliability())
	assert.Equal(t, 0.6, venue.HeightDefault.Reliability())
	assert.Equal(t, 0.6, venue.HeightSource("unknown").Reliability())
}
