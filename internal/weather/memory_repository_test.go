package weather_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rthunborg/sunnyseat-sub000/internal/weather"
)

func TestMemoryRepository_Latest(t *testing.T) {
	repo := weather.NewMemoryRepository()
	base := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)

	repo.Add(&weather.Snapshot{CloudCoverPercent: 80, CreatedAt: base.Add(-time.Hour)})
	repo.Add(&weather.Snapshot{CloudCoverPercent: 20, CreatedAt: base.Add(-10 * time.Minute)})
	repo.Add(&weather.Snapshot{CloudCoverPercent: 50, CreatedAt: base.Add(time.Hour)})

	got, err := repo.Latest(context.Background(), base)
	require.NoError(t, err)

	// Newest at-or-before the query time; the future snapshot is ignored.
	assert.Equal(t, 20.0, got.CloudCoverPercent)
}

func TestMemoryRepository_Latest_Empty(t *testing.T) {
	repo := weather.NewMemoryRepository()

	_, err := repo.Latest(context.Background(), time.Now())
	assert.ErrorIs(t, err, weather.ErrNoSnapshot)
}

func TestSnapshot_Age(t *testing.T) {
	now := time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)
	s := &weather.Snapshot{CreatedAt: now.Add(-25 * time.Minute)}

	assert.Equal(t, 25*time.Minute, s.Age(now))
}
