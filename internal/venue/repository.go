package venue

import (
	"context"

	"github.com/paulmach/orb"
)

// Repository defines the read contract for building and patio data.
type Repository interface {
	// GetPatio retrieves a patio by ID.
	// Returns ErrPatioNotFound if the patio doesn't exist.
	GetPatio(ctx context.Context, id string) (*Patio, error)

	// ListPatiosWithGeometry retrieves all patios carrying a usable footprint.
	ListPatiosWithGeometry(ctx context.Context) ([]*Patio, error)

	// ListBuildingsWithin retrieves buildings whose footprint bound overlaps
	// the area and whose height is at least minHeightM.
	ListBuildingsWithin(ctx context.Context, area orb.Bound, minHeightM float64) ([]*Building, error)
}
