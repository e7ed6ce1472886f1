package weather

import (
	"context"
	"time"
)

// Repository defines the read contract for weather snapshots.
type Repository interface {
	// Latest retrieves the newest snapshot at or before the given time.
	// Returns ErrNoSnapshot when nothing usable exists.
	Latest(ctx context.Context, at time.Time) (*Snapshot, error)
}
