package precompute

import (
	"context"
	"time"

	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
)

// RecordSource serves stored records to the exposure service's timeline
// path. It satisfies exposure.PrecomputedSource.
type RecordSource struct {
	store Store
	clock func() time.Time
}

// NewRecordSource wraps a store for timeline lookups.
func NewRecordSource(store Store) *RecordSource {
	return &RecordSource{store: store, clock: time.Now}
}

// Fresh returns the stored result nearest ts if one exists within the
// tolerance and is still servable.
func (rs *RecordSource) Fresh(ctx context.Context, patioID string, ts time.Time, tolerance time.Duration) (*exposure.PatioSunExposure, bool) {
	record, err := rs.store.GetRecord(ctx, patioID, ts, tolerance)
	if err != nil {
		return nil, false
	}
	if record.Stale(rs.clock()) || record.Exposure == nil {
		return nil, false
	}
	record.Exposure.Source = exposure.SourcePrecomputed
	return record.Exposure, true
}
