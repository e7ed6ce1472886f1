package cache

import (
	"context"

	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
)

// PrecomputedTier serves the deepest layer from the precomputed record
// store. It is read-only: batch runs write it, so Set and Delete are no-ops
// and invalidation happens through record versioning.
type PrecomputedTier struct {
	source exposure.PrecomputedSource

	counters
}

// NewPrecomputedTier wraps a precomputed source as a cache tier.
func NewPrecomputedTier(source exposure.PrecomputedSource) *PrecomputedTier {
	return &PrecomputedTier{source: source}
}

func (t *PrecomputedTier) Name() string { return "precomputed" }

func (t *PrecomputedTier) Get(ctx context.Context, key Key) (*exposure.PatioSunExposure, bool, error) {
	// Batch runs store one record per 10 minutes while cache slots come
	// every 5; a full 5-minute tolerance lets every slot resolve to its
	// nearest stored record.
	value, ok := t.source.Fresh(ctx, key.PatioID, key.Slot, KeyInterval)
	if !ok {
		t.misses.Add(1)
		return nil, false, nil
	}
	t.hits.Add(1)
	return value, true, nil
}

func (t *PrecomputedTier) Set(context.Context, Key, *exposure.PatioSunExposure) error { return nil }

func (t *PrecomputedTier) Delete(context.Context, []Key) (int, error) { return 0, nil }

func (t *PrecomputedTier) Ping(context.Context) error { return nil }

func (t *PrecomputedTier) Writable() bool { return false }

func (t *PrecomputedTier) Metrics() TierMetrics { return t.snapshot(t.Name()) }
