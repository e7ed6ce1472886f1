// Package cache layers exposure result storage: a small in-process tier in
// front of a shared Valkey tier, falling back to the precomputed store.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
)

// KeyInterval is the temporal bucket size. Requests inside the same bucket
// share one cache entry.
const KeyInterval = 5 * time.Minute

// Key addresses one cached exposure result.
type Key struct {
	PatioID string
	Slot    time.Time
}

// NewKey buckets a timestamp onto the cache grid.
func NewKey(patioID string, ts time.Time) Key {
	return Key{PatioID: patioID, Slot: ts.UTC().Round(KeyInterval)}
}

// String renders the storage key.
func (k Key) String() string {
	return fmt.Sprintf("exposure:%s:%d", k.PatioID, k.Slot.Unix())
}

// Tier is one cache layer. Read-only tiers accept Set and Delete as no-ops.
type Tier interface {
	Name() string
	Get(ctx context.Context, key Key) (*exposure.PatioSunExposure, bool, error)
	Set(ctx context.Context, key Key, value *exposure.PatioSunExposure) error

	// Delete removes keys and reports how many existed.
	Delete(ctx context.Context, keys []Key) (int, error)

	// Ping checks connectivity to the tier's backing store.
	Ping(ctx context.Context) error

	// Writable reports whether Set and Delete actually persist. Health
	// round-trips a synthetic entry only through writable tiers.
	Writable() bool

	Metrics() TierMetrics
}

// TierMetrics is a point-in-time counter snapshot for one tier.
type TierMetrics struct {
	Tier   string `json:"tier"`
	Hits   int64  `json:"hits"`
	Misses int64  `json:"misses"`
	Sets   int64  `json:"sets"`
	Errors int64  `json:"errors"`
}

// HitRate is hits over lookups, zero when idle.
func (m TierMetrics) HitRate() float64 {
	lookups := m.Hits + m.Misses
	if lookups == 0 {
		return 0
	}
	return float64(m.Hits) / float64(lookups)
}

// counters is the shared atomic metrics block embedded by tiers.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	errors atomic.Int64
}

func (c *counters) snapshot(name string) TierMetrics {
	return TierMetrics{
		Tier:   name,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Errors: c.errors.Load(),
	}
}
