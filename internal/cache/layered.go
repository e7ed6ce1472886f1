package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
)

// Invalidation window: every cache slot from today through two days out,
// daytime hours only.
const (
	invalidateDays      = 3
	invalidateStartHour = 8
	invalidateEndHour   = 20
)

// Status is the aggregate cache health classification.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Health is the probe result across tiers.
type Health struct {
	Status Status            `json:"status"`
	Tiers  map[string]string `json:"tiers"`
}

// Layered chains cache tiers from fastest to deepest. Reads walk down until
// a hit and warm the shallower tiers on the way back.
type Layered struct {
	tiers  []Tier
	logger zerolog.Logger

	// batchConcurrency bounds BatchGet fan-out.
	batchConcurrency int
}

// LayeredConfig holds configuration for the layered cache.
type LayeredConfig struct {
	// Tiers in lookup order, fastest first.
	Tiers  []Tier
	Logger zerolog.Logger

	// BatchConcurrency bounds parallel lookups in BatchGet (default 8).
	BatchConcurrency int
}

// NewLayered assembles the tier chain.
func NewLayered(cfg LayeredConfig) *Layered {
	concurrency := cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Layered{
		tiers:            cfg.Tiers,
		logger:           cfg.Logger.With().Str("component", "cache").Logger(),
		batchConcurrency: concurrency,
	}
}

// Get walks the tiers for the key. A hit in a deeper tier warms every tier
// above it; tier errors degrade to misses.
func (l *Layered) Get(ctx context.Context, key Key) (*exposure.PatioSunExposure, bool) {
	for i, tier := range l.tiers {
		value, ok, err := tier.Get(ctx, key)
		if err != nil {
			l.logger.Warn().Err(err).Str("tier", tier.Name()).Str("key", key.String()).
				Msg("cache tier read failed, falling through")
			continue
		}
		if !ok {
			continue
		}

		l.warm(ctx, key, value, i)
		return value, true
	}
	return nil, false
}

// BatchGet resolves many keys in parallel and returns the hits. Missing or
// failing keys are simply absent from the result.
func (l *Layered) BatchGet(ctx context.Context, keys []Key) map[Key]*exposure.PatioSunExposure {
	results := make(map[Key]*exposure.PatioSunExposure, len(keys))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	sem := make(chan struct{}, l.batchConcurrency)

	for _, key := range keys {
		wg.Add(1)
		go func(key Key) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if value, ok := l.Get(ctx, key); ok {
				mu.Lock()
				results[key] = value
				mu.Unlock()
			}
		}(key)
	}
	wg.Wait()

	return results
}

// Set writes the value through every writable tier. The first error is
// returned but does not stop the remaining tiers.
func (l *Layered) Set(ctx context.Context, key Key, value *exposure.PatioSunExposure) error {
	var firstErr error
	for _, tier := range l.tiers {
		if err := tier.Set(ctx, key, value); err != nil {
			l.logger.Warn().Err(err).Str("tier", tier.Name()).Str("key", key.String()).
				Msg("cache tier write failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Put stores a computed result under its natural key.
func (l *Layered) Put(ctx context.Context, result *exposure.PatioSunExposure) error {
	return l.Set(ctx, NewKey(result.PatioID, result.Timestamp), result)
}

// Invalidate removes every cache slot for the patio across the invalidation
// window, so changed geometry takes effect on the next read. It reports how
// many entries were actually dropped.
func (l *Layered) Invalidate(ctx context.Context, patioID string) (int, error) {
	keys := InvalidationKeys(patioID, time.Now().UTC())

	deleted := 0
	var firstErr error
	for _, tier := range l.tiers {
		n, err := tier.Delete(ctx, keys)
		if err != nil {
			l.logger.Error().Err(err).Str("tier", tier.Name()).Str("patio_id", patioID).
				Msg("cache invalidation failed on tier")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted += n
	}
	return deleted, firstErr
}

// InvalidationKeys enumerates the cache grid for one patio from the day of
// now through the invalidation horizon.
func InvalidationKeys(patioID string, now time.Time) []Key {
	perDay := (invalidateEndHour-invalidateStartHour)*int(time.Hour/KeyInterval) + 1

	keys := make([]Key, 0, invalidateDays*perDay)
	for day := 0; day < invalidateDays; day++ {
		date := now.AddDate(0, 0, day)
		slot := time.Date(date.Year(), date.Month(), date.Day(), invalidateStartHour, 0, 0, 0, time.UTC)
		for i := 0; i < perDay; i++ {
			keys = append(keys, Key{PatioID: patioID, Slot: slot})
			slot = slot.Add(KeyInterval)
		}
	}
	return keys
}

// healthCheckPatioID keys the synthetic entry Health round-trips through
// each writable tier.
const healthCheckPatioID = "health-check"

// Health checks every tier. Each tier is pinged, and writable tiers must
// additionally round-trip a synthetic entry, so a tier that accepts
// connections but drops writes still counts as failed. All tiers passing is
// healthy, all failing is critical, anything between is degraded.
func (l *Layered) Health(ctx context.Context) Health {
	health := Health{Tiers: make(map[string]string, len(l.tiers))}

	failed := 0
	for _, tier := range l.tiers {
		if err := l.checkTier(ctx, tier); err != nil {
			health.Tiers[tier.Name()] = err.Error()
			failed++
			continue
		}
		health.Tiers[tier.Name()] = "ok"
	}

	switch {
	case failed == 0:
		health.Status = StatusHealthy
	case failed == len(l.tiers):
		health.Status = StatusCritical
	default:
		health.Status = StatusDegraded
	}
	return health
}

// checkTier pings the tier and, when it is writable, writes a synthetic
// entry, reads it back and deletes it again.
func (l *Layered) checkTier(ctx context.Context, tier Tier) error {
	if err := tier.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !tier.Writable() {
		return nil
	}

	key := NewKey(healthCheckPatioID, time.Now())
	value := &exposure.PatioSunExposure{PatioID: healthCheckPatioID, Timestamp: key.Slot}
	if err := tier.Set(ctx, key, value); err != nil {
		return fmt.Errorf("check write: %w", err)
	}
	_, ok, err := tier.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("check read: %w", err)
	}
	if !ok {
		return errors.New("check entry missing after write")
	}
	if _, err := tier.Delete(ctx, []Key{key}); err != nil {
		return fmt.Errorf("check delete: %w", err)
	}
	return nil
}

// Metrics snapshots every tier's counters in lookup order.
func (l *Layered) Metrics() []TierMetrics {
	out := make([]TierMetrics, 0, len(l.tiers))
	for _, tier := range l.tiers {
		out = append(out, tier.Metrics())
	}
	return out
}

// warm rewrites a deep hit into the tiers above it, best effort.
func (l *Layered) warm(ctx context.Context, key Key, value *exposure.PatioSunExposure, depth int) {
	for i := 0; i < depth; i++ {
		if err := l.tiers[i].Set(ctx, key, value); err != nil {
			l.logger.Debug().Err(err).Str("tier", l.tiers[i].Name()).
				Msg("cache warm write failed")
		}
	}
}
