package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rthunborg/sunnyseat-sub000/internal/cache"
	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
	"github.com/rthunborg/sunnyseat-sub000/internal/precompute"
)

var slotTime = time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC)

func result(patioID string, ts time.Time, percent float64) *exposure.PatioSunExposure {
	return &exposure.PatioSunExposure{
		PatioID:            patioID,
		Timestamp:          ts,
		SunExposurePercent: percent,
		State:              exposure.ClassifyState(percent),
	}
}

func TestKeyBucketsTimestamps(t *testing.T) {
	base := cache.NewKey("p1", slotTime)

	// Timestamps inside the same five-minute bucket share a key.
	assert.Equal(t, base, cache.NewKey("p1", slotTime.Add(2*time.Minute)))
	assert.Equal(t, base, cache.NewKey("p1", slotTime.Add(-2*time.Minute)))
	assert.NotEqual(t, base, cache.NewKey("p1", slotTime.Add(3*time.Minute)))
	assert.NotEqual(t, base, cache.NewKey("p2", slotTime))

	assert.Contains(t, base.String(), "p1")
}

func TestMemoryTierRoundTrip(t *testing.T) {
	tier := cache.NewMemoryTier(cache.MemoryTierConfig{})
	ctx := context.Background()
	key := cache.NewKey("p1", slotTime)

	_, ok, err := tier.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tier.Set(ctx, key, result("p1", slotTime, 80)))

	got, ok, err := tier.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 80, got.SunExposurePercent, 1e-9)

	m := tier.Metrics()
	assert.Equal(t, int64(1), m.Hits)
	assert.Equal(t, int64(1), m.Misses)
	assert.InDelta(t, 0.5, m.HitRate(), 1e-9)
}

func TestMemoryTierExpiry(t *testing.T) {
	now := slotTime
	tier := cache.NewMemoryTier(cache.MemoryTierConfig{
		TTL:   time.Minute,
		Clock: func() time.Time { return now },
	})
	ctx := context.Background()
	key := cache.NewKey("p1", slotTime)

	require.NoError(t, tier.Set(ctx, key, result("p1", slotTime, 80)))

	now = now.Add(2 * time.Minute)
	_, ok, err := tier.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "entry past TTL")
}

func TestMemoryTierEviction(t *testing.T) {
	tier := cache.NewMemoryTier(cache.MemoryTierConfig{MaxEntries: 5})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		ts := slotTime.Add(time.Duration(i) * cache.KeyInterval)
		require.NoError(t, tier.Set(ctx, cache.NewKey("p1", ts), result("p1", ts, 50)))
	}
	assert.LessOrEqual(t, tier.Len(), 5)
}

// stubTier is a scriptable tier for layered-cache tests.
type stubTier struct {
	name       string
	entries    map[cache.Key]*exposure.PatioSunExposure
	getErr     error
	setErr     error
	pingErr    error
	readOnly   bool
	dropWrites bool
	sets       int
}

func newStubTier(name string) *stubTier {
	return &stubTier{name: name, entries: make(map[cache.Key]*exposure.PatioSunExposure)}
}

func (s *stubTier) Name() string { return s.name }

func (s *stubTier) Get(_ context.Context, key cache.Key) (*exposure.PatioSunExposure, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *stubTier) Set(_ context.Context, key cache.Key, value *exposure.PatioSunExposure) error {
	if s.setErr != nil {
		return s.setErr
	}
	if !s.dropWrites {
		s.entries[key] = value
	}
	s.sets++
	return nil
}

func (s *stubTier) Delete(_ context.Context, keys []cache.Key) (int, error) {
	deleted := 0
	for _, key := range keys {
		if _, ok := s.entries[key]; ok {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *stubTier) Ping(context.Context) error { return s.pingErr }

func (s *stubTier) Writable() bool { return !s.readOnly }

func (s *stubTier) Metrics() cache.TierMetrics { return cache.TierMetrics{Tier: s.name} }

func TestLayeredWarmsShallowerTiers(t *testing.T) {
	memory := cache.NewMemoryTier(cache.MemoryTierConfig{})
	deep := newStubTier("deep")

	layered := cache.NewLayered(cache.LayeredConfig{
		Tiers:  []cache.Tier{memory, deep},
		Logger: zerolog.Nop(),
	})

	ctx := context.Background()
	key := cache.NewKey("p1", slotTime)
	deep.entries[key] = result("p1", slotTime, 65)

	got, ok := layered.Get(ctx, key)
	require.True(t, ok)
	assert.InDelta(t, 65, got.SunExposurePercent, 1e-9)

	// The deep hit must now be servable from the memory tier.
	warmed, ok, err := memory.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 65, warmed.SunExposurePercent, 1e-9)
}

func TestLayeredSkipsFailingTier(t *testing.T) {
	broken := newStubTier("broken")
	broken.getErr = errors.New("connection refused")
	deep := newStubTier("deep")

	layered := cache.NewLayered(cache.LayeredConfig{
		Tiers:  []cache.Tier{broken, deep},
		Logger: zerolog.Nop(),
	})

	key := cache.NewKey("p1", slotTime)
	deep.entries[key] = result("p1", slotTime, 65)

	got, ok := layered.Get(context.Background(), key)
	require.True(t, ok)
	assert.InDelta(t, 65, got.SunExposurePercent, 1e-9)
}

func TestLayeredInvalidate(t *testing.T) {
	memory := cache.NewMemoryTier(cache.MemoryTierConfig{})
	layered := cache.NewLayered(cache.LayeredConfig{
		Tiers:  []cache.Tier{memory},
		Logger: zerolog.Nop(),
	})

	ctx := context.Background()
	// Noon today falls inside the invalidation window.
	today := time.Now().UTC()
	noon := time.Date(today.Year(), today.Month(), today.Day(), 12, 0, 0, 0, time.UTC)

	require.NoError(t, layered.Put(ctx, result("p1", noon, 80)))
	require.NoError(t, layered.Put(ctx, result("p2", noon, 80)))

	deleted, err := layered.Invalidate(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, ok := layered.Get(ctx, cache.NewKey("p1", noon))
	assert.False(t, ok, "invalidated patio must miss")

	_, ok = layered.Get(ctx, cache.NewKey("p2", noon))
	assert.True(t, ok, "other patios stay cached")
}

func TestInvalidationKeysCoverWindow(t *testing.T) {
	now := time.Date(2025, 6, 21, 15, 30, 0, 0, time.UTC)
	keys := cache.InvalidationKeys("p1", now)

	// Three days of 08:00 through 20:00 inclusive at five-minute spacing.
	assert.Len(t, keys, 3*145)
	assert.Equal(t, time.Date(2025, 6, 21, 8, 0, 0, 0, time.UTC), keys[0].Slot)
	assert.Equal(t, time.Date(2025, 6, 23, 20, 0, 0, 0, time.UTC), keys[len(keys)-1].Slot)
}

func TestLayeredBatchGetPartialResults(t *testing.T) {
	memory := cache.NewMemoryTier(cache.MemoryTierConfig{})
	layered := cache.NewLayered(cache.LayeredConfig{
		Tiers:  []cache.Tier{memory},
		Logger: zerolog.Nop(),
	})

	ctx := context.Background()
	hit := cache.NewKey("p1", slotTime)
	miss := cache.NewKey("p2", slotTime)
	require.NoError(t, memory.Set(ctx, hit, result("p1", slotTime, 80)))

	results := layered.BatchGet(ctx, []cache.Key{hit, miss})
	require.Len(t, results, 1)
	assert.Contains(t, results, hit)
}

func TestPrecomputedTierServesInterleavedSlots(t *testing.T) {
	// Batch runs store records every ten minutes; cache slots come every
	// five. The slots halfway between two stored records must still be
	// served from the nearest one.
	store := precompute.NewMemoryStore()
	require.NoError(t, store.BulkInsert(context.Background(), []*precompute.Record{{
		PatioID:   "p1",
		Timestamp: slotTime,
		Version:   precompute.ComputationVersion,
		Exposure:  result("p1", slotTime, 80),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}}))

	tier := cache.NewPrecomputedTier(precompute.NewRecordSource(store))

	got, ok, err := tier.Get(context.Background(), cache.NewKey("p1", slotTime.Add(5*time.Minute)))
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 80, got.SunExposurePercent, 1e-9)
}

type fakeSource struct {
	values map[string]*exposure.PatioSunExposure
}

func (f *fakeSource) Fresh(_ context.Context, patioID string, _ time.Time, _ time.Duration) (*exposure.PatioSunExposure, bool) {
	v, ok := f.values[patioID]
	return v, ok
}

func TestPrecomputedTierIsReadOnly(t *testing.T) {
	tier := cache.NewPrecomputedTier(&fakeSource{values: map[string]*exposure.PatioSunExposure{
		"p1": result("p1", slotTime, 75),
	}})
	ctx := context.Background()
	key := cache.NewKey("p1", slotTime)

	got, ok, err := tier.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 75, got.SunExposurePercent, 1e-9)

	// Writes and deletes are accepted but never land anywhere.
	require.NoError(t, tier.Set(ctx, cache.NewKey("p2", slotTime), result("p2", slotTime, 10)))
	deleted, err := tier.Delete(ctx, []cache.Key{key})
	require.NoError(t, err)
	assert.Zero(t, deleted)

	_, ok, err = tier.Get(ctx, cache.NewKey("p2", slotTime))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLayeredHealth(t *testing.T) {
	healthy := newStubTier("a")
	failing := newStubTier("b")
	failing.pingErr = errors.New("down")

	ctx := context.Background()

	all := cache.NewLayered(cache.LayeredConfig{Tiers: []cache.Tier{healthy}, Logger: zerolog.Nop()})
	assert.Equal(t, cache.StatusHealthy, all.Health(ctx).Status)

	mixed := cache.NewLayered(cache.LayeredConfig{Tiers: []cache.Tier{healthy, failing}, Logger: zerolog.Nop()})
	health := mixed.Health(ctx)
	assert.Equal(t, cache.StatusDegraded, health.Status)
	assert.Equal(t, "ping: down", health.Tiers["b"])

	none := cache.NewLayered(cache.LayeredConfig{Tiers: []cache.Tier{failing}, Logger: zerolog.Nop()})
	assert.Equal(t, cache.StatusCritical, none.Health(ctx).Status)
}

func TestLayeredHealthRoundTripsWritableTiers(t *testing.T) {
	ctx := context.Background()

	// A tier that answers pings but silently drops writes must count as
	// failed, so a lone broken writable tier drives the cache critical.
	lossy := newStubTier("lossy")
	lossy.dropWrites = true

	layered := cache.NewLayered(cache.LayeredConfig{Tiers: []cache.Tier{lossy}, Logger: zerolog.Nop()})
	health := layered.Health(ctx)
	assert.Equal(t, cache.StatusCritical, health.Status)
	assert.Contains(t, health.Tiers["lossy"], "missing after write")

	rejecting := newStubTier("rejecting")
	rejecting.setErr = errors.New("disk full")
	layered = cache.NewLayered(cache.LayeredConfig{Tiers: []cache.Tier{rejecting}, Logger: zerolog.Nop()})
	health = layered.Health(ctx)
	assert.Equal(t, cache.StatusCritical, health.Status)
	assert.Contains(t, health.Tiers["rejecting"], "disk full")
}

func TestLayeredHealthSkipsReadOnlyTierWrites(t *testing.T) {
	ctx := context.Background()

	readOnly := newStubTier("snapshots")
	readOnly.readOnly = true
	readOnly.dropWrites = true

	layered := cache.NewLayered(cache.LayeredConfig{Tiers: []cache.Tier{readOnly}, Logger: zerolog.Nop()})
	health := layered.Health(ctx)
	assert.Equal(t, cache.StatusHealthy, health.Status)
	assert.Equal(t, "ok", health.Tiers["snapshots"])
	assert.Zero(t, readOnly.sets, "read-only tiers are only pinged")
}

func TestLayeredHealthCleansUpCheckEntries(t *testing.T) {
	tier := cache.NewMemoryTier(cache.MemoryTierConfig{})
	layered := cache.NewLayered(cache.LayeredConfig{Tiers: []cache.Tier{tier}, Logger: zerolog.Nop()})

	health := layered.Health(context.Background())
	assert.Equal(t, cache.StatusHealthy, health.Status)
	assert.Zero(t, tier.Len())
}
