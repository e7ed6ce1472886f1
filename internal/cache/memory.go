package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
)

const (
	// DefaultMemoryTTL keeps in-process entries short-lived; the shared
	// tier is the durable one.
	DefaultMemoryTTL = 5 * time.Minute

	// DefaultMemoryMaxEntries caps the in-process tier.
	DefaultMemoryMaxEntries = 10000
)

type memoryEntry struct {
	value     *exposure.PatioSunExposure
	expiresAt time.Time
}

// MemoryTier is the in-process cache layer.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	ttl        time.Duration
	maxEntries int
	clock      func() time.Time

	counters
}

// MemoryTierConfig holds configuration for the in-process tier. Zero values
// take the package defaults.
type MemoryTierConfig struct {
	TTL        time.Duration
	MaxEntries int
	Clock      func() time.Time
}

// NewMemoryTier creates an empty in-process tier.
func NewMemoryTier(cfg MemoryTierConfig) *MemoryTier {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultMemoryTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMemoryMaxEntries
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &MemoryTier{
		entries:    make(map[string]memoryEntry),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		clock:      cfg.Clock,
	}
}

func (t *MemoryTier) Name() string { return "memory" }

func (t *MemoryTier) Get(_ context.Context, key Key) (*exposure.PatioSunExposure, bool, error) {
	t.mu.RLock()
	entry, ok := t.entries[key.String()]
	t.mu.RUnlock()

	if !ok || t.clock().After(entry.expiresAt) {
		t.misses.Add(1)
		return nil, false, nil
	}
	t.hits.Add(1)
	return entry.value, true, nil
}

func (t *MemoryTier) Set(_ context.Context, key Key, value *exposure.PatioSunExposure) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.maxEntries {
		t.evictLocked()
	}
	t.entries[key.String()] = memoryEntry{value: value, expiresAt: t.clock().Add(t.ttl)}
	t.sets.Add(1)
	return nil
}

func (t *MemoryTier) Delete(_ context.Context, keys []Key) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	deleted := 0
	for _, key := range keys {
		k := key.String()
		if _, ok := t.entries[k]; ok {
			delete(t.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

func (t *MemoryTier) Ping(context.Context) error { return nil }

func (t *MemoryTier) Writable() bool { return true }

func (t *MemoryTier) Metrics() TierMetrics { return t.snapshot(t.Name()) }

// Len reports the live entry count.
func (t *MemoryTier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// evictLocked drops expired entries first; when everything is still live it
// drops arbitrary entries to make room.
func (t *MemoryTier) evictLocked() {
	now := t.clock()
	for k, entry := range t.entries {
		if now.After(entry.expiresAt) {
			delete(t.entries, k)
		}
	}

	over := len(t.entries) - t.maxEntries + 1
	for k := range t.entries {
		if over <= 0 {
			break
		}
		delete(t.entries, k)
		over--
	}
}
