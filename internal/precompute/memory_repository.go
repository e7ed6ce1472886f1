package precompute

import (
	"context"
	"sync"
	"time"
)

type recordKey struct {
	patioID string
	ts      time.Time
	version int
}

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[recordKey]*Record
	schedules map[string]*Schedule
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[recordKey]*Record),
		schedules: make(map[string]*Schedule),
	}
}

// GetRecord returns the record nearest ts within the tolerance. Records
// carrying the current computation version win over superseded ones; among
// equals the nearest timestamp wins, then the highest version.
func (m *MemoryStore) GetRecord(_ context.Context, patioID string, ts time.Time, tolerance time.Duration) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best     *Record
		bestDist time.Duration
	)
	better := func(r *Record, dist time.Duration) bool {
		if best == nil {
			return true
		}
		rCurrent := r.Version == ComputationVersion
		bCurrent := best.Version == ComputationVersion
		if rCurrent != bCurrent {
			return rCurrent
		}
		if dist != bestDist {
			return dist < bestDist
		}
		return r.Version > best.Version
	}
	for key, r := range m.records {
		if key.patioID != patioID {
			continue
		}
		dist := key.ts.Sub(ts)
		if dist < 0 {
			dist = -dist
		}
		if dist > tolerance {
			continue
		}
		if better(r, dist) {
			best = r
			bestDist = dist
		}
	}
	if best == nil {
		return nil, ErrRecordNotFound
	}
	copied := *best
	return &copied, nil
}

// BulkInsert appends records. Rows are keyed by (patio_id, ts, version), so
// a new computation version never rewrites superseded rows; re-inserting
// the same version is idempotent.
func (m *MemoryStore) BulkInsert(_ context.Context, records []*Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		copied := *r
		m.records[recordKey{patioID: r.PatioID, ts: r.Timestamp.UTC(), version: r.Version}] = &copied
	}
	return nil
}

// CountRecords counts current-version records on the date.
func (m *MemoryStore) CountRecords(_ context.Context, date time.Time, patioIDs []string) (int, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	ids := make(map[string]struct{}, len(patioIDs))
	for _, id := range patioIDs {
		ids[id] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for key, r := range m.records {
		if _, ok := ids[key.patioID]; !ok {
			continue
		}
		if r.Version != ComputationVersion {
			continue
		}
		if key.ts.Before(dayStart) || !key.ts.Before(dayEnd) {
			continue
		}
		count++
	}
	return count, nil
}

// DeleteRecords removes records for one patio inside [from, to).
func (m *MemoryStore) DeleteRecords(_ context.Context, patioID string, from, to time.Time) (int, error) {
	all := from.IsZero() && to.IsZero()

	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key := range m.records {
		if key.patioID != patioID {
			continue
		}
		if !all && (key.ts.Before(from) || !key.ts.Before(to)) {
			continue
		}
		delete(m.records, key)
		deleted++
	}
	return deleted, nil
}

// CreateSchedule inserts a schedule.
func (m *MemoryStore) CreateSchedule(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *s
	m.schedules[s.ID] = &copied
	return nil
}

// UpdateSchedule persists schedule changes.
func (m *MemoryStore) UpdateSchedule(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.schedules[s.ID]; !ok {
		return ErrScheduleNotFound
	}
	copied := *s
	m.schedules[s.ID] = &copied
	return nil
}

// GetSchedule retrieves a schedule by ID.
func (m *MemoryStore) GetSchedule(_ context.Context, id string) (*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	copied := *s
	return &copied, nil
}

// FindScheduleForDate returns the newest non-failed schedule for the date.
func (m *MemoryStore) FindScheduleForDate(_ context.Context, date time.Time) (*Schedule, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var newest *Schedule
	for _, s := range m.schedules {
		if s.State == StateFailed || s.State == StateCancelled {
			continue
		}
		if s.Date.Before(dayStart) || !s.Date.Before(dayEnd) {
			continue
		}
		if newest == nil || s.CreatedAt.After(newest.CreatedAt) {
			newest = s
		}
	}
	if newest == nil {
		return nil, ErrScheduleNotFound
	}
	copied := *newest
	return &copied, nil
}
