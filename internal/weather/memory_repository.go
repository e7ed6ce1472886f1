package weather

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory implementation of Repository for tests
// and local development.
type MemoryRepository struct {
	mu        sync.RWMutex
	snapshots []*Snapshot
}

// NewMemoryRepository creates an empty in-memory weather repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Add stores a snapshot.
func (r *MemoryRepository) Add(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

// Latest retrieves the newest snapshot at or before the given time.
func (r *MemoryRepository) Latest(_ context.Context, at time.Time) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Snapshot
	for _, s := range r.snapshots {
		if s.CreatedAt.After(at) {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNoSnapshot
	}
	return best, nil
}
