package venue

import (
	"context"
	"sort"
	"sync"

	"github.com/paulmach/orb"
)

// MemoryRepository is an in-memory implementation of Repository for tests
// and local development.
type MemoryRepository struct {
	mu        sync.RWMutex
	patios    map[string]*Patio
	buildings map[string]*Building
}

// NewMemoryRepository creates an empty in-memory venue repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patios:    make(map[string]*Patio),
		buildings: make(map[string]*Building),
	}
}

// AddPatio stores a patio.
func (r *MemoryRepository) AddPatio(p *Patio) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patios[p.ID] = p
}

// AddBuilding stores a building.
func (r *MemoryRepository) AddBuilding(b *Building) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buildings[b.ID] = b
}

// GetPatio retrieves a patio by ID.
func (r *MemoryRepository) GetPatio(_ context.Context, id string) (*Patio, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patios[id]
	if !ok {
		return nil, ErrPatioNotFound
	}
	return p, nil
}

// ListPatiosWithGeometry retrieves all patios carrying a footprint, in
// stable ID order.
func (r *MemoryRepository) ListPatiosWithGeometry(_ context.Context) ([]*Patio, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var patios []*Patio
	for _, p := range r.patios {
		if p.HasGeometry() {
			patios = append(patios, p)
		}
	}
	sort.Slice(patios, func(i, j int) bool { return patios[i].ID < patios[j].ID })
	return patios, nil
}

// ListBuildingsWithin retrieves buildings overlapping the area at or above
// the minimum height.
func (r *MemoryRepository) ListBuildingsWithin(_ context.Context, area orb.Bound, minHeightM float64) ([]*Building, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buildings []*Building
	for _, b := range r.buildings {
		if b.HeightM < minHeightM {
			continue
		}
		if len(b.Footprint) == 0 || !area.Intersects(b.Footprint.Bound()) {
			continue
		}
		buildings = append(buildings, b)
	}
	sort.Slice(buildings, func(i, j int) bool { return buildings[i].ID < buildings[j].ID })
	return buildings, nil
}
