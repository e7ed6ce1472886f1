package shadow

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/rthunborg/sunnyseat-sub000/internal/geo"
	"github.com/rthunborg/sunnyseat-sub000/internal/solar"
	"github.com/rthunborg/sunnyseat-sub000/internal/venue"
)

// Geometry is the planar capability the engine depends on. geo.Planar is
// the production implementation.
type Geometry interface {
	AreaSquareMeters(p orb.Polygon) float64
	Contains(p orb.Polygon, pt orb.Point) bool
	Envelope(polys ...orb.Polygon) orb.Bound
	ExpandBound(b orb.Bound, meters float64) orb.Bound
	Translate(p orb.Polygon, eastM, northM float64) orb.Polygon
	Hull(points []orb.Point) orb.Ring
	ClipToConvex(subject, clip orb.Polygon) (orb.Polygon, bool)
	CoverageRatio(subject orb.Polygon, covers []orb.Polygon) float64
}

// EngineConfig holds configuration for the shadow engine.
type EngineConfig struct {
	// Venues supplies patios and candidate buildings.
	Venues venue.Repository

	// Geometry is the planar capability. Defaults to geo.NewPlanar().
	Geometry Geometry

	// Logger for per-building skip diagnostics.
	Logger zerolog.Logger
}

// Engine projects building shadows and computes patio shadow splits.
type Engine struct {
	venues venue.Repository
	geom   Geometry
	logger zerolog.Logger
}

// NewEngine creates a shadow engine.
func NewEngine(cfg EngineConfig) *Engine {
	geom := cfg.Geometry
	if geom == nil {
		geom = geo.NewPlanar()
	}
	return &Engine{
		venues: cfg.Venues,
		geom:   geom,
		logger: cfg.Logger,
	}
}

// ProjectBuildingShadow projects one building's shadow for the solar
// position. The second return is false when the sun is too low or the
// building too short for a reliable projection.
func (e *Engine) ProjectBuildingShadow(b *venue.Building, pos *solar.Position) (*Projection, bool) {
	if pos.Elevation < MinReliableElevationDeg {
		return nil, false
	}
	if b.HeightM < MinBuildingHeightM || len(b.Footprint) == 0 {
		return nil, false
	}

	length := b.HeightM / math.Tan(pos.Elevation*math.Pi/180)
	if length > MaxShadowLengthM {
		length = MaxShadowLengthM
	}

	direction := math.Mod(pos.Azimuth+180, 360)
	dirRad := direction * math.Pi / 180
	eastM := length * math.Sin(dirRad)
	northM := length * math.Cos(dirRad)

	// The ground shadow is the hull of the footprint and the footprint
	// swept to the shadow tip.
	tip := e.geom.Translate(b.Footprint, eastM, northM)
	points := append(openPoints(b.Footprint), openPoints(tip)...)
	hull := e.geom.Hull(points)
	if hull == nil {
		return nil, false
	}

	return &Projection{
		BuildingID:      b.ID,
		Polygon:         orb.Polygon{hull},
		LengthM:         length,
		DirectionDeg:    direction,
		BuildingHeightM: b.HeightM,
		Solar:           pos,

		HeightReliability: b.HeightSource.Reliability(),
		Confidence:        projectionConfidence(pos.Elevation, b.HeightSource),
	}, true
}

// AllShadows projects every building that could plausibly shade the bounding
// area at this solar position. Per-building failures are logged and skipped,
// never fatal.
func (e *Engine) AllShadows(ctx context.Context, pos *solar.Position, area orb.Bound) ([]Projection, error) {
	if pos.Elevation < MinReliableElevationDeg {
		return nil, nil
	}

	searchArea := e.geom.ExpandBound(area, MaxShadowLengthM)
	buildings, err := e.venues.ListBuildingsWithin(ctx, searchArea, MinBuildingHeightM)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}

	shadows := make([]Projection, 0, len(buildings))
	for _, b := range buildings {
		proj, ok := e.projectSafely(b, pos)
		if !ok {
			continue
		}
		shadows = append(shadows, *proj)
	}
	return shadows, nil
}

// PatioShadow computes the shadow split for one patio at one instant.
func (e *Engine) PatioShadow(ctx context.Context, patioID string, ts time.Time) (*PatioShadowInfo, error) {
	patio, err := e.venues.GetPatio(ctx, patioID)
	if err != nil {
		return nil, err
	}

	pos, err := solar.Calculate(ts, patio.Latitude, patio.Longitude)
	if err != nil {
		return nil, err
	}

	if !pos.SunVisible() {
		return fullyShadowed(patio, pos, ts), nil
	}

	shadows, err := e.AllShadows(ctx, pos, patio.Polygon.Bound())
	if err != nil {
		return nil, err
	}
	return e.splitPatio(patio, pos, shadows, ts), nil
}

// BatchPatioShadows computes the shadow split for many patios at one
// instant, projecting the shadow set once for the union envelope of all
// patios instead of once per patio.
func (e *Engine) BatchPatioShadows(ctx context.Context, patios []*venue.Patio, pos *solar.Position, ts time.Time) (map[string]*PatioShadowInfo, error) {
	if len(patios) == 0 {
		return map[string]*PatioShadowInfo{}, nil
	}

	results := make(map[string]*PatioShadowInfo, len(patios))
	if !pos.SunVisible() {
		for _, p := range patios {
			results[p.ID] = fullyShadowed(p, pos, ts)
		}
		return results, nil
	}

	polys := make([]orb.Polygon, 0, len(patios))
	for _, p := range patios {
		polys = append(polys, p.Polygon)
	}
	shadows, err := e.AllShadows(ctx, pos, e.geom.Envelope(polys...))
	if err != nil {
		return nil, err
	}

	for _, p := range patios {
		results[p.ID] = e.splitPatio(p, pos, shadows, ts)
	}
	return results, nil
}

// splitPatio partitions a precomputed shadow set for one patio.
func (e *Engine) splitPatio(patio *venue.Patio, pos *solar.Position, shadows []Projection, ts time.Time) *PatioShadowInfo {
	var (
		reaching []Projection
		covers   []orb.Polygon
		clipped  orb.MultiPolygon
	)
	for _, s := range shadows {
		// The shadow is a convex hull by construction; the patio outline
		// can be arbitrary, so the patio must be the clip subject.
		part, ok := e.geom.ClipToConvex(patio.Polygon, s.Polygon)
		if !ok {
			continue
		}
		reaching = append(reaching, s)
		covers = append(covers, s.Polygon)
		clipped = append(clipped, part)
	}

	info := &PatioShadowInfo{
		PatioID:          patio.ID,
		Shadows:          reaching,
		ShadowedGeometry: clipped,
		Confidence:       1.0,
		Solar:            pos,
		Timestamp:        ts,
	}

	if len(reaching) == 0 {
		info.SunlitPercent = 100
		info.SunlitGeometry = orb.MultiPolygon{patio.Polygon}
		return info
	}

	shaded := e.geom.CoverageRatio(patio.Polygon, covers) * 100
	info.ShadowedPercent = shaded
	info.SunlitPercent = 100 - shaded

	sum := 0.0
	for _, s := range reaching {
		sum += s.Confidence
	}
	info.Confidence = sum / float64(len(reaching))
	return info
}

func (e *Engine) projectSafely(b *venue.Building, pos *solar.Position) (proj *Projection, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().
				Str("building_id", b.ID).
				Interface("panic", r).
				Msg("skipping building with malformed footprint")
			proj, ok = nil, false
		}
	}()
	return e.ProjectBuildingShadow(b, pos)
}

func fullyShadowed(patio *venue.Patio, pos *solar.Position, ts time.Time) *PatioShadowInfo {
	return &PatioShadowInfo{
		PatioID:         patio.ID,
		ShadowedPercent: 100,
		SunlitPercent:   0,
		Confidence:      1.0,
		Solar:           pos,
		Timestamp:       ts,
	}
}

func projectionConfidence(elevation float64, source venue.HeightSource) float64 {
	var base float64
	switch {
	case elevation > 30:
		base = 0.98
	case elevation > 15:
		base = 0.95
	case elevation > 5:
		base = 0.85
	default:
		base = 0.70
	}
	return base * source.Reliability()
}

func openPoints(p orb.Polygon) []orb.Point {
	if len(p) == 0 {
		return nil
	}
	ring := p[0]
	pts := []orb.Point(ring)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	out := make([]orb.Point, len(pts))
	copy(out, pts)
	return out
}
