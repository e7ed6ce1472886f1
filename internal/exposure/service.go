package exposure

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rthunborg/sunnyseat-sub000/internal/confidence"
	"github.com/rthunborg/sunnyseat-sub000/internal/geo"
	"github.com/rthunborg/sunnyseat-sub000/internal/shadow"
	"github.com/rthunborg/sunnyseat-sub000/internal/solar"
	"github.com/rthunborg/sunnyseat-sub000/internal/venue"
	"github.com/rthunborg/sunnyseat-sub000/internal/weather"
)

const (
	// noSunConfidence is the fixed display confidence when the sun is below
	// the horizon: the answer is certain regardless of data quality.
	noSunConfidence = 95.0

	// placeholderConfidence marks a per-patio batch failure.
	placeholderConfidence = 10.0

	// defaultBuildingDataQuality applies when no building contributes.
	defaultBuildingDataQuality = 0.8

	// precomputedTolerance is how far a precomputed snapshot may sit from
	// the requested instant.
	precomputedTolerance = 5 * time.Minute

	defaultConcurrency = 8
)

// PrecomputedSource supplies fresh precomputed results for timeline queries.
// Implementations must not return stale or expired entries.
type PrecomputedSource interface {
	Fresh(ctx context.Context, patioID string, ts time.Time, tolerance time.Duration) (*PatioSunExposure, bool)
}

// ServiceConfig holds configuration for the exposure service.
type ServiceConfig struct {
	// Venues supplies patios.
	Venues venue.Repository

	// Shadows is the shadow projection engine.
	Shadows *shadow.Engine

	// Geometry is the planar capability, for patio areas.
	// Defaults to geo.NewPlanar().
	Geometry shadow.Geometry

	// Weather is optional; absence lowers scored confidence.
	Weather weather.Repository

	// Precomputed is optional; timelines prefer it over live computation.
	Precomputed PrecomputedSource

	// Logger for service operations.
	Logger zerolog.Logger

	// Concurrency bounds the per-patio fan-out in batch queries (default 8).
	Concurrency int

	// Clock is injectable for tests (default time.Now).
	Clock func() time.Time
}

// Service answers sun exposure queries.
type Service struct {
	venues      venue.Repository
	shadows     *shadow.Engine
	geom        shadow.Geometry
	weather     weather.Repository
	precomputed PrecomputedSource
	logger      zerolog.Logger
	concurrency int
	clock       func() time.Time
}

// NewService creates an exposure service.
func NewService(cfg ServiceConfig) *Service {
	geom := cfg.Geometry
	if geom == nil {
		geom = geo.NewPlanar()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		venues:      cfg.Venues,
		shadows:     cfg.Shadows,
		geom:        geom,
		weather:     cfg.Weather,
		precomputed: cfg.Precomputed,
		logger:      cfg.Logger,
		concurrency: concurrency,
		clock:       clock,
	}
}

// Exposure answers a point-in-time query for one patio.
func (s *Service) Exposure(ctx context.Context, patioID string, ts time.Time) (*PatioSunExposure, error) {
	patio, err := s.venues.GetPatio(ctx, patioID)
	if err != nil {
		return nil, err
	}
	return s.compute(ctx, patio, ts, SourceRealtime)
}

// BatchExposure answers a query for many patios at one timestamp. The solar
// position and the shadow set are computed once; per-patio mapping runs on a
// bounded worker pool and a failing patio degrades to a placeholder instead
// of aborting the batch.
func (s *Service) BatchExposure(ctx context.Context, patioIDs []string, ts time.Time) (map[string]*PatioSunExposure, error) {
	if len(patioIDs) > MaxBatchPatios {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(patioIDs), MaxBatchPatios)
	}

	results := make(map[string]*PatioSunExposure, len(patioIDs))
	var patios []*venue.Patio
	for _, id := range patioIDs {
		patio, err := s.venues.GetPatio(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("patio_id", id).Msg("batch patio lookup failed, using placeholder")
			results[id] = s.placeholder(id, ts)
			continue
		}
		patios = append(patios, patio)
	}
	if len(patios) == 0 {
		return results, nil
	}

	// One position per timestamp; the batch is assumed to sit within one
	// metro area, where the positional difference is negligible.
	pos, err := solar.Calculate(ts, patios[0].Latitude, patios[0].Longitude)
	if err != nil {
		return nil, err
	}

	infos, err := s.shadows.BatchPatioShadows(ctx, patios, pos, ts)
	if err != nil {
		return nil, err
	}

	snapshot := s.lookupWeather(ctx, ts)

	type item struct {
		patio *venue.Patio
	}
	work := make(chan item, len(patios))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	workers := s.concurrency
	if workers > len(patios) {
		workers = len(patios)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range work {
				result := s.composeSafely(it.patio, infos[it.patio.ID], snapshot, ts, SourceRealtimeBatch)
				mu.Lock()
				results[it.patio.ID] = result
				mu.Unlock()
			}
		}()
	}
	for _, p := range patios {
		work <- item{patio: p}
	}
	close(work)
	wg.Wait()

	return results, nil
}

// Timeline answers an exposure-per-tick query for one patio, preferring
// fresh precomputed snapshots over live computation.
func (s *Service) Timeline(ctx context.Context, patioID string, start, end time.Time, interval time.Duration) ([]*PatioSunExposure, error) {
	ticks, err := solar.Timeline(start, end, interval)
	if err != nil {
		return nil, err
	}

	patio, err := s.venues.GetPatio(ctx, patioID)
	if err != nil {
		return nil, err
	}

	points := make([]*PatioSunExposure, 0, len(ticks))
	for _, tick := range ticks {
		if s.precomputed != nil {
			if cached, ok := s.precomputed.Fresh(ctx, patioID, tick, precomputedTolerance); ok {
				points = append(points, cached)
				continue
			}
		}

		point, err := s.compute(ctx, patio, tick, SourceRealtime)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("patio_id", patioID).
				Time("tick", tick).
				Msg("timeline point failed, using placeholder")
			points = append(points, s.placeholder(patioID, tick))
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

// DayEvents returns sunrise, sunset and solar noon for a patio and UTC date.
func (s *Service) DayEvents(ctx context.Context, patioID string, date time.Time) (*solar.DayEvents, error) {
	patio, err := s.venues.GetPatio(ctx, patioID)
	if err != nil {
		return nil, err
	}
	return solar.EventsForDate(date, patio.Latitude, patio.Longitude)
}

// compute runs the full pipeline for one patio and instant.
func (s *Service) compute(ctx context.Context, patio *venue.Patio, ts time.Time, source Source) (*PatioSunExposure, error) {
	started := s.clock()

	pos, err := solar.Calculate(ts, patio.Latitude, patio.Longitude)
	if err != nil {
		return nil, err
	}

	if !pos.SunVisible() {
		return s.noSunResult(patio, pos, ts, source, started), nil
	}

	infos, err := s.shadows.BatchPatioShadows(ctx, []*venue.Patio{patio}, pos, ts)
	if err != nil {
		return nil, err
	}

	snapshot := s.lookupWeather(ctx, ts)
	result := s.compose(patio, infos[patio.ID], snapshot, ts, source)
	result.CalculationTime = s.clock().Sub(started)
	return result, nil
}

// compose assembles the final result from a shadow split.
func (s *Service) compose(patio *venue.Patio, info *shadow.PatioShadowInfo, snapshot *weather.Snapshot, ts time.Time, source Source) *PatioSunExposure {
	pos := info.Solar
	if !pos.SunVisible() {
		return s.noSunResult(patio, pos, ts, source, s.clock())
	}

	buildingQuality := defaultBuildingDataQuality
	if len(info.Shadows) > 0 {
		sum := 0.0
		for _, sh := range info.Shadows {
			sum += sh.HeightReliability
		}
		buildingQuality = sum / float64(len(info.Shadows))
	}

	factors := confidence.Score(confidence.Input{
		BuildingDataQuality: buildingQuality,
		PatioPolygonQuality: patio.PolygonQuality,
		ShadowConfidence:    info.Confidence,
		ShadowCount:         len(info.Shadows),
		SunElevation:        pos.Elevation,
		Weather:             snapshot,
		Now:                 s.clock(),
	})

	patioArea := s.geom.AreaSquareMeters(patio.Polygon)
	sunlit := info.SunlitPercent

	return &PatioSunExposure{
		PatioID:            patio.ID,
		Timestamp:          ts,
		LocalTime:          pos.LocalTime,
		SunExposurePercent: sunlit,
		State:              ClassifyState(sunlit),
		Confidence:         math.Round(factors.Overall * 100),
		SunlitAreaM2:       patioArea * sunlit / 100,
		ShadedAreaM2:       patioArea * (100 - sunlit) / 100,
		Solar:              summarizeSolar(pos),
		Shadows:            summarizeShadows(info.Shadows),
		Factors:            &factors,
		Weather:            snapshot,
		Source:             source,
	}
}

func (s *Service) composeSafely(patio *venue.Patio, info *shadow.PatioShadowInfo, snapshot *weather.Snapshot, ts time.Time, source Source) (result *PatioSunExposure) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("patio_id", patio.ID).
				Interface("panic", r).
				Msg("patio computation panicked, using placeholder")
			result = s.placeholder(patio.ID, ts)
		}
	}()
	if info == nil {
		return s.placeholder(patio.ID, ts)
	}
	return s.compose(patio, info, snapshot, ts, source)
}

func (s *Service) noSunResult(patio *venue.Patio, pos *solar.Position, ts time.Time, source Source, started time.Time) *PatioSunExposure {
	patioArea := s.geom.AreaSquareMeters(patio.Polygon)
	return &PatioSunExposure{
		PatioID:            patio.ID,
		Timestamp:          ts,
		LocalTime:          pos.LocalTime,
		SunExposurePercent: 0,
		State:              StateNoSun,
		Confidence:         noSunConfidence,
		SunlitAreaM2:       0,
		ShadedAreaM2:       patioArea,
		Solar:              summarizeSolar(pos),
		CalculationTime:    s.clock().Sub(started),
		Source:             source,
	}
}

func (s *Service) placeholder(patioID string, ts time.Time) *PatioSunExposure {
	return &PatioSunExposure{
		PatioID:            patioID,
		Timestamp:          ts,
		SunExposurePercent: 0,
		State:              StateShaded,
		Confidence:         placeholderConfidence,
		Source:             SourceRealtimeBatch,
	}
}

// lookupWeather tolerates a missing or failing weather store; both degrade
// to a lower-confidence score rather than an error.
func (s *Service) lookupWeather(ctx context.Context, ts time.Time) *weather.Snapshot {
	if s.weather == nil {
		return nil
	}
	snapshot, err := s.weather.Latest(ctx, ts)
	if err != nil {
		if !errors.Is(err, weather.ErrNoSnapshot) {
			s.logger.Warn().Err(err).Msg("weather lookup failed, scoring without weather")
		}
		return nil
	}
	return snapshot
}
