package exposure

import (
	"context"
	"math"
	"sort"
	"time"
)

// Sun window segmentation thresholds.
const (
	// windowMinExposure is the lowest exposure a tick may have and still
	// extend a window.
	windowMinExposure = 20.0

	// windowMinDuration discards runs shorter than this.
	windowMinDuration = 15 * time.Minute

	// windowInterval is the tick spacing used when segmenting a day.
	windowInterval = 10 * time.Minute
)

// Quality is the coarse tier of a sun window.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// qualityBonus feeds the priority score.
func (q Quality) bonus() float64 {
	switch q {
	case QualityExcellent:
		return 100
	case QualityGood:
		return 75
	case QualityFair:
		return 50
	default:
		return 25
	}
}

// SunWindow is a contiguous interval of significant sun exposure, derived
// from already-computed timeline points and regenerated per query.
type SunWindow struct {
	PatioID string    `json:"patioId"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`

	PeakExposure float64   `json:"peakExposure"`
	PeakTime     time.Time `json:"peakTime"`

	AverageExposure float64 `json:"averageExposure"`
	MinExposure     float64 `json:"minExposure"`
	MaxExposure     float64 `json:"maxExposure"`

	// Confidence is the mean display confidence of the member points.
	Confidence float64 `json:"confidence"`

	Quality Quality `json:"quality"`

	// PriorityScore ranks windows across patios.
	PriorityScore float64 `json:"priorityScore"`

	Recommended          bool   `json:"recommended"`
	RecommendationReason string `json:"recommendationReason,omitempty"`
}

// Duration returns the window length.
func (w *SunWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// SunWindows derives the sun windows for one patio across a UTC date,
// scanning the day's timeline for contiguous sunny or partial runs above the
// exposure threshold.
func (s *Service) SunWindows(ctx context.Context, patioID string, date time.Time) ([]SunWindow, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	points, err := s.Timeline(ctx, patioID, dayStart, dayStart.Add(24*time.Hour-windowInterval), windowInterval)
	if err != nil {
		return nil, err
	}
	return SegmentWindows(patioID, points), nil
}

// BestWindows computes and ranks the sun windows of many patios for one UTC
// date, best first. A patio whose timeline fails is skipped, not fatal.
func (s *Service) BestWindows(ctx context.Context, patioIDs []string, date time.Time) ([]SunWindow, error) {
	if len(patioIDs) > MaxBatchPatios {
		return nil, ErrBatchTooLarge
	}

	var all []SunWindow
	for _, id := range patioIDs {
		windows, err := s.SunWindows(ctx, id, date)
		if err != nil {
			s.logger.Warn().Err(err).Str("patio_id", id).Msg("sun window derivation failed, skipping patio")
			continue
		}
		all = append(all, windows...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].PriorityScore > all[j].PriorityScore })
	return all, nil
}

// SegmentWindows scans timeline points for contiguous runs of significant
// exposure and finalizes each into a scored window.
func SegmentWindows(patioID string, points []*PatioSunExposure) []SunWindow {
	var (
		windows []SunWindow
		run     []*PatioSunExposure
	)

	flush := func() {
		if len(run) >= 2 {
			duration := run[len(run)-1].Timestamp.Sub(run[0].Timestamp)
			if duration >= windowMinDuration {
				windows = append(windows, finalizeWindow(patioID, run))
			}
		}
		run = nil
	}

	for _, p := range points {
		if inWindow(p) {
			run = append(run, p)
			continue
		}
		flush()
	}
	flush()

	return windows
}

func inWindow(p *PatioSunExposure) bool {
	if p.SunExposurePercent < windowMinExposure {
		return false
	}
	return p.State == StateSunny || p.State == StatePartial
}

func finalizeWindow(patioID string, run []*PatioSunExposure) SunWindow {
	w := SunWindow{
		PatioID:     patioID,
		Start:       run[0].Timestamp,
		End:         run[len(run)-1].Timestamp,
		MinExposure: math.MaxFloat64,
	}

	var sumExposure, sumConfidence float64
	for _, p := range run {
		sumExposure += p.SunExposurePercent
		sumConfidence += p.Confidence
		if p.SunExposurePercent > w.PeakExposure {
			w.PeakExposure = p.SunExposurePercent
			w.PeakTime = p.Timestamp
		}
		w.MinExposure = math.Min(w.MinExposure, p.SunExposurePercent)
		w.MaxExposure = math.Max(w.MaxExposure, p.SunExposurePercent)
	}
	w.AverageExposure = sumExposure / float64(len(run))
	w.Confidence = sumConfidence / float64(len(run))

	w.Quality = windowQuality(w.AverageExposure, w.Duration(), w.Confidence)
	w.PriorityScore = priorityScore(w.AverageExposure, w.Duration(), w.Confidence, w.Quality)

	switch w.Quality {
	case QualityExcellent:
		w.Recommended = true
		w.RecommendationReason = "long stretch of strong sun"
	case QualityGood:
		w.Recommended = true
		w.RecommendationReason = "solid sun for at least an hour"
	}
	return w
}

func windowQuality(avgExposure float64, duration time.Duration, confidence float64) Quality {
	switch {
	case avgExposure >= 70 && duration >= 2*time.Hour && confidence >= 70:
		return QualityExcellent
	case avgExposure >= 50 && duration >= time.Hour:
		return QualityGood
	case avgExposure >= 30 && duration >= 30*time.Minute:
		return QualityFair
	default:
		return QualityPoor
	}
}

func priorityScore(avgExposure float64, duration time.Duration, confidence float64, quality Quality) float64 {
	durationTerm := math.Min(duration.Hours()*25, 100)
	return 0.4*avgExposure + 0.3*durationTerm + 0.2*confidence + 0.1*quality.bonus()
}
