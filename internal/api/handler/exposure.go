// Package handler provides HTTP handlers for the SunnySeat API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rthunborg/sunnyseat-sub000/internal/api/middleware"
	"github.com/rthunborg/sunnyseat-sub000/internal/api/models"
	"github.com/rthunborg/sunnyseat-sub000/internal/api/response"
	"github.com/rthunborg/sunnyseat-sub000/internal/cache"
	"github.com/rthunborg/sunnyseat-sub000/internal/exposure"
	"github.com/rthunborg/sunnyseat-sub000/internal/venue"
)

const (
	defaultTimelineInterval = 10 * time.Minute
	maxRequestBody          = 1 << 20
)

// ExposureHandler handles sun exposure queries.
type ExposureHandler struct {
	service *exposure.Service
	cache   *cache.Layered
	metrics *middleware.ComputeMetrics
}

// NewExposureHandler creates a new ExposureHandler. The cache and metrics
// are optional; without a cache every request computes live.
func NewExposureHandler(service *exposure.Service, layered *cache.Layered, metrics *middleware.ComputeMetrics) *ExposureHandler {
	return &ExposureHandler{service: service, cache: layered, metrics: metrics}
}

// GetExposure handles GET /v1/patios/{patioId}/exposure.
func (h *ExposureHandler) GetExposure(w http.ResponseWriter, r *http.Request) {
	patioID := chi.URLParam(r, "patioId")

	ts, ok := parseTimestamp(w, r, r.URL.Query().Get("at"))
	if !ok {
		return
	}

	key := cache.NewKey(patioID, ts)
	if h.cache != nil {
		if result, ok := h.cache.Get(r.Context(), key); ok {
			if h.metrics != nil {
				h.metrics.RecordCacheHit("exposure")
			}
			response.JSON(w, r, http.StatusOK, result)
			return
		}
		if h.metrics != nil {
			h.metrics.RecordCacheMiss("exposure")
		}
	}

	start := time.Now()
	result, err := h.service.Exposure(r.Context(), patioID, ts)
	if h.metrics != nil {
		h.metrics.RecordCompute("exposure", time.Since(start), err)
	}
	if err != nil {
		writeExposureError(w, r, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.Set(r.Context(), key, result)
	}
	response.JSON(w, r, http.StatusOK, result)
}

// BatchExposure handles POST /v1/exposure:batch.
func (h *ExposureHandler) BatchExposure(w http.ResponseWriter, r *http.Request) {
	var req models.BatchExposureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.PatioIDs) == 0 {
		response.BadRequest(w, r, "patioIds must not be empty", []models.FieldError{
			{Field: "patioIds", Message: "at least one patio ID is required", Code: "required"},
		})
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.Time().UTC()
	}

	results := make(map[string]*exposure.PatioSunExposure, len(req.PatioIDs))

	// Serve what the cache already has and compute the remainder in one
	// batch.
	missing := req.PatioIDs
	if h.cache != nil {
		keys := make([]cache.Key, 0, len(req.PatioIDs))
		for _, id := range req.PatioIDs {
			keys = append(keys, cache.NewKey(id, ts))
		}
		cached := h.cache.BatchGet(r.Context(), keys)

		missing = missing[:0]
		for _, id := range req.PatioIDs {
			if result, ok := cached[cache.NewKey(id, ts)]; ok {
				results[id] = result
				if h.metrics != nil {
					h.metrics.RecordCacheHit("batch")
				}
			} else {
				missing = append(missing, id)
				if h.metrics != nil {
					h.metrics.RecordCacheMiss("batch")
				}
			}
		}
	}

	if len(missing) > 0 {
		start := time.Now()
		computed, err := h.service.BatchExposure(r.Context(), missing, ts)
		if h.metrics != nil {
			h.metrics.RecordCompute("batch", time.Since(start), err)
		}
		if err != nil {
			writeExposureError(w, r, err)
			return
		}
		for id, result := range computed {
			results[id] = result
			if h.cache != nil {
				_ = h.cache.Set(r.Context(), cache.NewKey(id, ts), result)
			}
		}
	}

	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"timestamp": models.Timestamp(ts),
		"count":     len(results),
		"results":   results,
	})
}

// Timeline handles GET /v1/patios/{patioId}/timeline.
func (h *ExposureHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	patioID := chi.URLParam(r, "patioId")
	q := r.URL.Query()

	start, ok := parseTimestamp(w, r, q.Get("start"))
	if !ok {
		return
	}
	end, ok := parseTimestamp(w, r, q.Get("end"))
	if !ok {
		return
	}

	interval := defaultTimelineInterval
	if raw := q.Get("interval"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			response.BadRequest(w, r, "invalid interval", []models.FieldError{
				{Field: "interval", Message: "must be a duration such as 10m", Code: "invalid"},
			})
			return
		}
		interval = parsed
	}

	points, err := h.service.Timeline(r.Context(), patioID, start, end, interval)
	if err != nil {
		writeExposureError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"patioId": patioID,
		"count":   len(points),
		"points":  points,
	})
}

// SunWindows handles GET /v1/patios/{patioId}/sun-windows.
func (h *ExposureHandler) SunWindows(w http.ResponseWriter, r *http.Request) {
	patioID := chi.URLParam(r, "patioId")

	date, ok := parseDate(w, r, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	windows, err := h.service.SunWindows(r.Context(), patioID, date)
	if err != nil {
		writeExposureError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"patioId": patioID,
		"date":    date.Format("2006-01-02"),
		"windows": windows,
	})
}

// BestWindows handles POST /v1/sun-windows:best.
func (h *ExposureHandler) BestWindows(w http.ResponseWriter, r *http.Request) {
	var req models.BestWindowsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.PatioIDs) == 0 {
		response.BadRequest(w, r, "patioIds must not be empty", []models.FieldError{
			{Field: "patioIds", Message: "at least one patio ID is required", Code: "required"},
		})
		return
	}

	date, ok := parseDate(w, r, req.Date)
	if !ok {
		return
	}

	windows, err := h.service.BestWindows(r.Context(), req.PatioIDs, date)
	if err != nil {
		writeExposureError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"date":    date.Format("2006-01-02"),
		"windows": windows,
	})
}

// DayEvents handles GET /v1/patios/{patioId}/day-events.
func (h *ExposureHandler) DayEvents(w http.ResponseWriter, r *http.Request) {
	patioID := chi.URLParam(r, "patioId")

	date, ok := parseDate(w, r, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	events, err := h.service.DayEvents(r.Context(), patioID, date)
	if err != nil {
		writeExposureError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, events)
}

// parseTimestamp reads an RFC3339 timestamp, defaulting to now. The bool
// result is false when a problem response has already been written.
func parseTimestamp(w http.ResponseWriter, r *http.Request, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Now().UTC(), true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.BadRequest(w, r, "invalid timestamp", []models.FieldError{
			{Field: "at", Message: "must be RFC3339", Code: "invalid"},
		})
		return time.Time{}, false
	}
	return ts.UTC(), true
}

func parseDate(w http.ResponseWriter, r *http.Request, raw string) (time.Time, bool) {
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
	date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		response.BadRequest(w, r, "invalid date", []models.FieldError{
			{Field: "date", Message: "must be YYYY-MM-DD", Code: "invalid"},
		})
		return time.Time{}, false
	}
	return date, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.BadRequest(w, r, "invalid request body: "+err.Error(), nil)
		return false
	}
	return true
}

func writeExposureError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, venue.ErrPatioNotFound):
		response.NotFound(w, r, "patio not found")
	case errors.Is(err, exposure.ErrBatchTooLarge):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, exposure.ErrInvalidArgument):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		response.InternalError(w, r, "exposure calculation failed")
	}
}
