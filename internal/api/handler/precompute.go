package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rthunborg/sunnyseat-sub000/internal/api/models"
	"github.com/rthunborg/sunnyseat-sub000/internal/api/response"
	"github.com/rthunborg/sunnyseat-sub000/internal/precompute"
	"github.com/rthunborg/sunnyseat-sub000/internal/venue"
)

// PrecomputeHandler handles precomputation scheduling and inspection.
type PrecomputeHandler struct {
	scheduler *precompute.Scheduler
	venues    venue.Repository
}

// NewPrecomputeHandler creates a new PrecomputeHandler.
func NewPrecomputeHandler(scheduler *precompute.Scheduler, venues venue.Repository) *PrecomputeHandler {
	return &PrecomputeHandler{scheduler: scheduler, venues: venues}
}

// CreateSchedule handles POST /v1/precompute/schedules. An omitted patio
// list schedules every patio carrying geometry.
func (h *PrecomputeHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req models.ScheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	date, ok := parseDate(w, r, req.Date)
	if !ok {
		return
	}

	patioIDs := req.PatioIDs
	if len(patioIDs) == 0 {
		patios, err := h.venues.ListPatiosWithGeometry(r.Context())
		if err != nil {
			response.InternalError(w, r, "listing patios failed")
			return
		}
		for _, p := range patios {
			patioIDs = append(patioIDs, p.ID)
		}
	}
	if len(patioIDs) == 0 {
		response.BadRequest(w, r, "no patios with geometry to schedule", nil)
		return
	}

	schedule, err := h.scheduler.Schedule(r.Context(), date, patioIDs)
	if err != nil {
		response.InternalError(w, r, "scheduling failed")
		return
	}
	response.Created(w, r, "/v1/precompute/schedules/"+schedule.ID, schedule)
}

// GetSchedule handles GET /v1/precompute/schedules/{scheduleId}.
func (h *PrecomputeHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.scheduler.Status(r.Context(), chi.URLParam(r, "scheduleId"))
	if err != nil {
		writePrecomputeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, schedule)
}

// Execute handles POST /v1/precompute/schedules/{scheduleId}/execute. The
// run is synchronous; long runs belong on the worker instead.
func (h *PrecomputeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "scheduleId")

	if err := h.scheduler.Execute(r.Context(), scheduleID, nil); err != nil {
		writePrecomputeError(w, r, err)
		return
	}

	schedule, err := h.scheduler.Status(r.Context(), scheduleID)
	if err != nil {
		writePrecomputeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, schedule)
}

// Integrity handles GET /v1/precompute/schedules/{scheduleId}/integrity.
func (h *PrecomputeHandler) Integrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.scheduler.ValidateIntegrity(r.Context(), chi.URLParam(r, "scheduleId"))
	if err != nil {
		writePrecomputeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, report)
}

func writePrecomputeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, precompute.ErrScheduleNotFound):
		response.NotFound(w, r, "schedule not found")
	case errors.Is(err, precompute.ErrScheduleNotRunnable):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		response.InternalError(w, r, "precomputation failed")
	}
}
