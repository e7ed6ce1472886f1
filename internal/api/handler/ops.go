package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rthunborg/sunnyseat-sub000/internal/api/models"
	"github.com/rthunborg/sunnyseat-sub000/internal/api/response"
)

// ReadinessCheck probes one dependency for the readiness endpoint.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	checks    []ReadinessCheck
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, checks ...ReadinessCheck) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		checks:    checks,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Any failing
// dependency makes the whole endpoint report failure.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status, subsystems := h.probe(r.Context())

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.SystemStatus{
		Status:     status,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
	})
}

// SystemStatus handles GET /v1/ops/status - dependency status detail.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status, subsystems := h.probe(r.Context())
	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     status,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
	})
}

func (h *OpsHandler) probe(ctx context.Context) (models.HealthStatus, []models.SubsystemStatus) {
	status := models.HealthStatusOK
	subsystems := make([]models.SubsystemStatus, 0, len(h.checks))

	for _, check := range h.checks {
		sub := models.SubsystemStatus{Name: check.Name, Status: models.HealthStatusOK}
		if err := check.Check(ctx); err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			status = models.HealthStatusFail
		}
		subsystems = append(subsystems, sub)
	}
	return status, subsystems
}
