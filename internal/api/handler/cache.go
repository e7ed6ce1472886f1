package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rthunborg/sunnyseat-sub000/internal/api/models"
	"github.com/rthunborg/sunnyseat-sub000/internal/api/response"
	"github.com/rthunborg/sunnyseat-sub000/internal/cache"
)

// CacheHandler exposes cache operations.
type CacheHandler struct {
	cache *cache.Layered
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(layered *cache.Layered) *CacheHandler {
	return &CacheHandler{cache: layered}
}

// Invalidate handles POST /v1/cache/patios/{patioId}/invalidate. It drops
// every cached slot for the patio across the invalidation window.
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	patioID := chi.URLParam(r, "patioId")

	deleted, err := h.cache.Invalidate(r.Context(), patioID)
	if err != nil {
		response.InternalError(w, r, "cache invalidation incomplete")
		return
	}
	response.JSON(w, r, http.StatusOK, models.InvalidateResponse{
		PatioID:        patioID,
		DeletedEntries: deleted,
	})
}

// Health handles GET /v1/cache/health.
func (h *CacheHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.cache.Health(r.Context())

	status := http.StatusOK
	if health.Status == cache.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// Metrics handles GET /v1/cache/metrics.
func (h *CacheHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"tiers": h.cache.Metrics(),
	})
}
