package models

// BatchExposureRequest asks for exposure of many patios at one instant.
type BatchExposureRequest struct {
	PatioIDs []string `json:"patioIds" validate:"required,min=1,max=100"`

	// Timestamp defaults to now when omitted.
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// BestWindowsRequest asks for ranked sun windows across patios for a date.
type BestWindowsRequest struct {
	PatioIDs []string `json:"patioIds" validate:"required,min=1,max=100"`
	Date     string   `json:"date" validate:"required,datetime=2006-01-02"`
}

// ScheduleRequest registers a precomputation run.
type ScheduleRequest struct {
	Date     string   `json:"date" validate:"required,datetime=2006-01-02"`
	PatioIDs []string `json:"patioIds,omitempty"`
}

// InvalidateResponse reports the result of a cache invalidation.
type InvalidateResponse struct {
	PatioID        string `json:"patioId"`
	DeletedEntries int    `json:"deletedEntries"`
}
