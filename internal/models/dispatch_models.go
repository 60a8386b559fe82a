package models

import "time"

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// OptimizeRequest asks for a route preview for one carer's jobs on a date.
type OptimizeRequest struct {
	Date    string  `json:"date" validate:"required,datetime=2006-01-02"`
	CarerID *string `json:"carer_id,omitempty" validate:"omitempty,uuid"`
}

// RouteChange is one reordered stop in an optimization preview.
type RouteChange struct {
	JobID       string  `json:"job_id"`
	FromSeq     *int    `json:"from_seq,omitempty"`
	ToSeq       int     `json:"to_seq"`
	ETA         string  `json:"eta,omitempty"` // HH:MM estimated arrival
	DistanceKm  float64 `json:"distance_km"`   // leg distance from the previous stop
	DurationMin int     `json:"duration_min"`  // leg travel time
}

// OptimizationSummary aggregates savings over the whole route. Savings are
// floored at zero: a worse-or-equal reordering reports no savings.
type OptimizationSummary struct {
	SavingsKm           float64 `json:"savings_km"`
	SavingsMin          int     `json:"savings_min"`
	CurrentDistanceKm   float64 `json:"current_distance_km"`
	OptimizedDistanceKm float64 `json:"optimized_distance_km"`
}

// OptimizeResponse is the preview returned to the caller. It is not stored
// server-side: the caller must echo the change list back on apply.
type OptimizeResponse struct {
	OptimizationID string              `json:"optimization_id"`
	Summary        OptimizationSummary `json:"summary"`
	Changes        []RouteChange       `json:"changes"`
}

// ApplyRequest commits a previously previewed change list.
type ApplyRequest struct {
	OptimizationID string        `json:"optimization_id" validate:"required"`
	Changes        []RouteChange `json:"changes" validate:"required,dive"`
}

// ApplyResponse reports how many jobs actually had their sequence updated.
type ApplyResponse struct {
	Success        bool   `json:"success"`
	OptimizationID string `json:"optimization_id"`
	JobsUpdated    int    `json:"jobs_updated"`
}

// RecalcResponse reports the outcome of a batch ETA recalculation.
type RecalcResponse struct {
	CarerID string `json:"carer_id"`
	Updated int    `json:"updated"`
}

// UpdateLocationRequest reports a carer's live position.
type UpdateLocationRequest struct {
	Location   Location   `json:"location" validate:"required"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}
