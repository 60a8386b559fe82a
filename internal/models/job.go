package models

import "time"

// Job status values. Transitions between them are enforced by the jobs
// module's state machine; terminal states are never left.
const (
	JobStatusScheduled = "scheduled"
	JobStatusEnRoute   = "en_route"
	JobStatusOnSite    = "on_site"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// Cancel reason codes. CancelCodeWeather is set by the carer-facing
// weather-report path and triggers a manager alert.
const (
	CancelCodeClient  = "client_request"
	CancelCodeAdmin   = "admin"
	CancelCodeWeather = "weather"
)

// Job represents one scheduled service visit to a pool.
type Job struct {
	ID             string     `json:"id"`
	OrgID          string     `json:"org_id"`
	PoolID         string     `json:"pool_id"`
	PlanID         *string    `json:"plan_id,omitempty"`
	WindowStart    time.Time  `json:"window_start"`
	WindowEnd      time.Time  `json:"window_end"`
	Status         string     `json:"status"`
	CarerID        *string    `json:"carer_id,omitempty"`
	Sequence       *int       `json:"sequence,omitempty"` // position within the carer's route for the day
	ETAMinutes     *int       `json:"eta_minutes,omitempty"`
	DistanceMeters *int       `json:"distance_meters,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ArrivedAt      *time.Time `json:"arrived_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CancelCode     *string    `json:"cancel_code,omitempty"`
	FailCode       *string    `json:"fail_code,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CreateJobRequest creates an ad hoc or plan-driven visit.
type CreateJobRequest struct {
	PoolID      string    `json:"pool_id" validate:"required,uuid"`
	PlanID      *string   `json:"plan_id,omitempty" validate:"omitempty,uuid"`
	WindowStart time.Time `json:"window_start" validate:"required"`
	WindowEnd   time.Time `json:"window_end" validate:"required"`
	CarerID     *string   `json:"carer_id,omitempty" validate:"omitempty,uuid"`
	Notes       string    `json:"notes,omitempty"`
}

// AssignJobRequest assigns a carer, optionally at a fixed route position.
type AssignJobRequest struct {
	CarerID  string `json:"carer_id" validate:"required,uuid"`
	Sequence *int   `json:"sequence,omitempty" validate:"omitempty,min=1"`
}

// RescheduleJobRequest moves a job to a new window. Elevated roles only.
type RescheduleJobRequest struct {
	WindowStart time.Time `json:"window_start" validate:"required"`
	WindowEnd   time.Time `json:"window_end" validate:"required"`
	Reason      string    `json:"reason,omitempty"`
}

// StartJobRequest is sent by the assigned carer when beginning travel.
// Location is optional by design: travel may start before GPS lock.
type StartJobRequest struct {
	Location   *Location `json:"location,omitempty"`
	ETAMinutes *int      `json:"eta_minutes,omitempty" validate:"omitempty,min=0"`
}

// ArriveJobRequest is sent by the assigned carer on reaching the pool.
// When the pool has coordinates the location is mandatory and geofenced.
type ArriveJobRequest struct {
	Location   *Location  `json:"location,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// FailJobRequest records a failed visit with a reason code.
type FailJobRequest struct {
	Code  string `json:"code" validate:"required"`
	Notes string `json:"notes,omitempty"`
}

// CancelJobRequest cancels a job administratively or by the owning client.
type CancelJobRequest struct {
	Code   string `json:"code" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

// WeatherReportRequest cancels today's visit due to weather conditions.
type WeatherReportRequest struct {
	Condition string `json:"condition" validate:"required"`
	Notes     string `json:"notes,omitempty"`
}
