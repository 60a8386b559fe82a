package models

import "time"

// Reading is a water chemistry sample recorded during a visit. Completion
// of a job requires pH, free chlorine, alkalinity and temperature to have
// been recorded on at least one reading for that job.
type Reading struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	PH           *float64  `json:"ph,omitempty"`
	FreeChlorine *float64  `json:"free_chlorine,omitempty"`
	Alkalinity   *float64  `json:"alkalinity,omitempty"`
	TempCelsius  *float64  `json:"temp_celsius,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// CreateReadingRequest records a sample against a job. All measurements are
// optional per-sample; the completion gate checks the union across samples.
type CreateReadingRequest struct {
	PH           *float64 `json:"ph,omitempty" validate:"omitempty,gte=0,lte=14"`
	FreeChlorine *float64 `json:"free_chlorine,omitempty" validate:"omitempty,gte=0"`
	Alkalinity   *float64 `json:"alkalinity,omitempty" validate:"omitempty,gte=0"`
	TempCelsius  *float64 `json:"temp_celsius,omitempty" validate:"omitempty,gte=-5,lte=60"`
}

// ReadingCoverage summarizes which required measurements exist for a job.
type ReadingCoverage struct {
	HasPH           bool
	HasFreeChlorine bool
	HasAlkalinity   bool
	HasTemperature  bool
}

// Complete reports whether every required measurement has been recorded.
func (rc ReadingCoverage) Complete() bool {
	return rc.HasPH && rc.HasFreeChlorine && rc.HasAlkalinity && rc.HasTemperature
}
