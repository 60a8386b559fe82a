package models

import "errors"

var ErrNotFound = errors.New("requested resource not found")
var ErrForbidden = errors.New("user does not have permission to access this resource")
var ErrConflict = errors.New("resource conflict, item already exists")
var ErrInvalidToken = errors.New("token not found or expired")
var ErrInvalidCredentials = errors.New("invalid credentials") // email or password provided does not match database record
var ErrInvalidRequest = errors.New("invalid request")

// ErrInvalidWindow indicates that a job's scheduled window end is not after
// its start. Enforced at creation and reschedule.
var ErrInvalidWindow = errors.New("window end must be after window start")

// ErrDuplicateJob indicates another non-cancelled job already exists for the
// same pool within the duplicate-submission guard window.
var ErrDuplicateJob = errors.New("a job for this pool already exists at this time")

// Precondition failures: the requested state transition is not allowed from
// the job's current state, or a transition guard was violated.
var ErrInvalidTransition = errors.New("job status does not allow this transition")
var ErrJobNotToday = errors.New("job is not scheduled for today")
var ErrOutsideGeofence = errors.New("reported location is outside the arrival geofence")
var ErrLocationRequired = errors.New("a location is required to mark arrival at this pool")
var ErrReadingsIncomplete = errors.New("pH, free chlorine, alkalinity and temperature readings are required before completion")

// ErrProviderUnavailable indicates the mapping/distance API is misconfigured
// or failing and no coordinate fallback is acceptable for the request.
var ErrProviderUnavailable = errors.New("mapping provider unavailable")

// ErrorResponse is the standard JSON error body returned by all handlers.
type ErrorResponse struct {
	Message string `json:"message"`
}
