package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"poolcare-platform/internal/models"
	"poolcare-platform/internal/modules/dispatch"

	"github.com/google/uuid"
)

// duplicateGuardWindow is the tolerance for the duplicate-submission check:
// two non-cancelled jobs for the same pool may not start within it. This is
// a best-effort guard, not a uniqueness constraint.
const duplicateGuardWindow = 5 * time.Second

// Actor identifies the authenticated caller for guard checks.
type Actor struct {
	UserID   string
	Role     string
	CarerID  *string
	ClientID *string
}

// Elevated reports whether the actor may perform administrative actions.
func (a Actor) Elevated() bool { return models.ElevatedRole(a.Role) }

// ETAServiceInterface is the slice of the dispatch module the jobs module
// uses to keep ETA fields current across transitions.
type ETAServiceInterface interface {
	RecalculateOne(ctx context.Context, orgID, jobID string) (*int, error)
}

// DistanceServiceInterface measures distances for the arrival geofence.
type DistanceServiceInterface interface {
	Distance(ctx context.Context, orgID string, origin, dest models.Location, mode string) (dispatch.DistanceResult, error)
}

// NotifierInterface delivers side-channel notifications. Every call is
// best-effort: failures are logged and never roll back a transition.
type NotifierInterface interface {
	CarerAssigned(ctx context.Context, carer *models.Carer, job *models.Job) error
	JobCompleted(ctx context.Context, job *models.Job) error
	ManagerWeatherAlert(ctx context.Context, job *models.Job, condition string) error
}

// InvoicerInterface creates the draft invoice for a completed job.
type InvoicerInterface interface {
	CreateForJob(ctx context.Context, job *models.Job) (*models.Invoice, error)
}

// ServiceInterface defines the job lifecycle operations.
type ServiceInterface interface {
	Create(ctx context.Context, orgID string, actor Actor, req models.CreateJobRequest) (*models.Job, error)
	Get(ctx context.Context, orgID string, actor Actor, jobID string) (*models.Job, error)
	List(ctx context.Context, orgID string, actor Actor, f ListFilter) ([]*models.Job, int, error)

	Assign(ctx context.Context, orgID string, actor Actor, jobID string, req models.AssignJobRequest) (*models.Job, error)
	Unassign(ctx context.Context, orgID string, actor Actor, jobID string) (*models.Job, error)
	Reschedule(ctx context.Context, orgID string, actor Actor, jobID string, req models.RescheduleJobRequest) (*models.Job, error)

	Start(ctx context.Context, orgID string, actor Actor, jobID string, req models.StartJobRequest) (*models.Job, error)
	Arrive(ctx context.Context, orgID string, actor Actor, jobID string, req models.ArriveJobRequest) (*models.Job, error)
	Complete(ctx context.Context, orgID string, actor Actor, jobID string) (*models.Job, error)
	Fail(ctx context.Context, orgID string, actor Actor, jobID string, req models.FailJobRequest) (*models.Job, error)
	Cancel(ctx context.Context, orgID string, actor Actor, jobID string, req models.CancelJobRequest) (*models.Job, error)
	ReportWeather(ctx context.Context, orgID string, actor Actor, jobID string, req models.WeatherReportRequest) (*models.Job, error)

	AddReading(ctx context.Context, orgID string, actor Actor, jobID string, req models.CreateReadingRequest) (*models.Reading, error)

	// UpdateMyLocation records the calling carer's live position. Fresh
	// positions keep ETA recalculation honest between transitions.
	UpdateMyLocation(ctx context.Context, orgID string, actor Actor, req models.UpdateLocationRequest) error
}

// Service implements the job state machine and its side effects.
type Service struct {
	repo           RepositoryInterface
	etaService     ETAServiceInterface
	distance       DistanceServiceInterface
	notifier       NotifierInterface
	invoicer       InvoicerInterface
	geofenceMeters float64
	now            func() time.Time
}

func NewService(
	repo RepositoryInterface,
	etaService ETAServiceInterface,
	distance DistanceServiceInterface,
	notifier NotifierInterface,
	invoicer InvoicerInterface,
	geofenceMeters float64,
) *Service {
	return &Service{
		repo:           repo,
		etaService:     etaService,
		distance:       distance,
		notifier:       notifier,
		invoicer:       invoicer,
		geofenceMeters: geofenceMeters,
		now:            time.Now,
	}
}

func (s *Service) Create(ctx context.Context, orgID string, actor Actor, req models.CreateJobRequest) (*models.Job, error) {
	if !req.WindowEnd.After(req.WindowStart) {
		return nil, models.ErrInvalidWindow
	}

	// Pool must belong to the caller's organization.
	if _, err := s.repo.FindPool(ctx, orgID, req.PoolID); err != nil {
		return nil, fmt.Errorf("service.Create: %w", err)
	}

	dup, err := s.repo.HasDuplicate(ctx, req.PoolID, req.WindowStart, duplicateGuardWindow)
	if err != nil {
		return nil, fmt.Errorf("service.Create: %w", err)
	}
	if dup {
		return nil, models.ErrDuplicateJob
	}

	if req.CarerID != nil {
		if err := s.checkAssignableCarer(ctx, orgID, *req.CarerID); err != nil {
			return nil, fmt.Errorf("service.Create: %w", err)
		}
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		PoolID:      req.PoolID,
		PlanID:      req.PlanID,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
		Status:      models.JobStatusScheduled,
		CarerID:     req.CarerID,
		Notes:       req.Notes,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("service.Create: %w", err)
	}

	if job.CarerID != nil {
		s.refreshETA(ctx, orgID, job.ID)
	}
	return job, nil
}

func (s *Service) Get(ctx context.Context, orgID string, actor Actor, jobID string) (*models.Job, error) {
	job, err := s.repo.FindByID(ctx, orgID, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Get: %w", err)
	}
	if actor.Role == models.RoleCarer && (actor.CarerID == nil || job.CarerID == nil || *job.CarerID != *actor.CarerID) {
		return nil, models.ErrNotFound // do not leak other carers' jobs
	}
	return job, nil
}

func (s *Service) List(ctx context.Context, orgID string, actor Actor, f ListFilter) ([]*models.Job, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	// Carers only ever see their own route.
	if actor.Role == models.RoleCarer && actor.CarerID != nil {
		f.CarerID = *actor.CarerID
	}
	return s.repo.List(ctx, orgID, f)
}

func (s *Service) Assign(ctx context.Context, orgID string, actor Actor, jobID string, req models.AssignJobRequest) (*models.Job, error) {
	if !actor.Elevated() {
		return nil, models.ErrForbidden
	}
	job, err := s.repo.FindByID(ctx, orgID, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Assign: %w", err)
	}
	if job.Terminal() {
		return nil, fmt.Errorf("%w: cannot assign a %s job", models.ErrInvalidTransition, job.Status)
	}

	if err := s.checkAssignableCarer(ctx, orgID, req.CarerID); err != nil {
		return nil, fmt.Errorf("service.Assign: %w", err)
	}
	if err := s.repo.Assign(ctx, orgID, jobID, req.CarerID, req.Sequence); err != nil {
		return nil, fmt.Errorf("service.Assign: %w", err)
	}

	s.refreshETA(ctx, orgID, jobID)

	job, err = s.repo.FindByID(ctx, orgID, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Assign: %w", err)
	}

	carer, err := s.repo.FindCarer(ctx, orgID, req.CarerID)
	if err == nil {
		s.detach(func(ctx context.Context) error { return s.notifier.CarerAssigned(ctx, carer, job) }, "carer assignment notification")
	}
	return job, nil
}

func (s *Service) Unassign(ctx context.Context, orgID string, actor Actor, jobID string) (*models.Job, error) {
	if !actor.Elevated() {
		return nil, models.ErrForbidden
	}
	if err := s.repo.Unassign(ctx, orgID, jobID); err != nil {
		return nil, fmt.Errorf("service.Unassign: %w", err)
	}
	job, err := s.repo.FindByID(ctx, orgID, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Unassign: %w", err)
	}
	return job, nil
}

func (s *Service) Reschedule(ctx context.Context, orgID string, actor Actor, jobID string, req models.RescheduleJobRequest) (*models.Job, error) {
	if !actor.Elevated() {
		return nil, models.ErrForbidden
	}
	if !req.WindowEnd.After(req.WindowStart) {
		return nil, models.ErrInvalidWindow
	}

	job, err := s.repo.FindByID(ctx, orgID, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Reschedule: %w", err)
	}
	if job.Terminal() {
		return nil, fmt.Errorf("%w: cannot reschedule a %s job", models.ErrInvalidTransition, job.Status)
	}

	if err := s.repo.UpdateWindow(ctx, orgID, jobID, req.WindowStart, req.WindowEnd); err != nil {
		return nil, fmt.Errorf("service.Reschedule: %w", err)
	}

	if job.CarerID != nil {
		s.refreshETA(ctx, orgID, jobID)
	}
	return s.repo.FindByID(ctx, orgID, jobID)
}

func (s *Service) Start(ctx context.Context, orgID string, actor Actor, jobID string, req models.StartJobRequest) (*models.Job, error) {
	job, err := s.loadForCarer(ctx, orgID, actor, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Start: %w", err)
	}
	if _, err := NextStatus(job.Status, ActionStart); err != nil {
		return nil, err
	}
	if !s.isToday(job.WindowStart) {
		return nil, models.ErrJobNotToday
	}

	// No geofence on start, by design: a carer may begin travel before GPS
	// lock. Only arrival is proximity-checked.
	if req.Location != nil {
		if err := s.repo.UpdateCarerLocation(ctx, orgID, *job.CarerID, *req.Location, s.now()); err != nil {
			log.Printf("jobs: update carer location on start: %v", err)
		}
	}

	if err := s.repo.MarkStarted(ctx, orgID, jobID, s.now(), req.ETAMinutes); err != nil {
		return nil, fmt.Errorf("service.Start: %w", err)
	}
	if req.ETAMinutes == nil && req.Location != nil {
		s.refreshETA(ctx, orgID, jobID)
	}
	return s.repo.FindByID(ctx, orgID, jobID)
}

func (s *Service) Arrive(ctx context.Context, orgID string, actor Actor, jobID string, req models.ArriveJobRequest) (*models.Job, error) {
	job, err := s.loadForCarer(ctx, orgID, actor, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Arrive: %w", err)
	}
	if _, err := NextStatus(job.Status, ActionArrive); err != nil {
		return nil, err
	}
	if !s.isToday(job.WindowStart) {
		return nil, models.ErrJobNotToday
	}

	pool, err := s.repo.FindPool(ctx, orgID, job.PoolID)
	if err != nil {
		return nil, fmt.Errorf("service.Arrive: %w", err)
	}
	if poolLoc := pool.Location(); poolLoc != nil {
		if req.Location == nil {
			return nil, models.ErrLocationRequired
		}
		if err := s.checkGeofence(ctx, orgID, *req.Location, *poolLoc); err != nil {
			return nil, err
		}
	}

	at := s.now()
	if req.OccurredAt != nil {
		at = *req.OccurredAt
	}
	if err := s.repo.MarkArrived(ctx, orgID, jobID, at); err != nil {
		return nil, fmt.Errorf("service.Arrive: %w", err)
	}
	return s.repo.FindByID(ctx, orgID, jobID)
}

func (s *Service) Complete(ctx context.Context, orgID string, actor Actor, jobID string) (*models.Job, error) {
	job, err := s.loadForCarer(ctx, orgID, actor, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Complete: %w", err)
	}
	if _, err := NextStatus(job.Status, ActionComplete); err != nil {
		return nil, err
	}

	coverage, err := s.repo.ReadingCoverage(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Complete: %w", err)
	}
	if !coverage.Complete() {
		return nil, models.ErrReadingsIncomplete
	}

	if err := s.repo.MarkCompleted(ctx, orgID, jobID, s.now()); err != nil {
		return nil, fmt.Errorf("service.Complete: %w", err)
	}
	completed, err := s.repo.FindByID(ctx, orgID, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Complete: %w", err)
	}

	// Invoice creation and the client notification are fire-and-forget:
	// their failure must never roll back a completion that succeeded.
	s.detach(func(ctx context.Context) error {
		_, err := s.invoicer.CreateForJob(ctx, completed)
		return err
	}, "invoice auto-creation")
	s.detach(func(ctx context.Context) error { return s.notifier.JobCompleted(ctx, completed) }, "completion notification")

	return completed, nil
}

func (s *Service) Fail(ctx context.Context, orgID string, actor Actor, jobID string, req models.FailJobRequest) (*models.Job, error) {
	job, err := s.loadForCarer(ctx, orgID, actor, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Fail: %w", err)
	}
	if _, err := NextStatus(job.Status, ActionFail); err != nil {
		return nil, err
	}
	if err := s.repo.MarkFailed(ctx, orgID, jobID, req.Code, req.Notes); err != nil {
		return nil, fmt.Errorf("service.Fail: %w", err)
	}
	return s.repo.FindByID(ctx, orgID, jobID)
}

func (s *Service) Cancel(ctx context.Context, orgID string, actor Actor, jobID string, req models.CancelJobRequest) (*models.Job, error) {
	job, err := s.repo.FindByID(ctx, orgID, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.Cancel: %w", err)
	}

	switch {
	case actor.Elevated():
		// Administrative cancel.
	case actor.Role == models.RoleClient && actor.ClientID != nil:
		// Clients may cancel their own non-terminal jobs only.
		pool, err := s.repo.FindPool(ctx, orgID, job.PoolID)
		if err != nil {
			return nil, fmt.Errorf("service.Cancel: %w", err)
		}
		if pool.ClientID != *actor.ClientID {
			return nil, models.ErrForbidden
		}
	default:
		return nil, models.ErrForbidden
	}

	if _, err := NextStatus(job.Status, ActionCancel); err != nil {
		return nil, err
	}
	if err := s.repo.MarkCancelled(ctx, orgID, jobID, req.Code, req.Reason); err != nil {
		return nil, fmt.Errorf("service.Cancel: %w", err)
	}
	return s.repo.FindByID(ctx, orgID, jobID)
}

func (s *Service) ReportWeather(ctx context.Context, orgID string, actor Actor, jobID string, req models.WeatherReportRequest) (*models.Job, error) {
	job, err := s.loadForCarer(ctx, orgID, actor, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.ReportWeather: %w", err)
	}
	if _, err := NextStatus(job.Status, ActionCancel); err != nil {
		return nil, err
	}

	reason := req.Condition
	if req.Notes != "" {
		reason += ": " + req.Notes
	}
	if err := s.repo.MarkCancelled(ctx, orgID, jobID, models.CancelCodeWeather, reason); err != nil {
		return nil, fmt.Errorf("service.ReportWeather: %w", err)
	}
	cancelled, err := s.repo.FindByID(ctx, orgID, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.ReportWeather: %w", err)
	}

	s.detach(func(ctx context.Context) error {
		return s.notifier.ManagerWeatherAlert(ctx, cancelled, req.Condition)
	}, "weather alert")

	return cancelled, nil
}

func (s *Service) AddReading(ctx context.Context, orgID string, actor Actor, jobID string, req models.CreateReadingRequest) (*models.Reading, error) {
	job, err := s.loadForCarer(ctx, orgID, actor, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.AddReading: %w", err)
	}
	if job.Terminal() {
		return nil, fmt.Errorf("%w: cannot record readings on a %s job", models.ErrInvalidTransition, job.Status)
	}

	reading := &models.Reading{
		ID:           uuid.NewString(),
		JobID:        jobID,
		PH:           req.PH,
		FreeChlorine: req.FreeChlorine,
		Alkalinity:   req.Alkalinity,
		TempCelsius:  req.TempCelsius,
		RecordedAt:   s.now(),
	}
	if err := s.repo.CreateReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("service.AddReading: %w", err)
	}
	return reading, nil
}

func (s *Service) UpdateMyLocation(ctx context.Context, orgID string, actor Actor, req models.UpdateLocationRequest) error {
	if actor.CarerID == nil {
		return models.ErrForbidden
	}
	at := s.now()
	if req.RecordedAt != nil {
		at = *req.RecordedAt
	}
	if err := s.repo.UpdateCarerLocation(ctx, orgID, *actor.CarerID, req.Location, at); err != nil {
		return fmt.Errorf("service.UpdateMyLocation: %w", err)
	}
	return nil
}

// ---- guard helpers ----

// loadForCarer loads a job and verifies the actor is its assigned carer.
func (s *Service) loadForCarer(ctx context.Context, orgID string, actor Actor, jobID string) (*models.Job, error) {
	job, err := s.repo.FindByID(ctx, orgID, jobID)
	if err != nil {
		return nil, err
	}
	if actor.CarerID == nil || job.CarerID == nil || *job.CarerID != *actor.CarerID {
		return nil, models.ErrForbidden
	}
	return job, nil
}

func (s *Service) checkAssignableCarer(ctx context.Context, orgID, carerID string) error {
	carer, err := s.repo.FindCarer(ctx, orgID, carerID)
	if err != nil {
		return err
	}
	if !carer.Active {
		return fmt.Errorf("%w: carer is not active", models.ErrInvalidRequest)
	}
	return nil
}

// checkGeofence verifies the reported location is within the arrival radius
// of the pool. Walking-mode distance is preferred; a provider failure falls
// back to the great-circle distance.
func (s *Service) checkGeofence(ctx context.Context, orgID string, reported, pool models.Location) error {
	meters := 0.0
	r, err := s.distance.Distance(ctx, orgID, reported, pool, dispatch.ModeWalking)
	if err != nil {
		meters = dispatch.HaversineMeters(reported, pool)
	} else {
		meters = float64(r.DistanceMeters)
	}
	if meters > s.geofenceMeters {
		return fmt.Errorf("%w: %.0fm away, allowed %.0fm", models.ErrOutsideGeofence, meters, s.geofenceMeters)
	}
	return nil
}

func (s *Service) isToday(t time.Time) bool {
	now := s.now().In(t.Location())
	return now.Year() == t.Year() && now.YearDay() == t.YearDay()
}

// refreshETA recomputes a job's ETA synchronously but tolerates failure:
// stale ETA fields are preferable to failing the primary operation.
func (s *Service) refreshETA(ctx context.Context, orgID, jobID string) {
	if s.etaService == nil {
		return
	}
	if _, err := s.etaService.RecalculateOne(ctx, orgID, jobID); err != nil {
		log.Printf("jobs: recompute ETA for job %s: %v", jobID, err)
	}
}

// detach runs a side effect in the background, detached from the request
// context and shielded from panics. Used for the best-effort side channel.
func (s *Service) detach(fn func(context.Context) error, label string) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("jobs: %s panicked: %v", label, rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("jobs: %s failed: %v", label, err)
		}
	}()
}
