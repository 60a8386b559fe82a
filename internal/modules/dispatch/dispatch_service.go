package dispatch

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"poolcare-platform/internal/models"

	"github.com/google/uuid"
)

// ServiceInterface defines the dispatch operations exposed to handlers and
// to the jobs module (ETA maintenance on state transitions).
type ServiceInterface interface {
	// Optimize previews a reordering of one carer's route for a date. It
	// never mutates persisted state; the caller must echo the change list
	// back through Apply to commit it.
	Optimize(ctx context.Context, orgID string, req models.OptimizeRequest) (*models.OptimizeResponse, error)
	// Apply persists the sequence values from a previewed change list.
	// Re-applying the same change list is idempotent.
	Apply(ctx context.Context, orgID string, req models.ApplyRequest) (*models.ApplyResponse, error)
	// RecalculateOne recomputes and persists a job's ETA and distance from
	// its carer's position. A job whose carer or pool location is unknown
	// yields a nil ETA without error.
	RecalculateOne(ctx context.Context, orgID, jobID string) (*int, error)
	// RecalculateForCarerToday refreshes every active job on the carer's
	// route for today and returns how many were updated.
	RecalculateForCarerToday(ctx context.Context, orgID, carerID string) (int, error)
}

type service struct {
	repo     RepositoryInterface
	provider DistanceProvider
	now      func() time.Time
}

func NewService(repo RepositoryInterface, provider DistanceProvider) ServiceInterface {
	return &service{repo: repo, provider: provider, now: time.Now}
}

// distanceFn wraps the provider with the Haversine fallback so routing
// never fails on a provider outage.
func (s *service) distanceFn(ctx context.Context, orgID, mode string) distanceFunc {
	return func(from, to models.Location) (DistanceResult, error) {
		r, err := s.provider.Distance(ctx, orgID, from, to, mode)
		if err != nil {
			return FallbackEstimate(from, to, mode), nil
		}
		return r, nil
	}
}

func (s *service) Optimize(ctx context.Context, orgID string, req models.OptimizeRequest) (*models.OptimizeResponse, error) {
	if req.CarerID == nil {
		return nil, fmt.Errorf("%w: carer_id is required", models.ErrInvalidRequest)
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", models.ErrInvalidRequest)
	}
	dayEnd := day.AddDate(0, 0, 1)

	carer, err := s.repo.FindCarer(ctx, orgID, *req.CarerID)
	if err != nil {
		return nil, fmt.Errorf("service.Optimize: %w", err)
	}

	jobs, err := s.repo.JobsForRoute(ctx, orgID, carer.ID, day, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("service.Optimize: %w", err)
	}

	// Jobs without pool coordinates cannot be distance-optimized; they keep
	// their relative order and report zero-distance legs.
	var stops []routeStop
	var unlocated []*RouteJob
	for _, j := range jobs {
		loc := j.PoolLocation()
		if loc == nil {
			unlocated = append(unlocated, j)
			continue
		}
		stops = append(stops, routeStop{
			JobID:       j.ID,
			Sequence:    j.Sequence,
			WindowStart: j.WindowStart,
			Location:    *loc,
		})
	}

	resp := &models.OptimizeResponse{
		OptimizationID: uuid.NewString(),
		Changes:        []models.RouteChange{},
	}

	fromSeqs := make(map[string]*int, len(jobs))
	for _, j := range jobs {
		fromSeqs[j.ID] = j.Sequence
	}

	if len(stops) < 2 {
		// Nothing worth reordering: renumber the existing order as-is
		// without touching the distance provider.
		seq := 0
		for _, j := range jobs {
			seq++
			resp.Changes = append(resp.Changes, models.RouteChange{
				JobID:   j.ID,
				FromSeq: j.Sequence,
				ToSeq:   seq,
			})
		}
		return resp, nil
	}

	// Start from the carer's live location, else home base, else the first
	// job's pool.
	start := carer.StartingLocation()
	if start == nil {
		start = &stops[0].Location
	}

	dist := s.distanceFn(ctx, orgID, ModeDriving)

	currentMeters, currentSeconds := routeMetrics(*start, stops, dist)
	plan := nearestNeighborPlan(*start, day, stops, dist)

	seq := 0
	for _, leg := range plan.Legs {
		seq++
		resp.Changes = append(resp.Changes, models.RouteChange{
			JobID:       leg.Stop.JobID,
			FromSeq:     fromSeqs[leg.Stop.JobID],
			ToSeq:       seq,
			ETA:         leg.Arrival.Format("15:04"),
			DistanceKm:  roundKm(leg.Distance),
			DurationMin: int(math.Ceil(float64(leg.Duration) / 60.0)),
		})
	}
	for _, j := range unlocated {
		seq++
		resp.Changes = append(resp.Changes, models.RouteChange{
			JobID:   j.ID,
			FromSeq: j.Sequence,
			ToSeq:   seq,
		})
	}

	resp.Summary = models.OptimizationSummary{
		CurrentDistanceKm:   roundKm(currentMeters),
		OptimizedDistanceKm: roundKm(plan.TotalDistanceMeters),
		// Never report negative savings: a worse reordering is a wash.
		SavingsKm:  math.Max(0, roundKm(currentMeters-plan.TotalDistanceMeters)),
		SavingsMin: maxInt(0, (currentSeconds-plan.TotalDurationSeconds)/60),
	}
	return resp, nil
}

func (s *service) Apply(ctx context.Context, orgID string, req models.ApplyRequest) (*models.ApplyResponse, error) {
	if len(req.Changes) == 0 {
		return nil, fmt.Errorf("%w: changes must not be empty", models.ErrInvalidRequest)
	}

	updated := 0
	for _, change := range req.Changes {
		ok, err := s.repo.UpdateJobSequence(ctx, orgID, change.JobID, change.ToSeq)
		if err != nil {
			return nil, fmt.Errorf("service.Apply: %w", err)
		}
		// A change whose job has finished or been reassigned since the
		// preview is skipped rather than failing the whole apply.
		if ok {
			updated++
		}
	}

	return &models.ApplyResponse{
		Success:        true,
		OptimizationID: req.OptimizationID,
		JobsUpdated:    updated,
	}, nil
}

func (s *service) RecalculateOne(ctx context.Context, orgID, jobID string) (*int, error) {
	job, err := s.repo.FindRouteJob(ctx, orgID, jobID)
	if err != nil {
		return nil, fmt.Errorf("service.RecalculateOne: %w", err)
	}

	poolLoc := job.PoolLocation()
	if job.CarerID == nil || poolLoc == nil {
		return nil, nil
	}

	carer, err := s.repo.FindCarer(ctx, orgID, *job.CarerID)
	if err != nil {
		return nil, fmt.Errorf("service.RecalculateOne: %w", err)
	}
	start := carer.StartingLocation()
	if start == nil {
		return nil, nil
	}

	r, err := s.provider.Distance(ctx, orgID, *start, *poolLoc, ModeDriving)
	if err != nil {
		r = FallbackEstimate(*start, *poolLoc, ModeDriving)
	}

	eta := int(math.Ceil(float64(r.DurationSeconds) / 60.0))
	meters := r.DistanceMeters
	if err := s.repo.UpdateJobETA(ctx, orgID, jobID, &eta, &meters); err != nil {
		return nil, fmt.Errorf("service.RecalculateOne: %w", err)
	}
	return &eta, nil
}

func (s *service) RecalculateForCarerToday(ctx context.Context, orgID, carerID string) (int, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	jobs, err := s.repo.JobsForRoute(ctx, orgID, carerID, dayStart, dayEnd)
	if err != nil {
		return 0, fmt.Errorf("service.RecalculateForCarerToday: %w", err)
	}

	updated := 0
	for _, j := range jobs {
		eta, err := s.RecalculateOne(ctx, orgID, j.ID)
		if err != nil {
			// Individual failures never abort the batch.
			log.Printf("dispatch: recalculate ETA for job %s: %v", j.ID, err)
			continue
		}
		if eta != nil {
			updated++
		}
	}
	return updated, nil
}

func roundKm(meters int) float64 {
	return math.Round(float64(meters)/1000.0*100) / 100
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
