package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"poolcare-platform/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RouteJob is a job joined with its pool's coordinates, as loaded for route
// optimization and ETA maintenance.
type RouteJob struct {
	models.Job
	PoolLat *float64
	PoolLng *float64
}

// PoolLocation returns the pool coordinates if the pool has been geocoded.
func (rj *RouteJob) PoolLocation() *models.Location {
	if rj.PoolLat == nil || rj.PoolLng == nil {
		return nil
	}
	return &models.Location{Lat: *rj.PoolLat, Lng: *rj.PoolLng}
}

// RepositoryInterface defines the persistence operations the dispatch
// module needs: loading a carer's route for a day, writing back sequences
// and ETA fields, and resolving per-org mapping keys.
type RepositoryInterface interface {
	// JobsForRoute returns a carer's active jobs whose window starts within
	// [dayStart, dayEnd), ordered by current sequence then window start.
	JobsForRoute(ctx context.Context, orgID, carerID string, dayStart, dayEnd time.Time) ([]*RouteJob, error)
	FindRouteJob(ctx context.Context, orgID, jobID string) (*RouteJob, error)
	FindCarer(ctx context.Context, orgID, carerID string) (*models.Carer, error)
	// UpdateJobSequence sets a job's route position. It only touches jobs
	// still in an active status so stale change lists cannot resurrect
	// finished work; the bool reports whether a row was updated.
	UpdateJobSequence(ctx context.Context, orgID, jobID string, sequence int) (bool, error)
	UpdateJobETA(ctx context.Context, orgID, jobID string, etaMinutes, distanceMeters *int) error
	// MapsAPIKey returns the organization's mapping key override, or empty
	// when the org relies on the system default.
	MapsAPIKey(ctx context.Context, orgID string) (string, error)
}

// Repository implements RepositoryInterface on PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const routeJobColumns = `
	j.id, j.org_id, j.pool_id, j.plan_id, j.window_start, j.window_end,
	j.status, j.carer_id, j.sequence, j.eta_minutes, j.distance_meters,
	j.started_at, j.arrived_at, j.completed_at, j.cancel_code, j.fail_code,
	COALESCE(j.notes, ''), j.created_at, j.updated_at, p.lat, p.lng`

func scanRouteJob(row pgx.Row) (*RouteJob, error) {
	rj := &RouteJob{}
	err := row.Scan(
		&rj.ID, &rj.OrgID, &rj.PoolID, &rj.PlanID, &rj.WindowStart, &rj.WindowEnd,
		&rj.Status, &rj.CarerID, &rj.Sequence, &rj.ETAMinutes, &rj.DistanceMeters,
		&rj.StartedAt, &rj.ArrivedAt, &rj.CompletedAt, &rj.CancelCode, &rj.FailCode,
		&rj.Notes, &rj.CreatedAt, &rj.UpdatedAt, &rj.PoolLat, &rj.PoolLng,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan route job: %w", err)
	}
	return rj, nil
}

func (r *Repository) JobsForRoute(ctx context.Context, orgID, carerID string, dayStart, dayEnd time.Time) ([]*RouteJob, error) {
	query := `
		SELECT ` + routeJobColumns + `
		FROM jobs j
		JOIN pools p ON p.id = j.pool_id
		WHERE j.org_id = $1
		  AND j.carer_id = $2
		  AND j.window_start >= $3 AND j.window_start < $4
		  AND j.status IN ('scheduled', 'en_route')
		ORDER BY j.sequence NULLS LAST, j.window_start, j.id`

	rows, err := r.db.Query(ctx, query, orgID, carerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("repository.JobsForRoute: %w", err)
	}
	defer rows.Close()

	var jobs []*RouteJob
	for rows.Next() {
		rj, err := scanRouteJob(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.JobsForRoute: %w", err)
		}
		jobs = append(jobs, rj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.JobsForRoute: %w", err)
	}
	return jobs, nil
}

func (r *Repository) FindRouteJob(ctx context.Context, orgID, jobID string) (*RouteJob, error) {
	query := `
		SELECT ` + routeJobColumns + `
		FROM jobs j
		JOIN pools p ON p.id = j.pool_id
		WHERE j.org_id = $1 AND j.id = $2`

	rj, err := scanRouteJob(r.db.QueryRow(ctx, query, orgID, jobID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindRouteJob: %w", err)
	}
	return rj, nil
}

func (r *Repository) FindCarer(ctx context.Context, orgID, carerID string) (*models.Carer, error) {
	const query = `
		SELECT id, org_id, name, email, COALESCE(phone, ''), active,
		       current_lat, current_lng, location_at, home_lat, home_lng,
		       created_at, updated_at
		FROM carers
		WHERE org_id = $1 AND id = $2`

	c := &models.Carer{}
	err := r.db.QueryRow(ctx, query, orgID, carerID).Scan(
		&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Phone, &c.Active,
		&c.CurrentLat, &c.CurrentLng, &c.LocationAt, &c.HomeLat, &c.HomeLng,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindCarer: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateJobSequence(ctx context.Context, orgID, jobID string, sequence int) (bool, error) {
	const query = `
		UPDATE jobs
		SET sequence = $3,
		    updated_at = now()
		WHERE org_id = $1 AND id = $2
		  AND status IN ('scheduled', 'en_route')`

	cmd, err := r.db.Exec(ctx, query, orgID, jobID, sequence)
	if err != nil {
		return false, fmt.Errorf("repository.UpdateJobSequence: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *Repository) UpdateJobETA(ctx context.Context, orgID, jobID string, etaMinutes, distanceMeters *int) error {
	const query = `
		UPDATE jobs
		SET eta_minutes = $3,
		    distance_meters = $4,
		    updated_at = now()
		WHERE org_id = $1 AND id = $2`

	cmd, err := r.db.Exec(ctx, query, orgID, jobID, etaMinutes, distanceMeters)
	if err != nil {
		return fmt.Errorf("repository.UpdateJobETA: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) MapsAPIKey(ctx context.Context, orgID string) (string, error) {
	const query = `
		SELECT COALESCE(maps_api_key, '')
		FROM org_settings
		WHERE org_id = $1`

	var key string
	if err := r.db.QueryRow(ctx, query, orgID).Scan(&key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil // no override configured
		}
		return "", fmt.Errorf("repository.MapsAPIKey: %w", err)
	}
	return key, nil
}
