package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"poolcare-platform/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFilter narrows job listings.
type ListFilter struct {
	Status  string
	CarerID string
	PoolID  string
	Date    *time.Time // matches jobs whose window starts on this calendar day
	Page    int
	Limit   int
}

// RepositoryInterface defines the persistence operations for job lifecycle
// management. Status-changing updates carry their expected predecessor
// statuses into the WHERE clause so concurrent transitions cannot clobber a
// job that has already moved on; zero rows affected surfaces as
// ErrInvalidTransition.
type RepositoryInterface interface {
	Create(ctx context.Context, job *models.Job) error
	FindByID(ctx context.Context, orgID, jobID string) (*models.Job, error)
	List(ctx context.Context, orgID string, f ListFilter) ([]*models.Job, int, error)
	// HasDuplicate reports whether a non-cancelled job exists for the pool
	// within the duplicate-submission guard window around windowStart.
	HasDuplicate(ctx context.Context, poolID string, windowStart time.Time, guard time.Duration) (bool, error)

	Assign(ctx context.Context, orgID, jobID, carerID string, sequence *int) error
	Unassign(ctx context.Context, orgID, jobID string) error
	UpdateWindow(ctx context.Context, orgID, jobID string, start, end time.Time) error

	MarkStarted(ctx context.Context, orgID, jobID string, at time.Time, etaMinutes *int) error
	MarkArrived(ctx context.Context, orgID, jobID string, at time.Time) error
	MarkCompleted(ctx context.Context, orgID, jobID string, at time.Time) error
	MarkFailed(ctx context.Context, orgID, jobID, code, notes string) error
	MarkCancelled(ctx context.Context, orgID, jobID, code, reason string) error

	FindCarer(ctx context.Context, orgID, carerID string) (*models.Carer, error)
	FindPool(ctx context.Context, orgID, poolID string) (*models.Pool, error)
	UpdateCarerLocation(ctx context.Context, orgID, carerID string, loc models.Location, at time.Time) error

	CreateReading(ctx context.Context, reading *models.Reading) error
	ReadingCoverage(ctx context.Context, jobID string) (models.ReadingCoverage, error)

	// Recipient lookups for the notification side channel.
	ClientEmailForJob(ctx context.Context, orgID, jobID string) (string, error)
	ManagerEmails(ctx context.Context, orgID string) ([]string, error)
}

// Repository implements RepositoryInterface on PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const jobColumns = `
	id, org_id, pool_id, plan_id, window_start, window_end, status,
	carer_id, sequence, eta_minutes, distance_meters,
	started_at, arrived_at, completed_at, cancel_code, fail_code,
	COALESCE(notes, ''), created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	j := &models.Job{}
	err := row.Scan(
		&j.ID, &j.OrgID, &j.PoolID, &j.PlanID, &j.WindowStart, &j.WindowEnd, &j.Status,
		&j.CarerID, &j.Sequence, &j.ETAMinutes, &j.DistanceMeters,
		&j.StartedAt, &j.ArrivedAt, &j.CompletedAt, &j.CancelCode, &j.FailCode,
		&j.Notes, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return j, nil
}

func (r *Repository) Create(ctx context.Context, job *models.Job) error {
	const query = `
		INSERT INTO jobs (id, org_id, pool_id, plan_id, window_start, window_end, status, carer_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		job.ID, job.OrgID, job.PoolID, job.PlanID,
		job.WindowStart, job.WindowEnd, job.Status, job.CarerID, job.Notes,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: a unique constraint on (pool, window) makes the best-effort
		// duplicate guard strict without code changes here.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrDuplicateJob
		}
		return fmt.Errorf("repository.Create: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, orgID, jobID string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE org_id = $1 AND id = $2`
	job, err := scanJob(r.db.QueryRow(ctx, query, orgID, jobID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return job, nil
}

func (r *Repository) List(ctx context.Context, orgID string, f ListFilter) ([]*models.Job, int, error) {
	where := "WHERE org_id = $1"
	args := []any{orgID}

	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.CarerID != "" {
		args = append(args, f.CarerID)
		where += fmt.Sprintf(" AND carer_id = $%d", len(args))
	}
	if f.PoolID != "" {
		args = append(args, f.PoolID)
		where += fmt.Sprintf(" AND pool_id = $%d", len(args))
	}
	if f.Date != nil {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, f.Date.Location())
		args = append(args, day, day.AddDate(0, 0, 1))
		where += fmt.Sprintf(" AND window_start >= $%d AND window_start < $%d", len(args)-1, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM jobs "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.List count: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	query := fmt.Sprintf(
		"SELECT %s FROM jobs %s ORDER BY window_start, sequence NULLS LAST LIMIT $%d OFFSET $%d",
		jobColumns, where, len(args)-1, len(args),
	)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.List: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.List: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository.List: %w", err)
	}
	return jobs, total, nil
}

func (r *Repository) HasDuplicate(ctx context.Context, poolID string, windowStart time.Time, guard time.Duration) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM jobs
			WHERE pool_id = $1
			  AND status <> 'cancelled'
			  AND window_start BETWEEN $2 AND $3
		)`

	var exists bool
	err := r.db.QueryRow(ctx, query, poolID, windowStart.Add(-guard), windowStart.Add(guard)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository.HasDuplicate: %w", err)
	}
	return exists, nil
}

func (r *Repository) Assign(ctx context.Context, orgID, jobID, carerID string, sequence *int) error {
	const query = `
		UPDATE jobs
		SET carer_id = $3,
		    sequence = $4,
		    updated_at = now()
		WHERE org_id = $1 AND id = $2
		  AND status NOT IN ('completed', 'failed', 'cancelled')`

	cmd, err := r.db.Exec(ctx, query, orgID, jobID, carerID, sequence)
	if err != nil {
		return fmt.Errorf("repository.Assign: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func (r *Repository) Unassign(ctx context.Context, orgID, jobID string) error {
	const query = `
		UPDATE jobs
		SET carer_id = NULL,
		    sequence = NULL,
		    eta_minutes = NULL,
		    distance_meters = NULL,
		    updated_at = now()
		WHERE org_id = $1 AND id = $2`

	cmd, err := r.db.Exec(ctx, query, orgID, jobID)
	if err != nil {
		return fmt.Errorf("repository.Unassign: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateWindow(ctx context.Context, orgID, jobID string, start, end time.Time) error {
	const query = `
		UPDATE jobs
		SET window_start = $3,
		    window_end = $4,
		    updated_at = now()
		WHERE org_id = $1 AND id = $2
		  AND status NOT IN ('completed', 'failed', 'cancelled')`

	cmd, err := r.db.Exec(ctx, query, orgID, jobID, start, end)
	if err != nil {
		return fmt.Errorf("repository.UpdateWindow: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func (r *Repository) MarkStarted(ctx context.Context, orgID, jobID string, at time.Time, etaMinutes *int) error {
	const query = `
		UPDATE jobs
		SET status = 'en_route',
		    started_at = COALESCE(started_at, $3),
		    eta_minutes = COALESCE($4, eta_minutes),
		    updated_at = now()
		WHERE org_id = $1 AND id = $2
		  AND status IN ('scheduled', 'en_route')`

	cmd, err := r.db.Exec(ctx, query, orgID, jobID, at, etaMinutes)
	if err != nil {
		return fmt.Errorf("repository.MarkStarted: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func (r *Repository) MarkArrived(ctx context.Context, orgID, jobID string, at time.Time) error {
	const query = `
		UPDATE jobs
		SET status = 'on_site',
		    arrived_at = $3,
		    updated_at = now()
		WHERE org_id = $1 AND id = $2
		  AND status IN ('scheduled', 'en_route')`

	cmd, err := r.db.Exec(ctx, query, orgID, jobID, at)
	if err != nil {
		return fmt.Errorf("repository.MarkArrived: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}

	// Visit entries keep a durable per-visit arrival record even if the job
	// row is later amended.
	const upsert = `
		INSERT INTO visit_entries (job_id, arrived_at)
		VALUES ($1, $2)
		ON CONFLICT (job_id) DO UPDATE SET arrived_at = EXCLUDED.arrived_at`
	if _, err := r.db.Exec(ctx, upsert, jobID, at); err != nil {
		return fmt.Errorf("repository.MarkArrived visit entry: %w", err)
	}
	return nil
}

func (r *Repository) MarkCompleted(ctx context.Context, orgID, jobID string, at time.Time) error {
	const query = `
		UPDATE jobs
		SET status = 'completed',
		    completed_at = $3,
		    updated_at = now()
		WHERE org_id = $1 AND id = $2
		  AND status IN ('scheduled', 'en_route', 'on_site')`

	cmd, err := r.db.Exec(ctx, query, orgID, jobID, at)
	if err != nil {
		return fmt.Errorf("repository.MarkCompleted: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, orgID, jobID, code, notes string) error {
	const query = `
		UPDATE jobs
		SET status = 'failed',
		    fail_code = $3,
		    notes = CASE WHEN $4 <> '' THEN $4 ELSE notes END,
		    updated_at = now()
		WHERE org_id = $1 AND id = $2
		  AND status IN ('scheduled', 'en_route', 'on_site')`

	cmd, err := r.db.Exec(ctx, query, orgID, jobID, code, notes)
	if err != nil {
		return fmt.Errorf("repository.MarkFailed: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func (r *Repository) MarkCancelled(ctx context.Context, orgID, jobID, code, reason string) error {
	const query = `
		UPDATE jobs
		SET status = 'cancelled',
		    cancel_code = $3,
		    notes = CASE WHEN $4 <> '' THEN $4 ELSE notes END,
		    updated_at = now()
		WHERE org_id = $1 AND id = $2
		  AND status IN ('scheduled', 'en_route', 'on_site')`

	cmd, err := r.db.Exec(ctx, query, orgID, jobID, code, reason)
	if err != nil {
		return fmt.Errorf("repository.MarkCancelled: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}
	return nil
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

func (r *Repository) FindPool(ctx context.Context, orgID, poolID string) (*models.Pool, error) {
	const query = `
		SELECT id, org_id, client_id, name, address, lat, lng, volume_l,
		       COALESCE(notes, ''), created_at, updated_at
		FROM pools
		WHERE org_id = $1 AND id = $2`

	p := &models.Pool{}
	err := r.db.QueryRow(ctx, query, orgID, poolID).Scan(
		&p.ID, &p.OrgID, &p.ClientID, &p.Name, &p.Address, &p.Lat, &p.Lng, &p.VolumeL,
		&p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindPool: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdateCarerLocation(ctx context.Context, orgID, carerID string, loc models.Location, at time.Time) error {
	const query = `
		UPDATE carers
		SET current_lat = $3,
		    current_lng = $4,
		    location_at = $5,
		    updated_at = now()
		WHERE org_id = $1 AND id = $2`

	cmd, err := r.db.Exec(ctx, query, orgID, carerID, loc.Lat, loc.Lng, at)
	if err != nil {
		return fmt.Errorf("repository.UpdateCarerLocation: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) CreateReading(ctx context.Context, reading *models.Reading) error {
	const query = `
		INSERT INTO readings (id, job_id, ph, free_chlorine, alkalinity, temp_celsius, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		reading.ID, reading.JobID,
		reading.PH, reading.FreeChlorine, reading.Alkalinity, reading.TempCelsius,
		reading.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.CreateReading: %w", err)
	}
	return nil
}

func (r *Repository) ReadingCoverage(ctx context.Context, jobID string) (models.ReadingCoverage, error) {
	const query = `
		SELECT bool_or(ph IS NOT NULL),
		       bool_or(free_chlorine IS NOT NULL),
		       bool_or(alkalinity IS NOT NULL),
		       bool_or(temp_celsius IS NOT NULL)
		FROM readings
		WHERE job_id = $1`

	var ph, cl, alk, temp *bool
	err := r.db.QueryRow(ctx, query, jobID).Scan(&ph, &cl, &alk, &temp)
	if err != nil {
		return models.ReadingCoverage{}, fmt.Errorf("repository.ReadingCoverage: %w", err)
	}

	deref := func(b *bool) bool { return b != nil && *b }
	return models.ReadingCoverage{
		HasPH:           deref(ph),
		HasFreeChlorine: deref(cl),
		HasAlkalinity:   deref(alk),
		HasTemperature:  deref(temp),
	}, nil
}

func (r *Repository) ClientEmailForJob(ctx context.Context, orgID, jobID string) (string, error) {
	const query = `
		SELECT c.email
		FROM jobs j
		JOIN pools p ON p.id = j.pool_id
		JOIN clients c ON c.id = p.client_id
		WHERE j.org_id = $1 AND j.id = $2`

	var email string
	err := r.db.QueryRow(ctx, query, orgID, jobID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("repository.ClientEmailForJob: %w", err)
	}
	return email, nil
}

func (r *Repository) ManagerEmails(ctx context.Context, orgID string) ([]string, error) {
	const query = `
		SELECT email FROM users
		WHERE org_id = $1 AND role IN ('admin', 'manager')`

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("repository.ManagerEmails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("repository.ManagerEmails: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}
