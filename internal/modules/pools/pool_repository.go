package pools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"poolcare-platform/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepositoryInterface interface {
	Create(ctx context.Context, pool *models.Pool) error
	FindByID(ctx context.Context, orgID, poolID string) (*models.Pool, error)
	List(ctx context.Context, orgID, clientID string, page, limit int) ([]*models.Pool, int, error)
	Update(ctx context.Context, orgID, poolID string, req models.UpdatePoolRequest) error
	Delete(ctx context.Context, orgID, poolID string) error
	ClientExists(ctx context.Context, orgID, clientID string) (bool, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const poolColumns = `id, org_id, client_id, name, address, lat, lng, volume_l, notes, created_at, updated_at`

func scanPool(row pgx.Row) (*models.Pool, error) {
	var p models.Pool
	err := row.Scan(
		&p.ID, &p.OrgID, &p.ClientID, &p.Name, &p.Address, &p.Lat, &p.Lng,
		&p.VolumeL, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan pool: %w", err)
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, pool *models.Pool) error {
	query := `
		INSERT INTO pools (id, org_id, client_id, name, address, lat, lng, volume_l, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		pool.ID, pool.OrgID, pool.ClientID, pool.Name, pool.Address,
		pool.Lat, pool.Lng, pool.VolumeL, pool.Notes,
	).Scan(&pool.CreatedAt, &pool.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Create pool: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, orgID, poolID string) (*models.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE org_id = $1 AND id = $2`
	return scanPool(r.db.QueryRow(ctx, query, orgID, poolID))
}

func (r *Repository) List(ctx context.Context, orgID, clientID string, page, limit int) ([]*models.Pool, int, error) {
	where := `WHERE org_id = $1`
	args := []any{orgID}
	if clientID != "" {
		args = append(args, clientID)
		where += fmt.Sprintf(" AND client_id = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM pools `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.List pools count: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM pools %s ORDER BY name LIMIT $%d OFFSET $%d`,
		poolColumns, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.List pools: %w", err)
	}
	defer rows.Close()

	var out []*models.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repository) Update(ctx context.Context, orgID, poolID string, req models.UpdatePoolRequest) error {
	sets := []string{"updated_at = now()"}
	args := []any{orgID, poolID}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.Address != nil {
		add("address", *req.Address)
	}
	if req.Lat != nil {
		add("lat", *req.Lat)
	}
	if req.Lng != nil {
		add("lng", *req.Lng)
	}
	if req.VolumeL != nil {
		add("volume_l", *req.VolumeL)
	}
	if req.Notes != nil {
		add("notes", *req.Notes)
	}

	query := `UPDATE pools SET ` + strings.Join(sets, ", ") + ` WHERE org_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repository.Update pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, orgID, poolID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM pools WHERE org_id = $1 AND id = $2`, orgID, poolID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: pool still has jobs", models.ErrConflict)
		}
		return fmt.Errorf("repository.Delete pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) ClientExists(ctx context.Context, orgID, clientID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM clients WHERE org_id = $1 AND id = $2)`,
		orgID, clientID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository.ClientExists: %w", err)
	}
	return exists, nil
}
