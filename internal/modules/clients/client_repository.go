package clients

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
	Create(ctx context.Context, client *models.Client) error
	FindByID(ctx context.Context, orgID, clientID string) (*models.Client, error)
	List(ctx context.Context, orgID string, page, limit int) ([]*models.Client, int, error)
	Update(ctx context.Context, orgID, clientID string, req models.UpdateClientRequest) error
	Delete(ctx context.Context, orgID, clientID string) error
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const clientColumns = `id, org_id, user_id, name, email, phone, address, created_at, updated_at`

func scanClient(row pgx.Row) (*models.Client, error) {
	var cl models.Client
	err := row.Scan(
		&cl.ID, &cl.OrgID, &cl.UserID, &cl.Name, &cl.Email, &cl.Phone,
		&cl.Address, &cl.CreatedAt, &cl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan client: %w", err)
	}
	return &cl, nil
}

func (r *Repository) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (id, org_id, name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		client.ID, client.OrgID, client.Name, client.Email, client.Phone, client.Address,
	).Scan(&client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: client email already exists", models.ErrConflict)
		}
		return fmt.Errorf("repository.Create client: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, orgID, clientID string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE org_id = $1 AND id = $2`
	return scanClient(r.db.QueryRow(ctx, query, orgID, clientID))
}

func (r *Repository) List(ctx context.Context, orgID string, page, limit int) ([]*models.Client, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE org_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.List clients count: %w", err)
	}

	query := `SELECT ` + clientColumns + ` FROM clients WHERE org_id = $1 ORDER BY name LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, orgID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.List clients: %w", err)
	}
	defer rows.Close()

	var out []*models.Client
	for rows.Next() {
		cl, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, cl)
	}
	return out, total, rows.Err()
}

func (r *Repository) Update(ctx context.Context, orgID, clientID string, req models.UpdateClientRequest) error {
	sets := []string{"updated_at = now()"}
	args := []any{orgID, clientID}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.Email != nil {
		add("email", *req.Email)
	}
	if req.Phone != nil {
		add("phone", *req.Phone)
	}
	if req.Address != nil {
		add("address", *req.Address)
	}

	query := `UPDATE clients SET ` + strings.Join(sets, ", ") + ` WHERE org_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repository.Update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, orgID, clientID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE org_id = $1 AND id = $2`, orgID, clientID)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503: pools or invoices still reference this client.
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: client still has pools or invoices", models.ErrConflict)
		}
		return fmt.Errorf("repository.Delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
