package billing

import (
	"context"
	"errors"
	"fmt"

	"poolcare-platform/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepositoryInterface interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, orgID, invoiceID string) (*models.Invoice, error)
	ListByClient(ctx context.Context, orgID, clientID string, page, limit int) ([]*models.Invoice, int, error)
	// MarkPaid transitions a SENT or DRAFT invoice to PAID. Returns
	// ErrInvalidTransition when the invoice has already been paid or voided.
	MarkPaid(ctx context.Context, orgID, invoiceID, paymentID string) error
	// ClientForPool resolves the owning client of a pool, used when an
	// invoice is auto-created from a completed job.
	ClientForPool(ctx context.Context, orgID, poolID string) (string, error)
	// PlanRate returns the per-visit amount and currency for a service plan.
	PlanRate(ctx context.Context, orgID, planID string) (float64, string, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const invoiceColumns = `id, org_id, client_id, job_id, amount, currency, status, payment_id, created_at, updated_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	var inv models.Invoice
	err := row.Scan(
		&inv.ID, &inv.OrgID, &inv.ClientID, &inv.JobID, &inv.Amount,
		&inv.Currency, &inv.Status, &inv.PaymentID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	return &inv, nil
}

func (r *Repository) Create(ctx context.Context, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, org_id, client_id, job_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		invoice.ID, invoice.OrgID, invoice.ClientID, invoice.JobID,
		invoice.Amount, invoice.Currency, invoice.Status,
	).Scan(&invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.Create invoice: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, orgID, invoiceID string) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE org_id = $1 AND id = $2`
	return scanInvoice(r.db.QueryRow(ctx, query, orgID, invoiceID))
}

func (r *Repository) ListByClient(ctx context.Context, orgID, clientID string, page, limit int) ([]*models.Invoice, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE org_id = $1 AND client_id = $2`,
		orgID, clientID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByClient count: %w", err)
	}

	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE org_id = $1 AND client_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.db.Query(ctx, query, orgID, clientID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByClient: %w", err)
	}
	defer rows.Close()

	var out []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

func (r *Repository) MarkPaid(ctx context.Context, orgID, invoiceID, paymentID string) error {
	query := `
		UPDATE invoices
		SET status = $3, payment_id = $4, updated_at = now()
		WHERE org_id = $1 AND id = $2 AND status IN ($5, $6)`
	tag, err := r.db.Exec(ctx, query,
		orgID, invoiceID, models.InvoiceStatusPaid, paymentID,
		models.InvoiceStatusDraft, models.InvoiceStatusSent,
	)
	if err != nil {
		return fmt.Errorf("repository.MarkPaid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice is not payable", models.ErrInvalidTransition)
	}
	return nil
}

func (r *Repository) ClientForPool(ctx context.Context, orgID, poolID string) (string, error) {
	var clientID string
	err := r.db.QueryRow(ctx,
		`SELECT client_id FROM pools WHERE org_id = $1 AND id = $2`,
		orgID, poolID,
	).Scan(&clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("repository.ClientForPool: %w", err)
	}
	return clientID, nil
}

func (r *Repository) PlanRate(ctx context.Context, orgID, planID string) (float64, string, error) {
	var amount float64
	var currency string
	err := r.db.QueryRow(ctx,
		`SELECT visit_rate, currency FROM service_plans WHERE org_id = $1 AND id = $2`,
		orgID, planID,
	).Scan(&amount, &currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", models.ErrNotFound
		}
		return 0, "", fmt.Errorf("repository.PlanRate: %w", err)
	}
	return amount, currency, nil
}
