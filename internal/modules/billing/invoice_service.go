package billing

import (
	"context"
	"errors"
	"fmt"

	"poolcare-platform/internal/models"
	"poolcare-platform/pkg/payment"

	"github.com/google/uuid"
)

// Default per-visit rate when the job carries no service plan.
const (
	defaultVisitAmount   = 0.0
	defaultVisitCurrency = "usd"
)

type ServiceInterface interface {
	// CreateForJob creates a draft invoice for a completed job. Invoked as a
	// fire-and-forget side effect of job completion.
	CreateForJob(ctx context.Context, job *models.Job) (*models.Invoice, error)
	Get(ctx context.Context, orgID, invoiceID string) (*models.Invoice, error)
	ListByClient(ctx context.Context, orgID, clientID string, page, limit int) ([]*models.Invoice, int, error)
	// Pay charges the invoice with a saved payment method and marks it paid.
	Pay(ctx context.Context, orgID, invoiceID string, req models.PayInvoiceRequest) (*models.Invoice, error)
}

type service struct {
	repo      RepositoryInterface
	processor payment.ServiceInterface
}

func NewService(repo RepositoryInterface, processor payment.ServiceInterface) ServiceInterface {
	return &service{repo: repo, processor: processor}
}

func (s *service) CreateForJob(ctx context.Context, job *models.Job) (*models.Invoice, error) {
	clientID, err := s.repo.ClientForPool(ctx, job.OrgID, job.PoolID)
	if err != nil {
		return nil, fmt.Errorf("service.CreateForJob: %w", err)
	}

	amount := defaultVisitAmount
	currency := defaultVisitCurrency
	if job.PlanID != nil {
		rate, cur, err := s.repo.PlanRate(ctx, job.OrgID, *job.PlanID)
		if err != nil {
			// An ad hoc plan lookup miss degrades to a zero-amount draft the
			// billing backoffice fills in.
			if !errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("service.CreateForJob: %w", err)
			}
		} else {
			amount, currency = rate, cur
		}
	}

	invoice := &models.Invoice{
		ID:       uuid.NewString(),
		OrgID:    job.OrgID,
		ClientID: clientID,
		JobID:    &job.ID,
		Amount:   amount,
		Currency: currency,
		Status:   models.InvoiceStatusDraft,
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("service.CreateForJob: %w", err)
	}
	return invoice, nil
}

func (s *service) Get(ctx context.Context, orgID, invoiceID string) (*models.Invoice, error) {
	return s.repo.FindByID(ctx, orgID, invoiceID)
}

func (s *service) ListByClient(ctx context.Context, orgID, clientID string, page, limit int) ([]*models.Invoice, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByClient(ctx, orgID, clientID, page, limit)
}

func (s *service) Pay(ctx context.Context, orgID, invoiceID string, req models.PayInvoiceRequest) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, orgID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("service.Pay: %w", err)
	}
	if invoice.Status == models.InvoiceStatusPaid || invoice.Status == models.InvoiceStatusVoid {
		return nil, fmt.Errorf("%w: invoice is %s", models.ErrInvalidTransition, invoice.Status)
	}

	paymentID, err := s.processor.ProcessPayment(ctx, invoice.ClientID, invoice.Amount, invoice.Currency, req.PaymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("service.Pay: %w", err)
	}

	if err := s.repo.MarkPaid(ctx, orgID, invoiceID, paymentID); err != nil {
		// The charge went through but the status write lost a race; surface
		// the payment ID in the error for manual reconciliation.
		return nil, fmt.Errorf("service.Pay: payment %s succeeded but invoice update failed: %w", paymentID, err)
	}
	return s.repo.FindByID(ctx, orgID, invoiceID)
}
