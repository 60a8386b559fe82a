package models

import "time"

// Invoice statuses.
const (
	InvoiceStatusDraft = "DRAFT"
	InvoiceStatusSent  = "SENT"
	InvoiceStatusPaid  = "PAID"
	InvoiceStatusVoid  = "VOID"
)

// Invoice is created automatically when a job completes. Numbering and tax
// computation happen in the billing backoffice, outside this service.
type Invoice struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	ClientID  string    `json:"client_id"`
	JobID     *string   `json:"job_id,omitempty"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	PaymentID *string   `json:"payment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PayInvoiceRequest confirms payment of an invoice with a saved method.
type PayInvoiceRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}
