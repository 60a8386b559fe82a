package notification

import (
	"context"
	"fmt"
	"log"

	"poolcare-platform/internal/models"
)

// Directory resolves notification recipients. Implemented by the jobs
// repository so the notifier stays free of persistence concerns.
type Directory interface {
	ClientEmailForJob(ctx context.Context, orgID, jobID string) (string, error)
	ManagerEmails(ctx context.Context, orgID string) ([]string, error)
}

// EmailNotifier sends the platform's operational emails, with an optional
// SMS channel for carer-facing messages. Callers treat every method as
// best-effort.
type EmailNotifier struct {
	sender EmailSender
	sms    SMSSender // nil disables the SMS channel
	dir    Directory
}

func NewEmailNotifier(sender EmailSender, sms SMSSender, dir Directory) *EmailNotifier {
	return &EmailNotifier{sender: sender, sms: sms, dir: dir}
}

func (n *EmailNotifier) CarerAssigned(ctx context.Context, carer *models.Carer, job *models.Job) error {
	window := fmt.Sprintf("%s to %s",
		job.WindowStart.Format("Mon 2 Jan 15:04"),
		job.WindowEnd.Format("15:04"))

	if n.sms != nil && carer.Phone != "" {
		if err := n.sms.SendSMS(ctx, carer.Phone, "New pool visit assigned, window "+window+"."); err != nil {
			log.Printf("notification: sms to carer %s: %v", carer.ID, err)
		}
	}
	if carer.Email == "" {
		return nil
	}
	subject := "New visit assigned"
	body := fmt.Sprintf(
		"Hi %s,\n\nA pool visit has been assigned to you.\nWindow: %s.\n\nCheck your route for details.",
		carer.Name, window,
	)
	return n.sender.Send(ctx, []string{carer.Email}, subject, body)
}

func (n *EmailNotifier) JobCompleted(ctx context.Context, job *models.Job) error {
	email, err := n.dir.ClientEmailForJob(ctx, job.OrgID, job.ID)
	if err != nil {
		return fmt.Errorf("resolve client email: %w", err)
	}
	if email == "" {
		return nil
	}
	when := "today"
	if job.CompletedAt != nil {
		when = job.CompletedAt.Format("Mon 2 Jan 15:04")
	}
	subject := "Your pool service is complete"
	body := fmt.Sprintf(
		"Your pool was serviced on %s. Water chemistry readings were recorded during the visit.",
		when,
	)
	return n.sender.Send(ctx, []string{email}, subject, body)
}

func (n *EmailNotifier) ManagerWeatherAlert(ctx context.Context, job *models.Job, condition string) error {
	emails, err := n.dir.ManagerEmails(ctx, job.OrgID)
	if err != nil {
		return fmt.Errorf("resolve manager emails: %w", err)
	}
	subject := "Visit cancelled: " + condition
	body := fmt.Sprintf(
		"A carer reported %s and cancelled job %s (window %s to %s). The visit needs rescheduling.",
		condition, job.ID,
		job.WindowStart.Format("Mon 2 Jan 15:04"),
		job.WindowEnd.Format("15:04"),
	)
	return n.sender.Send(ctx, emails, subject, body)
}

// LogNotifier is the stand-in used when no email sender is configured.
type LogNotifier struct{}

func (LogNotifier) CarerAssigned(_ context.Context, carer *models.Carer, job *models.Job) error {
	log.Printf("notification: carer %s assigned to job %s", carer.ID, job.ID)
	return nil
}

func (LogNotifier) JobCompleted(_ context.Context, job *models.Job) error {
	log.Printf("notification: job %s completed", job.ID)
	return nil
}

func (LogNotifier) ManagerWeatherAlert(_ context.Context, job *models.Job, condition string) error {
	log.Printf("notification: weather alert (%s) for job %s", condition, job.ID)
	return nil
}
