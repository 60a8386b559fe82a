package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// ServiceInterface defines the contract for a payment processing service.
type ServiceInterface interface {
	// ProcessPayment charges the amount (in the invoice currency) against a
	// saved payment method and returns the processor's payment ID.
	ProcessPayment(ctx context.Context, customerRef string, amount float64, currency, paymentMethodID string) (string, error)
}

// StripeService processes payments through Stripe PaymentIntents.
type StripeService struct{}

func NewStripeService(apiKey string) *StripeService {
	stripe.Key = apiKey
	return &StripeService{}
}

func (s *StripeService) ProcessPayment(ctx context.Context, customerRef string, amount float64, currency, paymentMethodID string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("invalid payment amount %.2f", amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(int64(amount * 100)), // smallest currency unit
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
		// Off-session: the client confirmed the saved method earlier.
		OffSession: stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata("customer_ref", customerRef)

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("stripe payment intent %s in status %s", pi.ID, pi.Status)
	}
	return pi.ID, nil
}
