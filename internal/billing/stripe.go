package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// CheckoutParams describes a subscription checkout for a tenant.
type CheckoutParams struct {
	TenantID      string
	TenantSlug    string
	PlanCode      string
	StripePriceID string
	CustomerEmail string
	CustomerID    string
	SuccessURL    string
	CancelURL     string
}

// Gateway creates hosted payment pages.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
}

// StripeGateway implements Gateway with Stripe Checkout.
type StripeGateway struct{}

// NewStripeGateway configures the Stripe client with the secret key.
func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

// CreateCheckoutSession creates a subscription-mode Checkout Session. The
// tenant id travels as client reference and in both metadata maps so every
// later webhook can be tied back to the tenant.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.StripePriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.TenantID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				metaTenantID: p.TenantID,
				metaPlanCode: p.PlanCode,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metaTenantID, p.TenantID)
	params.AddMetadata(metaPlanCode, p.PlanCode)
	params.AddMetadata("tenant_slug", p.TenantSlug)

	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	} else if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}
