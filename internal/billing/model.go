// Package billing meters tenants against their plan and keeps subscriptions
// in sync with Stripe.
package billing

import (
	"time"

	"github.com/google/uuid"
)

// Subscription statuses.
const (
	StatusIncomplete = "incomplete"
	StatusTrialing   = "trialing"
	StatusActive     = "active"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
)

// FreePlanCode identifies the plan applied to tenants without a paid subscription.
const FreePlanCode = "free"

// Plan represents a row in the billing_plans table.
type Plan struct {
	ID                       uuid.UUID
	Code                     string
	Name                     string
	PriceCents               int64
	Currency                 string
	MaxEvents                int
	MaxRegistrationsPerEvent int
	StripePriceID            string
	CreatedAt                time.Time
}

// Subscription represents a row in the subscriptions table.
type Subscription struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	PlanID               uuid.UUID
	PlanCode             string
	Status               string
	StripeCustomerID     string
	StripeSubscriptionID *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Entitled reports whether the subscription grants its plan's limits.
func (s *Subscription) Entitled() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// Limits are the effective plan limits for a tenant.
type Limits struct {
	PlanCode                 string `json:"planCode"`
	MaxEvents                int    `json:"maxEvents"`
	MaxRegistrationsPerEvent int    `json:"maxRegistrationsPerEvent"`
}

// FreeLimits apply when the free plan has not been seeded.
var FreeLimits = Limits{PlanCode: FreePlanCode, MaxEvents: 1, MaxRegistrationsPerEvent: 50}

// DefaultPlans are created by the plans seed command.
var DefaultPlans = []Plan{
	{Code: FreePlanCode, Name: "Gratis", Currency: "clp", MaxEvents: 1, MaxRegistrationsPerEvent: 50},
	{Code: "pro", Name: "Profesional", PriceCents: 4990000, Currency: "clp", MaxEvents: 20, MaxRegistrationsPerEvent: 1000},
	{Code: "enterprise", Name: "Empresa", PriceCents: 19990000, Currency: "clp", MaxEvents: 500, MaxRegistrationsPerEvent: 20000},
}

// Usage compares a tenant's consumption with its limits.
type Usage struct {
	Limits
	Status                 string `json:"status"`
	Events                 int    `json:"events"`
	RegistrationsThisMonth int    `json:"registrationsThisMonth"`
}

// CheckoutSession is the hosted payment page created for a plan upgrade.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
