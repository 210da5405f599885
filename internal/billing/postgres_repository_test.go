package billing_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencia-vs/acreditaciones/internal/billing"
	"github.com/agencia-vs/acreditaciones/internal/database/dbtest"
)

func TestBillingRepository_PlansAndSubscriptions(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := billing.NewRepository(pool)
	ctx := context.Background()

	for _, p := range billing.DefaultPlans {
		p := p
		require.NoError(t, repo.CreatePlan(ctx, &p))
	}
	dup := billing.Plan{Code: "pro", Name: "Again", MaxEvents: 1, MaxRegistrationsPerEvent: 1}
	assert.ErrorIs(t, repo.CreatePlan(ctx, &dup), billing.ErrDuplicatePlan)

	plans, err := repo.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "free", plans[0].Code)

	pro, err := repo.GetPlanByCode(ctx, "pro")
	require.NoError(t, err)
	_, err = repo.GetPlanByStripePrice(ctx, "")
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)

	var tenantID uuid.UUID
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO tenants (slug, name) VALUES ('club', 'Club') RETURNING id`).Scan(&tenantID))

	_, err = repo.GetSubscription(ctx, tenantID)
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)

	subID := "sub_123"
	sub := &billing.Subscription{TenantID: tenantID, PlanID: pro.ID, Status: billing.StatusActive,
		StripeCustomerID: "cus_1", StripeSubscriptionID: &subID}
	require.NoError(t, repo.UpsertSubscription(ctx, sub))

	// A later upsert without Stripe ids keeps the stored ones.
	again := &billing.Subscription{TenantID: tenantID, PlanID: pro.ID, Status: billing.StatusTrialing}
	require.NoError(t, repo.UpsertSubscription(ctx, again))
	assert.Equal(t, sub.ID, again.ID)

	got, err := repo.GetSubscriptionByStripeID(ctx, "sub_123")
	require.NoError(t, err)
	assert.Equal(t, "pro", got.PlanCode)
	assert.Equal(t, billing.StatusTrialing, got.Status)
	assert.Equal(t, "cus_1", got.StripeCustomerID)

	byCustomer, err := repo.GetSubscriptionByCustomer(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, tenantID, byCustomer.TenantID)

	require.NoError(t, repo.SetSubscriptionStatus(ctx, got.ID, billing.StatusPastDue))
	got, err = repo.GetSubscription(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPastDue, got.Status)
	assert.ErrorIs(t, repo.SetSubscriptionStatus(ctx, uuid.New(), billing.StatusActive), billing.ErrSubscriptionNotFound)
}

func TestBillingRepository_WebhookEvents(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := billing.NewRepository(pool)
	ctx := context.Background()

	fresh, err := repo.MarkEvent(ctx, "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = repo.MarkEvent(ctx, "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, repo.UnmarkEvent(ctx, "evt_1"))
	fresh, err = repo.MarkEvent(ctx, "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	assert.True(t, fresh)
}
