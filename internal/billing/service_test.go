package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/agencia-vs/acreditaciones/internal/audit"
	"github.com/agencia-vs/acreditaciones/internal/billing"
)

const testWebhookSecret = "whsec_test"

// memRepo is an in-memory billing.Repository.
type memRepo struct {
	plans     map[string]*billing.Plan
	subs      map[uuid.UUID]*billing.Subscription
	events    map[string]string
	upsertErr error
	unmarked  []string
}

func newMemRepo() *memRepo {
	r := &memRepo{
		plans:  map[string]*billing.Plan{},
		subs:   map[uuid.UUID]*billing.Subscription{},
		events: map[string]string{},
	}
	for _, p := range []billing.Plan{
		{Code: "free", MaxEvents: 1, MaxRegistrationsPerEvent: 50},
		{Code: "pro", MaxEvents: 20, MaxRegistrationsPerEvent: 1000, StripePriceID: "price_pro"},
	} {
		p := p
		p.ID = uuid.New()
		r.plans[p.Code] = &p
	}
	return r
}

func (r *memRepo) CreatePlan(_ context.Context, p *billing.Plan) error {
	p.ID = uuid.New()
	r.plans[p.Code] = p
	return nil
}

func (r *memRepo) ListPlans(context.Context) ([]billing.Plan, error) {
	var out []billing.Plan
	for _, p := range r.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memRepo) GetPlanByCode(_ context.Context, code string) (*billing.Plan, error) {
	if p, ok := r.plans[code]; ok {
		return p, nil
	}
	return nil, billing.ErrPlanNotFound
}

func (r *memRepo) GetPlanByStripePrice(_ context.Context, priceID string) (*billing.Plan, error) {
	for _, p := range r.plans {
		if p.StripePriceID != "" && p.StripePriceID == priceID {
			return p, nil
		}
	}
	return nil, billing.ErrPlanNotFound
}

func (r *memRepo) GetSubscription(_ context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	if s, ok := r.subs[tenantID]; ok {
		return s, nil
	}
	return nil, billing.ErrSubscriptionNotFound
}

func (r *memRepo) GetSubscriptionByStripeID(_ context.Context, id string) (*billing.Subscription, error) {
	for _, s := range r.subs {
		if s.StripeSubscriptionID != nil && *s.StripeSubscriptionID == id {
			return s, nil
		}
	}
	return nil, billing.ErrSubscriptionNotFound
}

func (r *memRepo) GetSubscriptionByCustomer(_ context.Context, id string) (*billing.Subscription, error) {
	for _, s := range r.subs {
		if s.StripeCustomerID == id {
			return s, nil
		}
	}
	return nil, billing.ErrSubscriptionNotFound
}

func (r *memRepo) UpsertSubscription(_ context.Context, s *billing.Subscription) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	if existing, ok := r.subs[s.TenantID]; ok {
		s.ID = existing.ID
		if s.StripeCustomerID == "" {
			s.StripeCustomerID = existing.StripeCustomerID
		}
	} else {
		s.ID = uuid.New()
	}
	cp := *s
	r.subs[s.TenantID] = &cp
	return nil
}

func (r *memRepo) SetSubscriptionStatus(_ context.Context, id uuid.UUID, status string) error {
	for _, s := range r.subs {
		if s.ID == id {
			s.Status = status
			return nil
		}
	}
	return billing.ErrSubscriptionNotFound
}

func (r *memRepo) MarkEvent(_ context.Context, id, typ string) (bool, error) {
	if _, ok := r.events[id]; ok {
		return false, nil
	}
	r.events[id] = typ
	return true, nil
}

func (r *memRepo) UnmarkEvent(_ context.Context, id string) error {
	delete(r.events, id)
	r.unmarked = append(r.unmarked, id)
	return nil
}

type fakeCounter struct {
	events, registrations int
	since                 time.Time
}

func (c *fakeCounter) CountEvents(context.Context, uuid.UUID) (int, error) { return c.events, nil }

func (c *fakeCounter) CountRegistrationsSince(_ context.Context, _ uuid.UUID, since time.Time) (int, error) {
	c.since = since
	return c.registrations, nil
}

type fakeGateway struct {
	got billing.CheckoutParams
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, p billing.CheckoutParams) (*billing.CheckoutSession, error) {
	g.got = p
	return &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
}

type fakeAudit struct {
	entries []*audit.Entry
}

func (a *fakeAudit) Log(_ context.Context, e *audit.Entry) (bool, error) {
	a.entries = append(a.entries, e)
	return true, nil
}

func signedEvent(t *testing.T, id, typ string, object any) ([]byte, string) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        typ,
		"api_version": "2025-03-31.basil",
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   raw,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

// --- Limits ---

func TestLimits_FreeWithoutSubscription(t *testing.T) {
	t.Parallel()
	svc := billing.NewService(newMemRepo(), nil, &fakeCounter{}, nil, "")

	limits, err := svc.Limits(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "free", limits.PlanCode)
	assert.Equal(t, 50, limits.MaxRegistrationsPerEvent)
}

func TestLimits_FallbackWhenFreePlanMissing(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	delete(repo.plans, "free")
	svc := billing.NewService(repo, nil, &fakeCounter{}, nil, "")

	limits, err := svc.Limits(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, billing.FreeLimits, *limits)
}

func TestLimits_ActiveAndPastDue(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	tenantID := uuid.New()
	repo.subs[tenantID] = &billing.Subscription{ID: uuid.New(), TenantID: tenantID, PlanCode: "pro", Status: billing.StatusActive}
	svc := billing.NewService(repo, nil, &fakeCounter{}, nil, "")

	limits, err := svc.Limits(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, "pro", limits.PlanCode)

	repo.subs[tenantID].Status = billing.StatusPastDue
	limits, err = svc.Limits(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, "free", limits.PlanCode)
}

func TestCheckEventLimit(t *testing.T) {
	t.Parallel()
	counter := &fakeCounter{events: 0}
	svc := billing.NewService(newMemRepo(), nil, counter, nil, "")

	assert.NoError(t, svc.CheckEventLimit(context.Background(), uuid.New()))

	counter.events = 1
	assert.ErrorIs(t, svc.CheckEventLimit(context.Background(), uuid.New()), billing.ErrPlanLimitReached)
}

func TestUsage(t *testing.T) {
	t.Parallel()
	counter := &fakeCounter{events: 1, registrations: 12}
	svc := billing.NewService(newMemRepo(), nil, counter, nil, "")

	usage, err := svc.Usage(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Events)
	assert.Equal(t, 12, usage.RegistrationsThisMonth)
	assert.Equal(t, "free", usage.PlanCode)
	assert.Equal(t, 1, counter.since.Day())
}

// --- Checkout ---

func TestCheckout(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{}
	svc := billing.NewService(newMemRepo(), gw, &fakeCounter{}, nil, "")
	tenantID := uuid.New()

	cs, err := svc.Checkout(context.Background(), tenantID, "club", "pro", "admin@club.cl", "https://ok", "https://cancel")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", cs.ID)
	assert.Equal(t, tenantID.String(), gw.got.TenantID)
	assert.Equal(t, "price_pro", gw.got.StripePriceID)

	_, err = svc.Checkout(context.Background(), tenantID, "club", "free", "", "", "")
	assert.ErrorIs(t, err, billing.ErrPlanNotPurchasable)

	_, err = svc.Checkout(context.Background(), tenantID, "club", "gold", "", "", "")
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)
}

func TestCheckout_Disabled(t *testing.T) {
	t.Parallel()
	svc := billing.NewService(newMemRepo(), nil, &fakeCounter{}, nil, "")
	_, err := svc.Checkout(context.Background(), uuid.New(), "club", "pro", "", "", "")
	assert.ErrorIs(t, err, billing.ErrBillingDisabled)
}

// --- Webhooks ---

func TestHandleWebhook_CheckoutCompleted(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	auditLog := &fakeAudit{}
	svc := billing.NewService(repo, nil, &fakeCounter{}, auditLog, testWebhookSecret)
	tenantID := uuid.New()

	payload, header := signedEvent(t, "evt_1", "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"client_reference_id": tenantID.String(),
		"customer":            "cus_1",
		"subscription":        "sub_1",
		"metadata":            map[string]string{"plan_code": "pro", "tenant_id": tenantID.String()},
	})

	res, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.False(t, res.Duplicate)

	sub := repo.subs[tenantID]
	require.NotNil(t, sub)
	assert.Equal(t, billing.StatusActive, sub.Status)
	assert.Equal(t, "pro", sub.PlanCode)
	assert.Equal(t, "cus_1", sub.StripeCustomerID)
	require.NotNil(t, sub.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *sub.StripeSubscriptionID)

	require.Len(t, auditLog.entries, 1)
	assert.Equal(t, "stripe:evt_1", *auditLog.entries[0].IdempotencyKey)
}

func TestHandleWebhook_DuplicateIsAcknowledged(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	svc := billing.NewService(repo, nil, &fakeCounter{}, nil, testWebhookSecret)

	payload, header := signedEvent(t, "evt_dup", "customer.created", map[string]any{"id": "cus_1", "object": "customer"})

	first, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.False(t, first.Handled)
	assert.False(t, first.Duplicate)

	second, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
}

func TestHandleWebhook_FailureUnmarksEvent(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	repo.upsertErr = errors.New("db down")
	svc := billing.NewService(repo, nil, &fakeCounter{}, nil, testWebhookSecret)
	tenantID := uuid.New()

	payload, header := signedEvent(t, "evt_fail", "checkout.session.completed", map[string]any{
		"id": "cs_1", "object": "checkout.session", "client_reference_id": tenantID.String(),
		"metadata": map[string]string{"plan_code": "pro"},
	})

	_, err := svc.HandleWebhook(context.Background(), payload, header)
	require.Error(t, err)
	assert.Equal(t, []string{"evt_fail"}, repo.unmarked)
	assert.NotContains(t, repo.events, "evt_fail")

	repo.upsertErr = nil
	res, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, res.Handled)
}

func TestHandleWebhook_SubscriptionLifecycle(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	svc := billing.NewService(repo, nil, &fakeCounter{}, nil, testWebhookSecret)
	tenantID := uuid.New()

	subObject := func(status string) map[string]any {
		return map[string]any{
			"id": "sub_9", "object": "subscription", "status": status, "customer": "cus_9",
			"metadata": map[string]string{"tenant_id": tenantID.String()},
			"items": map[string]any{
				"object": "list",
				"data":   []map[string]any{{"id": "si_1", "object": "subscription_item", "price": map[string]any{"id": "price_pro", "object": "price"}}},
			},
		}
	}

	payload, header := signedEvent(t, "evt_s1", "customer.subscription.created", subObject("trialing"))
	_, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusTrialing, repo.subs[tenantID].Status)
	assert.Equal(t, "pro", repo.subs[tenantID].PlanCode)

	payload, header = signedEvent(t, "evt_s2", "invoice.payment_failed", map[string]any{
		"id": "in_1", "object": "invoice", "customer": "cus_9",
	})
	_, err = svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPastDue, repo.subs[tenantID].Status)

	payload, header = signedEvent(t, "evt_s3", "customer.subscription.deleted", subObject("active"))
	_, err = svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCanceled, repo.subs[tenantID].Status)
}

func TestHandleWebhook_ReplacedSubscription(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	svc := billing.NewService(repo, nil, &fakeCounter{}, nil, testWebhookSecret)
	tenantID := uuid.New()

	live := "sub_new"
	repo.subs[tenantID] = &billing.Subscription{
		ID: uuid.New(), TenantID: tenantID, PlanID: repo.plans["pro"].ID, PlanCode: "pro",
		Status: billing.StatusActive, StripeCustomerID: "cus_1", StripeSubscriptionID: &live,
	}

	subObject := func(id, status string) map[string]any {
		return map[string]any{
			"id": id, "object": "subscription", "status": status, "customer": "cus_1",
			"metadata": map[string]string{"tenant_id": tenantID.String()},
			"items": map[string]any{
				"object": "list",
				"data":   []map[string]any{{"id": "si_1", "object": "subscription_item", "price": map[string]any{"id": "price_pro", "object": "price"}}},
			},
		}
	}

	payload, header := signedEvent(t, "evt_r1", "customer.subscription.deleted", subObject("sub_old", "canceled"))
	res, err := svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, billing.StatusActive, repo.subs[tenantID].Status)
	assert.Equal(t, "sub_new", *repo.subs[tenantID].StripeSubscriptionID)

	payload, header = signedEvent(t, "evt_r2", "customer.subscription.updated", subObject("sub_old", "past_due"))
	_, err = svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusActive, repo.subs[tenantID].Status)

	// A newer subscription that grants access replaces the stored one.
	payload, header = signedEvent(t, "evt_r3", "customer.subscription.created", subObject("sub_newer", "trialing"))
	_, err = svc.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusTrialing, repo.subs[tenantID].Status)
	assert.Equal(t, "sub_newer", *repo.subs[tenantID].StripeSubscriptionID)
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	t.Parallel()
	svc := billing.NewService(newMemRepo(), nil, &fakeCounter{}, nil, testWebhookSecret)

	payload, _ := signedEvent(t, "evt_x", "customer.created", map[string]any{"id": "cus_1"})
	_, err := svc.HandleWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, billing.ErrInvalidSignature)
}

func TestHandleWebhook_Disabled(t *testing.T) {
	t.Parallel()
	svc := billing.NewService(newMemRepo(), nil, &fakeCounter{}, nil, "")
	_, err := svc.HandleWebhook(context.Background(), []byte("{}"), "")
	assert.ErrorIs(t, err, billing.ErrBillingDisabled)
}
