package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/api/validation"
	"github.com/agencia-vs/acreditaciones/internal/billing"
	"github.com/agencia-vs/acreditaciones/internal/metrics"
)

// BillingService meters tenants and starts plan upgrades.
type BillingService interface {
	Usage(ctx context.Context, tenantID uuid.UUID) (*billing.Usage, error)
	Checkout(ctx context.Context, tenantID uuid.UUID, tenantSlug, planCode, email, successURL, cancelURL string) (*billing.CheckoutSession, error)
}

// WebhookProcessor verifies and applies Stripe webhook deliveries.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*billing.WebhookResult, error)
}

// maxWebhookBytes bounds Stripe webhook payloads.
const maxWebhookBytes = 1 << 18

// BillingHandler serves plans, tenant subscriptions and the Stripe webhook.
type BillingHandler struct {
	repo      billing.Repository
	service   BillingService
	webhooks  WebhookProcessor
	publicURL string
	metrics   *metrics.Metrics
}

// NewBillingHandler creates a new BillingHandler. m may be nil.
func NewBillingHandler(repo billing.Repository, service BillingService, webhooks WebhookProcessor, publicURL string, m *metrics.Metrics) *BillingHandler {
	return &BillingHandler{
		repo:      repo,
		service:   service,
		webhooks:  webhooks,
		publicURL: strings.TrimRight(publicURL, "/"),
		metrics:   m,
	}
}

type planResponse struct {
	ID                       string `json:"id"`
	Code                     string `json:"code"`
	Name                     string `json:"name"`
	PriceCents               int64  `json:"priceCents"`
	Currency                 string `json:"currency"`
	MaxEvents                int    `json:"maxEvents"`
	MaxRegistrationsPerEvent int    `json:"maxRegistrationsPerEvent"`
	Purchasable              bool   `json:"purchasable"`
	CreatedAt                string `json:"createdAt"`
}

func toPlanResponse(p *billing.Plan) planResponse {
	return planResponse{
		ID:                       p.ID.String(),
		Code:                     p.Code,
		Name:                     p.Name,
		PriceCents:               p.PriceCents,
		Currency:                 p.Currency,
		MaxEvents:                p.MaxEvents,
		MaxRegistrationsPerEvent: p.MaxRegistrationsPerEvent,
		Purchasable:              p.StripePriceID != "",
		CreatedAt:                formatTime(p.CreatedAt),
	}
}

type createPlanRequest struct {
	Code                     string `json:"code"`
	Name                     string `json:"name"`
	PriceCents               int64  `json:"priceCents"`
	Currency                 string `json:"currency"`
	MaxEvents                *int   `json:"maxEvents"`
	MaxRegistrationsPerEvent *int   `json:"maxRegistrationsPerEvent"`
	StripePriceID            string `json:"stripePriceId"`
}

// CreatePlan handles POST /plans.
func (h *BillingHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req createPlanRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	fieldErrors := validation.ValidateCreatePlanRequest(validation.CreatePlanRequest{
		Code:                     req.Code,
		Name:                     req.Name,
		PriceCents:               req.PriceCents,
		Currency:                 req.Currency,
		MaxEvents:                req.MaxEvents,
		MaxRegistrationsPerEvent: req.MaxRegistrationsPerEvent,
		StripePriceID:            req.StripePriceID,
	})
	if len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	p := &billing.Plan{
		Code:                     req.Code,
		Name:                     strings.TrimSpace(req.Name),
		PriceCents:               req.PriceCents,
		Currency:                 strings.ToLower(req.Currency),
		MaxEvents:                *req.MaxEvents,
		MaxRegistrationsPerEvent: *req.MaxRegistrationsPerEvent,
		StripePriceID:            strings.TrimSpace(req.StripePriceID),
	}
	if p.Currency == "" {
		p.Currency = "clp"
	}

	if err := h.repo.CreatePlan(r.Context(), p); err != nil {
		if errors.Is(err, billing.ErrDuplicatePlan) {
			response.Err(w, http.StatusConflict, "DUPLICATE_PLAN", "A plan with this code already exists", requestID)
			return
		}
		slog.Error("failed to create plan", "error", err, "code", p.Code)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create plan", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toPlanResponse(p), requestID)
}

// ListPlans handles GET /plans.
func (h *BillingHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	plans, err := h.repo.ListPlans(r.Context())
	if err != nil {
		slog.Error("failed to list plans", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list plans", requestID)
		return
	}

	items := make([]planResponse, 0, len(plans))
	for i := range plans {
		items = append(items, toPlanResponse(&plans[i]))
	}
	response.SuccessList(w, http.StatusOK, items, len(items), 1, len(items), requestID)
}

type subscriptionResponse struct {
	PlanCode             string         `json:"planCode"`
	Status               string         `json:"status"`
	Subscribed           bool           `json:"subscribed"`
	StripeSubscriptionID *string        `json:"stripeSubscriptionId"`
	Limits               billing.Limits `json:"limits"`
	UpdatedAt            *string        `json:"updatedAt"`
}

// Subscription handles GET /tenants/{tenantID}/billing/subscription. Tenants
// without a subscription are reported on the free plan.
func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	usage, err := h.service.Usage(r.Context(), t.ID)
	if err != nil {
		slog.Error("failed to compute limits", "error", err, "tenantId", t.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load subscription", requestID)
		return
	}

	resp := subscriptionResponse{PlanCode: billing.FreePlanCode, Status: billing.StatusActive, Limits: usage.Limits}
	sub, err := h.repo.GetSubscription(r.Context(), t.ID)
	switch {
	case err == nil:
		resp.PlanCode = sub.PlanCode
		resp.Status = sub.Status
		resp.Subscribed = true
		resp.StripeSubscriptionID = sub.StripeSubscriptionID
		resp.UpdatedAt = formatTimePtr(&sub.UpdatedAt)
	case !errors.Is(err, billing.ErrSubscriptionNotFound):
		slog.Error("failed to get subscription", "error", err, "tenantId", t.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load subscription", requestID)
		return
	}

	response.Success(w, http.StatusOK, resp, requestID)
}

// Usage handles GET /tenants/{tenantID}/billing/usage.
func (h *BillingHandler) Usage(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	usage, err := h.service.Usage(r.Context(), t.ID)
	if err != nil {
		slog.Error("failed to compute usage", "error", err, "tenantId", t.ID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute usage", requestID)
		return
	}

	response.Success(w, http.StatusOK, usage, requestID)
}

type checkoutRequest struct {
	PlanCode string `json:"planCode"`
}

// Checkout handles POST /tenants/{tenantID}/billing/checkout. The response
// carries the hosted payment page URL.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	t := middleware.GetTenant(r.Context())

	var req checkoutRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if fieldErrors := validation.ValidateCheckoutRequest(validation.CheckoutRequest{PlanCode: req.PlanCode}); len(fieldErrors) > 0 {
		response.Invalid(w, fieldErrors, requestID)
		return
	}

	var email string
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		email = identity.Email
	}
	returnURL := h.publicURL + "/t/" + t.Slug + "/admin/billing"

	session, err := h.service.Checkout(r.Context(), t.ID, t.Slug, req.PlanCode, email,
		returnURL+"?checkout=success", returnURL+"?checkout=cancel")
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrBillingDisabled):
			response.Err(w, http.StatusServiceUnavailable, "BILLING_DISABLED", "Billing is not configured", requestID)
		case errors.Is(err, billing.ErrPlanNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Plan not found", requestID)
		case errors.Is(err, billing.ErrPlanNotPurchasable):
			response.Err(w, http.StatusConflict, "PLAN_NOT_PURCHASABLE", "Plan cannot be purchased", requestID)
		default:
			slog.Error("failed to start checkout", "error", err, "tenantId", t.ID, "plan", req.PlanCode)
			response.Err(w, http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "Failed to start checkout", requestID)
		}
		return
	}

	response.Success(w, http.StatusCreated, session, requestID)
}

type webhookResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate"`
	Handled   bool `json:"handled"`
}

// Webhook handles POST /webhooks/stripe. Failures other than a bad
// signature answer 5xx so Stripe retries the delivery.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		response.Err(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Webhook payload is too large", requestID)
		return
	}

	result, err := h.webhooks.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature):
			h.metrics.WebhookEvent("unknown", "invalid_signature")
			response.Err(w, http.StatusBadRequest, "INVALID_SIGNATURE", "Webhook signature verification failed", requestID)
		case errors.Is(err, billing.ErrBillingDisabled):
			response.Err(w, http.StatusServiceUnavailable, "BILLING_DISABLED", "Billing is not configured", requestID)
		default:
			h.metrics.WebhookEvent("unknown", "error")
			slog.Error("failed to process webhook", "error", err)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process webhook", requestID)
		}
		return
	}

	outcome := "ignored"
	switch {
	case result.Duplicate:
		outcome = "duplicate"
	case result.Handled:
		outcome = "handled"
	}
	h.metrics.WebhookEvent(result.EventType, outcome)

	response.Success(w, http.StatusOK, webhookResponse{Received: true, Duplicate: result.Duplicate, Handled: result.Handled}, requestID)
}
