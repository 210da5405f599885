package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agencia-vs/acreditaciones/internal/database"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const planColumns = `id, code, name, price_cents, currency, max_events,
	max_registrations_per_event, stripe_price_id, created_at`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.PriceCents, &p.Currency, &p.MaxEvents,
		&p.MaxRegistrationsPerEvent, &p.StripePriceID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("scanning plan row: %w", err)
	}
	return &p, nil
}

// CreatePlan inserts a billing plan.
func (r *PostgresRepository) CreatePlan(ctx context.Context, p *Plan) error {
	if p.Currency == "" {
		p.Currency = "clp"
	}
	query := `
		INSERT INTO billing_plans (code, name, price_cents, currency, max_events,
			max_registrations_per_event, stripe_price_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, p.Code, p.Name, p.PriceCents, p.Currency, p.MaxEvents,
		p.MaxRegistrationsPerEvent, p.StripePriceID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicatePlan
		}
		return fmt.Errorf("inserting plan: %w", err)
	}
	return nil
}

// ListPlans returns every plan ordered by price.
func (r *PostgresRepository) ListPlans(ctx context.Context) ([]Plan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM billing_plans ORDER BY price_cents ASC, code ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plan rows: %w", err)
	}
	return plans, nil
}

// GetPlanByCode retrieves a plan by code.
func (r *PostgresRepository) GetPlanByCode(ctx context.Context, code string) (*Plan, error) {
	return scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM billing_plans WHERE code = $1`, code))
}

// GetPlanByStripePrice retrieves the plan billed with a Stripe price.
func (r *PostgresRepository) GetPlanByStripePrice(ctx context.Context, priceID string) (*Plan, error) {
	if priceID == "" {
		return nil, ErrPlanNotFound
	}
	return scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM billing_plans WHERE stripe_price_id = $1`, priceID))
}

const subscriptionSelect = `
	SELECT s.id, s.tenant_id, s.plan_id, p.code, s.status, s.stripe_customer_id,
	       s.stripe_subscription_id, s.created_at, s.updated_at
	FROM subscriptions s
	JOIN billing_plans p ON p.id = s.plan_id`

func (r *PostgresRepository) getSubscription(ctx context.Context, where string, arg any) (*Subscription, error) {
	var s Subscription
	err := r.pool.QueryRow(ctx, subscriptionSelect+` WHERE `+where, arg).Scan(
		&s.ID, &s.TenantID, &s.PlanID, &s.PlanCode, &s.Status, &s.StripeCustomerID,
		&s.StripeSubscriptionID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	return &s, nil
}

// GetSubscription retrieves a tenant's subscription.
func (r *PostgresRepository) GetSubscription(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	return r.getSubscription(ctx, "s.tenant_id = $1", tenantID)
}

// GetSubscriptionByStripeID retrieves a subscription by its Stripe id.
func (r *PostgresRepository) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error) {
	return r.getSubscription(ctx, "s.stripe_subscription_id = $1", stripeSubscriptionID)
}

// GetSubscriptionByCustomer retrieves a subscription by its Stripe customer.
func (r *PostgresRepository) GetSubscriptionByCustomer(ctx context.Context, stripeCustomerID string) (*Subscription, error) {
	if stripeCustomerID == "" {
		return nil, ErrSubscriptionNotFound
	}
	return r.getSubscription(ctx, "s.stripe_customer_id = $1", stripeCustomerID)
}

// UpsertSubscription creates or replaces the tenant's subscription. Empty
// Stripe identifiers do not overwrite stored ones.
func (r *PostgresRepository) UpsertSubscription(ctx context.Context, s *Subscription) error {
	query := `
		INSERT INTO subscriptions (tenant_id, plan_id, status, stripe_customer_id, stripe_subscription_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			stripe_customer_id = COALESCE(NULLIF(EXCLUDED.stripe_customer_id, ''), subscriptions.stripe_customer_id),
			stripe_subscription_id = COALESCE(EXCLUDED.stripe_subscription_id, subscriptions.stripe_subscription_id),
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, s.TenantID, s.PlanID, s.Status, s.StripeCustomerID, s.StripeSubscriptionID).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrPlanNotFound
		}
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

// SetSubscriptionStatus updates a subscription's status.
func (r *PostgresRepository) SetSubscriptionStatus(ctx context.Context, id uuid.UUID, status string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("updating subscription status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// MarkEvent records a processed webhook event.
func (r *PostgresRepository) MarkEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	result, err := r.pool.Exec(ctx,
		`INSERT INTO billing_webhook_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("recording webhook event: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// UnmarkEvent forgets a webhook event so a provider retry is processed again.
func (r *PostgresRepository) UnmarkEvent(ctx context.Context, eventID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM billing_webhook_events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("removing webhook event: %w", err)
	}
	return nil
}
