// Package reconciler keeps tenant custom domains in step with the cluster.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/k8s"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

// watchedStatuses are the domain statuses the reconciler monitors.
var watchedStatuses = []string{
	tenant.DomainPending,
	tenant.DomainActive,
	tenant.DomainError,
	tenant.DomainRemoving,
}

// TenantStore is the subset of the tenant repository the reconciler needs.
type TenantStore interface {
	ListByDomainStatus(ctx context.Context, statuses ...string) ([]tenant.Tenant, error)
	SetDomainStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Reconciler polls tenants and reconciles their domain status with the Ingress
// resources in the cluster.
type Reconciler struct {
	tenants  TenantStore
	ingress  k8s.IngressManager
	interval time.Duration
}

// New creates a new Reconciler.
func New(tenants TenantStore, ingress k8s.IngressManager, interval time.Duration) *Reconciler {
	return &Reconciler{
		tenants:  tenants,
		ingress:  ingress,
		interval: interval,
	}
}

// Start begins the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	slog.Info("reconciler started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile runs a single pass over every tenant with a watched domain status.
func (r *Reconciler) Reconcile(ctx context.Context) {
	tenants, err := r.tenants.ListByDomainStatus(ctx, watchedStatuses...)
	if err != nil {
		slog.Error("reconciler: failed to list tenants", "error", err)
		return
	}

	for i := range tenants {
		if ctx.Err() != nil {
			return
		}
		r.reconcileOne(ctx, &tenants[i])
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, t *tenant.Tenant) {
	if t.DomainStatus == tenant.DomainRemoving || t.CustomDomain == nil {
		r.remove(ctx, t)
		return
	}

	switch t.DomainStatus {
	case tenant.DomainPending, tenant.DomainError:
		if err := r.ingress.ApplyTenantIngress(ctx, t.Slug, *t.CustomDomain); err != nil {
			slog.Warn("reconciler: failed to apply ingress", "tenant", t.Slug, "domain", *t.CustomDomain, "error", err)
			r.setStatus(ctx, t, tenant.DomainError)
			return
		}
		r.checkReady(ctx, t)
	case tenant.DomainActive:
		r.checkReady(ctx, t)
	}
}

func (r *Reconciler) checkReady(ctx context.Context, t *tenant.Tenant) {
	status, err := r.ingress.GetIngressStatus(ctx, t.Slug)
	if errors.Is(err, k8s.ErrIngressNotFound) {
		slog.Warn("reconciler: ingress missing, reapplying", "tenant", t.Slug)
		r.setStatus(ctx, t, tenant.DomainPending)
		return
	}
	if err != nil {
		slog.Warn("reconciler: failed to get ingress status", "tenant", t.Slug, "error", err)
		return
	}

	if status.Ready {
		r.setStatus(ctx, t, tenant.DomainActive)
		return
	}
	if t.DomainStatus == tenant.DomainError {
		r.setStatus(ctx, t, tenant.DomainPending)
	}
}

func (r *Reconciler) remove(ctx context.Context, t *tenant.Tenant) {
	if err := r.ingress.DeleteTenantIngress(ctx, t.Slug); err != nil {
		slog.Error("reconciler: failed to delete ingress", "tenant", t.Slug, "error", err)
		return
	}
	r.setStatus(ctx, t, tenant.DomainNone)
}

func (r *Reconciler) setStatus(ctx context.Context, t *tenant.Tenant, status string) {
	if t.DomainStatus == status {
		return
	}
	if err := r.tenants.SetDomainStatus(ctx, t.ID, status); err != nil {
		slog.Error("reconciler: failed to update domain status",
			"tenant", t.Slug,
			"status", status,
			"error", err,
		)
		return
	}
	slog.Info("reconciler: domain status changed", "tenant", t.Slug, "from", t.DomainStatus, "to", status)
	t.DomainStatus = status
}
