package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencia-vs/acreditaciones/internal/k8s"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

type fakeStore struct {
	tenants []tenant.Tenant
	listErr error
	updates map[uuid.UUID]string
}

func (f *fakeStore) ListByDomainStatus(_ context.Context, statuses ...string) ([]tenant.Tenant, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []tenant.Tenant{}
	for _, t := range f.tenants {
		for _, s := range statuses {
			if t.DomainStatus == s {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) SetDomainStatus(_ context.Context, id uuid.UUID, status string) error {
	if f.updates == nil {
		f.updates = map[uuid.UUID]string{}
	}
	f.updates[id] = status
	return nil
}

type fakeIngress struct {
	applyErr  error
	deleteErr error
	statuses  map[string]k8s.IngressStatus
	statusErr error
	applied   map[string]string
	deleted   []string
}

func (f *fakeIngress) ApplyTenantIngress(_ context.Context, slug, domain string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	if f.applied == nil {
		f.applied = map[string]string{}
	}
	f.applied[slug] = domain
	return nil
}

func (f *fakeIngress) DeleteTenantIngress(_ context.Context, slug string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, slug)
	return nil
}

func (f *fakeIngress) GetIngressStatus(_ context.Context, slug string) (k8s.IngressStatus, error) {
	if f.statusErr != nil {
		return k8s.IngressStatus{}, f.statusErr
	}
	s, ok := f.statuses[slug]
	if !ok {
		return k8s.IngressStatus{}, k8s.ErrIngressNotFound
	}
	return s, nil
}

func newTenant(slug, status string, domain *string) tenant.Tenant {
	return tenant.Tenant{ID: uuid.New(), Slug: slug, DomainStatus: status, CustomDomain: domain}
}

func strPtr(s string) *string { return &s }

func TestReconcile_PendingBecomesActive(t *testing.T) {
	tn := newTenant("club", tenant.DomainPending, strPtr("club.cl"))
	store := &fakeStore{tenants: []tenant.Tenant{tn}}
	ing := &fakeIngress{statuses: map[string]k8s.IngressStatus{"club": {Ready: true, Address: "1.2.3.4"}}}

	New(store, ing, 0).Reconcile(context.Background())

	assert.Equal(t, "club.cl", ing.applied["club"])
	assert.Equal(t, tenant.DomainActive, store.updates[tn.ID])
}

func TestReconcile_PendingStaysPendingWithoutAddress(t *testing.T) {
	tn := newTenant("club", tenant.DomainPending, strPtr("club.cl"))
	store := &fakeStore{tenants: []tenant.Tenant{tn}}
	ing := &fakeIngress{statuses: map[string]k8s.IngressStatus{"club": {}}}

	New(store, ing, 0).Reconcile(context.Background())

	assert.Contains(t, ing.applied, "club")
	assert.Empty(t, store.updates)
}

func TestReconcile_ApplyFailureMarksError(t *testing.T) {
	tn := newTenant("club", tenant.DomainPending, strPtr("club.cl"))
	store := &fakeStore{tenants: []tenant.Tenant{tn}}
	ing := &fakeIngress{applyErr: errors.New("forbidden")}

	New(store, ing, 0).Reconcile(context.Background())

	assert.Equal(t, tenant.DomainError, store.updates[tn.ID])
}

func TestReconcile_ErrorRetriesApply(t *testing.T) {
	tn := newTenant("club", tenant.DomainError, strPtr("club.cl"))
	store := &fakeStore{tenants: []tenant.Tenant{tn}}
	ing := &fakeIngress{statuses: map[string]k8s.IngressStatus{"club": {}}}

	New(store, ing, 0).Reconcile(context.Background())

	assert.Contains(t, ing.applied, "club")
	assert.Equal(t, tenant.DomainPending, store.updates[tn.ID])
}

func TestReconcile_ActiveWithMissingIngressGoesPending(t *testing.T) {
	tn := newTenant("club", tenant.DomainActive, strPtr("club.cl"))
	store := &fakeStore{tenants: []tenant.Tenant{tn}}
	ing := &fakeIngress{statuses: map[string]k8s.IngressStatus{}}

	New(store, ing, 0).Reconcile(context.Background())

	assert.Empty(t, ing.applied)
	assert.Equal(t, tenant.DomainPending, store.updates[tn.ID])
}

func TestReconcile_ActiveAndReadyIsUnchanged(t *testing.T) {
	tn := newTenant("club", tenant.DomainActive, strPtr("club.cl"))
	store := &fakeStore{tenants: []tenant.Tenant{tn}}
	ing := &fakeIngress{statuses: map[string]k8s.IngressStatus{"club": {Ready: true}}}

	New(store, ing, 0).Reconcile(context.Background())

	assert.Empty(t, store.updates)
}

func TestReconcile_RemovingDeletesIngress(t *testing.T) {
	tn := newTenant("club", tenant.DomainRemoving, nil)
	store := &fakeStore{tenants: []tenant.Tenant{tn}}
	ing := &fakeIngress{}

	New(store, ing, 0).Reconcile(context.Background())

	assert.Equal(t, []string{"club"}, ing.deleted)
	assert.Equal(t, tenant.DomainNone, store.updates[tn.ID])
}

func TestReconcile_RemovingKeepsStatusOnDeleteFailure(t *testing.T) {
	tn := newTenant("club", tenant.DomainRemoving, nil)
	store := &fakeStore{tenants: []tenant.Tenant{tn}}
	ing := &fakeIngress{deleteErr: errors.New("timeout")}

	New(store, ing, 0).Reconcile(context.Background())

	assert.Empty(t, store.updates)
}

func TestReconcile_ListFailureIsLogged(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	ing := &fakeIngress{}

	require.NotPanics(t, func() { New(store, ing, 0).Reconcile(context.Background()) })
	assert.Empty(t, ing.applied)
}

func TestReconcile_StopsOnCancelledContext(t *testing.T) {
	tn := newTenant("club", tenant.DomainPending, strPtr("club.cl"))
	store := &fakeStore{tenants: []tenant.Tenant{tn}}
	ing := &fakeIngress{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	New(store, ing, 0).Reconcile(ctx)

	assert.Empty(t, ing.applied)
}
