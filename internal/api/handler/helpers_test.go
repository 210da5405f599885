package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/audit"
	"github.com/agencia-vs/acreditaciones/internal/auth"
	"github.com/agencia-vs/acreditaciones/internal/event"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/registration"
	"github.com/agencia-vs/acreditaciones/internal/rules"
	"github.com/agencia-vs/acreditaciones/internal/team"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
	"github.com/agencia-vs/acreditaciones/internal/token"
)

// --- Helpers ---

func makeChiRequest(method, path string, body []byte, routePattern string, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		rctx.RoutePatterns = append(rctx.RoutePatterns, routePattern)
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req, w
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err, "failed to parse response body")
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := parseEnvelope(t, w)
	e, ok := env["error"].(map[string]interface{})
	require.True(t, ok, "response has no error: %s", w.Body.String())
	return e["code"].(string)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func withTenant(req *http.Request, t *tenant.Tenant) *http.Request {
	return req.WithContext(middleware.WithTenant(req.Context(), t))
}

func withSession(req *http.Request, p *profile.Profile) *http.Request {
	s := &token.Session{ProfileID: p.ID, Email: p.Email, ExpiresAt: time.Now().Add(time.Hour)}
	return req.WithContext(middleware.WithSession(req.Context(), s))
}

func withIdentity(req *http.Request, id *auth.Identity) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), id))
}

func sampleTenant() *tenant.Tenant {
	now := time.Now().UTC()
	return &tenant.Tenant{
		ID:           uuid.New(),
		Slug:         "club-deportivo",
		Name:         "Club Deportivo",
		DomainStatus: tenant.DomainNone,
		PrimaryColor: "#1d4ed8",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func strPtr(s string) *string { return &s }

func sampleProfile(complete bool) *profile.Profile {
	now := time.Now().UTC()
	p := &profile.Profile{
		ID:        uuid.New(),
		Email:     "periodista@diario.cl",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if complete {
		p.RUT = strPtr("12345678-5")
		p.FirstName = "Ana"
		p.LastName = "Rojas"
		p.Organization = "Diario Central"
		p.MediaType = "prensa escrita"
		p.JobTitle = "periodista"
	}
	return p
}

func sampleRegistration(tenantID uuid.UUID, status string) *registration.Registration {
	now := time.Now().UTC()
	p := sampleProfile(true)
	return &registration.Registration{
		ID:           uuid.New(),
		TenantID:     tenantID,
		EventID:      uuid.New(),
		ProfileID:    p.ID,
		Organization: p.Organization,
		MediaType:    p.MediaType,
		JobTitle:     p.JobTitle,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
		Profile:      p,
	}
}

// --- Mock Profile Repository ---

type mockProfileRepo struct {
	ensureByEmailFn func(ctx context.Context, email string) (*profile.Profile, error)
	upsertFn        func(ctx context.Context, p *profile.Profile) error
	getByIDFn       func(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
	getByEmailFn    func(ctx context.Context, email string) (*profile.Profile, error)
	updateFn        func(ctx context.Context, p *profile.Profile) error
	setPhotoFn      func(ctx context.Context, id uuid.UUID, path string) error
}

func (m *mockProfileRepo) EnsureByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	if m.ensureByEmailFn != nil {
		return m.ensureByEmailFn(ctx, email)
	}
	return &profile.Profile{ID: uuid.New(), Email: email}, nil
}

func (m *mockProfileRepo) Upsert(ctx context.Context, p *profile.Profile) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, p)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, profile.ErrProfileNotFound
}

func (m *mockProfileRepo) GetByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, profile.ErrProfileNotFound
}

func (m *mockProfileRepo) GetByRUT(_ context.Context, _ string) (*profile.Profile, error) {
	return nil, profile.ErrProfileNotFound
}

func (m *mockProfileRepo) Update(ctx context.Context, p *profile.Profile) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, p)
	}
	return nil
}

func (m *mockProfileRepo) SetPhoto(ctx context.Context, id uuid.UUID, path string) error {
	if m.setPhotoFn != nil {
		return m.setPhotoFn(ctx, id, path)
	}
	return nil
}

// profileRepoWith returns a repository that serves p by id.
func profileRepoWith(p *profile.Profile) *mockProfileRepo {
	return &mockProfileRepo{
		getByIDFn: func(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
			if id == p.ID {
				return p, nil
			}
			return nil, profile.ErrProfileNotFound
		},
	}
}

// --- Mock Team Repository ---

type mockTeamRepo struct {
	addFn    func(ctx context.Context, m *team.Member) error
	listFn   func(ctx context.Context, managerID uuid.UUID) ([]team.Member, error)
	removeFn func(ctx context.Context, managerID, memberID uuid.UUID) error
}

func (m *mockTeamRepo) Add(ctx context.Context, member *team.Member) error {
	if m.addFn != nil {
		return m.addFn(ctx, member)
	}
	member.ID = uuid.New()
	member.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockTeamRepo) List(ctx context.Context, managerID uuid.UUID) ([]team.Member, error) {
	if m.listFn != nil {
		return m.listFn(ctx, managerID)
	}
	return []team.Member{}, nil
}

func (m *mockTeamRepo) Remove(ctx context.Context, managerID, memberID uuid.UUID) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, managerID, memberID)
	}
	return nil
}

func (m *mockTeamRepo) IsMember(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return true, nil
}

// --- Mock Registration Workflow ---

type mockWorkflow struct {
	submitFn     func(ctx context.Context, t *tenant.Tenant, eventID uuid.UUID, submitter *profile.Profile, subjects []uuid.UUID, actor audit.Actor) ([]registration.SubmitResult, error)
	decideFn     func(ctx context.Context, t *tenant.Tenant, id uuid.UUID, approve bool, reason string, actor audit.Actor) (*registration.Registration, error)
	bulkDecideFn func(ctx context.Context, t *tenant.Tenant, ids []uuid.UUID, approve bool, reason string, actor audit.Actor) (*registration.BulkResult, error)
	cancelFn     func(ctx context.Context, tenantID, profileID, id uuid.UUID, actor audit.Actor) (*registration.Registration, error)
	credentialFn func(ctx context.Context, tenantID, profileID, id uuid.UUID) (string, *registration.Registration, error)
	checkInFn    func(ctx context.Context, tenantID uuid.UUID, raw string, actor audit.Actor) (*registration.Registration, error)
	quotaUsageFn func(ctx context.Context, tenantID, eventID uuid.UUID) ([]rules.QuotaCheck, error)
}

func (m *mockWorkflow) Submit(ctx context.Context, t *tenant.Tenant, eventID uuid.UUID, submitter *profile.Profile, subjects []uuid.UUID, actor audit.Actor) ([]registration.SubmitResult, error) {
	return m.submitFn(ctx, t, eventID, submitter, subjects, actor)
}

func (m *mockWorkflow) Decide(ctx context.Context, t *tenant.Tenant, id uuid.UUID, approve bool, reason string, actor audit.Actor) (*registration.Registration, error) {
	return m.decideFn(ctx, t, id, approve, reason, actor)
}

func (m *mockWorkflow) BulkDecide(ctx context.Context, t *tenant.Tenant, ids []uuid.UUID, approve bool, reason string, actor audit.Actor) (*registration.BulkResult, error) {
	return m.bulkDecideFn(ctx, t, ids, approve, reason, actor)
}

func (m *mockWorkflow) Cancel(ctx context.Context, tenantID, profileID, id uuid.UUID, actor audit.Actor) (*registration.Registration, error) {
	return m.cancelFn(ctx, tenantID, profileID, id, actor)
}

func (m *mockWorkflow) Credential(ctx context.Context, tenantID, profileID, id uuid.UUID) (string, *registration.Registration, error) {
	return m.credentialFn(ctx, tenantID, profileID, id)
}

func (m *mockWorkflow) CheckIn(ctx context.Context, tenantID uuid.UUID, raw string, actor audit.Actor) (*registration.Registration, error) {
	return m.checkInFn(ctx, tenantID, raw, actor)
}

func (m *mockWorkflow) QuotaUsage(ctx context.Context, tenantID, eventID uuid.UUID) ([]rules.QuotaCheck, error) {
	return m.quotaUsageFn(ctx, tenantID, eventID)
}

// --- Mock Registration Lister ---

type mockRegistrations struct {
	getByIDFn func(ctx context.Context, tenantID, id uuid.UUID) (*registration.Registration, error)
	listFn    func(ctx context.Context, tenantID uuid.UUID, f registration.Filter) ([]registration.Registration, error)
}

func (m *mockRegistrations) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*registration.Registration, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, tenantID, id)
	}
	return nil, registration.ErrRegistrationNotFound
}

func (m *mockRegistrations) List(ctx context.Context, tenantID uuid.UUID, f registration.Filter) ([]registration.Registration, error) {
	if m.listFn != nil {
		return m.listFn(ctx, tenantID, f)
	}
	return []registration.Registration{}, nil
}

// --- Mock Event Repository ---

type mockEventRepo struct {
	createFn  func(ctx context.Context, e *event.Event) error
	getByIDFn func(ctx context.Context, tenantID, id uuid.UUID) (*event.Event, error)
	listFn    func(ctx context.Context, tenantID uuid.UUID, status string) ([]event.Event, error)
	updateFn  func(ctx context.Context, e *event.Event) error
	deleteFn  func(ctx context.Context, tenantID, id uuid.UUID) error
}

func (m *mockEventRepo) Create(ctx context.Context, e *event.Event) error {
	if m.createFn != nil {
		return m.createFn(ctx, e)
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	return nil
}

func (m *mockEventRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*event.Event, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, tenantID, id)
	}
	return nil, event.ErrEventNotFound
}

func (m *mockEventRepo) List(ctx context.Context, tenantID uuid.UUID, status string) ([]event.Event, error) {
	if m.listFn != nil {
		return m.listFn(ctx, tenantID, status)
	}
	return []event.Event{}, nil
}

func (m *mockEventRepo) Update(ctx context.Context, e *event.Event) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, e)
	}
	return nil
}

func (m *mockEventRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, tenantID, id)
	}
	return nil
}

func (m *mockEventRepo) Count(_ context.Context, _ uuid.UUID) (int, error) {
	return 0, nil
}

// --- Recording audit log ---

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAudit) Log(_ context.Context, e *audit.Entry) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *e)
	return true, nil
}

func (a *recordingAudit) List(_ context.Context, _ uuid.UUID, _ audit.Filter) ([]audit.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Entry{}, a.entries...), nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}
