package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencia-vs/acreditaciones/internal/api/handler"
	"github.com/agencia-vs/acreditaciones/internal/auth"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

// --- Mock User Repository ---

type mockUserRepo struct {
	createFn           func(ctx context.Context, u *auth.User) error
	getByIDFn          func(ctx context.Context, id uuid.UUID) (*auth.User, error)
	listFn             func(ctx context.Context, tenantID *uuid.UUID) ([]auth.User, error)
	revokeFn           func(ctx context.Context, id uuid.UUID) error
	addMembershipFn    func(ctx context.Context, m *auth.Membership) error
	removeMembershipFn func(ctx context.Context, tenantID, userID uuid.UUID) error
}

func (m *mockUserRepo) Create(ctx context.Context, u *auth.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepo) GetByEmail(context.Context, string) (*auth.User, error) {
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepo) FindByPrefix(context.Context, string) ([]auth.User, error) {
	return []auth.User{}, nil
}

func (m *mockUserRepo) List(ctx context.Context, tenantID *uuid.UUID) ([]auth.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx, tenantID)
	}
	return []auth.User{}, nil
}

func (m *mockUserRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) CountAll(context.Context) (int, error) { return 0, nil }

func (m *mockUserRepo) AddMembership(ctx context.Context, ms *auth.Membership) error {
	if m.addMembershipFn != nil {
		return m.addMembershipFn(ctx, ms)
	}
	ms.CreatedAt = time.Now().UTC()
	return nil
}

func (m *mockUserRepo) RemoveMembership(ctx context.Context, tenantID, userID uuid.UUID) error {
	if m.removeMembershipFn != nil {
		return m.removeMembershipFn(ctx, tenantID, userID)
	}
	return nil
}

func (m *mockUserRepo) ListMemberships(context.Context, uuid.UUID) ([]auth.Membership, error) {
	return []auth.Membership{}, nil
}

// --- Helpers ---

func newUserHandler(userRepo auth.UserRepository, tenants tenant.Repository) *handler.UserHandler {
	// Low bcrypt cost keeps key generation fast.
	return handler.NewUserHandler(auth.NewService(userRepo, 4), userRepo, tenants)
}

func sampleUser(superadmin bool) *auth.User {
	return &auth.User{
		ID:           uuid.New(),
		Name:         "Marcela Soto",
		Email:        "marcela@club.cl",
		IsSuperadmin: superadmin,
		ApiKeyPrefix: "acr_abcd",
		ApiKeyHash:   "$2a$04$fakehash",
		CreatedAt:    time.Now().UTC(),
	}
}

func userRequest(method, id string) (*http.Request, *httptest.ResponseRecorder) {
	return makeChiRequest(method, "/users/"+id, nil, "/users/{userID}", map[string]string{"userID": id})
}

// ===== POST /users =====

func TestUserCreate_WithMembership(t *testing.T) {
	t.Parallel()

	tn := sampleTenant()
	tenants := &mockTenantRepo{
		getByIDFn: func(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
			assert.Equal(t, tn.ID, id)
			return tn, nil
		},
	}
	var granted *auth.Membership
	users := &mockUserRepo{
		addMembershipFn: func(_ context.Context, m *auth.Membership) error {
			granted = m
			return nil
		},
	}
	h := newUserHandler(users, tenants)

	body := mustJSON(t, map[string]string{
		"name":     "Marcela Soto",
		"email":    " Marcela@Club.CL ",
		"tenantId": tn.ID.String(),
		"role":     auth.RoleStaff,
	})
	req, w := makeChiRequest(http.MethodPost, "/users", body, "", nil)
	h.Create(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, granted)
	assert.Equal(t, tn.ID, granted.TenantID)
	assert.Equal(t, auth.RoleStaff, granted.Role)

	data := parseEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "marcela@club.cl", data["email"])
	assert.True(t, strings.HasPrefix(data["apiKey"].(string), "acr_"))
	memberships := data["memberships"].([]interface{})
	require.Len(t, memberships, 1)
	assert.Equal(t, "club-deportivo", memberships[0].(map[string]interface{})["tenantSlug"])
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	t.Parallel()

	users := &mockUserRepo{
		createFn: func(context.Context, *auth.User) error { return auth.ErrDuplicateEmail },
	}
	h := newUserHandler(users, &mockTenantRepo{})

	body := []byte(`{"name":"Marcela","email":"marcela@club.cl"}`)
	req, w := makeChiRequest(http.MethodPost, "/users", body, "", nil)
	h.Create(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_EMAIL", errorCode(t, w))
}

func TestUserCreate_UnknownTenant(t *testing.T) {
	t.Parallel()

	h := newUserHandler(&mockUserRepo{}, &mockTenantRepo{})

	body := mustJSON(t, map[string]string{
		"name":     "Marcela",
		"email":    "marcela@club.cl",
		"tenantId": uuid.NewString(),
		"role":     auth.RoleAdmin,
	})
	req, w := makeChiRequest(http.MethodPost, "/users", body, "", nil)
	h.Create(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserCreate_RoleWithoutTenant(t *testing.T) {
	t.Parallel()

	h := newUserHandler(&mockUserRepo{}, &mockTenantRepo{})

	body := []byte(`{"name":"Marcela","email":"marcela@club.cl","role":"admin"}`)
	req, w := makeChiRequest(http.MethodPost, "/users", body, "", nil)
	h.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

// ===== GET /tenants/{tenantID}/users =====

func TestUserList_ScopedToTenant(t *testing.T) {
	t.Parallel()

	tn := sampleTenant()
	users := &mockUserRepo{
		listFn: func(_ context.Context, tenantID *uuid.UUID) ([]auth.User, error) {
			require.NotNil(t, tenantID)
			assert.Equal(t, tn.ID, *tenantID)
			return []auth.User{*sampleUser(false)}, nil
		},
	}
	h := newUserHandler(users, &mockTenantRepo{})

	req, w := makeChiRequest(http.MethodGet, "/tenants/"+tn.ID.String()+"/users", nil,
		"/tenants/{tenantID}/users", map[string]string{"tenantID": tn.ID.String()})
	h.List(w, withTenant(req, tn))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	meta := parseEnvelope(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, float64(1), meta["total"])
}

func TestUserList_AllUsers(t *testing.T) {
	t.Parallel()

	users := &mockUserRepo{
		listFn: func(_ context.Context, tenantID *uuid.UUID) ([]auth.User, error) {
			assert.Nil(t, tenantID)
			return []auth.User{*sampleUser(true), *sampleUser(false)}, nil
		},
	}
	h := newUserHandler(users, &mockTenantRepo{})

	req, w := makeChiRequest(http.MethodGet, "/users", nil, "", nil)
	h.List(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, parseEnvelope(t, w)["data"].([]interface{}), 2)
}

// ===== DELETE /users/{userID} =====

func TestUserDelete_Superadmin(t *testing.T) {
	t.Parallel()

	root := sampleUser(true)
	users := &mockUserRepo{
		getByIDFn: func(context.Context, uuid.UUID) (*auth.User, error) { return root, nil },
		revokeFn: func(context.Context, uuid.UUID) error {
			t.Error("superadmin must not be revoked")
			return nil
		},
	}
	h := newUserHandler(users, &mockTenantRepo{})

	req, w := userRequest(http.MethodDelete, root.ID.String())
	h.Delete(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserDelete_AlreadyRevoked(t *testing.T) {
	t.Parallel()

	u := sampleUser(false)
	users := &mockUserRepo{
		getByIDFn: func(context.Context, uuid.UUID) (*auth.User, error) { return u, nil },
		revokeFn:  func(context.Context, uuid.UUID) error { return auth.ErrUserRevoked },
	}
	h := newUserHandler(users, &mockTenantRepo{})

	req, w := userRequest(http.MethodDelete, u.ID.String())
	h.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUserDelete_NotFound(t *testing.T) {
	t.Parallel()

	h := newUserHandler(&mockUserRepo{}, &mockTenantRepo{})

	req, w := userRequest(http.MethodDelete, uuid.NewString())
	h.Delete(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ===== DELETE /tenants/{tenantID}/users/{userID} =====

func TestRemoveMember_Self(t *testing.T) {
	t.Parallel()

	tn := sampleTenant()
	identity := staffIdentity(tn.ID, auth.RoleAdmin)
	h := newUserHandler(&mockUserRepo{}, &mockTenantRepo{})

	req, w := userRequest(http.MethodDelete, identity.UserID.String())
	h.RemoveMember(w, withIdentity(withTenant(req, tn), identity))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SELF_REMOVAL", errorCode(t, w))
}

func TestRemoveMember_NotMember(t *testing.T) {
	t.Parallel()

	tn := sampleTenant()
	users := &mockUserRepo{
		removeMembershipFn: func(_ context.Context, tenantID, _ uuid.UUID) error {
			assert.Equal(t, tn.ID, tenantID)
			return auth.ErrUserNotFound
		},
	}
	h := newUserHandler(users, &mockTenantRepo{})

	req, w := userRequest(http.MethodDelete, uuid.NewString())
	h.RemoveMember(w, withIdentity(withTenant(req, tn), staffIdentity(tn.ID, auth.RoleAdmin)))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
