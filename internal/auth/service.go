package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidKey is returned when the provided API key does not match any active user.
var ErrInvalidKey = errors.New("invalid or revoked API key")

// keyPrefixLen is the number of leading key characters stored in clear for lookup.
const keyPrefixLen = 8

// Service provides authentication operations.
type Service struct {
	userRepo   UserRepository
	bcryptCost int
}

// NewService creates a new auth Service.
func NewService(userRepo UserRepository, bcryptCost int) *Service {
	return &Service{
		userRepo:   userRepo,
		bcryptCost: bcryptCost,
	}
}

// GenerateKey creates a new API key. Returns the raw key, its prefix (first 8 chars),
// and the bcrypt hash. The raw key is: 32 random bytes -> base64url -> prepend "acr_".
func (s *Service) GenerateKey() (rawKey, prefix, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	rawKey = "acr_" + base64.RawURLEncoding.EncodeToString(b)
	prefix = rawKey[:keyPrefixLen]

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(rawKey), s.bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hashing key: %w", err)
	}
	hash = string(hashBytes)

	return rawKey, prefix, hash, nil
}

// Authenticate resolves a raw API key to an Identity. It extracts the prefix,
// looks up candidates, and bcrypt-compares each one.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*Identity, error) {
	if len(rawKey) < keyPrefixLen {
		return nil, ErrInvalidKey
	}

	candidates, err := s.userRepo.FindByPrefix(ctx, rawKey[:keyPrefixLen])
	if err != nil {
		return nil, fmt.Errorf("finding users by prefix: %w", err)
	}

	for _, u := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(u.ApiKeyHash), []byte(rawKey)) == nil {
			return s.buildIdentity(ctx, &u)
		}
	}

	return nil, ErrInvalidKey
}

// CreateUser creates a user with a fresh API key and, when tenantID is set,
// a membership with the given role. The raw key is returned once.
func (s *Service) CreateUser(ctx context.Context, name, email string, tenantID *uuid.UUID, role string) (*User, string, error) {
	rawKey, prefix, hash, err := s.GenerateKey()
	if err != nil {
		return nil, "", err
	}

	u := &User{
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		ApiKeyPrefix: prefix,
		ApiKeyHash:   hash,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, "", err
	}

	if tenantID != nil {
		m := &Membership{TenantID: *tenantID, UserID: u.ID, Role: role}
		if err := s.userRepo.AddMembership(ctx, m); err != nil {
			return nil, "", fmt.Errorf("granting membership: %w", err)
		}
		u.Memberships = []Membership{*m}
	}

	return u, rawKey, nil
}

// GrantRole gives an existing, active user a role in a tenant.
func (s *Service) GrantRole(ctx context.Context, email string, tenantID uuid.UUID, role string) (*User, error) {
	u, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if u.RevokedAt != nil {
		return nil, ErrUserRevoked
	}
	m := &Membership{TenantID: tenantID, UserID: u.ID, Role: role}
	if err := s.userRepo.AddMembership(ctx, m); err != nil {
		return nil, fmt.Errorf("granting membership: %w", err)
	}
	u.Memberships = []Membership{*m}
	return u, nil
}

// BootstrapSuperadmin creates the initial superadmin if the users table is empty.
// Returns the raw API key (only displayed once). If users already exist, returns empty string.
func (s *Service) BootstrapSuperadmin(ctx context.Context, name, email string) (string, error) {
	count, err := s.userRepo.CountAll(ctx)
	if err != nil {
		return "", fmt.Errorf("counting users: %w", err)
	}

	if count > 0 {
		return "", nil
	}

	rawKey, prefix, hash, err := s.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generating superadmin key: %w", err)
	}

	user := &User{
		Name:         name,
		Email:        strings.ToLower(email),
		IsSuperadmin: true,
		ApiKeyPrefix: prefix,
		ApiKeyHash:   hash,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return "", fmt.Errorf("creating superadmin: %w", err)
	}

	slog.Info("superadmin created", "email", user.Email, "keyPrefix", prefix)

	return rawKey, nil
}

// buildIdentity constructs an Identity from a User and its tenant memberships.
func (s *Service) buildIdentity(ctx context.Context, u *User) (*Identity, error) {
	identity := &Identity{
		UserID:       u.ID,
		UserName:     u.Name,
		Email:        u.Email,
		IsSuperadmin: u.IsSuperadmin,
		Roles:        map[uuid.UUID]string{},
	}

	memberships, err := s.userRepo.ListMemberships(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching memberships for identity: %w", err)
	}
	for _, m := range memberships {
		identity.Roles[m.TenantID] = m.Role
	}

	return identity, nil
}
